package dto

import (
	"time"

	"github.com/google/uuid"
)

type ActivityResponse struct {
	Id          uuid.UUID              `json:"id"`
	UserId      uuid.UUID              `json:"user_id"`
	Action      string                 `json:"action"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// FeedEvent is one live entry pushed over the websocket activity feed.
type FeedEvent struct {
	Id         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	UserId     uuid.UUID              `json:"user_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type ActivityListRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}
