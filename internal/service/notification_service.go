package service

import (
	"context"

	"github.com/google/uuid"

	"subtrack-be/internal/dto"
	"subtrack-be/internal/pkg/logger"
	"subtrack-be/pkg/events"
	pkgNats "subtrack-be/pkg/nats"
)

// FeedDelivery pushes live feed entries to connected dashboard clients.
// Implemented by the websocket hub.
type FeedDelivery interface {
	Send(userID uuid.UUID, event dto.FeedEvent)
	Broadcast(event dto.FeedEvent)
}

// NotificationService bridges the billing event bus to the live activity
// feed: every event published on billing.> fans out to dashboard websockets.
type NotificationService struct {
	subscriber *pkgNats.Subscriber
	delivery   FeedDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub *pkgNats.Subscriber, delivery FeedDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("billing.>", "activity-feed-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("notification", "Failed to start feed subscriber", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.logger.Info("notification", "Activity feed listening on billing.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	if s.delivery == nil {
		return nil
	}

	feed := dto.FeedEvent{
		Id:         uuid.New(),
		Type:       event.EventType(),
		Payload:    event.Payload(),
		OccurredAt: event.Timestamp(),
	}

	userId := extractUserId(event.Payload())

	switch event.EventType() {
	case events.TypeSubscriptionCreated:
		// Subscription signups are broadcast to every connected dashboard,
		// the rest of the feed is scoped to the owning user.
		s.delivery.Broadcast(feed)
	default:
		if userId == uuid.Nil {
			s.logger.Warn("notification", "Feed event without user id dropped", map[string]interface{}{
				"event_type": event.EventType(),
			})
			return nil
		}
		feed.UserId = userId
		s.delivery.Send(userId, feed)
	}

	return nil
}

func extractUserId(payload map[string]interface{}) uuid.UUID {
	raw, ok := payload["user_id"].(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
