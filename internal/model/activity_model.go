package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserActivity struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action      string         `gorm:"type:varchar(50);not null;index"`
	Description string         `gorm:"type:text"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"default:now();not null;index"`
}

func (UserActivity) TableName() string {
	return "user_activities"
}
