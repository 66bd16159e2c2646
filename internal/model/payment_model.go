package model

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	Id             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID  `gorm:"type:uuid;not null;index"`
	SubscriptionId *uuid.UUID `gorm:"type:uuid;index"`
	// The unique index closes the lookup-then-insert race between two
	// concurrent deliveries of the same event.
	StripePaymentId string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Amount          int64     `gorm:"not null"`
	Currency        string    `gorm:"type:varchar(3);not null"`
	Status          string    `gorm:"type:payment_status;not null"`
	Description     string    `gorm:"type:text"`
	ReceiptURL      string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
