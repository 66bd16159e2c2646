// FILE: internal/entity/payment_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one settled or attempted charge. Rows are append-only: created
// exactly once per external payment reference, never mutated afterwards.
type Payment struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	SubscriptionId  *uuid.UUID
	StripePaymentId string
	// Amount is in the currency's minor unit.
	Amount      int64
	Currency    string
	Status      PaymentStatus
	Description string
	ReceiptURL  string
	CreatedAt   time.Time
}

// PaymentDetail is a projection for listing payments (joined data).
type PaymentDetail struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	UserEmail       string
	PlanName        string
	Amount          int64
	Currency        string
	Status          PaymentStatus
	StripePaymentId string
	CreatedAt       time.Time
}
