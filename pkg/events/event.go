package events

import "time"

// Billing event type codes published on the bus and mirrored in UserActivity.
const (
	TypeUserLogin               = "USER_LOGIN"
	TypeUserRegistered          = "USER_REGISTERED"
	TypeSubscriptionCreated     = "SUBSCRIPTION_CREATED"
	TypeSubscriptionCanceled    = "SUBSCRIPTION_CANCELED"
	TypeSubscriptionReactivated = "SUBSCRIPTION_REACTIVATED"
	TypePaymentSucceeded        = "PAYMENT_SUCCEEDED"
	TypePaymentFailed           = "PAYMENT_FAILED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "PAYMENT_SUCCEEDED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
