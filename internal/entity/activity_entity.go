// FILE: internal/entity/activity_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActivityUserLogin               ActivityAction = "USER_LOGIN"
	ActivityUserRegistered          ActivityAction = "USER_REGISTERED"
	ActivitySubscriptionCreated     ActivityAction = "SUBSCRIPTION_CREATED"
	ActivitySubscriptionCanceled    ActivityAction = "SUBSCRIPTION_CANCELED"
	ActivitySubscriptionReactivated ActivityAction = "SUBSCRIPTION_REACTIVATED"
	ActivityPaymentSucceeded        ActivityAction = "PAYMENT_SUCCEEDED"
	ActivityPaymentFailed           ActivityAction = "PAYMENT_FAILED"
	ActivityPaymentCanceled         ActivityAction = "PAYMENT_CANCELED"
	ActivityPaymentRefunded         ActivityAction = "PAYMENT_REFUNDED"
)

// UserActivity is the append-only audit trail. Entries are never updated or
// deleted.
type UserActivity struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	Action      ActivityAction
	Description string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}
