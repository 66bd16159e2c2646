// FILE: internal/entity/subscription_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors Stripe's subscription status enum. The processor
// is the source of truth; we never invent statuses of our own.
type SubscriptionStatus string
type BillingInterval string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"

	BillingIntervalMonthly BillingInterval = "month"
	BillingIntervalYearly  BillingInterval = "year"
)

type SubscriptionPlan struct {
	Id          uuid.UUID
	Name        string
	Slug        string
	Description string
	// PriceAmount is in the currency's minor unit (cents).
	PriceAmount   int64
	Currency      string
	Interval      BillingInterval
	StripePriceId string
	IsMostPopular bool
	IsActive      bool
	SortOrder     int
}

type Subscription struct {
	Id     uuid.UUID
	UserId uuid.UUID
	PlanId uuid.UUID
	// StripeSubscriptionId is the idempotency and lookup key for everything
	// webhook-driven; exactly one local row per external reference.
	StripeSubscriptionId string
	Status               SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsTerminallyCanceled reports whether cancellation has actually taken
// effect, as opposed to merely being scheduled for period end.
func (s *Subscription) IsTerminallyCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}
