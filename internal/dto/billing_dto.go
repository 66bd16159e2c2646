package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Plans ---

type PlanResponse struct {
	Id            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	PriceAmount   int64     `json:"price_amount"`
	Currency      string    `json:"currency"`
	Interval      string    `json:"interval"`
	IsMostPopular bool      `json:"is_most_popular"`
}

// --- Subscription Lifecycle ---

type SubscribeRequest struct {
	PlanId          uuid.UUID `json:"plan_id" validate:"required"`
	PaymentMethodId string    `json:"payment_method_id" validate:"required"`
}

type CancelSubscriptionRequest struct {
	// CancelAtPeriodEnd defaults to immediate cancellation when false.
	CancelAtPeriodEnd bool `json:"cancel_at_period_end"`
}

type SubscriptionResponse struct {
	Id                 uuid.UUID  `json:"id"`
	PlanId             uuid.UUID  `json:"plan_id"`
	PlanName           string     `json:"plan_name,omitempty"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
}

// --- Dashboard ---

type RecentPaymentResponse struct {
	Id        uuid.UUID `json:"id"`
	UserEmail string    `json:"user_email"`
	PlanName  string    `json:"plan_name,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardSummaryResponse struct {
	TotalRevenue            int64                   `json:"total_revenue"`
	MonthlyRecurringRevenue int64                   `json:"monthly_recurring_revenue"`
	ActiveSubscribers       int                     `json:"active_subscribers"`
	RecentPayments          []RecentPaymentResponse `json:"recent_payments"`
}
