package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/entity"
)

// NormalizedKind tags the shape of a normalized event. Unrecognized inbound
// event types map to KindIgnored instead of an error so the sender is always
// acknowledged and never retries events we do not care about.
type NormalizedKind string

const (
	KindSubscriptionSnapshot NormalizedKind = "subscription_snapshot"
	KindPaymentOutcome       NormalizedKind = "payment_outcome"
	KindIgnored              NormalizedKind = "ignored"
)

// SubscriptionSnapshot is the processor-reported state of one subscription at
// a point in time. The writer overwrites local state with it unconditionally.
type SubscriptionSnapshot struct {
	StripeSubscriptionId string
	Status               entity.SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
}

// PaymentOutcome is one settled or attempted charge as reported by the
// processor. StripeSubscriptionId may be empty for standalone payments.
type PaymentOutcome struct {
	StripePaymentId      string
	StripeSubscriptionId string
	Amount               int64
	Currency             string
	Status               entity.PaymentStatus
	Description          string
	ReceiptURL           string
}

// NormalizedEvent is a tagged union: exactly one of Snapshot/Outcome is set,
// matching Kind. KindIgnored carries neither.
type NormalizedEvent struct {
	Kind     NormalizedKind
	Snapshot *SubscriptionSnapshot
	Outcome  *PaymentOutcome
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps a verified Stripe event envelope into the internal record
// shape. Pure transformation: no I/O, no side effects.
func (n *Normalizer) Normalize(event stripe.Event) (*NormalizedEvent, error) {
	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		return n.normalizeSubscription(event)

	case "invoice.payment_succeeded":
		return n.normalizeInvoice(event, entity.PaymentStatusSucceeded)

	case "invoice.payment_failed":
		return n.normalizeInvoice(event, entity.PaymentStatusFailed)

	case "payment_intent.canceled":
		return n.normalizePaymentIntent(event)

	case "charge.refunded":
		return n.normalizeCharge(event)

	default:
		return &NormalizedEvent{Kind: KindIgnored}, nil
	}
}

func (n *Normalizer) normalizeSubscription(event stripe.Event) (*NormalizedEvent, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, apperr.Validation("data.object", fmt.Sprintf("malformed subscription payload: %v", err))
	}

	if sub.ID == "" {
		return nil, apperr.Validation("data.object.id", "subscription event is missing the subscription id")
	}
	if sub.Status == "" {
		return nil, apperr.Validation("data.object.status", "subscription event is missing the status")
	}
	if sub.CurrentPeriodStart == 0 || sub.CurrentPeriodEnd == 0 {
		return nil, apperr.Validation("data.object.current_period", "subscription event is missing period bounds")
	}
	if sub.CurrentPeriodEnd <= sub.CurrentPeriodStart {
		return nil, apperr.Validation("data.object.current_period", "subscription period end must be after period start")
	}

	snapshot := &SubscriptionSnapshot{
		StripeSubscriptionId: sub.ID,
		Status:               entity.SubscriptionStatus(sub.Status),
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CanceledAt:           unixPtr(sub.CanceledAt),
		TrialStart:           unixPtr(sub.TrialStart),
		TrialEnd:             unixPtr(sub.TrialEnd),
	}

	return &NormalizedEvent{Kind: KindSubscriptionSnapshot, Snapshot: snapshot}, nil
}

func (n *Normalizer) normalizeInvoice(event stripe.Event, status entity.PaymentStatus) (*NormalizedEvent, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, apperr.Validation("data.object", fmt.Sprintf("malformed invoice payload: %v", err))
	}

	if inv.ID == "" {
		return nil, apperr.Validation("data.object.id", "invoice event is missing the invoice id")
	}
	if inv.Currency == "" {
		return nil, apperr.Validation("data.object.currency", "invoice event is missing the currency")
	}

	// The payment intent id is the stable per-charge reference. Older API
	// versions can omit it on the invoice, in which case the invoice id
	// itself still uniquely identifies the charge attempt.
	paymentRef := inv.ID
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		paymentRef = inv.PaymentIntent.ID
	}

	amount := inv.AmountPaid
	if status == entity.PaymentStatusFailed {
		amount = inv.AmountDue
	}

	outcome := &PaymentOutcome{
		StripePaymentId: paymentRef,
		Amount:          amount,
		Currency:        string(inv.Currency),
		Status:          status,
		Description:     invoiceDescription(&inv, status),
		ReceiptURL:      inv.HostedInvoiceURL,
	}
	if inv.Subscription != nil {
		outcome.StripeSubscriptionId = inv.Subscription.ID
	}

	return &NormalizedEvent{Kind: KindPaymentOutcome, Outcome: outcome}, nil
}

func (n *Normalizer) normalizePaymentIntent(event stripe.Event) (*NormalizedEvent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, apperr.Validation("data.object", fmt.Sprintf("malformed payment intent payload: %v", err))
	}

	if pi.ID == "" {
		return nil, apperr.Validation("data.object.id", "payment intent event is missing the payment intent id")
	}
	if pi.Currency == "" {
		return nil, apperr.Validation("data.object.currency", "payment intent event is missing the currency")
	}

	description := pi.Description
	if description == "" {
		description = "Payment canceled"
	}

	outcome := &PaymentOutcome{
		StripePaymentId: pi.ID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		Status:          entity.PaymentStatusCanceled,
		Description:     description,
	}

	return &NormalizedEvent{Kind: KindPaymentOutcome, Outcome: outcome}, nil
}

func (n *Normalizer) normalizeCharge(event stripe.Event) (*NormalizedEvent, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return nil, apperr.Validation("data.object", fmt.Sprintf("malformed charge payload: %v", err))
	}

	if ch.ID == "" {
		return nil, apperr.Validation("data.object.id", "charge event is missing the charge id")
	}
	if ch.Currency == "" {
		return nil, apperr.Validation("data.object.currency", "charge event is missing the currency")
	}

	// A refund is filed under its own reference so it never collides with
	// the original SUCCEEDED row for the same payment intent.
	description := ch.Description
	if description == "" {
		description = "Payment refunded"
	}

	outcome := &PaymentOutcome{
		StripePaymentId: "refund_" + ch.ID,
		Amount:          ch.AmountRefunded,
		Currency:        string(ch.Currency),
		Status:          entity.PaymentStatusRefunded,
		Description:     description,
		ReceiptURL:      ch.ReceiptURL,
	}

	return &NormalizedEvent{Kind: KindPaymentOutcome, Outcome: outcome}, nil
}

func invoiceDescription(inv *stripe.Invoice, status entity.PaymentStatus) string {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Description != "" {
		return inv.Lines.Data[0].Description
	}
	if status == entity.PaymentStatusFailed {
		return "Subscription payment failed"
	}
	return "Subscription payment"
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
