package stripegateway

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentmethod"
	"github.com/stripe/stripe-go/v76/subscription"

	"subtrack-be/internal/apperr"
)

// RemoteSubscription is the processor's view of a subscription right after a
// call returns. Lifecycle handlers seed or reconcile local rows from it.
type RemoteSubscription struct {
	ID                 string
	Status             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	CanceledAt         int64
	TrialStart         int64
	TrialEnd           int64
}

// PaymentGateway abstracts the outbound processor calls so lifecycle handlers
// can be exercised against a fake. Every call is synchronous, fallible and
// never retried here.
type PaymentGateway interface {
	CreateCustomer(email, fullName string) (customerID string, err error)
	AttachPaymentMethod(customerID, paymentMethodID string) error
	SetDefaultPaymentMethod(customerID, paymentMethodID string) error
	CreateSubscription(customerID, priceID string) (*RemoteSubscription, error)
	ScheduleCancellation(subscriptionID string) (*RemoteSubscription, error)
	CancelNow(subscriptionID string) (*RemoteSubscription, error)
	ReactivateSubscription(subscriptionID string) (*RemoteSubscription, error)
}

type StripeGateway struct{}

func NewStripeGateway(secretKey string) PaymentGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateCustomer(email, fullName string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(fullName),
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", apperr.Processor("create customer", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) AttachPaymentMethod(customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	if _, err := paymentmethod.Attach(paymentMethodID, params); err != nil {
		return apperr.Processor("attach payment method", err)
	}
	return nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	if _, err := customer.Update(customerID, params); err != nil {
		return apperr.Processor("set default payment method", err)
	}
	return nil
}

func (g *StripeGateway) CreateSubscription(customerID, priceID string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("error_if_incomplete"),
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, apperr.Processor("create subscription", err)
	}
	return toRemote(sub), nil
}

func (g *StripeGateway) ScheduleCancellation(subscriptionID string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, apperr.Processor("schedule cancellation", err)
	}
	return toRemote(sub), nil
}

func (g *StripeGateway) CancelNow(subscriptionID string) (*RemoteSubscription, error) {
	sub, err := subscription.Cancel(subscriptionID, nil)
	if err != nil {
		return nil, apperr.Processor("cancel subscription", err)
	}
	return toRemote(sub), nil
}

func (g *StripeGateway) ReactivateSubscription(subscriptionID string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, apperr.Processor("reactivate subscription", err)
	}
	return toRemote(sub), nil
}

func toRemote(sub *stripe.Subscription) *RemoteSubscription {
	return &RemoteSubscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
	}
}
