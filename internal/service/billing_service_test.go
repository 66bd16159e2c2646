// FILE: internal/service/billing_service_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/dto"
	"subtrack-be/internal/entity"
	"subtrack-be/internal/model"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/internal/testutil"
	"subtrack-be/pkg/stripegateway"
)

type fakeGateway struct {
	customerIds        int
	attachedMethods    []string
	createdPrices      []string
	scheduledCancels   []string
	immediateCancels   []string
	reactivations      []string
	failCancellation   bool
	failReactivation   bool
	failCreateSub      bool
	remotePeriodsStart int64
	remotePeriodsEnd   int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		remotePeriodsStart: time.Now().Add(-time.Hour).Unix(),
		remotePeriodsEnd:   time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
}

func (g *fakeGateway) CreateCustomer(email, fullName string) (string, error) {
	g.customerIds++
	return "cus_test_1", nil
}

func (g *fakeGateway) AttachPaymentMethod(customerID, paymentMethodID string) error {
	g.attachedMethods = append(g.attachedMethods, paymentMethodID)
	return nil
}

func (g *fakeGateway) SetDefaultPaymentMethod(customerID, paymentMethodID string) error {
	return nil
}

func (g *fakeGateway) CreateSubscription(customerID, priceID string) (*stripegateway.RemoteSubscription, error) {
	if g.failCreateSub {
		return nil, apperr.Processor("create subscription", errors.New("card declined"))
	}
	g.createdPrices = append(g.createdPrices, priceID)
	return &stripegateway.RemoteSubscription{
		ID:                 "sub_new",
		Status:             "active",
		CurrentPeriodStart: g.remotePeriodsStart,
		CurrentPeriodEnd:   g.remotePeriodsEnd,
	}, nil
}

func (g *fakeGateway) ScheduleCancellation(subscriptionID string) (*stripegateway.RemoteSubscription, error) {
	if g.failCancellation {
		return nil, apperr.Processor("schedule cancellation", errors.New("gateway unavailable"))
	}
	g.scheduledCancels = append(g.scheduledCancels, subscriptionID)
	return &stripegateway.RemoteSubscription{
		ID:                subscriptionID,
		Status:            "active",
		CancelAtPeriodEnd: true,
	}, nil
}

func (g *fakeGateway) CancelNow(subscriptionID string) (*stripegateway.RemoteSubscription, error) {
	if g.failCancellation {
		return nil, apperr.Processor("cancel subscription", errors.New("gateway unavailable"))
	}
	g.immediateCancels = append(g.immediateCancels, subscriptionID)
	return &stripegateway.RemoteSubscription{
		ID:         subscriptionID,
		Status:     "canceled",
		CanceledAt: time.Now().Unix(),
	}, nil
}

func (g *fakeGateway) ReactivateSubscription(subscriptionID string) (*stripegateway.RemoteSubscription, error) {
	if g.failReactivation {
		return nil, apperr.Processor("reactivate subscription", errors.New("gateway unavailable"))
	}
	g.reactivations = append(g.reactivations, subscriptionID)
	return &stripegateway.RemoteSubscription{
		ID:     subscriptionID,
		Status: "active",
	}, nil
}

type fakeMailer struct {
	paymentFailedTo []string
	canceledTo      []string
}

func (m *fakeMailer) SendPaymentFailed(toEmail, planName string, amount int64, currency string) error {
	m.paymentFailedTo = append(m.paymentFailedTo, toEmail)
	return nil
}

func (m *fakeMailer) SendSubscriptionCanceled(toEmail, planName string) error {
	m.canceledTo = append(m.canceledTo, toEmail)
	return nil
}

func newBillingForTest(db *gorm.DB, gw *fakeGateway, mail *fakeMailer) IBillingService {
	factory := unitofwork.NewRepositoryFactory(db)
	activity := NewActivityService(factory, testutil.NopLogger{})
	return NewBillingService(factory, gw, activity, nil, mail, testutil.NopLogger{})
}

func TestSubscribeCreatesLocalRowFromRemoteState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now().UTC()

	user := model.User{
		Id: uuid.New(), Email: "sam@example.com", FullName: "Sam Lee",
		Role: "user", Status: "active", CreatedAt: now, UpdatedAt: now,
	}
	plan := model.SubscriptionPlan{
		Id: uuid.New(), Name: "Pro", Slug: "pro", PriceAmount: 2999,
		Currency: "usd", Interval: "month", StripePriceId: "price_pro", IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&plan).Error)

	gw := newFakeGateway()
	svc := newBillingForTest(db, gw, &fakeMailer{})

	resp, err := svc.Subscribe(context.Background(), user.Id, &dto.SubscribeRequest{
		PlanId:          plan.Id,
		PaymentMethodId: "pm_card",
	})
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, "Pro", resp.PlanName)

	assert.Equal(t, []string{"pm_card"}, gw.attachedMethods)
	assert.Equal(t, []string{"price_pro"}, gw.createdPrices)

	var sub model.Subscription
	require.NoError(t, db.First(&sub, "stripe_subscription_id = ?", "sub_new").Error)
	assert.Equal(t, user.Id, sub.UserId)
	assert.Equal(t, plan.Id, sub.PlanId)
	assert.Equal(t, "active", sub.Status)

	// The processor-side customer record is persisted for reuse.
	var savedUser model.User
	require.NoError(t, db.First(&savedUser, "id = ?", user.Id).Error)
	require.NotNil(t, savedUser.StripeCustomerId)
	assert.Equal(t, "cus_test_1", *savedUser.StripeCustomerId)

	var activity model.UserActivity
	require.NoError(t, db.First(&activity, "user_id = ?", user.Id).Error)
	assert.Equal(t, string(entity.ActivitySubscriptionCreated), activity.Action)
}

func TestSubscribeRejectsSecondLiveSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	gw := newFakeGateway()
	svc := newBillingForTest(db, gw, &fakeMailer{})

	_, err := svc.Subscribe(context.Background(), f.User.Id, &dto.SubscribeRequest{
		PlanId:          f.Plan.Id,
		PaymentMethodId: "pm_card",
	})

	var stateErr *apperr.InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &stateErr))
	assert.Zero(t, gw.customerIds, "no processor call should happen before local validation passes")
}

func TestSubscribeUnknownPlanIsNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	svc := newBillingForTest(db, newFakeGateway(), &fakeMailer{})

	_, err := svc.Subscribe(context.Background(), f.User.Id, &dto.SubscribeRequest{
		PlanId:          uuid.New(),
		PaymentMethodId: "pm_card",
	})

	var nfErr *apperr.NotFoundError
	require.Error(t, err)
	assert.True(t, errors.As(err, &nfErr))
}

func TestSubscribeRemoteFailureLeavesNoLocalRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now().UTC()

	user := model.User{
		Id: uuid.New(), Email: "sam@example.com", FullName: "Sam Lee",
		Role: "user", Status: "active", CreatedAt: now, UpdatedAt: now,
	}
	plan := model.SubscriptionPlan{
		Id: uuid.New(), Name: "Pro", Slug: "pro", PriceAmount: 2999,
		Currency: "usd", Interval: "month", StripePriceId: "price_pro", IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&plan).Error)

	gw := newFakeGateway()
	gw.failCreateSub = true
	svc := newBillingForTest(db, gw, &fakeMailer{})

	_, err := svc.Subscribe(context.Background(), user.Id, &dto.SubscribeRequest{
		PlanId:          plan.Id,
		PaymentMethodId: "pm_card",
	})

	var procErr *apperr.PaymentProcessorError
	require.Error(t, err)
	assert.True(t, errors.As(err, &procErr))
	assert.Equal(t, int64(0), countRows(t, db, &model.Subscription{}))
}

func TestCancelAtPeriodEndKeepsStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	gw := newFakeGateway()
	mail := &fakeMailer{}
	svc := newBillingForTest(db, gw, mail)

	resp, err := svc.Cancel(context.Background(), f.User.Id, f.Sub.Id, true)
	require.NoError(t, err)

	// The transition to canceled happens at period end, not now.
	assert.Equal(t, "active", resp.Status)
	assert.True(t, resp.CancelAtPeriodEnd)
	require.NotNil(t, resp.CanceledAt)

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)
	assert.Equal(t, "active", row.Status)
	assert.True(t, row.CancelAtPeriodEnd)
	require.NotNil(t, row.CanceledAt)

	assert.Equal(t, []string{"sub_1"}, gw.scheduledCancels)
	assert.Equal(t, []string{"jane@example.com"}, mail.canceledTo)
}

func TestCancelImmediatelyMarksCanceled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	gw := newFakeGateway()
	svc := newBillingForTest(db, gw, &fakeMailer{})

	resp, err := svc.Cancel(context.Background(), f.User.Id, f.Sub.Id, false)
	require.NoError(t, err)
	assert.Equal(t, "canceled", resp.Status)

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)
	assert.Equal(t, "canceled", row.Status)
	require.NotNil(t, row.CanceledAt)
	assert.Equal(t, []string{"sub_1"}, gw.immediateCancels)
}

func TestCancelRemoteFailureLeavesLocalStateUnchanged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	gw := newFakeGateway()
	gw.failCancellation = true
	svc := newBillingForTest(db, gw, &fakeMailer{})

	_, err := svc.Cancel(context.Background(), f.User.Id, f.Sub.Id, true)
	require.Error(t, err)

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)
	assert.Equal(t, "active", row.Status)
	assert.False(t, row.CancelAtPeriodEnd)
	assert.Nil(t, row.CanceledAt)
}

func TestCancelThenReactivateRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	gw := newFakeGateway()
	svc := newBillingForTest(db, gw, &fakeMailer{})
	ctx := context.Background()

	_, err := svc.Cancel(ctx, f.User.Id, f.Sub.Id, true)
	require.NoError(t, err)

	resp, err := svc.Reactivate(ctx, f.User.Id, f.Sub.Id)
	require.NoError(t, err)

	// Back to the pre-cancellation shape.
	assert.Equal(t, "active", resp.Status)
	assert.False(t, resp.CancelAtPeriodEnd)
	assert.Nil(t, resp.CanceledAt)

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)
	assert.Equal(t, "active", row.Status)
	assert.False(t, row.CancelAtPeriodEnd)
	assert.Nil(t, row.CanceledAt)

	assert.Equal(t, []string{"sub_1"}, gw.reactivations)
}

func TestReactivateTerminallyCanceledIsRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	canceledAt := time.Now().UTC()
	require.NoError(t, db.Model(&model.Subscription{}).
		Where("id = ?", f.Sub.Id).
		Updates(map[string]interface{}{"status": "canceled", "canceled_at": canceledAt}).Error)

	gw := newFakeGateway()
	svc := newBillingForTest(db, gw, &fakeMailer{})

	_, err := svc.Reactivate(context.Background(), f.User.Id, f.Sub.Id)

	var stateErr *apperr.InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &stateErr))
	assert.Empty(t, gw.reactivations, "terminal cancellation must never reach the processor")
}

func TestReactivateWithoutScheduledCancellationIsRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	svc := newBillingForTest(db, newFakeGateway(), &fakeMailer{})

	_, err := svc.Reactivate(context.Background(), f.User.Id, f.Sub.Id)

	var stateErr *apperr.InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &stateErr))
}

func TestCancelForeignSubscriptionReadsAsNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)

	svc := newBillingForTest(db, newFakeGateway(), &fakeMailer{})

	_, err := svc.Cancel(context.Background(), uuid.New(), f.Sub.Id, true)

	var nfErr *apperr.NotFoundError
	require.Error(t, err)
	assert.True(t, errors.As(err, &nfErr), "ownership failures must not leak existence")
}

func TestGetDashboardSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)
	now := time.Now().UTC()

	// A second user on a yearly plan; its price contributes 1/12th to MRR.
	yearlyUser := model.User{
		Id: uuid.New(), Email: "ann@example.com", FullName: "Ann Wu",
		Role: "user", Status: "active", CreatedAt: now, UpdatedAt: now,
	}
	yearlyPlan := model.SubscriptionPlan{
		Id: uuid.New(), Name: "Pro Annual", Slug: "pro-annual", PriceAmount: 29990,
		Currency: "usd", Interval: "year", StripePriceId: "price_pro_yearly", IsActive: true,
	}
	yearlySub := model.Subscription{
		Id: uuid.New(), UserId: yearlyUser.Id, PlanId: yearlyPlan.Id,
		StripeSubscriptionId: "sub_2", Status: "active",
		CurrentPeriodStart: now.Add(-24 * time.Hour), CurrentPeriodEnd: now.Add(364 * 24 * time.Hour),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(&yearlyUser).Error)
	require.NoError(t, db.Create(&yearlyPlan).Error)
	require.NoError(t, db.Create(&yearlySub).Error)

	payments := []model.Payment{
		{Id: uuid.New(), UserId: f.User.Id, SubscriptionId: &f.Sub.Id, StripePaymentId: "pi_1",
			Amount: 2999, Currency: "usd", Status: "succeeded", CreatedAt: now.Add(-time.Hour)},
		{Id: uuid.New(), UserId: yearlyUser.Id, SubscriptionId: &yearlySub.Id, StripePaymentId: "pi_2",
			Amount: 29990, Currency: "usd", Status: "succeeded", CreatedAt: now},
		{Id: uuid.New(), UserId: f.User.Id, SubscriptionId: &f.Sub.Id, StripePaymentId: "pi_3",
			Amount: 2999, Currency: "usd", Status: "failed", CreatedAt: now.Add(-2 * time.Hour)},
	}
	for i := range payments {
		require.NoError(t, db.Create(&payments[i]).Error)
	}

	svc := newBillingForTest(db, newFakeGateway(), &fakeMailer{})

	summary, err := svc.GetDashboardSummary(context.Background())
	require.NoError(t, err)

	// Failed payments do not count toward revenue.
	assert.Equal(t, int64(2999+29990), summary.TotalRevenue)
	assert.Equal(t, int64(2999+29990/12), summary.MonthlyRecurringRevenue)
	assert.Equal(t, 2, summary.ActiveSubscribers)

	// Most recent first, joined with the payer and plan.
	require.Len(t, summary.RecentPayments, 3)
	assert.Equal(t, "ann@example.com", summary.RecentPayments[0].UserEmail)
	assert.Equal(t, "Pro Annual", summary.RecentPayments[0].PlanName)
	assert.Equal(t, int64(29990), summary.RecentPayments[0].Amount)
}
