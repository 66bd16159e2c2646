// FILE: internal/service/reconcile_service_test.go
package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"subtrack-be/internal/billing"
	"subtrack-be/internal/entity"
	"subtrack-be/internal/model"
	"subtrack-be/internal/repository/contract"
	"subtrack-be/internal/repository/specification"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/internal/testutil"
)

type billingFixture struct {
	User model.User
	Plan model.SubscriptionPlan
	Sub  model.Subscription
}

func seedBillingFixture(t *testing.T, db *gorm.DB) billingFixture {
	t.Helper()
	now := time.Now().UTC()

	f := billingFixture{
		User: model.User{
			Id:        uuid.New(),
			Email:     "jane@example.com",
			FullName:  "Jane Doe",
			Role:      "user",
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Plan: model.SubscriptionPlan{
			Id:            uuid.New(),
			Name:          "Pro",
			Slug:          "pro",
			PriceAmount:   2999,
			Currency:      "usd",
			Interval:      "month",
			StripePriceId: "price_pro",
			IsActive:      true,
			SortOrder:     1,
		},
	}
	f.Sub = model.Subscription{
		Id:                   uuid.New(),
		UserId:               f.User.Id,
		PlanId:               f.Plan.Id,
		StripeSubscriptionId: "sub_1",
		Status:               "active",
		CurrentPeriodStart:   now.Add(-24 * time.Hour),
		CurrentPeriodEnd:     now.Add(29 * 24 * time.Hour),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	require.NoError(t, db.Create(&f.User).Error)
	require.NoError(t, db.Create(&f.Plan).Error)
	require.NoError(t, db.Create(&f.Sub).Error)
	return f
}

func newReconcileForTest(db *gorm.DB, dunningPub message.Publisher) IReconcileService {
	factory := unitofwork.NewRepositoryFactory(db)
	return NewReconcileService(factory, nil, dunningPub, "billing.dunning", testutil.NopLogger{})
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(m).Count(&count).Error)
	return count
}

func TestApplySubscriptionSnapshotOverwritesState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)
	svc := newReconcileForTest(db, nil)
	ctx := context.Background()

	periodStart := time.Unix(1700000000, 0).UTC()
	periodEnd := time.Unix(1702592000, 0).UTC()

	first := &billing.SubscriptionSnapshot{
		StripeSubscriptionId: "sub_1",
		Status:               entity.SubscriptionStatusPastDue,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}
	require.NoError(t, svc.ApplySubscriptionSnapshot(ctx, first))

	canceledAt := time.Unix(1700100000, 0).UTC()
	second := &billing.SubscriptionSnapshot{
		StripeSubscriptionId: "sub_1",
		Status:               entity.SubscriptionStatusActive,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
		CancelAtPeriodEnd:    true,
		CanceledAt:           &canceledAt,
	}
	require.NoError(t, svc.ApplySubscriptionSnapshot(ctx, second))

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)

	// Last write wins: local state matches the most recent snapshot exactly.
	assert.Equal(t, "active", row.Status)
	assert.True(t, row.CancelAtPeriodEnd)
	require.NotNil(t, row.CanceledAt)
	assert.Equal(t, canceledAt, row.CanceledAt.UTC())
	assert.Equal(t, periodStart, row.CurrentPeriodStart.UTC())
	assert.Equal(t, periodEnd, row.CurrentPeriodEnd.UTC())
}

func TestApplySubscriptionSnapshotUnknownSubscriptionIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)
	svc := newReconcileForTest(db, nil)

	snapshot := &billing.SubscriptionSnapshot{
		StripeSubscriptionId: "sub_never_seen",
		Status:               entity.SubscriptionStatusCanceled,
		CurrentPeriodStart:   time.Now().Add(-time.Hour),
		CurrentPeriodEnd:     time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.ApplySubscriptionSnapshot(context.Background(), snapshot))

	assert.Equal(t, int64(1), countRows(t, db, &model.Subscription{}))

	var row model.Subscription
	require.NoError(t, db.First(&row, "id = ?", f.Sub.Id).Error)
	assert.Equal(t, "active", row.Status)
}

func TestApplyPaymentOutcomeIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := seedBillingFixture(t, db)
	svc := newReconcileForTest(db, nil)
	ctx := context.Background()

	outcome := &billing.PaymentOutcome{
		StripePaymentId:      "pi_1",
		StripeSubscriptionId: "sub_1",
		Amount:               2999,
		Currency:             "usd",
		Status:               entity.PaymentStatusSucceeded,
		Description:          "Pro plan",
	}

	require.NoError(t, svc.ApplyPaymentOutcome(ctx, outcome))
	// Redelivery of the same event must not file a second row.
	require.NoError(t, svc.ApplyPaymentOutcome(ctx, outcome))

	assert.Equal(t, int64(1), countRows(t, db, &model.Payment{}))
	assert.Equal(t, int64(1), countRows(t, db, &model.UserActivity{}))

	var payment model.Payment
	require.NoError(t, db.First(&payment, "stripe_payment_id = ?", "pi_1").Error)
	assert.Equal(t, f.User.Id, payment.UserId)
	require.NotNil(t, payment.SubscriptionId)
	assert.Equal(t, f.Sub.Id, *payment.SubscriptionId)
	assert.Equal(t, int64(2999), payment.Amount)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, "succeeded", payment.Status)

	var activity model.UserActivity
	require.NoError(t, db.First(&activity, "user_id = ?", f.User.Id).Error)
	assert.Equal(t, string(entity.ActivityPaymentSucceeded), activity.Action)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(activity.Metadata, &meta))
	assert.Equal(t, "pi_1", meta["stripe_payment_id"])
}

// blindPaymentRepo hides existing rows from the pre-insert lookup, forcing
// the insert to collide with the unique index the way a concurrent delivery
// racing past the existence check would.
type blindPaymentRepo struct {
	contract.PaymentRepository
}

func (r blindPaymentRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Payment, error) {
	return nil, nil
}

type racingUnitOfWork struct {
	unitofwork.UnitOfWork
}

func (u racingUnitOfWork) PaymentRepository() contract.PaymentRepository {
	return blindPaymentRepo{u.UnitOfWork.PaymentRepository()}
}

type racingFactory struct {
	inner unitofwork.RepositoryFactory
}

func (f racingFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return racingUnitOfWork{f.inner.NewUnitOfWork(ctx)}
}

func TestApplyPaymentOutcomeDuplicateKeyRaceIsReplay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedBillingFixture(t, db)
	ctx := context.Background()

	outcome := &billing.PaymentOutcome{
		StripePaymentId:      "pi_1",
		StripeSubscriptionId: "sub_1",
		Amount:               2999,
		Currency:             "usd",
		Status:               entity.PaymentStatusSucceeded,
	}

	require.NoError(t, newReconcileForTest(db, nil).ApplyPaymentOutcome(ctx, outcome))

	// Second apply through a unit of work whose lookup misses the row: the
	// insert hits the unique index and must read as a replay, not an error.
	factory := racingFactory{inner: unitofwork.NewRepositoryFactory(db)}
	racing := NewReconcileService(factory, nil, nil, "billing.dunning", testutil.NopLogger{})
	require.NoError(t, racing.ApplyPaymentOutcome(ctx, outcome))

	assert.Equal(t, int64(1), countRows(t, db, &model.Payment{}))
	assert.Equal(t, int64(1), countRows(t, db, &model.UserActivity{}))
}

func TestApplyPaymentOutcomeUnknownSubscriptionIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedBillingFixture(t, db)
	svc := newReconcileForTest(db, nil)

	outcome := &billing.PaymentOutcome{
		StripePaymentId:      "pi_orphan",
		StripeSubscriptionId: "sub_never_seen",
		Amount:               500,
		Currency:             "usd",
		Status:               entity.PaymentStatusSucceeded,
	}
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), outcome))

	assert.Equal(t, int64(0), countRows(t, db, &model.Payment{}))
	assert.Equal(t, int64(0), countRows(t, db, &model.UserActivity{}))
}

func TestApplyPaymentOutcomeWithoutSubscriptionContextIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedBillingFixture(t, db)
	svc := newReconcileForTest(db, nil)

	outcome := &billing.PaymentOutcome{
		StripePaymentId: "pi_standalone",
		Amount:          500,
		Currency:        "usd",
		Status:          entity.PaymentStatusCanceled,
	}
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), outcome))

	assert.Equal(t, int64(0), countRows(t, db, &model.Payment{}))
}

func TestApplyPaymentFailurePublishesDunningNotice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedBillingFixture(t, db)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx := context.Background()
	messages, err := pubSub.Subscribe(ctx, "billing.dunning")
	require.NoError(t, err)

	svc := newReconcileForTest(db, pubSub)

	outcome := &billing.PaymentOutcome{
		StripePaymentId:      "pi_failed",
		StripeSubscriptionId: "sub_1",
		Amount:               2999,
		Currency:             "usd",
		Status:               entity.PaymentStatusFailed,
		Description:          "Subscription payment failed",
	}
	require.NoError(t, svc.ApplyPaymentOutcome(ctx, outcome))

	select {
	case msg := <-messages:
		var notice DunningNotice
		require.NoError(t, json.Unmarshal(msg.Payload, &notice))
		assert.Equal(t, "sub_1", notice.StripeSubscriptionId)
		assert.Equal(t, int64(2999), notice.Amount)
		assert.Equal(t, "usd", notice.Currency)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dunning notice on the bus")
	}

	var activity model.UserActivity
	require.NoError(t, db.First(&activity, "action = ?", string(entity.ActivityPaymentFailed)).Error)
}
