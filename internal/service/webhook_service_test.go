// FILE: internal/service/webhook_service_test.go
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/billing"
	"subtrack-be/internal/testutil"
)

const testWebhookSecret = "whsec_test"

// signPayload produces a Stripe-Signature header the same way Stripe does:
// HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"%s","api_version":"%s","type":"%s","data":{"object":%s}}`,
		id, stripe.APIVersion, eventType, object,
	))
}

type fakeReconcile struct {
	snapshots []*billing.SubscriptionSnapshot
	outcomes  []*billing.PaymentOutcome
}

func (f *fakeReconcile) ApplySubscriptionSnapshot(ctx context.Context, snapshot *billing.SubscriptionSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeReconcile) ApplyPaymentOutcome(ctx context.Context, outcome *billing.PaymentOutcome) error {
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

// flakyReconcile fails a fixed number of times before recovering, standing in
// for a transient storage outage.
type flakyReconcile struct {
	fakeReconcile
	failures int
}

func (f *flakyReconcile) ApplyPaymentOutcome(ctx context.Context, outcome *billing.PaymentOutcome) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("storage unavailable")
	}
	return f.fakeReconcile.ApplyPaymentOutcome(ctx, outcome)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, nil, rec, testutil.NopLogger{})

	payload := eventPayload("evt_1", "customer.subscription.updated", `{"id":"sub_1"}`)
	err := svc.HandleEvent(context.Background(), payload, signPayload(payload, "whsec_wrong", time.Now()))

	var vErr *apperr.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &vErr))
	assert.Empty(t, rec.snapshots)
	assert.Empty(t, rec.outcomes)
}

func TestHandleEventDispatchesSubscriptionSnapshot(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, nil, rec, testutil.NopLogger{})

	object := `{"id":"sub_1","status":"past_due","current_period_start":1700000000,"current_period_end":1702592000}`
	payload := eventPayload("evt_2", "customer.subscription.updated", object)

	err := svc.HandleEvent(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	require.Len(t, rec.snapshots, 1)
	assert.Equal(t, "sub_1", rec.snapshots[0].StripeSubscriptionId)
	assert.Equal(t, "past_due", string(rec.snapshots[0].Status))
}

func TestHandleEventDispatchesPaymentOutcome(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, nil, rec, testutil.NopLogger{})

	object := `{"id":"in_1","currency":"usd","amount_paid":2999,"payment_intent":"pi_1","subscription":"sub_1"}`
	payload := eventPayload("evt_3", "invoice.payment_succeeded", object)

	err := svc.HandleEvent(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "pi_1", rec.outcomes[0].StripePaymentId)
	assert.Equal(t, int64(2999), rec.outcomes[0].Amount)
}

func TestHandleEventAcknowledgesMalformedPayload(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, nil, rec, testutil.NopLogger{})

	// Verified delivery whose object is missing required fields: acknowledged
	// so the sender stops retrying, but nothing is applied.
	payload := eventPayload("evt_4", "customer.subscription.updated", `{"id":"sub_1","status":"active"}`)

	err := svc.HandleEvent(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, rec.snapshots)
	assert.Empty(t, rec.outcomes)
}

func TestHandleEventDuplicateDeliverySkipped(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, newTestRedis(t), rec, testutil.NopLogger{})

	object := `{"id":"in_1","currency":"usd","amount_paid":2999,"payment_intent":"pi_1","subscription":"sub_1"}`
	payload := eventPayload("evt_6", "invoice.payment_succeeded", object)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	require.NoError(t, svc.HandleEvent(context.Background(), payload, sig))
	require.NoError(t, svc.HandleEvent(context.Background(), payload, sig))

	assert.Len(t, rec.outcomes, 1)
}

func TestHandleEventRetryAfterTransientFailureIsApplied(t *testing.T) {
	rec := &flakyReconcile{failures: 1}
	svc := NewWebhookService(testWebhookSecret, newTestRedis(t), rec, testutil.NopLogger{})

	object := `{"id":"in_1","currency":"usd","amount_paid":2999,"payment_intent":"pi_1","subscription":"sub_1"}`
	payload := eventPayload("evt_7", "invoice.payment_succeeded", object)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	require.Error(t, svc.HandleEvent(context.Background(), payload, sig))
	assert.Empty(t, rec.outcomes)

	// The failed delivery must not have been marked processed: Stripe's
	// retry of the identical event has to be applied, not skipped.
	require.NoError(t, svc.HandleEvent(context.Background(), payload, sig))
	assert.Len(t, rec.outcomes, 1)
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	rec := &fakeReconcile{}
	svc := NewWebhookService(testWebhookSecret, nil, rec, testutil.NopLogger{})

	payload := eventPayload("evt_5", "customer.created", `{"id":"cus_1"}`)

	err := svc.HandleEvent(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, rec.snapshots)
	assert.Empty(t, rec.outcomes)
}
