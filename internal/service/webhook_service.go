package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76/webhook"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/billing"
	"subtrack-be/internal/pkg/logger"
)

// webhookDedupTTL bounds how long a processed event id is remembered. Stripe
// retries deliveries for up to three days; the database uniqueness constraint
// remains the hard idempotency guarantee after the key expires.
const webhookDedupTTL = 72 * time.Hour

type IWebhookService interface {
	// HandleEvent verifies, normalizes and applies one inbound delivery.
	// A ValidationError return means the delivery must be rejected with a
	// client error; any other error warrants a retryable server error.
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

type webhookService struct {
	webhookSecret    string
	redisClient      *redis.Client
	normalizer       *billing.Normalizer
	reconcileService IReconcileService
	logger           logger.ILogger
}

func NewWebhookService(
	webhookSecret string,
	redisClient *redis.Client,
	reconcileService IReconcileService,
	logger logger.ILogger,
) IWebhookService {
	return &webhookService{
		webhookSecret:    webhookSecret,
		redisClient:      redisClient,
		normalizer:       billing.NewNormalizer(),
		reconcileService: reconcileService,
		logger:           logger,
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		// Unverifiable deliveries never reach the normalizer.
		return apperr.Validation("Stripe-Signature", "webhook signature verification failed")
	}

	if s.alreadyProcessed(ctx, event.ID) {
		s.logger.Info("webhook", "Duplicate delivery skipped", map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
		return nil
	}

	normalized, err := s.normalizer.Normalize(event)
	if err != nil {
		var validationErr *apperr.ValidationError
		if errors.As(err, &validationErr) {
			// Acknowledge malformed payloads so the sender stops
			// redelivering, but keep the failure visible.
			s.logger.Error("webhook", "Malformed event payload acknowledged without processing", map[string]interface{}{
				"event_id":   event.ID,
				"event_type": string(event.Type),
				"error":      err.Error(),
			})
			s.markProcessed(ctx, event.ID)
			return nil
		}
		return err
	}

	switch normalized.Kind {
	case billing.KindSubscriptionSnapshot:
		err = s.reconcileService.ApplySubscriptionSnapshot(ctx, normalized.Snapshot)
	case billing.KindPaymentOutcome:
		err = s.reconcileService.ApplyPaymentOutcome(ctx, normalized.Outcome)
	default:
		s.logger.Debug("webhook", "Ignoring event type", map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
	}
	if err != nil {
		// Leave the event id unmarked so the retry is processed, not skipped.
		return err
	}

	s.markProcessed(ctx, event.ID)
	return nil
}

// alreadyProcessed is a fast-path duplicate filter on the event id. Redis
// being down degrades to always-process: the writer's own idempotency still
// holds.
func (s *webhookService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.redisClient == nil {
		return false
	}

	seen, err := s.redisClient.Exists(ctx, dedupKey(eventID)).Result()
	if err != nil {
		s.logger.Warn("webhook", "Dedup check unavailable, processing anyway", map[string]interface{}{
			"event_id": eventID,
			"error":    err.Error(),
		})
		return false
	}
	return seen > 0
}

// markProcessed records the event id only once its effect is durable. Two
// concurrent deliveries of a fresh event can both pass the Exists check; the
// payments uniqueIndex keeps that race harmless.
func (s *webhookService) markProcessed(ctx context.Context, eventID string) {
	if s.redisClient == nil {
		return
	}

	if err := s.redisClient.Set(ctx, dedupKey(eventID), 1, webhookDedupTTL).Err(); err != nil {
		s.logger.Warn("webhook", "Failed to record processed event id", map[string]interface{}{
			"event_id": eventID,
			"error":    err.Error(),
		})
	}
}

func dedupKey(eventID string) string {
	return "stripe:event:" + eventID
}
