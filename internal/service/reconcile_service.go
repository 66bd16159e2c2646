package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"subtrack-be/internal/billing"
	"subtrack-be/internal/entity"
	"subtrack-be/internal/pkg/logger"
	"subtrack-be/internal/repository/specification"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/pkg/events"
	pkgNats "subtrack-be/pkg/nats"
)

// IReconcileService applies normalized processor events to local state. Both
// the webhook path and the lifecycle command path converge here so the two
// can never write divergent state.
type IReconcileService interface {
	ApplySubscriptionSnapshot(ctx context.Context, snapshot *billing.SubscriptionSnapshot) error
	ApplyPaymentOutcome(ctx context.Context, outcome *billing.PaymentOutcome) error
}

type reconcileService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pkgNats.Publisher
	dunningPub     message.Publisher
	dunningTopic   string
	logger         logger.ILogger
}

func NewReconcileService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pkgNats.Publisher,
	dunningPub message.Publisher,
	dunningTopic string,
	logger logger.ILogger,
) IReconcileService {
	return &reconcileService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		dunningPub:     dunningPub,
		dunningTopic:   dunningTopic,
		logger:         logger,
	}
}

// ApplySubscriptionSnapshot overwrites local subscription state with the
// processor-reported snapshot. The processor is the source of truth for every
// field here, so last write wins by arrival order with no merge logic. A
// snapshot for a subscription this system never created is ignored: backfill
// is not this writer's job.
func (s *reconcileService) ApplySubscriptionSnapshot(ctx context.Context, snapshot *billing.SubscriptionSnapshot) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByStripeSubscriptionID{SubscriptionID: snapshot.StripeSubscriptionId})
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("reconcile", "Snapshot for unknown subscription ignored", map[string]interface{}{
			"stripe_subscription_id": snapshot.StripeSubscriptionId,
		})
		return nil
	}

	sub.Status = snapshot.Status
	sub.CurrentPeriodStart = snapshot.CurrentPeriodStart
	sub.CurrentPeriodEnd = snapshot.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = snapshot.CancelAtPeriodEnd
	sub.CanceledAt = snapshot.CanceledAt
	sub.TrialStart = snapshot.TrialStart
	sub.TrialEnd = snapshot.TrialEnd
	sub.UpdatedAt = time.Now()

	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("reconcile", "Subscription snapshot applied", map[string]interface{}{
		"stripe_subscription_id": snapshot.StripeSubscriptionId,
		"status":                 string(snapshot.Status),
	})
	return nil
}

// ApplyPaymentOutcome files one payment row per external reference, at most
// once. The stripe_payment_id unique index is the real guard: two concurrent
// deliveries can both pass the lookup, but only one insert survives and the
// loser is treated as a replay. The payment row and its activity entry commit
// in the same transaction.
func (s *reconcileService) ApplyPaymentOutcome(ctx context.Context, outcome *billing.PaymentOutcome) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.PaymentRepository().FindOne(ctx,
		specification.ByStripePaymentID{PaymentID: outcome.StripePaymentId})
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Info("reconcile", "Payment outcome already recorded, skipping", map[string]interface{}{
			"stripe_payment_id": outcome.StripePaymentId,
		})
		return nil
	}

	if outcome.StripeSubscriptionId == "" {
		s.logger.Warn("reconcile", "Payment outcome without subscription context ignored", map[string]interface{}{
			"stripe_payment_id": outcome.StripePaymentId,
		})
		return nil
	}

	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByStripeSubscriptionID{SubscriptionID: outcome.StripeSubscriptionId})
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("reconcile", "Payment outcome for unknown subscription ignored", map[string]interface{}{
			"stripe_payment_id":      outcome.StripePaymentId,
			"stripe_subscription_id": outcome.StripeSubscriptionId,
		})
		return nil
	}

	payment := &entity.Payment{
		Id:              uuid.New(),
		UserId:          sub.UserId,
		SubscriptionId:  &sub.Id,
		StripePaymentId: outcome.StripePaymentId,
		Amount:          outcome.Amount,
		Currency:        outcome.Currency,
		Status:          outcome.Status,
		Description:     outcome.Description,
		ReceiptURL:      outcome.ReceiptURL,
		CreatedAt:       time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.PaymentRepository().Create(ctx, payment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent delivery of the same event.
			s.logger.Info("reconcile", "Concurrent duplicate payment insert, skipping", map[string]interface{}{
				"stripe_payment_id": outcome.StripePaymentId,
			})
			return nil
		}
		return err
	}

	activity := &entity.UserActivity{
		Id:          uuid.New(),
		UserId:      sub.UserId,
		Action:      outcomeAction(outcome.Status),
		Description: outcome.Description,
		Metadata: map[string]interface{}{
			"stripe_payment_id": outcome.StripePaymentId,
			"amount":            outcome.Amount,
			"currency":          outcome.Currency,
			"status":            string(outcome.Status),
		},
		CreatedAt: time.Now(),
	}
	if err := uow.ActivityRepository().Create(ctx, activity); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.publishOutcome(ctx, sub, outcome)
	return nil
}

// publishOutcome fans the committed outcome out to the event bus and, for
// failures, the dunning pipeline. Best-effort: the billing write already
// committed and is never rolled back over a broken broker.
func (s *reconcileService) publishOutcome(ctx context.Context, sub *entity.Subscription, outcome *billing.PaymentOutcome) {
	var eventType string
	switch outcome.Status {
	case entity.PaymentStatusSucceeded:
		eventType = events.TypePaymentSucceeded
	case entity.PaymentStatusFailed:
		eventType = events.TypePaymentFailed
	default:
		return
	}

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: eventType,
			Data: map[string]interface{}{
				"user_id":           sub.UserId,
				"subscription_id":   sub.Id,
				"stripe_payment_id": outcome.StripePaymentId,
				"amount":            outcome.Amount,
				"currency":          outcome.Currency,
				"occurred_at":       time.Now(),
			},
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Error("reconcile", "Failed to publish payment event", map[string]interface{}{
				"event_type": eventType,
				"error":      err.Error(),
			})
		}
	}

	if outcome.Status == entity.PaymentStatusFailed && s.dunningPub != nil {
		notice := DunningNotice{
			UserId:               sub.UserId,
			StripeSubscriptionId: sub.StripeSubscriptionId,
			Amount:               outcome.Amount,
			Currency:             outcome.Currency,
		}
		payload, err := json.Marshal(notice)
		if err != nil {
			s.logger.Error("reconcile", "Failed to marshal dunning notice", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := s.dunningPub.Publish(s.dunningTopic, msg); err != nil {
			s.logger.Error("reconcile", "Failed to publish dunning notice", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func outcomeAction(status entity.PaymentStatus) entity.ActivityAction {
	switch status {
	case entity.PaymentStatusSucceeded:
		return entity.ActivityPaymentSucceeded
	case entity.PaymentStatusCanceled:
		return entity.ActivityPaymentCanceled
	case entity.PaymentStatusRefunded:
		return entity.ActivityPaymentRefunded
	default:
		return entity.ActivityPaymentFailed
	}
}
