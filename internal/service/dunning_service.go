package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"subtrack-be/internal/pkg/logger"
	"subtrack-be/internal/pkg/mailer"
	"subtrack-be/internal/repository/specification"
	"subtrack-be/internal/repository/unitofwork"
)

// DunningNotice is the payload published when a payment fails and consumed by
// the dunning worker to nudge the customer.
type DunningNotice struct {
	UserId               uuid.UUID `json:"user_id"`
	StripeSubscriptionId string    `json:"stripe_subscription_id"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
}

type IDunningService interface {
	Consume(ctx context.Context) error
}

type dunningService struct {
	pubSub       *gochannel.GoChannel
	topicName    string
	uowFactory   unitofwork.RepositoryFactory
	emailService mailer.IEmailService
	logger       logger.ILogger
}

func NewDunningService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
	logger logger.ILogger,
) IDunningService {
	return &dunningService{
		pubSub:       pubSub,
		topicName:    topicName,
		uowFactory:   uowFactory,
		emailService: emailService,
		logger:       logger,
	}
}

func (ds *dunningService) Consume(ctx context.Context) error {
	messages, err := ds.pubSub.Subscribe(ctx, ds.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ds.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ds *dunningService) processMessage(ctx context.Context, msg *message.Message) {
	var notice DunningNotice
	if err := json.Unmarshal(msg.Payload, &notice); err != nil {
		ds.logger.Error("dunning", "Failed to unmarshal dunning notice", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	uow := ds.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: notice.UserId})
	if err != nil {
		ds.logger.Error("dunning", "Failed to load user for dunning email", map[string]interface{}{
			"user_id": notice.UserId.String(),
			"error":   err.Error(),
		})
		msg.Nack()
		return
	}
	if user == nil {
		ds.logger.Warn("dunning", "Dunning notice for unknown user dropped", map[string]interface{}{
			"user_id": notice.UserId.String(),
		})
		msg.Ack()
		return
	}

	planName := ""
	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByStripeSubscriptionID{SubscriptionID: notice.StripeSubscriptionId})
	if err == nil && sub != nil {
		if plan, planErr := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: sub.PlanId}); planErr == nil && plan != nil {
			planName = plan.Name
		}
	}

	if err := ds.emailService.SendPaymentFailed(user.Email, planName, notice.Amount, notice.Currency); err != nil {
		ds.logger.Error("dunning", "Failed to send payment failed email", map[string]interface{}{
			"user_id": notice.UserId.String(),
			"error":   err.Error(),
		})
		msg.Nack()
		return
	}

	ds.logger.Info("dunning", "Payment failed email sent", map[string]interface{}{
		"user_id": notice.UserId.String(),
	})
	msg.Ack()
}
