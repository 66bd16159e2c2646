package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/dto"
	"subtrack-be/internal/entity"
	"subtrack-be/internal/pkg/logger"
	"subtrack-be/internal/pkg/mailer"
	"subtrack-be/internal/repository/specification"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/pkg/events"
	pkgNats "subtrack-be/pkg/nats"
	"subtrack-be/pkg/stripegateway"
)

const planCacheKey = "plans:active"

type IBillingService interface {
	GetPlans(ctx context.Context) ([]*dto.PlanResponse, error)
	Subscribe(ctx context.Context, userId uuid.UUID, req *dto.SubscribeRequest) (*dto.SubscriptionResponse, error)
	Cancel(ctx context.Context, userId, subscriptionId uuid.UUID, cancelAtPeriodEnd bool) (*dto.SubscriptionResponse, error)
	Reactivate(ctx context.Context, userId, subscriptionId uuid.UUID) (*dto.SubscriptionResponse, error)
	GetSubscriptionStatus(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error)
	GetDashboardSummary(ctx context.Context) (*dto.DashboardSummaryResponse, error)
}

type billingService struct {
	uowFactory      unitofwork.RepositoryFactory
	gateway         stripegateway.PaymentGateway
	activityService IActivityService
	eventPublisher  *pkgNats.Publisher
	emailService    mailer.IEmailService
	planCache       *cache.Cache
	logger          logger.ILogger
}

func NewBillingService(
	uowFactory unitofwork.RepositoryFactory,
	gateway stripegateway.PaymentGateway,
	activityService IActivityService,
	eventPublisher *pkgNats.Publisher,
	emailService mailer.IEmailService,
	logger logger.ILogger,
) IBillingService {
	return &billingService{
		uowFactory:      uowFactory,
		gateway:         gateway,
		activityService: activityService,
		eventPublisher:  eventPublisher,
		emailService:    emailService,
		planCache:       cache.New(5*time.Minute, 10*time.Minute),
		logger:          logger,
	}
}

func (s *billingService) GetPlans(ctx context.Context) ([]*dto.PlanResponse, error) {
	if cached, found := s.planCache.Get(planCacheKey); found {
		return cached.([]*dto.PlanResponse), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.SubscriptionRepository().FindAllPlans(ctx,
		specification.ActivePlans{},
		specification.OrderBy{Field: "sort_order", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		res = append(res, &dto.PlanResponse{
			Id:            p.Id,
			Name:          p.Name,
			Slug:          p.Slug,
			Description:   p.Description,
			PriceAmount:   p.PriceAmount,
			Currency:      p.Currency,
			Interval:      string(p.Interval),
			IsMostPopular: p.IsMostPopular,
		})
	}

	s.planCache.Set(planCacheKey, res, cache.DefaultExpiration)
	return res, nil
}

// Subscribe is a two-phase operation: remote subscription creation first,
// local row second. A remote failure commits nothing locally. A local failure
// after remote success leaves an orphaned remote subscription, which is
// logged as a reconciliation gap for operator follow-up.
func (s *billingService) Subscribe(ctx context.Context, userId uuid.UUID, req *dto.SubscribeRequest) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: req.PlanId})
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, apperr.NotFound("plan", req.PlanId.String())
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user", userId.String())
	}

	current, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ByStatuses{Statuses: []string{"active", "trialing", "past_due"}},
	)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, apperr.InvalidState("user already has a live subscription")
	}

	// Phase one: processor calls. The customer record is reused across
	// subscriptions once created.
	customerId := ""
	if user.StripeCustomerId != nil {
		customerId = *user.StripeCustomerId
	}
	if customerId == "" {
		customerId, err = s.gateway.CreateCustomer(user.Email, user.FullName)
		if err != nil {
			return nil, err
		}
		if err := uow.UserRepository().UpdateStripeCustomerId(ctx, userId, customerId); err != nil {
			s.logger.Error("billing", apperr.Gap("create customer", customerId, err).Error(), map[string]interface{}{
				"user_id": userId.String(),
			})
			return nil, err
		}
	}

	if err := s.gateway.AttachPaymentMethod(customerId, req.PaymentMethodId); err != nil {
		return nil, err
	}
	if err := s.gateway.SetDefaultPaymentMethod(customerId, req.PaymentMethodId); err != nil {
		return nil, err
	}

	remote, err := s.gateway.CreateSubscription(customerId, plan.StripePriceId)
	if err != nil {
		return nil, err
	}

	// Phase two: seed the local row from the processor's initial state.
	sub := &entity.Subscription{
		Id:                   uuid.New(),
		UserId:               userId,
		PlanId:               plan.Id,
		StripeSubscriptionId: remote.ID,
		Status:               entity.SubscriptionStatus(remote.Status),
		CurrentPeriodStart:   time.Unix(remote.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(remote.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
	if remote.TrialStart > 0 {
		t := time.Unix(remote.TrialStart, 0).UTC()
		sub.TrialStart = &t
	}
	if remote.TrialEnd > 0 {
		t := time.Unix(remote.TrialEnd, 0).UTC()
		sub.TrialEnd = &t
	}

	if err := uow.SubscriptionRepository().Create(ctx, sub); err != nil {
		// Remote subscription exists with no local record. A later webhook
		// for this external id will find no row and be ignored, so this
		// must be visible to an operator.
		s.logger.Error("billing", apperr.Gap("create subscription", remote.ID, err).Error(), map[string]interface{}{
			"user_id": userId.String(),
			"plan_id": plan.Id.String(),
		})
		return nil, err
	}

	s.activityService.Record(ctx, userId, entity.ActivitySubscriptionCreated,
		"Subscribed to "+plan.Name, map[string]interface{}{
			"plan_id":                plan.Id.String(),
			"stripe_subscription_id": remote.ID,
		})
	s.publishLifecycleEvent(ctx, events.TypeSubscriptionCreated, user, plan, sub)

	return s.toResponse(sub, plan.Name), nil
}

func (s *billingService) Cancel(ctx context.Context, userId, subscriptionId uuid.UUID, cancelAtPeriodEnd bool) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := s.findOwnedSubscription(ctx, uow, userId, subscriptionId)
	if err != nil {
		return nil, err
	}

	if sub.IsTerminallyCanceled() {
		return nil, apperr.InvalidState("subscription is already canceled")
	}

	var remote *stripegateway.RemoteSubscription
	if cancelAtPeriodEnd {
		remote, err = s.gateway.ScheduleCancellation(sub.StripeSubscriptionId)
	} else {
		remote, err = s.gateway.CancelNow(sub.StripeSubscriptionId)
	}
	if err != nil {
		return nil, err
	}

	if cancelAtPeriodEnd {
		// Status stays as-is: the transition to canceled happens at period
		// end, reported by a later webhook.
		sub.CancelAtPeriodEnd = true
		now := time.Now()
		sub.CanceledAt = &now
	} else {
		sub.Status = entity.SubscriptionStatusCanceled
		sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
		canceledAt := time.Now()
		if remote.CanceledAt > 0 {
			canceledAt = time.Unix(remote.CanceledAt, 0).UTC()
		}
		sub.CanceledAt = &canceledAt
	}
	sub.UpdatedAt = time.Now()

	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		s.logger.Error("billing", apperr.Gap("cancel subscription", sub.StripeSubscriptionId, err).Error(), map[string]interface{}{
			"subscription_id": sub.Id.String(),
		})
		return nil, err
	}

	user, plan := s.resolveContext(ctx, uow, sub)
	s.activityService.Record(ctx, userId, entity.ActivitySubscriptionCanceled,
		cancelDescription(cancelAtPeriodEnd), map[string]interface{}{
			"subscription_id":      sub.Id.String(),
			"cancel_at_period_end": cancelAtPeriodEnd,
		})
	s.publishLifecycleEvent(ctx, events.TypeSubscriptionCanceled, user, plan, sub)

	if user != nil && plan != nil {
		if err := s.emailService.SendSubscriptionCanceled(user.Email, plan.Name); err != nil {
			s.logger.Error("billing", "Failed to send cancellation email", map[string]interface{}{
				"user_id": userId.String(),
				"error":   err.Error(),
			})
		}
	}

	planName := ""
	if plan != nil {
		planName = plan.Name
	}
	return s.toResponse(sub, planName), nil
}

func (s *billingService) Reactivate(ctx context.Context, userId, subscriptionId uuid.UUID) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := s.findOwnedSubscription(ctx, uow, userId, subscriptionId)
	if err != nil {
		return nil, err
	}

	// Reactivation only makes sense while cancellation is merely scheduled.
	// Once the period has ended and the processor reports canceled, the
	// subscription is terminal.
	if sub.IsTerminallyCanceled() {
		return nil, apperr.InvalidState("subscription is terminally canceled and cannot be reactivated")
	}
	if !sub.CancelAtPeriodEnd {
		return nil, apperr.InvalidState("subscription has no scheduled cancellation to undo")
	}

	if _, err := s.gateway.ReactivateSubscription(sub.StripeSubscriptionId); err != nil {
		return nil, err
	}

	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.UpdatedAt = time.Now()

	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		s.logger.Error("billing", apperr.Gap("reactivate subscription", sub.StripeSubscriptionId, err).Error(), map[string]interface{}{
			"subscription_id": sub.Id.String(),
		})
		return nil, err
	}

	user, plan := s.resolveContext(ctx, uow, sub)
	s.activityService.Record(ctx, userId, entity.ActivitySubscriptionReactivated,
		"Scheduled cancellation undone", map[string]interface{}{
			"subscription_id": sub.Id.String(),
		})
	s.publishLifecycleEvent(ctx, events.TypeSubscriptionReactivated, user, plan, sub)

	planName := ""
	if plan != nil {
		planName = plan.Name
	}
	return s.toResponse(sub, planName), nil
}

func (s *billingService) GetSubscriptionStatus(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription", userId.String())
	}

	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: sub.PlanId})
	if err != nil {
		return nil, err
	}

	planName := ""
	if plan != nil {
		planName = plan.Name
	}
	return s.toResponse(sub, planName), nil
}

func (s *billingService) GetDashboardSummary(ctx context.Context) (*dto.DashboardSummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	totalRevenue, err := uow.PaymentRepository().GetTotalRevenue(ctx)
	if err != nil {
		return nil, err
	}

	mrr, err := uow.SubscriptionRepository().GetMonthlyRecurringRevenue(ctx)
	if err != nil {
		return nil, err
	}

	activeCount, err := uow.SubscriptionRepository().CountActiveSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := uow.PaymentRepository().GetRecentPayments(ctx, 10)
	if err != nil {
		return nil, err
	}

	recentRes := make([]dto.RecentPaymentResponse, 0, len(recent))
	for _, p := range recent {
		recentRes = append(recentRes, dto.RecentPaymentResponse{
			Id:        p.Id,
			UserEmail: p.UserEmail,
			PlanName:  p.PlanName,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
		})
	}

	return &dto.DashboardSummaryResponse{
		TotalRevenue:            totalRevenue,
		MonthlyRecurringRevenue: mrr,
		ActiveSubscribers:       activeCount,
		RecentPayments:          recentRes,
	}, nil
}

// findOwnedSubscription scopes the lookup to the requesting user so a foreign
// subscription id reads as not-found, never as forbidden.
func (s *billingService) findOwnedSubscription(ctx context.Context, uow unitofwork.UnitOfWork, userId, subscriptionId uuid.UUID) (*entity.Subscription, error) {
	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByID{ID: subscriptionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription", subscriptionId.String())
	}
	return sub, nil
}

func (s *billingService) resolveContext(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription) (*entity.User, *entity.SubscriptionPlan) {
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: sub.UserId})
	if err != nil {
		s.logger.Warn("billing", "Failed to resolve user for event context", map[string]interface{}{
			"user_id": sub.UserId.String(),
			"error":   err.Error(),
		})
	}
	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: sub.PlanId})
	if err != nil {
		s.logger.Warn("billing", "Failed to resolve plan for event context", map[string]interface{}{
			"plan_id": sub.PlanId.String(),
			"error":   err.Error(),
		})
	}
	return user, plan
}

func (s *billingService) publishLifecycleEvent(ctx context.Context, eventType string, user *entity.User, plan *entity.SubscriptionPlan, sub *entity.Subscription) {
	if s.eventPublisher == nil {
		return
	}

	data := map[string]interface{}{
		"user_id":                sub.UserId,
		"subscription_id":        sub.Id,
		"stripe_subscription_id": sub.StripeSubscriptionId,
		"status":                 string(sub.Status),
		"occurred_at":            time.Now(),
	}
	if user != nil {
		data["full_name"] = user.FullName
	}
	if plan != nil {
		data["plan_name"] = plan.Name
	}

	evt := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Error("billing", "Failed to publish lifecycle event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

func (s *billingService) toResponse(sub *entity.Subscription, planName string) *dto.SubscriptionResponse {
	return &dto.SubscriptionResponse{
		Id:                 sub.Id,
		PlanId:             sub.PlanId,
		PlanName:           planName,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		TrialEnd:           sub.TrialEnd,
	}
}

func cancelDescription(cancelAtPeriodEnd bool) string {
	if cancelAtPeriodEnd {
		return "Cancellation scheduled for period end"
	}
	return "Subscription canceled immediately"
}
