package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"subtrack-be/internal/dto"
	"subtrack-be/internal/pkg/serverutils"
	"subtrack-be/internal/service"
)

type IBillingController interface {
	RegisterRoutes(r fiber.Router)
	GetPlans(ctx *fiber.Ctx) error
	Subscribe(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Reactivate(ctx *fiber.Ctx) error
	GetStatus(ctx *fiber.Ctx) error
}

type billingController struct {
	service service.IBillingService
}

func NewBillingController(service service.IBillingService) IBillingController {
	return &billingController{service: service}
}

func (c *billingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/billing")
	h.Get("/plans", c.GetPlans)

	// Protected Routes
	h.Post("/subscribe", serverutils.JwtMiddleware, c.Subscribe)
	h.Post("/subscriptions/:id/cancel", serverutils.JwtMiddleware, c.Cancel)
	h.Post("/subscriptions/:id/reactivate", serverutils.JwtMiddleware, c.Reactivate)
	h.Get("/subscription", serverutils.JwtMiddleware, c.GetStatus)
}

func (c *billingController) GetPlans(ctx *fiber.Ctx) error {
	res, err := c.service.GetPlans(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching plans", res))
}

func (c *billingController) Subscribe(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromCtx(ctx)
	if err != nil {
		return err
	}

	var req dto.SubscribeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.service.Subscribe(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Subscription created", res))
}

func (c *billingController) Cancel(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromCtx(ctx)
	if err != nil {
		return err
	}

	subscriptionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid subscription id"))
	}

	var req dto.CancelSubscriptionRequest
	if err := ctx.BodyParser(&req); err != nil && len(ctx.Body()) > 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}

	res, err := c.service.Cancel(ctx.Context(), userId, subscriptionId, req.CancelAtPeriodEnd)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Subscription canceled", res))
}

func (c *billingController) Reactivate(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromCtx(ctx)
	if err != nil {
		return err
	}

	subscriptionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid subscription id"))
	}

	res, err := c.service.Reactivate(ctx.Context(), userId, subscriptionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Subscription reactivated", res))
}

func (c *billingController) GetStatus(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromCtx(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSubscriptionStatus(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success fetching subscription", res))
}
