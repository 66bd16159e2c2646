package controller

import (
	"github.com/gofiber/fiber/v2"

	"subtrack-be/internal/pkg/serverutils"
	"subtrack-be/internal/service"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleStripe(ctx *fiber.Ctx) error
}

type webhookController struct {
	service service.IWebhookService
}

func NewWebhookController(service service.IWebhookService) IWebhookController {
	return &webhookController{service: service}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhook")
	h.Post("/stripe", c.HandleStripe)
}

// HandleStripe verifies and applies one delivery. The raw body is passed
// through untouched: signature verification covers the exact bytes sent.
func (c *webhookController) HandleStripe(ctx *fiber.Ctx) error {
	signature := ctx.Get("Stripe-Signature")

	if err := c.service.HandleEvent(ctx.Context(), ctx.Body(), signature); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("received", struct{}{}))
}
