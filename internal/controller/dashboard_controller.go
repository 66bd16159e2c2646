package controller

import (
	"github.com/gofiber/fiber/v2"

	"subtrack-be/internal/pkg/serverutils"
	"subtrack-be/internal/service"
)

type IDashboardController interface {
	RegisterRoutes(r fiber.Router)
	GetSummary(ctx *fiber.Ctx) error
}

type dashboardController struct {
	service service.IBillingService
}

func NewDashboardController(service service.IBillingService) IDashboardController {
	return &dashboardController{service: service}
}

func (c *dashboardController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/dashboard")
	h.Get("/summary", serverutils.JwtMiddleware, c.GetSummary)
}

func (c *dashboardController) GetSummary(ctx *fiber.Ctx) error {
	res, err := c.service.GetDashboardSummary(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success fetching dashboard summary", res))
}
