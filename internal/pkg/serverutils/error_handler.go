// FILE: internal/pkg/serverutils/error_handler.go
package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"subtrack-be/internal/apperr"
)

// ErrorHandlerMiddleware maps the error taxonomy to HTTP statuses:
// ValidationError 400, NotFoundError 404, InvalidStateError 409,
// PaymentProcessorError 502. Anything else is a 500 with a generic body so
// internals never leak to the client.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var (
			validationErr *apperr.ValidationError
			notFoundErr   *apperr.NotFoundError
			stateErr      *apperr.InvalidStateError
			processorErr  *apperr.PaymentProcessorError
			fiberErr      *fiber.Error
		)

		switch {
		case errors.As(err, &validationErr):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, validationErr.Error()))
		case errors.As(err, &notFoundErr):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, notFoundErr.Error()))
		case errors.As(err, &stateErr):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(fiber.StatusConflict, stateErr.Error()))
		case errors.As(err, &processorErr):
			// The remote call failed; local state is untouched.
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(fiber.StatusBadGateway, "payment processor request failed"))
		case errors.As(err, &fiberErr):
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
		}
	}
}
