package handlers

import (
	"errors"
	"net/http"
	"premium-service/internal/models"
	"premium-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// respondServiceError translates the service error taxonomy into HTTP
// responses so every handler maps the same way.
func respondServiceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_INPUT", err.Error()))
	case errors.Is(err, models.ErrMissingReference):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("MISSING_REFERENCE", err.Error()))
	case errors.Is(err, models.ErrVerificationRequired):
		return c.Status(http.StatusForbidden).JSON(utils.CreateErrorResponse("VERIFICATION_REQUIRED", "identity verification must be approved before purchasing"))
	case errors.Is(err, models.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrConflict):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("CONFLICT", err.Error()))
	case errors.Is(err, models.ErrRenewalBlocked):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("RENEWAL_BLOCKED", "the renewal grace period has lapsed; a new purchase is required"))
	case errors.Is(err, models.ErrVerificationFailed):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("VERIFICATION_FAILED", err.Error()))
	case errors.Is(err, models.ErrGatewayConfigMissing):
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse("GATEWAY_UNAVAILABLE", "payment gateway is not configured"))
	default:
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_ERROR", err.Error()))
	}
}
