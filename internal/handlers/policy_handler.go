package handlers

import (
	"log/slog"
	"net/http"
	"premium-service/internal/models"
	"premium-service/internal/services"
	"premium-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type PolicyHandler struct {
	policyService *services.PolicyService
}

func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
	}
}

func (ph *PolicyHandler) Register(app *fiber.App) {
	publicGr := app.Group("premium/public/api/v1")
	publicGr.Get("/policies", ph.ListPolicies)
	publicGr.Get("/policies/:id", ph.GetPolicy)

	protectedGr := app.Group("premium/protected/api/v1")
	policyGroup := protectedGr.Group("/policies")
	policyGroup.Post("/", ph.CreatePolicy)
	policyGroup.Put("/:id", ph.UpdatePolicy)
	policyGroup.Delete("/:id", ph.DeletePolicy)
}

// ListPolicies returns the active catalog. Browsing is open; no auth needed.
func (ph *PolicyHandler) ListPolicies(c fiber.Ctx) error {
	policies, err := ph.policyService.ListPolicies(c.Context())
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policies))
}

func (ph *PolicyHandler) GetPolicy(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid UUID format"))
	}

	policy, err := ph.policyService.GetPolicy(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

func (ph *PolicyHandler) CreatePolicy(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	var req models.CreatePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	policy, err := ph.policyService.CreatePolicy(c.Context(), &req, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(policy))
}

func (ph *PolicyHandler) UpdatePolicy(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid UUID format"))
	}

	var policy models.Policy
	if err := c.Bind().Body(&policy); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}
	policy.ID = id

	if err := ph.policyService.UpdatePolicy(c.Context(), &policy); err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

func (ph *PolicyHandler) DeletePolicy(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid UUID format"))
	}

	if err := ph.policyService.DeletePolicy(c.Context(), id); err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]string{
		"message": "Policy deleted successfully",
	}))
}
