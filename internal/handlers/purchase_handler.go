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

type PurchaseHandler struct {
	purchaseService *services.PurchaseService
}

func NewPurchaseHandler(purchaseService *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
	}
}

func (ph *PurchaseHandler) Register(app *fiber.App) {
	protectedGr := app.Group("premium/protected/api/v1")
	protectedGr.Get("/quotes/preview", ph.QuotePreview)

	purchaseGroup := protectedGr.Group("/purchases")
	purchaseGroup.Post("/", ph.CreatePurchase)
	purchaseGroup.Get("/", ph.GetOwnPurchases)
}

// QuotePreview prices a policy for the caller without writing anything.
func (ph *PurchaseHandler) QuotePreview(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	policyID, err := uuid.Parse(c.Query("policy_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "policy_id must be a valid UUID"))
	}
	cycle := models.BillingCycle(c.Query("billing_cycle", string(models.CycleYearly)))

	preview, err := ph.purchaseService.QuotePreview(c.Context(), userID, policyID, cycle)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(preview))
}

func (ph *PurchaseHandler) CreatePurchase(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	var req models.CreatePurchaseRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	buyRequest, err := ph.purchaseService.CreateBuyRequest(c.Context(), userID, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(buyRequest))
}

func (ph *PurchaseHandler) GetOwnPurchases(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	buyRequests, err := ph.purchaseService.GetBuyRequestsByUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(buyRequests))
}
