package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"premium-service/internal/config"
	"premium-service/internal/models"
	"premium-service/internal/services"
	"premium-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	paymentService  *services.PaymentService
	purchaseService *services.PurchaseService
	policyService   *services.PolicyService
	frontendCfg     config.FrontendConfig
}

func NewPaymentHandler(
	paymentService *services.PaymentService,
	purchaseService *services.PurchaseService,
	policyService *services.PolicyService,
	frontendCfg config.FrontendConfig,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:  paymentService,
		purchaseService: purchaseService,
		policyService:   policyService,
		frontendCfg:     frontendCfg,
	}
}

func (ph *PaymentHandler) Register(app *fiber.App) {
	// Initiation and the provider return endpoints are public: initiation
	// supports guest checkout, and the providers redirect the user's browser
	// back without any auth header.
	publicGr := app.Group("premium/public/api/v1")
	publicGr.Post("/payments/:gateway/initiate", ph.InitiatePayment)
	publicGr.Get("/payments/esewa/success", ph.EsewaSuccess)
	publicGr.Get("/payments/esewa/failure", ph.EsewaFailure)
	publicGr.Get("/payments/khalti/return", ph.KhaltiReturn)

	protectedGr := app.Group("premium/protected/api/v1")
	protectedGr.Get("/payments", ph.GetOwnPayments)
	protectedGr.Post("/payments/:id/cancel", ph.CancelPayment)
}

func parseGateway(param string) (models.PaymentGateway, error) {
	gw := models.PaymentGateway(param)
	if gw != models.GatewayEsewa && gw != models.GatewayKhalti {
		return "", fmt.Errorf("unknown gateway %q: %w", param, models.ErrInvalidInput)
	}
	return gw, nil
}

// InitiatePayment starts a gateway payment, either against an existing buy
// request (purchase or renewal) or against a policy directly, in which case a
// payment intent freezes the quote until the money arrives.
func (ph *PaymentHandler) InitiatePayment(c fiber.Ctx) error {
	gatewayName, err := parseGateway(c.Params("gateway"))
	if err != nil {
		return respondServiceError(c, err)
	}

	var req models.InitiatePaymentRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}
	if err := req.Validate(); err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_INPUT", err.Error()))
	}

	userID := c.Get("X-User-ID")

	if req.BuyRequestID != nil {
		if userID == "" {
			return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
		}
		resp, err := ph.paymentService.InitiateForBuyRequest(c.Context(), gatewayName, *req.BuyRequestID, userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(resp))
	}

	var intentUser *string
	if userID != "" {
		intentUser = &userID
	}

	intent, err := ph.purchaseService.CreatePaymentIntent(c.Context(), intentUser, *req.PolicyID, req.BillingCycle, req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}

	policy, err := ph.policyService.GetPolicy(c.Context(), intent.PolicyID)
	if err != nil {
		return respondServiceError(c, err)
	}

	resp, err := ph.paymentService.InitiateForIntent(c.Context(), gatewayName, intent, policy.Name)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(resp))
}

// EsewaSuccess reconciles eSewa's success redirect, verifying against the
// status endpoint before settling.
func (ph *PaymentHandler) EsewaSuccess(c fiber.Ctx) error {
	outcome, err := ph.paymentService.HandleSuccessReturn(c.Context(), models.GatewayEsewa, c.Queries())
	return ph.respondReturn(c, outcome, err)
}

func (ph *PaymentHandler) EsewaFailure(c fiber.Ctx) error {
	outcome, err := ph.paymentService.HandleFailureReturn(c.Context(), models.GatewayEsewa, c.Queries())
	return ph.respondReturn(c, outcome, err)
}

// KhaltiReturn is Khalti's single return URL; the reported status picks the
// settlement path, with the lookup API as the authority on success.
func (ph *PaymentHandler) KhaltiReturn(c fiber.Ctx) error {
	query := c.Queries()

	var outcome *services.ReturnOutcome
	var err error
	switch strings.ToLower(query["status"]) {
	case "user canceled", "expired", "failed":
		outcome, err = ph.paymentService.HandleFailureReturn(c.Context(), models.GatewayKhalti, query)
	default:
		outcome, err = ph.paymentService.HandleSuccessReturn(c.Context(), models.GatewayKhalti, query)
	}

	return ph.respondReturn(c, outcome, err)
}

// respondReturn answers a provider redirect. Browsers get sent on to the
// frontend result pages; API clients asking for JSON get the outcome
// directly.
func (ph *PaymentHandler) respondReturn(c fiber.Ctx, outcome *services.ReturnOutcome, err error) error {
	wantsJSON := strings.Contains(c.Get(fiber.HeaderAccept), "application/json")

	if err != nil {
		if wantsJSON {
			return respondServiceError(c, err)
		}
		return c.Redirect().To(ph.frontendCfg.PaymentFailureURL)
	}

	if wantsJSON {
		return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(outcome))
	}

	target := ph.frontendCfg.PaymentFailureURL
	if outcome.Succeeded {
		target = ph.frontendCfg.PaymentSuccessURL
	}
	return c.Redirect().To(fmt.Sprintf("%s?payment_id=%s&status=%s",
		target, outcome.Payment.ID, url.QueryEscape(string(outcome.Payment.Status))))
}

func (ph *PaymentHandler) GetOwnPayments(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	payments, err := ph.paymentService.GetPaymentsByUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(payments))
}

func (ph *PaymentHandler) CancelPayment(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "User ID not found in request"))
	}

	paymentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid UUID format"))
	}

	payment, err := ph.paymentService.CancelPayment(c.Context(), paymentID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(payment))
}
