package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"premium-service/internal/gateway"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
)

// Store interfaces the reconciler depends on. Repositories satisfy them; the
// tests inject fakes.

type PaymentStore interface {
	Create(payment *models.Payment) error
	GetByID(id uuid.UUID) (*models.Payment, error)
	GetByProviderRef(providerRef string) (*models.Payment, error)
	GetByUserID(userID string) ([]models.Payment, error)
	SetProviderRef(id uuid.UUID, providerRef string) error
	LinkBuyRequest(paymentID, buyRequestID uuid.UUID) error
	MarkCompleted(id uuid.UUID, providerRef *string, metadata utils.JSONMap) (bool, error)
	MarkFailed(id uuid.UUID, reason string) (bool, error)
	MarkCancelled(id uuid.UUID, reason string) (bool, error)
	CountVerifiedByBuyRequest(buyRequestID, excludePaymentID uuid.UUID) (int, error)
}

type BuyRequestStore interface {
	Create(buyRequest *models.BuyRequest) error
	GetByID(id uuid.UUID) (*models.BuyRequest, error)
	UpdateRenewal(id uuid.UUID, nextRenewalDate time.Time, status models.RenewalStatus) error
}

type IntentStore interface {
	GetByID(id uuid.UUID) (*models.PaymentIntent, error)
	SetBuyRequestID(id, buyRequestID uuid.UUID) (bool, error)
}

type PolicyGetter interface {
	GetPolicy(ctx context.Context, id uuid.UUID) (*models.Policy, error)
}

type PaymentNotifier interface {
	NotifyPaymentSuccess(ctx context.Context, userID, policyName string, amount float64) error
	NotifyPaymentFailed(ctx context.Context, userID, reason string) error
}

// PaymentService creates pending payments at gateway-redirect time and is
// the single transition authority for everything that happens when the user
// comes back: verification, completion, intent materialization, renewal
// advance and notification.
type PaymentService struct {
	payments    PaymentStore
	buyRequests BuyRequestStore
	intents     IntentStore
	policies    PolicyGetter
	gateways    map[models.PaymentGateway]gateway.Gateway
	scheduler   *RenewalScheduler
	notifier    PaymentNotifier
	now         func() time.Time
}

func NewPaymentService(
	payments PaymentStore,
	buyRequests BuyRequestStore,
	intents IntentStore,
	policies PolicyGetter,
	gateways map[models.PaymentGateway]gateway.Gateway,
	scheduler *RenewalScheduler,
	notifier PaymentNotifier,
) *PaymentService {
	return &PaymentService{
		payments:    payments,
		buyRequests: buyRequests,
		intents:     intents,
		policies:    policies,
		gateways:    gateways,
		scheduler:   scheduler,
		notifier:    notifier,
		now:         time.Now,
	}
}

func (s *PaymentService) gatewayFor(name models.PaymentGateway) (gateway.Gateway, error) {
	gw, ok := s.gateways[name]
	if !ok {
		return nil, fmt.Errorf("gateway %s: %w", name, models.ErrGatewayConfigMissing)
	}
	return gw, nil
}

// ============================================================================
// INITIATION
// ============================================================================

// InitiateForBuyRequest starts a purchase or renewal payment on a committed
// buy request. A renewal past its grace window is rejected before any row is
// written.
func (s *PaymentService) InitiateForBuyRequest(ctx context.Context, gatewayName models.PaymentGateway, buyRequestID uuid.UUID, userID string) (*models.InitiatePaymentResponse, error) {
	gw, err := s.gatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}

	buyRequest, err := s.buyRequests.GetByID(buyRequestID)
	if err != nil {
		return nil, err
	}
	if buyRequest.UserID != userID {
		return nil, fmt.Errorf("buy request %s: %w", buyRequestID, models.ErrNotFound)
	}

	prior, err := s.payments.CountVerifiedByBuyRequest(buyRequest.ID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	isRenewal := s.scheduler.IsRenewalAttempt(prior)

	if isRenewal && s.scheduler.IsRenewalBlocked(buyRequest, s.now()) {
		return nil, fmt.Errorf("buy request %s: %w", buyRequestID, models.ErrRenewalBlocked)
	}

	policy, err := s.policies.GetPolicy(ctx, buyRequest.PolicyID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		BuyRequestID: &buyRequest.ID,
		UserID:       &userID,
		Amount:       buyRequest.CycleAmount,
		Currency:     "NPR",
		Gateway:      gatewayName,
		Status:       models.PaymentPending,
		IsRenewal:    isRenewal,
	}

	input := gateway.InitiateInput{
		PaymentID:    payment.ID,
		Amount:       payment.Amount,
		ProductName:  policy.Name,
		CustomerName: buyRequest.ContactName,
	}
	if buyRequest.ContactEmail != nil {
		input.CustomerEmail = *buyRequest.ContactEmail
	}
	if buyRequest.ContactPhone != nil {
		input.CustomerPhone = *buyRequest.ContactPhone
	}

	return s.initiate(ctx, gw, payment, input)
}

// InitiateForIntent starts a payment against a frozen intent, before any
// BuyRequest exists.
func (s *PaymentService) InitiateForIntent(ctx context.Context, gatewayName models.PaymentGateway, intent *models.PaymentIntent, policyName string) (*models.InitiatePaymentResponse, error) {
	gw, err := s.gatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:              uuid.New(),
		PaymentIntentID: &intent.ID,
		UserID:          intent.UserID,
		Amount:          intent.CycleAmount,
		Currency:        "NPR",
		Gateway:         gatewayName,
		Status:          models.PaymentPending,
	}

	customerName := "Guest"
	if intent.Email != nil {
		customerName = *intent.Email
	}

	input := gateway.InitiateInput{
		PaymentID:    payment.ID,
		Amount:       payment.Amount,
		ProductName:  policyName,
		CustomerName: customerName,
	}
	if intent.Email != nil {
		input.CustomerEmail = *intent.Email
	}

	return s.initiate(ctx, gw, payment, input)
}

// initiate persists the pending row first, so a returning callback can
// always be correlated, then asks the provider for redirect data.
func (s *PaymentService) initiate(ctx context.Context, gw gateway.Gateway, payment *models.Payment, input gateway.InitiateInput) (*models.InitiatePaymentResponse, error) {
	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}

	result, err := gw.Initiate(ctx, input)
	if err != nil {
		if _, markErr := s.payments.MarkFailed(payment.ID, "gateway initiation failed"); markErr != nil {
			slog.Error("failed to mark payment after initiation error", "payment_id", payment.ID, "error", markErr)
		}
		return nil, err
	}

	if result.ProviderRef != "" {
		if err := s.payments.SetProviderRef(payment.ID, result.ProviderRef); err != nil {
			return nil, err
		}
	}

	slog.Info("payment initiated",
		"payment_id", payment.ID,
		"gateway", gw.Name(),
		"amount", payment.Amount,
		"is_renewal", payment.IsRenewal)

	return &models.InitiatePaymentResponse{
		PaymentID:   payment.ID,
		Gateway:     string(gw.Name()),
		RedirectURL: result.RedirectURL,
		FormURL:     result.FormURL,
		FormFields:  result.FormFields,
	}, nil
}

// ============================================================================
// RECONCILIATION
// ============================================================================

type ReturnOutcome struct {
	Payment   *models.Payment
	Succeeded bool
}

// HandleSuccessReturn reconciles a provider's success callback. Safe to call
// any number of times for the same payment: only the delivery that wins the
// pending→completed transition performs side effects.
func (s *PaymentService) HandleSuccessReturn(ctx context.Context, gatewayName models.PaymentGateway, query map[string]string) (*ReturnOutcome, error) {
	gw, err := s.gatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}

	ref, err := gw.ExtractReference(query)
	if err != nil {
		return nil, err
	}

	payment, err := s.resolvePayment(ref)
	if err != nil {
		return nil, err
	}

	// A terminal payment means this callback is a duplicate; report the
	// existing outcome without re-running side effects.
	if payment.Terminal() {
		return &ReturnOutcome{Payment: payment, Succeeded: payment.Status == models.PaymentCompleted}, nil
	}

	if err := gw.Verify(ctx, ref, payment.Amount); err != nil {
		if errors.Is(err, models.ErrVerificationFailed) {
			return s.settleFailed(ctx, payment, err.Error())
		}
		// Transient gateway trouble: leave the payment pending so the user
		// can retry the return.
		return nil, err
	}

	var providerRef *string
	if ref.ProviderRef != "" {
		providerRef = &ref.ProviderRef
	}

	transitioned, err := s.payments.MarkCompleted(payment.ID, providerRef, ref.Metadata)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race against a concurrent delivery of the same callback.
		settled, err := s.payments.GetByID(payment.ID)
		if err != nil {
			return nil, err
		}
		return &ReturnOutcome{Payment: settled, Succeeded: settled.Status == models.PaymentCompleted}, nil
	}

	payment.Status = models.PaymentCompleted
	payment.Verified = true

	buyRequestID, err := s.ensureBuyRequest(ctx, payment)
	if err != nil {
		// The money moved; record keeping must not undo that. Log and
		// continue with what we have.
		slog.Error("failed to materialize buy request after payment", "payment_id", payment.ID, "error", err)
	}

	if buyRequestID != nil {
		s.advanceRenewal(ctx, payment, *buyRequestID)
	}

	s.notifyOutcome(ctx, payment, buyRequestID, true, "")

	slog.Info("payment completed",
		"payment_id", payment.ID,
		"gateway", gatewayName,
		"amount", payment.Amount)

	return &ReturnOutcome{Payment: payment, Succeeded: true}, nil
}

// HandleFailureReturn settles a provider's failure/cancel redirect.
func (s *PaymentService) HandleFailureReturn(ctx context.Context, gatewayName models.PaymentGateway, query map[string]string) (*ReturnOutcome, error) {
	gw, err := s.gatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}

	ref, err := gw.ExtractReference(query)
	if err != nil {
		return nil, err
	}

	payment, err := s.resolvePayment(ref)
	if err != nil {
		return nil, err
	}

	if payment.Terminal() {
		return &ReturnOutcome{Payment: payment, Succeeded: payment.Status == models.PaymentCompleted}, nil
	}

	reason := "payment failed or was cancelled at the gateway"
	if ref.ReportedStatus != "" {
		reason = fmt.Sprintf("gateway reported status %q", ref.ReportedStatus)
	}

	return s.settleFailed(ctx, payment, reason)
}

func (s *PaymentService) settleFailed(ctx context.Context, payment *models.Payment, reason string) (*ReturnOutcome, error) {
	transitioned, err := s.payments.MarkFailed(payment.ID, reason)
	if err != nil {
		return nil, err
	}

	if transitioned {
		payment.Status = models.PaymentFailed
		s.notifyOutcome(ctx, payment, payment.BuyRequestID, false, reason)
		slog.Info("payment failed", "payment_id", payment.ID, "reason", reason)
	} else {
		settled, err := s.payments.GetByID(payment.ID)
		if err == nil {
			payment = settled
		}
	}

	return &ReturnOutcome{Payment: payment, Succeeded: payment.Status == models.PaymentCompleted}, nil
}

// resolvePayment correlates the callback back to exactly one payment row,
// by local id when present, otherwise by the provider's token.
func (s *PaymentService) resolvePayment(ref *gateway.CallbackReference) (*models.Payment, error) {
	if ref.PaymentID != uuid.Nil {
		return s.payments.GetByID(ref.PaymentID)
	}
	if ref.ProviderRef != "" {
		return s.payments.GetByProviderRef(ref.ProviderRef)
	}
	return nil, models.ErrMissingReference
}

// ensureBuyRequest returns the buy request a completed payment belongs to,
// materializing one from the payment's intent if it only has an intent. The
// intent's recorded buy_request_id guards against doing this twice.
func (s *PaymentService) ensureBuyRequest(ctx context.Context, payment *models.Payment) (*uuid.UUID, error) {
	if payment.BuyRequestID != nil {
		return payment.BuyRequestID, nil
	}
	if payment.PaymentIntentID == nil {
		return nil, nil
	}

	intent, err := s.intents.GetByID(*payment.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	if intent.BuyRequestID != nil {
		if err := s.payments.LinkBuyRequest(payment.ID, *intent.BuyRequestID); err != nil {
			return nil, err
		}
		payment.BuyRequestID = intent.BuyRequestID
		return intent.BuyRequestID, nil
	}

	contactName := "Guest"
	if intent.Email != nil {
		contactName = *intent.Email
	}
	userID := ""
	if intent.UserID != nil {
		userID = *intent.UserID
	}

	buyRequest := &models.BuyRequest{
		ID:              uuid.New(),
		PolicyID:        intent.PolicyID,
		UserID:          userID,
		ContactName:     contactName,
		ContactEmail:    intent.Email,
		BillingCycle:    intent.BillingCycle,
		AnnualPremium:   intent.AnnualPremium,
		CycleAmount:     intent.CycleAmount,
		NextRenewalDate: intent.BillingCycle.AddPeriod(s.now()),
		RenewalStatus:   models.RenewalActive,
	}

	if err := s.buyRequests.Create(buyRequest); err != nil {
		return nil, err
	}

	linked, err := s.intents.SetBuyRequestID(intent.ID, buyRequest.ID)
	if err != nil {
		return nil, err
	}
	if !linked {
		// Another payment on the same intent materialized first; use its
		// buy request and leave ours soft-orphaned for admin cleanup.
		refreshed, err := s.intents.GetByID(intent.ID)
		if err != nil {
			return nil, err
		}
		slog.Warn("intent already materialized, reusing existing buy request",
			"intent_id", intent.ID, "buy_request_id", refreshed.BuyRequestID)
		buyRequest.ID = *refreshed.BuyRequestID
	}

	if err := s.payments.LinkBuyRequest(payment.ID, buyRequest.ID); err != nil {
		return nil, err
	}
	payment.BuyRequestID = &buyRequest.ID

	slog.Info("buy request materialized from intent",
		"intent_id", intent.ID,
		"buy_request_id", buyRequest.ID,
		"payment_id", payment.ID)

	return &buyRequest.ID, nil
}

// advanceRenewal moves the renewal window for a verified non-initial
// payment. The initiating purchase keeps the due date set at creation time.
func (s *PaymentService) advanceRenewal(ctx context.Context, payment *models.Payment, buyRequestID uuid.UUID) {
	prior, err := s.payments.CountVerifiedByBuyRequest(buyRequestID, payment.ID)
	if err != nil {
		slog.Error("failed to count prior payments for renewal", "buy_request_id", buyRequestID, "error", err)
		return
	}
	if !s.scheduler.IsRenewalAttempt(prior) {
		return
	}

	buyRequest, err := s.buyRequests.GetByID(buyRequestID)
	if err != nil {
		slog.Error("failed to load buy request for renewal advance", "buy_request_id", buyRequestID, "error", err)
		return
	}

	nextDue := s.scheduler.Advance(buyRequest, s.now())
	if err := s.buyRequests.UpdateRenewal(buyRequest.ID, nextDue, models.RenewalActive); err != nil {
		slog.Error("failed to advance renewal date", "buy_request_id", buyRequestID, "error", err)
		return
	}

	slog.Info("renewal advanced",
		"buy_request_id", buyRequestID,
		"next_renewal_date", nextDue,
		"payment_id", payment.ID)
}

// notifyOutcome is best-effort; a notification failure never affects the
// payment result.
func (s *PaymentService) notifyOutcome(ctx context.Context, payment *models.Payment, buyRequestID *uuid.UUID, succeeded bool, reason string) {
	if s.notifier == nil || payment.UserID == nil || *payment.UserID == "" {
		return
	}

	var err error
	if succeeded {
		policyName := "your policy"
		if buyRequestID != nil {
			if buyRequest, brErr := s.buyRequests.GetByID(*buyRequestID); brErr == nil {
				if policy, pErr := s.policies.GetPolicy(ctx, buyRequest.PolicyID); pErr == nil {
					policyName = policy.Name
				}
			}
		}
		err = s.notifier.NotifyPaymentSuccess(ctx, *payment.UserID, policyName, payment.Amount)
	} else {
		err = s.notifier.NotifyPaymentFailed(ctx, *payment.UserID, reason)
	}
	if err != nil {
		slog.Error("failed to send payment notification", "payment_id", payment.ID, "error", err)
	}
}

// ============================================================================
// CANCELLATION & READS
// ============================================================================

// CancelPayment is only valid while the payment is pending; cancelling a
// settled payment is a conflict, never silently accepted.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID, userID string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID == nil || *payment.UserID != userID {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}

	transitioned, err := s.payments.MarkCancelled(paymentID, "cancelled by user")
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, fmt.Errorf("payment %s is not pending: %w", paymentID, models.ErrConflict)
	}

	payment.Status = models.PaymentCancelled
	slog.Info("payment cancelled", "payment_id", paymentID, "user_id", userID)
	return payment, nil
}

func (s *PaymentService) GetPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	return s.payments.GetByUserID(userID)
}
