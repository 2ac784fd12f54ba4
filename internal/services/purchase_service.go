package services

import (
	"context"
	"fmt"
	"log/slog"
	"premium-service/internal/client"
	"premium-service/internal/models"
	"time"

	"github.com/google/uuid"
)

// LoyaltyPredicate decides whether an applicant qualifies for a policy's
// loyalty discount. The triggering condition is a product decision; the
// default treats any prior completed payment as qualifying.
type LoyaltyPredicate func(ctx context.Context, userID string) (bool, error)

// Store slices the purchase flow needs. The repositories satisfy them; tests
// substitute fakes.
type PurchaseBuyRequestStore interface {
	Create(buyRequest *models.BuyRequest) error
	GetByUserID(userID string) ([]models.BuyRequest, error)
}

type PurchaseIntentStore interface {
	Create(intent *models.PaymentIntent) error
}

type CompletedPaymentCounter interface {
	CountCompletedByUser(userID string) (int, error)
}

// PurchaseService owns quote previews and the creation of durable purchase
// records (buy requests and payment intents).
type PurchaseService struct {
	policies      PolicyGetter
	buyRequests   PurchaseBuyRequestStore
	intents       PurchaseIntentStore
	profileClient client.IProfileClient
	ratingEngine  *RatingEngine
	cycleResolver *BillingCycleResolver
	loyalty       LoyaltyPredicate
}

func NewPurchaseService(
	policies PolicyGetter,
	buyRequests PurchaseBuyRequestStore,
	intents PurchaseIntentStore,
	payments CompletedPaymentCounter,
	profileClient client.IProfileClient,
	ratingEngine *RatingEngine,
	cycleResolver *BillingCycleResolver,
) *PurchaseService {
	return &PurchaseService{
		policies:      policies,
		buyRequests:   buyRequests,
		intents:       intents,
		profileClient: profileClient,
		ratingEngine:  ratingEngine,
		cycleResolver: cycleResolver,
		loyalty: func(ctx context.Context, userID string) (bool, error) {
			count, err := payments.CountCompletedByUser(userID)
			if err != nil {
				return false, err
			}
			return count >= 1, nil
		},
	}
}

// requireApprovedVerification gates purchase creation on identity
// verification: the status must be approved and no re-submission may be
// pending.
func (s *PurchaseService) requireApprovedVerification(ctx context.Context, userID string) error {
	verification, err := s.profileClient.GetVerificationStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check verification: %w", err)
	}
	if verification.Status != models.VerificationApproved || verification.EditRequested {
		return fmt.Errorf("verification status %s: %w", verification.Status, models.ErrVerificationRequired)
	}
	return nil
}

// ratedProfile builds the rating input for a user, including the loyalty
// decision.
func (s *PurchaseService) ratedProfile(ctx context.Context, userID string) (*client.ApplicantRecord, *models.ApplicantProfile, error) {
	record, err := s.profileClient.GetApplicantRecord(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read applicant profile: %w", err)
	}

	profile := record.ToProfile()

	eligible, err := s.loyalty(ctx, userID)
	if err != nil {
		// Loyalty is a discount, not a gate; rate without it rather than
		// failing the quote.
		slog.Warn("loyalty predicate failed, rating without discount", "user_id", userID, "error", err)
	} else {
		profile.LoyaltyEligible = eligible
	}

	return record, &profile, nil
}

// QuotePreview prices a policy for the user without creating any durable
// record.
func (s *PurchaseService) QuotePreview(ctx context.Context, userID string, policyID uuid.UUID, cycle models.BillingCycle) (*models.QuotePreviewResponse, error) {
	if !cycle.Valid() {
		return nil, fmt.Errorf("unknown billing cycle %q: %w", cycle, models.ErrInvalidInput)
	}

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	_, profile, err := s.ratedProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote, err := s.ratingEngine.Quote(policy, profile)
	if err != nil {
		return nil, err
	}

	charge, err := s.cycleResolver.Resolve(quote.CalculatedTotal, cycle, time.Now())
	if err != nil {
		return nil, err
	}

	return &models.QuotePreviewResponse{
		PolicyID:      policy.ID,
		BillingCycle:  cycle,
		Quote:         quote,
		AnnualPremium: quote.CalculatedTotal,
		CycleAmount:   charge.CycleAmount,
		NextDueDate:   charge.NextDueDate.Format(time.RFC3339),
	}, nil
}

// CreateBuyRequest creates the durable purchase record for a verified user.
// The contact snapshot is frozen at purchase time.
func (s *PurchaseService) CreateBuyRequest(ctx context.Context, userID string, req *models.CreatePurchaseRequest) (*models.BuyRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), models.ErrInvalidInput)
	}

	if err := s.requireApprovedVerification(ctx, userID); err != nil {
		return nil, err
	}

	policy, err := s.policies.GetPolicy(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}

	record, profile, err := s.ratedProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote, err := s.ratingEngine.Quote(policy, profile)
	if err != nil {
		return nil, err
	}

	charge, err := s.cycleResolver.Resolve(quote.CalculatedTotal, req.BillingCycle, time.Now())
	if err != nil {
		return nil, err
	}

	contactPhone := req.ContactPhone
	if contactPhone == nil {
		contactPhone = record.Phone
	}
	contactEmail := req.ContactEmail
	if contactEmail == nil {
		contactEmail = record.Email
	}

	buyRequest := &models.BuyRequest{
		ID:              uuid.New(),
		PolicyID:        policy.ID,
		UserID:          userID,
		ContactName:     req.ContactName,
		ContactPhone:    contactPhone,
		ContactEmail:    contactEmail,
		BillingCycle:    req.BillingCycle,
		AnnualPremium:   quote.CalculatedTotal,
		CycleAmount:     charge.CycleAmount,
		NextRenewalDate: charge.NextDueDate,
		RenewalStatus:   models.RenewalActive,
	}

	if err := s.buyRequests.Create(buyRequest); err != nil {
		return nil, err
	}

	slog.Info("buy request created",
		"buy_request_id", buyRequest.ID,
		"policy_id", policy.ID,
		"user_id", userID,
		"annual_premium", buyRequest.AnnualPremium,
		"cycle", buyRequest.BillingCycle)

	return buyRequest, nil
}

// CreatePaymentIntent freezes a quote for a payment initiated before any
// BuyRequest exists. With a known user the rating uses their profile; for a
// guest checkout the engine rates a neutral single-adult profile.
func (s *PurchaseService) CreatePaymentIntent(ctx context.Context, userID *string, policyID uuid.UUID, cycle models.BillingCycle, email *string) (*models.PaymentIntent, error) {
	if !cycle.Valid() {
		return nil, fmt.Errorf("unknown billing cycle %q: %w", cycle, models.ErrInvalidInput)
	}

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	var profile *models.ApplicantProfile
	if userID != nil {
		_, profile, err = s.ratedProfile(ctx, *userID)
		if err != nil {
			return nil, err
		}
	} else {
		profile = &models.ApplicantProfile{
			Age:             25,
			CoverageType:    models.CoverageIndividual,
			Region:          models.RegionRural,
			OccupationClass: 1,
		}
	}

	quote, err := s.ratingEngine.Quote(policy, profile)
	if err != nil {
		return nil, err
	}

	charge, err := s.cycleResolver.Resolve(quote.CalculatedTotal, cycle, time.Now())
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:            uuid.New(),
		PolicyID:      policy.ID,
		UserID:        userID,
		Email:         email,
		BillingCycle:  cycle,
		AnnualPremium: quote.CalculatedTotal,
		CycleAmount:   charge.CycleAmount,
	}

	if err := s.intents.Create(intent); err != nil {
		return nil, err
	}

	slog.Info("payment intent created",
		"intent_id", intent.ID,
		"policy_id", policy.ID,
		"cycle", cycle)

	return intent, nil
}

func (s *PurchaseService) GetBuyRequestsByUser(ctx context.Context, userID string) ([]models.BuyRequest, error) {
	return s.buyRequests.GetByUserID(userID)
}
