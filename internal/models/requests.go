package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// API REQUEST MODELS
// ============================================================================

type CreatePurchaseRequest struct {
	PolicyID     uuid.UUID    `json:"policy_id"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	ContactName  string       `json:"contact_name"`
	ContactPhone *string      `json:"contact_phone,omitempty"`
	ContactEmail *string      `json:"contact_email,omitempty"`
}

func (r *CreatePurchaseRequest) Validate() error {
	if r.PolicyID == uuid.Nil {
		return fmt.Errorf("policy_id is required")
	}
	if !r.BillingCycle.Valid() {
		return fmt.Errorf("billing_cycle must be one of monthly, quarterly, half_yearly, yearly")
	}
	if r.ContactName == "" {
		return fmt.Errorf("contact_name is required")
	}
	return nil
}

// InitiatePaymentRequest starts a gateway payment. Either buy_request_id
// (committed purchase or renewal) or policy_id+billing_cycle+email (intent
// path, no BuyRequest yet) must be supplied.
type InitiatePaymentRequest struct {
	BuyRequestID *uuid.UUID   `json:"buy_request_id,omitempty"`
	PolicyID     *uuid.UUID   `json:"policy_id,omitempty"`
	BillingCycle BillingCycle `json:"billing_cycle,omitempty"`
	Email        *string      `json:"email,omitempty"`
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.BuyRequestID != nil {
		return nil
	}
	if r.PolicyID == nil || *r.PolicyID == uuid.Nil {
		return fmt.Errorf("either buy_request_id or policy_id is required")
	}
	if !r.BillingCycle.Valid() {
		return fmt.Errorf("billing_cycle must be one of monthly, quarterly, half_yearly, yearly")
	}
	return nil
}

type CreatePolicyRequest struct {
	Name              string   `json:"name"`
	ProductCode       *string  `json:"product_code,omitempty"`
	CompanyName       *string  `json:"company_name,omitempty"`
	Description       *string  `json:"description,omitempty"`
	BaseAnnualPremium float64  `json:"base_annual_premium"`
	SupportsSmokers   bool     `json:"supports_smokers"`
	CoveredConditions []string `json:"covered_conditions,omitempty"`

	// Optional factor overrides; zero values fall back to schema defaults.
	AgeFactorInfant        *float64 `json:"age_factor_infant,omitempty"`
	AgeFactorChild         *float64 `json:"age_factor_child,omitempty"`
	AgeFactorYoungAdult    *float64 `json:"age_factor_young_adult,omitempty"`
	AgeFactorAdultBase     *float64 `json:"age_factor_adult_base,omitempty"`
	AgeStepPerYear         *float64 `json:"age_step_per_year,omitempty"`
	SmokerFactor           *float64 `json:"smoker_factor,omitempty"`
	ConditionFactor        *float64 `json:"condition_factor,omitempty"`
	FamilyBaseFactor       *float64 `json:"family_base_factor,omitempty"`
	FamilyMemberStep       *float64 `json:"family_member_step,omitempty"`
	RegionUrbanFactor      *float64 `json:"region_urban_factor,omitempty"`
	RegionSemiUrbanFactor  *float64 `json:"region_semi_urban_factor,omitempty"`
	RegionRuralFactor      *float64 `json:"region_rural_factor,omitempty"`
	BMIOverweightFactor    *float64 `json:"bmi_overweight_factor,omitempty"`
	BMIObeseFactor         *float64 `json:"bmi_obese_factor,omitempty"`
	OccupationClass2Factor *float64 `json:"occupation_class2_factor,omitempty"`
	OccupationClass3Factor *float64 `json:"occupation_class3_factor,omitempty"`
	LoyaltyDiscountFactor  *float64 `json:"loyalty_discount_factor,omitempty"`
}

func (r *CreatePolicyRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.BaseAnnualPremium <= 0 {
		return fmt.Errorf("base_annual_premium must be positive")
	}
	return nil
}

// ============================================================================
// API RESPONSE MODELS
// ============================================================================

type QuotePreviewResponse struct {
	PolicyID      uuid.UUID    `json:"policy_id"`
	BillingCycle  BillingCycle `json:"billing_cycle"`
	Quote         *Quote       `json:"quote"`
	AnnualPremium float64      `json:"annual_premium"`
	CycleAmount   float64      `json:"cycle_amount"`
	NextDueDate   string       `json:"next_due_date"`
}

type InitiatePaymentResponse struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Gateway   string    `json:"gateway"`
	// RedirectURL is set for API-based gateways (Khalti).
	RedirectURL string `json:"redirect_url,omitempty"`
	// FormURL and FormFields are set for form-post gateways (eSewa); the
	// front end renders and auto-submits the form.
	FormURL    string            `json:"form_url,omitempty"`
	FormFields map[string]string `json:"form_fields,omitempty"`
}
