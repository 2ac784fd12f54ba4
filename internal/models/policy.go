package models

import (
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// POLICY (CATALOG ROW + RATING PARAMETERS)
// ============================================================================

// Policy carries both the catalog fields and the full set of rating factors.
// Factors live on the row, not in code, so operators can tune pricing per
// product without a deploy. A quote issued against a policy snapshot is never
// retroactively changed by later edits.
type Policy struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	ProductCode *string      `json:"product_code,omitempty" db:"product_code"`
	CompanyName *string      `json:"company_name,omitempty" db:"company_name"`
	Description *string      `json:"description,omitempty" db:"description"`
	Status      PolicyStatus `json:"status" db:"status"`

	BaseAnnualPremium      float64          `json:"base_annual_premium" db:"base_annual_premium"`
	AgeFactorInfant        float64          `json:"age_factor_infant" db:"age_factor_infant"`
	AgeFactorChild         float64          `json:"age_factor_child" db:"age_factor_child"`
	AgeFactorYoungAdult    float64          `json:"age_factor_young_adult" db:"age_factor_young_adult"`
	AgeFactorAdultBase     float64          `json:"age_factor_adult_base" db:"age_factor_adult_base"`
	AgeStepPerYear         float64          `json:"age_step_per_year" db:"age_step_per_year"`
	SmokerFactor           float64          `json:"smoker_factor" db:"smoker_factor"`
	SupportsSmokers        bool             `json:"supports_smokers" db:"supports_smokers"`
	ConditionFactor        float64          `json:"condition_factor" db:"condition_factor"`
	CoveredConditions      utils.StringList `json:"covered_conditions" db:"covered_conditions"`
	FamilyBaseFactor       float64          `json:"family_base_factor" db:"family_base_factor"`
	FamilyMemberStep       float64          `json:"family_member_step" db:"family_member_step"`
	RegionUrbanFactor      float64          `json:"region_urban_factor" db:"region_urban_factor"`
	RegionSemiUrbanFactor  float64          `json:"region_semi_urban_factor" db:"region_semi_urban_factor"`
	RegionRuralFactor      float64          `json:"region_rural_factor" db:"region_rural_factor"`
	BMIOverweightFactor    float64          `json:"bmi_overweight_factor" db:"bmi_overweight_factor"`
	BMIObeseFactor         float64          `json:"bmi_obese_factor" db:"bmi_obese_factor"`
	OccupationClass2Factor float64          `json:"occupation_class2_factor" db:"occupation_class2_factor"`
	OccupationClass3Factor float64          `json:"occupation_class3_factor" db:"occupation_class3_factor"`
	LoyaltyDiscountFactor  float64          `json:"loyalty_discount_factor" db:"loyalty_discount_factor"`

	CreatedBy *string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// RegionFactor returns the multiplier for a classified region. An
// unclassified region defaults to the least-loaded band (rural).
func (p *Policy) RegionFactor(region Region) float64 {
	switch region {
	case RegionUrban:
		return p.RegionUrbanFactor
	case RegionSemiUrban:
		return p.RegionSemiUrbanFactor
	default:
		return p.RegionRuralFactor
	}
}
