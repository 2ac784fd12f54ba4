package services

import (
	"fmt"
	"premium-service/internal/models"
	"premium-service/internal/utils"
)

// RatingEngine computes a personalized annual premium from a policy's own
// rating factors and an applicant profile. It is a pure calculation: no I/O,
// and identical inputs always produce identical output, which is what makes
// renewal pricing reproducible and historical quotes auditable.
type RatingEngine struct{}

func NewRatingEngine() *RatingEngine {
	return &RatingEngine{}
}

// BMI band cutoffs (WHO classification).
const (
	bmiOverweightThreshold = 25.0
	bmiObeseThreshold      = 30.0
)

// Quote rates one applicant against one policy. Every factor comes off the
// policy row; the engine holds no pricing constants of its own.
func (e *RatingEngine) Quote(policy *models.Policy, profile *models.ApplicantProfile) (*models.Quote, error) {
	if policy.BaseAnnualPremium <= 0 {
		return nil, fmt.Errorf("base annual premium must be positive: %w", models.ErrInvalidInput)
	}
	if profile.Age < 1 || profile.Age > 120 {
		return nil, fmt.Errorf("age %d outside supported range: %w", profile.Age, models.ErrInvalidInput)
	}
	if profile.CoverageType == models.CoverageFamily && profile.FamilyMembers <= 0 {
		return nil, fmt.Errorf("family coverage requires a positive member count: %w", models.ErrInvalidInput)
	}

	quote := &models.Quote{
		BaseAmount: policy.BaseAnnualPremium,
		Components: make([]models.QuoteComponent, 0, 8),
	}
	total := policy.BaseAnnualPremium

	apply := func(name string, factor float64) {
		quote.Components = append(quote.Components, models.QuoteComponent{Name: name, Factor: factor})
		total *= factor
	}

	apply("age", e.ageFactor(policy, profile.Age))

	// A policy that broadly supports smokers absorbs the risk into its base
	// price; the surcharge only applies elsewhere.
	if profile.IsSmoker && !policy.SupportsSmokers {
		apply("smoker", policy.SmokerFactor)
	}

	for _, condition := range profile.Conditions {
		if policy.CoveredConditions.Contains(condition) {
			apply("condition:"+condition, policy.ConditionFactor)
		}
	}

	if profile.CoverageType == models.CoverageFamily {
		familyFactor := policy.FamilyBaseFactor + policy.FamilyMemberStep*float64(profile.FamilyMembers-1)
		apply("family", familyFactor)
	}

	apply("region", policy.RegionFactor(profile.Region))

	// Missing BMI inputs skip the band entirely; no penalty, no error.
	if bmi, ok := profile.BMI(); ok {
		switch {
		case bmi >= bmiObeseThreshold:
			apply("bmi:obese", policy.BMIObeseFactor)
		case bmi >= bmiOverweightThreshold:
			apply("bmi:overweight", policy.BMIOverweightFactor)
		}
	}

	switch profile.OccupationClass {
	case 2:
		apply("occupation:class2", policy.OccupationClass2Factor)
	case 3:
		apply("occupation:class3", policy.OccupationClass3Factor)
	}

	if profile.LoyaltyEligible && policy.LoyaltyDiscountFactor > 0 && policy.LoyaltyDiscountFactor != 1 {
		apply("loyalty", policy.LoyaltyDiscountFactor)
	}

	quote.CalculatedTotal = utils.Round2(total)
	return quote, nil
}

// ageFactor picks the band factor, with a base-plus-linear-step formula from
// 25 up. The step accumulation can never push the factor negative.
func (e *RatingEngine) ageFactor(policy *models.Policy, age int) float64 {
	switch {
	case age <= 2:
		return policy.AgeFactorInfant
	case age <= 17:
		return policy.AgeFactorChild
	case age <= 24:
		return policy.AgeFactorYoungAdult
	default:
		factor := policy.AgeFactorAdultBase + policy.AgeStepPerYear*float64(age-25)
		if factor < 0 {
			return 0
		}
		return factor
	}
}
