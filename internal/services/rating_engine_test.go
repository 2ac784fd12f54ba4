package services

import (
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func createTestPolicy() *models.Policy {
	return &models.Policy{
		Name:              "Swasthya Suraksha",
		BaseAnnualPremium: 12000,

		AgeFactorInfant:        1.10,
		AgeFactorChild:         0.90,
		AgeFactorYoungAdult:    0.95,
		AgeFactorAdultBase:     1.00,
		AgeStepPerYear:         0.025,
		SmokerFactor:           1.35,
		ConditionFactor:        1.10,
		CoveredConditions:      utils.StringList{"diabetes", "hypertension"},
		FamilyBaseFactor:       1.50,
		FamilyMemberStep:       0.25,
		RegionUrbanFactor:      1.10,
		RegionSemiUrbanFactor:  1.05,
		RegionRuralFactor:      1.00,
		BMIOverweightFactor:    1.10,
		BMIObeseFactor:         1.25,
		OccupationClass2Factor: 1.10,
		OccupationClass3Factor: 1.25,
		LoyaltyDiscountFactor:  1.00,
	}
}

func createTestProfile() *models.ApplicantProfile {
	return &models.ApplicantProfile{
		Age:             30,
		CoverageType:    models.CoverageIndividual,
		Region:          models.RegionUrban,
		OccupationClass: 1,
	}
}

func floatPtr(v float64) *float64 { return &v }

// ============================================================================
// TEST SUITE 1: PREMIUM CALCULATION
// ============================================================================

func TestQuote_AdultUrbanNonSmoker(t *testing.T) {
	engine := NewRatingEngine()

	// age 30: 1.00 + 0.025*5 = 1.125; 12000 * 1.125 * 1.10 = 14850
	quote, err := engine.Quote(createTestPolicy(), createTestProfile())

	assert.NoError(t, err)
	assert.Equal(t, 14850.00, quote.CalculatedTotal)
	assert.Equal(t, 12000.00, quote.BaseAmount)
}

func TestQuote_SmokerSurcharge(t *testing.T) {
	engine := NewRatingEngine()
	profile := createTestProfile()
	profile.IsSmoker = true

	// 12000 * 1.125 * 1.35 * 1.10 = 20047.50
	quote, err := engine.Quote(createTestPolicy(), profile)

	assert.NoError(t, err)
	assert.Equal(t, 20047.50, quote.CalculatedTotal)
}

func TestQuote_SmokerAbsorbedWhenPolicySupportsSmokers(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()
	policy.SupportsSmokers = true
	profile := createTestProfile()
	profile.IsSmoker = true

	quote, err := engine.Quote(policy, profile)

	assert.NoError(t, err)
	assert.Equal(t, 14850.00, quote.CalculatedTotal)
	for _, component := range quote.Components {
		assert.NotEqual(t, "smoker", component.Name)
	}
}

func TestQuote_AgeBands(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()

	cases := []struct {
		age      int
		expected float64
	}{
		{1, 12000 * 1.10},  // infant
		{10, 12000 * 0.90}, // child
		{20, 12000 * 0.95}, // young adult
		{25, 12000 * 1.00}, // adult base, no step yet
		{45, 12000 * 1.50}, // 1.00 + 0.025*20
	}

	for _, tc := range cases {
		profile := createTestProfile()
		profile.Age = tc.age
		profile.Region = models.RegionRural

		quote, err := engine.Quote(policy, profile)

		assert.NoError(t, err)
		assert.Equal(t, utils.Round2(tc.expected), quote.CalculatedTotal, "age %d", tc.age)
	}
}

func TestQuote_AgeStepNeverGoesNegative(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()
	policy.AgeStepPerYear = -0.05

	profile := createTestProfile()
	profile.Age = 60
	profile.Region = models.RegionRural

	quote, err := engine.Quote(policy, profile)

	assert.NoError(t, err)
	assert.Equal(t, 0.00, quote.CalculatedTotal)
}

func TestQuote_FamilyCoverage(t *testing.T) {
	engine := NewRatingEngine()
	profile := createTestProfile()
	profile.CoverageType = models.CoverageFamily
	profile.FamilyMembers = 4
	profile.Region = models.RegionRural

	// family factor 1.50 + 0.25*3 = 2.25; 12000 * 1.125 * 2.25 = 30375
	quote, err := engine.Quote(createTestPolicy(), profile)

	assert.NoError(t, err)
	assert.Equal(t, 30375.00, quote.CalculatedTotal)
}

func TestQuote_OnlyCoveredConditionsCount(t *testing.T) {
	engine := NewRatingEngine()
	profile := createTestProfile()
	profile.Region = models.RegionRural
	profile.Conditions = []string{"diabetes", "asthma"}

	quote, err := engine.Quote(createTestPolicy(), profile)

	assert.NoError(t, err)
	// only diabetes is covered: 12000 * 1.125 * 1.10 = 14850
	assert.Equal(t, 14850.00, quote.CalculatedTotal)

	matched := 0
	for _, component := range quote.Components {
		if component.Name == "condition:diabetes" {
			matched++
		}
		assert.NotEqual(t, "condition:asthma", component.Name)
	}
	assert.Equal(t, 1, matched)
}

func TestQuote_BMIBands(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()

	overweight := createTestProfile()
	overweight.Region = models.RegionRural
	overweight.WeightKg = floatPtr(85)
	overweight.HeightCm = floatPtr(175) // BMI ~27.8

	quote, err := engine.Quote(policy, overweight)
	assert.NoError(t, err)
	assert.Equal(t, utils.Round2(12000*1.125*1.10), quote.CalculatedTotal)

	obese := createTestProfile()
	obese.Region = models.RegionRural
	obese.WeightKg = floatPtr(100)
	obese.HeightCm = floatPtr(170) // BMI ~34.6

	quote, err = engine.Quote(policy, obese)
	assert.NoError(t, err)
	assert.Equal(t, utils.Round2(12000*1.125*1.25), quote.CalculatedTotal)
}

func TestQuote_MissingBMIInputsSkipBand(t *testing.T) {
	engine := NewRatingEngine()
	profile := createTestProfile()
	profile.Region = models.RegionRural
	profile.WeightKg = floatPtr(100) // height missing

	quote, err := engine.Quote(createTestPolicy(), profile)

	assert.NoError(t, err)
	assert.Equal(t, 13500.00, quote.CalculatedTotal)
}

func TestQuote_OccupationClasses(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()

	class3 := createTestProfile()
	class3.Region = models.RegionRural
	class3.OccupationClass = 3

	quote, err := engine.Quote(policy, class3)
	assert.NoError(t, err)
	assert.Equal(t, utils.Round2(12000*1.125*1.25), quote.CalculatedTotal)
}

func TestQuote_LoyaltyDiscount(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()
	policy.LoyaltyDiscountFactor = 0.95

	profile := createTestProfile()
	profile.Region = models.RegionRural
	profile.LoyaltyEligible = true

	quote, err := engine.Quote(policy, profile)
	assert.NoError(t, err)
	assert.Equal(t, utils.Round2(12000*1.125*0.95), quote.CalculatedTotal)

	// A neutral factor of exactly 1 is not itemized.
	policy.LoyaltyDiscountFactor = 1.00
	quote, err = engine.Quote(policy, profile)
	assert.NoError(t, err)
	for _, component := range quote.Components {
		assert.NotEqual(t, "loyalty", component.Name)
	}
}

func TestQuote_Deterministic(t *testing.T) {
	engine := NewRatingEngine()
	policy := createTestPolicy()
	profile := createTestProfile()
	profile.IsSmoker = true
	profile.Conditions = []string{"hypertension"}

	first, err := engine.Quote(policy, profile)
	assert.NoError(t, err)
	second, err := engine.Quote(policy, profile)
	assert.NoError(t, err)

	assert.Equal(t, first.CalculatedTotal, second.CalculatedTotal)
	assert.Equal(t, first.Components, second.Components)
}

func TestQuote_ComponentsMultiplyToTotal(t *testing.T) {
	engine := NewRatingEngine()
	profile := createTestProfile()
	profile.IsSmoker = true
	profile.Conditions = []string{"diabetes"}
	profile.OccupationClass = 2

	quote, err := engine.Quote(createTestPolicy(), profile)
	assert.NoError(t, err)

	total := quote.BaseAmount
	for _, component := range quote.Components {
		total *= component.Factor
	}
	assert.InDelta(t, quote.CalculatedTotal, total, 0.005)
}

// ============================================================================
// TEST SUITE 2: INPUT VALIDATION
// ============================================================================

func TestQuote_InvalidInputs(t *testing.T) {
	engine := NewRatingEngine()

	zeroBase := createTestPolicy()
	zeroBase.BaseAnnualPremium = 0
	_, err := engine.Quote(zeroBase, createTestProfile())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	tooYoung := createTestProfile()
	tooYoung.Age = 0
	_, err = engine.Quote(createTestPolicy(), tooYoung)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	tooOld := createTestProfile()
	tooOld.Age = 121
	_, err = engine.Quote(createTestPolicy(), tooOld)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	emptyFamily := createTestProfile()
	emptyFamily.CoverageType = models.CoverageFamily
	emptyFamily.FamilyMembers = 0
	_, err = engine.Quote(createTestPolicy(), emptyFamily)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
