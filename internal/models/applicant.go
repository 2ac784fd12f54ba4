package models

// ============================================================================
// APPLICANT PROFILE & QUOTE (EPHEMERAL, NEVER PERSISTED)
// ============================================================================

// ApplicantProfile is rebuilt from the profile-service on every quote
// request. It is an input to the rating engine only.
type ApplicantProfile struct {
	Age             int          `json:"age"`
	IsSmoker        bool         `json:"is_smoker"`
	CoverageType    CoverageType `json:"coverage_type"`
	FamilyMembers   int          `json:"family_members"`
	Conditions      []string     `json:"conditions"`
	Region          Region       `json:"region"`
	WeightKg        *float64     `json:"weight_kg,omitempty"`
	HeightCm        *float64     `json:"height_cm,omitempty"`
	OccupationClass int          `json:"occupation_class"`

	// LoyaltyEligible is decided by the caller's loyalty predicate, not by
	// the engine itself.
	LoyaltyEligible bool `json:"loyalty_eligible"`
}

// BMI derives body-mass index from the profile measurements. The second
// return is false when either input is missing, in which case the BMI
// surcharge step is skipped entirely.
func (p *ApplicantProfile) BMI() (float64, bool) {
	if p.WeightKg == nil || p.HeightCm == nil || *p.HeightCm <= 0 {
		return 0, false
	}
	heightM := *p.HeightCm / 100
	return *p.WeightKg / (heightM * heightM), true
}

// QuoteComponent is one itemized multiplier applied during rating.
type QuoteComponent struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Quote is the rating engine's output. Only the derived cycle amount is ever
// persisted, and only once a purchase is created.
type Quote struct {
	BaseAmount      float64          `json:"base_amount"`
	Components      []QuoteComponent `json:"components"`
	CalculatedTotal float64          `json:"calculated_total"`
}
