package models

import "time"

type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "active"
	PolicyArchived PolicyStatus = "archived"
)

type BillingCycle string

const (
	CycleMonthly    BillingCycle = "monthly"
	CycleQuarterly  BillingCycle = "quarterly"
	CycleHalfYearly BillingCycle = "half_yearly"
	CycleYearly     BillingCycle = "yearly"
)

// PeriodsPerYear returns how many charges a cycle produces in a year.
func (c BillingCycle) PeriodsPerYear() int {
	switch c {
	case CycleMonthly:
		return 12
	case CycleQuarterly:
		return 4
	case CycleHalfYearly:
		return 2
	case CycleYearly:
		return 1
	}
	return 0
}

// AddPeriod advances a date by exactly one cycle period.
func (c BillingCycle) AddPeriod(t time.Time) time.Time {
	switch c {
	case CycleMonthly:
		return t.AddDate(0, 1, 0)
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	case CycleHalfYearly:
		return t.AddDate(0, 6, 0)
	case CycleYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

func (c BillingCycle) Valid() bool {
	return c.PeriodsPerYear() > 0
}

type RenewalStatus string

const (
	RenewalActive    RenewalStatus = "active"
	RenewalDue       RenewalStatus = "due"
	RenewalExpired   RenewalStatus = "expired"
	RenewalCancelled RenewalStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type PaymentGateway string

const (
	GatewayEsewa  PaymentGateway = "esewa"
	GatewayKhalti PaymentGateway = "khalti"
)

type CoverageType string

const (
	CoverageIndividual CoverageType = "individual"
	CoverageFamily     CoverageType = "family"
)

type Region string

const (
	RegionUrban     Region = "urban"
	RegionSemiUrban Region = "semi_urban"
	RegionRural     Region = "rural"
)

type VerificationStatus string

const (
	VerificationNotSubmitted VerificationStatus = "not_submitted"
	VerificationPending      VerificationStatus = "pending"
	VerificationApproved     VerificationStatus = "approved"
	VerificationRejected     VerificationStatus = "rejected"
)
