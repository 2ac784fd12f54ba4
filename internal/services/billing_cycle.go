package services

import (
	"fmt"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"time"
)

// BillingCycleResolver turns an annual premium into a per-cycle charge and
// the next due date for a requested billing interval. Apart from the "now"
// argument it is deterministic, so it serves both non-committal previews and
// actual purchase creation.
type BillingCycleResolver struct{}

func NewBillingCycleResolver() *BillingCycleResolver {
	return &BillingCycleResolver{}
}

type CycleCharge struct {
	CycleAmount float64   `json:"cycle_amount"`
	NextDueDate time.Time `json:"next_due_date"`
}

func (r *BillingCycleResolver) Resolve(annualPremium float64, cycle models.BillingCycle, now time.Time) (*CycleCharge, error) {
	if annualPremium <= 0 {
		return nil, fmt.Errorf("annual premium must be positive: %w", models.ErrInvalidInput)
	}
	if !cycle.Valid() {
		return nil, fmt.Errorf("unknown billing cycle %q: %w", cycle, models.ErrInvalidInput)
	}

	return &CycleCharge{
		CycleAmount: utils.Round2(annualPremium / float64(cycle.PeriodsPerYear())),
		NextDueDate: cycle.AddPeriod(now),
	}, nil
}
