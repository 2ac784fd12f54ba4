package services

import (
	"premium-service/internal/models"
	"time"
)

// RenewalScheduler decides whether a renewal attempt is still permitted and
// advances the renewal window after a verified non-initial payment.
type RenewalScheduler struct {
	graceDays int
}

func NewRenewalScheduler(graceDays int) *RenewalScheduler {
	return &RenewalScheduler{graceDays: graceDays}
}

// IsRenewalAttempt distinguishes a renewal from the initiating purchase
// payment: any prior verified payment on the buy request makes this one a
// renewal.
func (s *RenewalScheduler) IsRenewalAttempt(priorVerifiedPayments int) bool {
	return priorVerifiedPayments > 0
}

// IsRenewalBlocked reports whether the renewal window has closed. At exactly
// next_due_date + grace days renewal is still allowed; strictly after, it is
// blocked.
func (s *RenewalScheduler) IsRenewalBlocked(buyRequest *models.BuyRequest, now time.Time) bool {
	if buyRequest.RenewalStatus == models.RenewalExpired {
		return true
	}
	deadline := buyRequest.NextRenewalDate.AddDate(0, 0, s.graceDays)
	return now.After(deadline)
}

// Advance computes the next due date after a verified renewal payment. It
// anchors from whichever is later, the current due date or now, so paying
// early extends coverage from the scheduled date while paying late (within
// grace) extends from the payment date. The initiating purchase payment must
// never reach here; its due date was set at purchase time.
func (s *RenewalScheduler) Advance(buyRequest *models.BuyRequest, now time.Time) time.Time {
	anchor := buyRequest.NextRenewalDate
	if now.After(anchor) {
		anchor = now
	}
	return buyRequest.BillingCycle.AddPeriod(anchor)
}

// GraceDays exposes the configured grace period for reporting.
func (s *RenewalScheduler) GraceDays() int {
	return s.graceDays
}
