package models

import (
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// PAYMENT (ONE ROW PER GATEWAY ATTEMPT)
// ============================================================================

// Payment records a single gateway attempt. A row is created pending before
// the user is redirected, moved exactly once into a terminal state by the
// reconciler, and never resurrected afterwards.
type Payment struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	BuyRequestID    *uuid.UUID     `json:"buy_request_id,omitempty" db:"buy_request_id"`
	PaymentIntentID *uuid.UUID     `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	UserID          *string        `json:"user_id,omitempty" db:"user_id"`
	Amount          float64        `json:"amount" db:"amount"`
	Currency        string         `json:"currency" db:"currency"`
	Gateway         PaymentGateway `json:"gateway" db:"gateway"`
	ProviderRef     *string        `json:"provider_ref,omitempty" db:"provider_ref"`
	Status          PaymentStatus  `json:"status" db:"status"`
	IsRenewal       bool           `json:"is_renewal" db:"is_renewal"`
	Verified        bool           `json:"verified" db:"verified"`
	VerifiedAt      *time.Time     `json:"verified_at,omitempty" db:"verified_at"`
	FailureReason   *string        `json:"failure_reason,omitempty" db:"failure_reason"`
	Metadata        utils.JSONMap  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the payment has reached a final state.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentPending
}
