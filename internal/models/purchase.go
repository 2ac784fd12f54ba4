package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BUY REQUEST (COMMITTED PURCHASE)
// ============================================================================

// BuyRequest is the durable record of a committed purchase. Contact fields
// are a snapshot taken at purchase time and are independent of later profile
// edits.
type BuyRequest struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	PolicyID        uuid.UUID     `json:"policy_id" db:"policy_id"`
	UserID          string        `json:"user_id" db:"user_id"`
	ContactName     string        `json:"contact_name" db:"contact_name"`
	ContactPhone    *string       `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactEmail    *string       `json:"contact_email,omitempty" db:"contact_email"`
	BillingCycle    BillingCycle  `json:"billing_cycle" db:"billing_cycle"`
	AnnualPremium   float64       `json:"annual_premium" db:"annual_premium"`
	CycleAmount     float64       `json:"cycle_amount" db:"cycle_amount"`
	NextRenewalDate time.Time     `json:"next_renewal_date" db:"next_renewal_date"`
	RenewalStatus   RenewalStatus `json:"renewal_status" db:"renewal_status"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ============================================================================
// PAYMENT INTENT (PROVISIONAL PURCHASE)
// ============================================================================

// PaymentIntent holds a frozen quote for a payment initiated before any
// BuyRequest exists. BuyRequestID records the one-time materialization so it
// can never happen twice.
type PaymentIntent struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	PolicyID      uuid.UUID    `json:"policy_id" db:"policy_id"`
	UserID        *string      `json:"user_id,omitempty" db:"user_id"`
	Email         *string      `json:"email,omitempty" db:"email"`
	BillingCycle  BillingCycle `json:"billing_cycle" db:"billing_cycle"`
	AnnualPremium float64      `json:"annual_premium" db:"annual_premium"`
	CycleAmount   float64      `json:"cycle_amount" db:"cycle_amount"`
	BuyRequestID  *uuid.UUID   `json:"buy_request_id,omitempty" db:"buy_request_id"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
