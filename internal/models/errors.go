package models

import "errors"

// Sentinel errors for the failure modes the service distinguishes at its
// HTTP boundary. Handlers map these with errors.Is.
var (
	// ErrInvalidInput rejects bad quote or request parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVerificationRequired means the user's identity verification is not
	// approved (or a re-submission was requested), so purchase operations
	// are gated off.
	ErrVerificationRequired = errors.New("identity verification required")

	// ErrNotFound covers unknown policy/payment/buy-request lookups.
	ErrNotFound = errors.New("record not found")

	// ErrConflict covers invalid state transitions, e.g. cancelling a
	// payment that already completed.
	ErrConflict = errors.New("conflicting state")

	// ErrGatewayConfigMissing means gateway credentials are not configured.
	// Operational, not user-caused.
	ErrGatewayConfigMissing = errors.New("payment gateway not configured")

	// ErrVerificationFailed means the provider did not report the payment as
	// successful. Resolves to a failed payment, not a 5xx.
	ErrVerificationFailed = errors.New("gateway verification failed")

	// ErrMissingReference means a gateway callback carried no usable
	// transaction identifier.
	ErrMissingReference = errors.New("missing transaction reference")

	// ErrRenewalBlocked means the grace period has lapsed and the purchase
	// can no longer be renewed.
	ErrRenewalBlocked = errors.New("renewal window closed")
)
