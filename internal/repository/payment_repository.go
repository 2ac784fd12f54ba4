package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()

	query := `
		INSERT INTO payments (
			id, buy_request_id, payment_intent_id, user_id, amount, currency,
			gateway, provider_ref, status, is_renewal, verified, verified_at,
			failure_reason, metadata, created_at, updated_at
		) VALUES (
			:id, :buy_request_id, :payment_intent_id, :user_id, :amount, :currency,
			:gateway, :provider_ref, :status, :is_renewal, :verified, :verified_at,
			:failure_reason, :metadata, :created_at, :updated_at
		)`

	_, err := r.db.NamedExec(query, payment)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetByID(id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT * FROM payments WHERE id = $1`

	err := r.db.Get(&payment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *PaymentRepository) GetByUserID(userID string) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&payments, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by user: %w", err)
	}

	return payments, nil
}

// GetByProviderRef correlates a callback that only carries the provider's
// own token (Khalti pidx) back to the local payment row.
func (r *PaymentRepository) GetByProviderRef(providerRef string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT * FROM payments WHERE provider_ref = $1 ORDER BY created_at DESC LIMIT 1`

	err := r.db.Get(&payment, query, providerRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment with ref %s: %w", providerRef, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment by provider ref: %w", err)
	}

	return &payment, nil
}

// LinkBuyRequest attaches a materialized buy request to an intent-path
// payment.
func (r *PaymentRepository) LinkBuyRequest(paymentID, buyRequestID uuid.UUID) error {
	query := `UPDATE payments SET buy_request_id = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(query, paymentID, buyRequestID)
	if err != nil {
		return fmt.Errorf("failed to link buy request to payment: %w", err)
	}

	return nil
}

// SetProviderRef stores the provider-assigned token picked up at initiation
// time (Khalti pidx).
func (r *PaymentRepository) SetProviderRef(id uuid.UUID, providerRef string) error {
	query := `UPDATE payments SET provider_ref = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(query, id, providerRef)
	if err != nil {
		return fmt.Errorf("failed to set provider ref: %w", err)
	}

	return nil
}

// MarkCompleted transitions a payment from pending to completed in a single
// conditional statement. The guard on the current status makes duplicate
// callback deliveries a no-op: only the first caller observes true.
func (r *PaymentRepository) MarkCompleted(id uuid.UUID, providerRef *string, metadata utils.JSONMap) (bool, error) {
	query := `
		UPDATE payments SET
			status = $2, verified = TRUE, verified_at = NOW(),
			provider_ref = COALESCE($3, provider_ref),
			metadata = COALESCE($4, metadata),
			updated_at = NOW()
		WHERE id = $1 AND status = $5`

	result, err := r.db.Exec(query, id, models.PaymentCompleted, providerRef, metadata, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion result: %w", err)
	}

	return rows > 0, nil
}

// MarkFailed transitions a pending payment to failed with a captured reason.
func (r *PaymentRepository) MarkFailed(id uuid.UUID, reason string) (bool, error) {
	return r.markTerminal(id, models.PaymentFailed, reason)
}

// MarkCancelled transitions a pending payment to cancelled.
func (r *PaymentRepository) MarkCancelled(id uuid.UUID, reason string) (bool, error) {
	return r.markTerminal(id, models.PaymentCancelled, reason)
}

func (r *PaymentRepository) markTerminal(id uuid.UUID, status models.PaymentStatus, reason string) (bool, error) {
	query := `
		UPDATE payments SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	result, err := r.db.Exec(query, id, status, reason, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment %s: %w", status, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read payment update result: %w", err)
	}

	return rows > 0, nil
}

// CountVerifiedByBuyRequest counts verified payments on a buy request,
// excluding the given payment. Zero means the payment under reconciliation
// is the initiating purchase payment.
func (r *PaymentRepository) CountVerifiedByBuyRequest(buyRequestID, excludePaymentID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE buy_request_id = $1 AND verified = TRUE AND id != $2`

	err := r.db.Get(&count, query, buyRequestID, excludePaymentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count verified payments: %w", err)
	}

	return count, nil
}

// CountCompletedByUser feeds the loyalty-discount predicate.
func (r *PaymentRepository) CountCompletedByUser(userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE user_id = $1 AND status = $2`

	err := r.db.Get(&count, query, userID, models.PaymentCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed payments: %w", err)
	}

	return count, nil
}
