package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"premium-service/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PaymentIntentRepository struct {
	db *sqlx.DB
}

func NewPaymentIntentRepository(db *sqlx.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func (r *PaymentIntentRepository) Create(intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	intent.CreatedAt = time.Now()
	intent.UpdatedAt = time.Now()

	query := `
		INSERT INTO payment_intents (
			id, policy_id, user_id, email, billing_cycle,
			annual_premium, cycle_amount, buy_request_id, created_at, updated_at
		) VALUES (
			:id, :policy_id, :user_id, :email, :billing_cycle,
			:annual_premium, :cycle_amount, :buy_request_id, :created_at, :updated_at
		)`

	_, err := r.db.NamedExec(query, intent)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

func (r *PaymentIntentRepository) GetByID(id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	query := `SELECT * FROM payment_intents WHERE id = $1`

	err := r.db.Get(&intent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment intent %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return &intent, nil
}

// SetBuyRequestID records the one-time materialization of a BuyRequest from
// this intent. Returns false when the intent already produced one, so the
// caller never materializes twice.
func (r *PaymentIntentRepository) SetBuyRequestID(id, buyRequestID uuid.UUID) (bool, error) {
	query := `
		UPDATE payment_intents SET buy_request_id = $2, updated_at = NOW()
		WHERE id = $1 AND buy_request_id IS NULL`

	result, err := r.db.Exec(query, id, buyRequestID)
	if err != nil {
		return false, fmt.Errorf("failed to link buy request to intent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read intent link result: %w", err)
	}

	return rows > 0, nil
}
