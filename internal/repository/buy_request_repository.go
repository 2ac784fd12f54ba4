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

type BuyRequestRepository struct {
	db *sqlx.DB
}

func NewBuyRequestRepository(db *sqlx.DB) *BuyRequestRepository {
	return &BuyRequestRepository{db: db}
}

func (r *BuyRequestRepository) Create(buyRequest *models.BuyRequest) error {
	if buyRequest.ID == uuid.Nil {
		buyRequest.ID = uuid.New()
	}
	buyRequest.CreatedAt = time.Now()
	buyRequest.UpdatedAt = time.Now()

	query := `
		INSERT INTO buy_requests (
			id, policy_id, user_id, contact_name, contact_phone, contact_email,
			billing_cycle, annual_premium, cycle_amount,
			next_renewal_date, renewal_status, created_at, updated_at
		) VALUES (
			:id, :policy_id, :user_id, :contact_name, :contact_phone, :contact_email,
			:billing_cycle, :annual_premium, :cycle_amount,
			:next_renewal_date, :renewal_status, :created_at, :updated_at
		)`

	_, err := r.db.NamedExec(query, buyRequest)
	if err != nil {
		return fmt.Errorf("failed to create buy request: %w", err)
	}

	return nil
}

func (r *BuyRequestRepository) GetByID(id uuid.UUID) (*models.BuyRequest, error) {
	var buyRequest models.BuyRequest
	query := `SELECT * FROM buy_requests WHERE id = $1 AND deleted_at IS NULL`

	err := r.db.Get(&buyRequest, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("buy request %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get buy request: %w", err)
	}

	return &buyRequest, nil
}

func (r *BuyRequestRepository) GetByUserID(userID string) ([]models.BuyRequest, error) {
	var buyRequests []models.BuyRequest
	query := `SELECT * FROM buy_requests WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`

	err := r.db.Select(&buyRequests, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buy requests by user: %w", err)
	}

	return buyRequests, nil
}

// UpdateRenewal moves the renewal window after a verified renewal payment or
// a sweep transition.
func (r *BuyRequestRepository) UpdateRenewal(id uuid.UUID, nextRenewalDate time.Time, status models.RenewalStatus) error {
	query := `
		UPDATE buy_requests SET
			next_renewal_date = $2, renewal_status = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(query, id, nextRenewalDate, status)
	if err != nil {
		return fmt.Errorf("failed to update buy request renewal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read renewal update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("buy request %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// UpdateRenewalStatus flips only the status, used by the daily sweep.
func (r *BuyRequestRepository) UpdateRenewalStatus(id uuid.UUID, status models.RenewalStatus) error {
	query := `UPDATE buy_requests SET renewal_status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.Exec(query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update renewal status: %w", err)
	}

	return nil
}

// SelectOverdue returns active buy requests whose due date has passed.
func (r *BuyRequestRepository) SelectOverdue(asOf time.Time) ([]models.BuyRequest, error) {
	var buyRequests []models.BuyRequest
	query := `
		SELECT * FROM buy_requests
		WHERE renewal_status = $1 AND next_renewal_date < $2 AND deleted_at IS NULL`

	err := r.db.Select(&buyRequests, query, models.RenewalActive, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to select overdue buy requests: %w", err)
	}

	return buyRequests, nil
}

// SelectLapsed returns buy requests past the grace window that are not yet
// marked expired.
func (r *BuyRequestRepository) SelectLapsed(asOf time.Time, graceDays int) ([]models.BuyRequest, error) {
	var buyRequests []models.BuyRequest
	query := `
		SELECT * FROM buy_requests
		WHERE renewal_status IN ($1, $2)
		  AND next_renewal_date + ($3 * INTERVAL '1 day') < $4
		  AND deleted_at IS NULL`

	err := r.db.Select(&buyRequests, query, models.RenewalActive, models.RenewalDue, graceDays, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to select lapsed buy requests: %w", err)
	}

	return buyRequests, nil
}

func (r *BuyRequestRepository) SoftDelete(id uuid.UUID) error {
	query := `UPDATE buy_requests SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete buy request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("buy request %s: %w", id, models.ErrNotFound)
	}

	return nil
}
