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

type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) Create(policy *models.Policy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	policy.CreatedAt = time.Now()
	policy.UpdatedAt = time.Now()

	query := `
		INSERT INTO policies (
			id, name, product_code, company_name, description, status,
			base_annual_premium, age_factor_infant, age_factor_child,
			age_factor_young_adult, age_factor_adult_base, age_step_per_year,
			smoker_factor, supports_smokers, condition_factor, covered_conditions,
			family_base_factor, family_member_step,
			region_urban_factor, region_semi_urban_factor, region_rural_factor,
			bmi_overweight_factor, bmi_obese_factor,
			occupation_class2_factor, occupation_class3_factor, loyalty_discount_factor,
			created_by, created_at, updated_at
		) VALUES (
			:id, :name, :product_code, :company_name, :description, :status,
			:base_annual_premium, :age_factor_infant, :age_factor_child,
			:age_factor_young_adult, :age_factor_adult_base, :age_step_per_year,
			:smoker_factor, :supports_smokers, :condition_factor, :covered_conditions,
			:family_base_factor, :family_member_step,
			:region_urban_factor, :region_semi_urban_factor, :region_rural_factor,
			:bmi_overweight_factor, :bmi_obese_factor,
			:occupation_class2_factor, :occupation_class3_factor, :loyalty_discount_factor,
			:created_by, :created_at, :updated_at
		)`

	_, err := r.db.NamedExec(query, policy)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

func (r *PolicyRepository) GetByID(id uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	query := `SELECT * FROM policies WHERE id = $1 AND deleted_at IS NULL`

	err := r.db.Get(&policy, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return &policy, nil
}

func (r *PolicyRepository) GetAllActive() ([]models.Policy, error) {
	var policies []models.Policy
	query := `SELECT * FROM policies WHERE status = $1 AND deleted_at IS NULL ORDER BY created_at DESC`

	err := r.db.Select(&policies, query, models.PolicyActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get policies: %w", err)
	}

	return policies, nil
}

func (r *PolicyRepository) Update(policy *models.Policy) error {
	policy.UpdatedAt = time.Now()

	query := `
		UPDATE policies SET
			name = :name, product_code = :product_code, company_name = :company_name,
			description = :description, status = :status,
			base_annual_premium = :base_annual_premium,
			age_factor_infant = :age_factor_infant, age_factor_child = :age_factor_child,
			age_factor_young_adult = :age_factor_young_adult,
			age_factor_adult_base = :age_factor_adult_base, age_step_per_year = :age_step_per_year,
			smoker_factor = :smoker_factor, supports_smokers = :supports_smokers,
			condition_factor = :condition_factor, covered_conditions = :covered_conditions,
			family_base_factor = :family_base_factor, family_member_step = :family_member_step,
			region_urban_factor = :region_urban_factor,
			region_semi_urban_factor = :region_semi_urban_factor,
			region_rural_factor = :region_rural_factor,
			bmi_overweight_factor = :bmi_overweight_factor, bmi_obese_factor = :bmi_obese_factor,
			occupation_class2_factor = :occupation_class2_factor,
			occupation_class3_factor = :occupation_class3_factor,
			loyalty_discount_factor = :loyalty_discount_factor,
			updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL`

	result, err := r.db.NamedExec(query, policy)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("policy %s: %w", policy.ID, models.ErrNotFound)
	}

	return nil
}

func (r *PolicyRepository) SoftDelete(id uuid.UUID) error {
	query := `UPDATE policies SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("policy %s: %w", id, models.ErrNotFound)
	}

	return nil
}
