package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"premium-service/internal/models"
	"premium-service/internal/repository"
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const policyCacheTTL = 10 * time.Minute

// PolicyService manages the policy catalog. Reads on the quote path go
// through a redis cache; catalog writes invalidate it.
type PolicyService struct {
	policyRepo  *repository.PolicyRepository
	redisClient *redis.Client
}

func NewPolicyService(policyRepo *repository.PolicyRepository, redisClient *redis.Client) *PolicyService {
	return &PolicyService{
		policyRepo:  policyRepo,
		redisClient: redisClient,
	}
}

func policyCacheKey(id uuid.UUID) string {
	return "policy:" + id.String()
}

// GetPolicy reads a policy, serving from cache when possible. Cache failures
// fall through to the database.
func (s *PolicyService) GetPolicy(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, policyCacheKey(id)).Bytes()
		if err == nil {
			var policy models.Policy
			if err := json.Unmarshal(cached, &policy); err == nil {
				return &policy, nil
			}
			slog.Warn("discarding undecodable policy cache entry", "policy_id", id)
		} else if err != redis.Nil {
			slog.Warn("policy cache read failed", "policy_id", id, "error", err)
		}
	}

	policy, err := s.policyRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if encoded, err := json.Marshal(policy); err == nil {
			if err := s.redisClient.Set(ctx, policyCacheKey(id), encoded, policyCacheTTL).Err(); err != nil {
				slog.Warn("policy cache write failed", "policy_id", id, "error", err)
			}
		}
	}

	return policy, nil
}

func (s *PolicyService) ListPolicies(ctx context.Context) ([]models.Policy, error) {
	return s.policyRepo.GetAllActive()
}

func (s *PolicyService) CreatePolicy(ctx context.Context, req *models.CreatePolicyRequest, createdBy string) (*models.Policy, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), models.ErrInvalidInput)
	}

	policy := &models.Policy{
		ID:                uuid.New(),
		Name:              req.Name,
		ProductCode:       req.ProductCode,
		CompanyName:       req.CompanyName,
		Description:       req.Description,
		Status:            models.PolicyActive,
		BaseAnnualPremium: req.BaseAnnualPremium,
		SupportsSmokers:   req.SupportsSmokers,
		CoveredConditions: utils.StringList(req.CoveredConditions),

		AgeFactorInfant:        orDefault(req.AgeFactorInfant, 1.10),
		AgeFactorChild:         orDefault(req.AgeFactorChild, 0.90),
		AgeFactorYoungAdult:    orDefault(req.AgeFactorYoungAdult, 0.95),
		AgeFactorAdultBase:     orDefault(req.AgeFactorAdultBase, 1.00),
		AgeStepPerYear:         orDefault(req.AgeStepPerYear, 0.025),
		SmokerFactor:           orDefault(req.SmokerFactor, 1.35),
		ConditionFactor:        orDefault(req.ConditionFactor, 1.10),
		FamilyBaseFactor:       orDefault(req.FamilyBaseFactor, 1.50),
		FamilyMemberStep:       orDefault(req.FamilyMemberStep, 0.25),
		RegionUrbanFactor:      orDefault(req.RegionUrbanFactor, 1.10),
		RegionSemiUrbanFactor:  orDefault(req.RegionSemiUrbanFactor, 1.05),
		RegionRuralFactor:      orDefault(req.RegionRuralFactor, 1.00),
		BMIOverweightFactor:    orDefault(req.BMIOverweightFactor, 1.10),
		BMIObeseFactor:         orDefault(req.BMIObeseFactor, 1.25),
		OccupationClass2Factor: orDefault(req.OccupationClass2Factor, 1.10),
		OccupationClass3Factor: orDefault(req.OccupationClass3Factor, 1.25),
		LoyaltyDiscountFactor:  orDefault(req.LoyaltyDiscountFactor, 1.00),

		CreatedBy: &createdBy,
	}

	if err := s.policyRepo.Create(policy); err != nil {
		return nil, err
	}

	slog.Info("policy created", "policy_id", policy.ID, "name", policy.Name)
	return policy, nil
}

// UpdatePolicy writes the full policy row and drops the cache entry. Quotes
// already issued against the old factors are unaffected; they were computed
// from a snapshot.
func (s *PolicyService) UpdatePolicy(ctx context.Context, policy *models.Policy) error {
	if policy.BaseAnnualPremium <= 0 {
		return fmt.Errorf("base annual premium must be positive: %w", models.ErrInvalidInput)
	}

	if err := s.policyRepo.Update(policy); err != nil {
		return err
	}

	s.invalidate(ctx, policy.ID)
	return nil
}

func (s *PolicyService) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	if err := s.policyRepo.SoftDelete(id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	slog.Info("policy soft-deleted", "policy_id", id)
	return nil
}

func (s *PolicyService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, policyCacheKey(id)).Err(); err != nil {
		slog.Warn("policy cache invalidation failed", "policy_id", id, "error", err)
	}
}

func orDefault(value *float64, defaultValue float64) float64 {
	if value != nil {
		return *value
	}
	return defaultValue
}
