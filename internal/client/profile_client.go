package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"premium-service/internal/config"
	"premium-service/internal/models"
	"time"
)

// IProfileClient reads identity-verification status and applicant attributes
// from the profile service. Both are narrow read contracts; this service
// never writes profile data.
type IProfileClient interface {
	GetVerificationStatus(ctx context.Context, userID string) (*VerificationResult, error)
	GetApplicantRecord(ctx context.Context, userID string) (*ApplicantRecord, error)
}

type VerificationResult struct {
	Status        models.VerificationStatus `json:"status"`
	EditRequested bool                      `json:"edit_requested"`
}

// ApplicantRecord is the profile service's view of an applicant. It is
// converted into a rating profile per request and never persisted here.
type ApplicantRecord struct {
	FullName        string   `json:"full_name"`
	Phone           *string  `json:"phone,omitempty"`
	Email           *string  `json:"email,omitempty"`
	Age             int      `json:"age"`
	IsSmoker        bool     `json:"is_smoker"`
	CoverageType    string   `json:"coverage_type"`
	FamilyMembers   int      `json:"family_members"`
	Conditions      []string `json:"conditions"`
	Region          string   `json:"region"`
	WeightKg        *float64 `json:"weight_kg,omitempty"`
	HeightCm        *float64 `json:"height_cm,omitempty"`
	OccupationClass int      `json:"occupation_class"`
}

// ToProfile builds the rating input, clamping age to [1,120] before the
// engine ever sees it.
func (r *ApplicantRecord) ToProfile() models.ApplicantProfile {
	age := r.Age
	if age < 1 {
		age = 1
	}
	if age > 120 {
		age = 120
	}

	coverage := models.CoverageIndividual
	if r.CoverageType == string(models.CoverageFamily) {
		coverage = models.CoverageFamily
	}

	return models.ApplicantProfile{
		Age:             age,
		IsSmoker:        r.IsSmoker,
		CoverageType:    coverage,
		FamilyMembers:   r.FamilyMembers,
		Conditions:      r.Conditions,
		Region:          models.Region(r.Region),
		WeightKg:        r.WeightKg,
		HeightCm:        r.HeightCm,
		OccupationClass: r.OccupationClass,
	}
}

type ProfileClient struct {
	cfg        config.ProfileServiceConfig
	httpClient *http.Client
}

func NewProfileClient(cfg config.ProfileServiceConfig) IProfileClient {
	return &ProfileClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type profileEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *ProfileClient) GetVerificationStatus(ctx context.Context, userID string) (*VerificationResult, error) {
	var result VerificationResult
	url := fmt.Sprintf("%s/profile/internal/api/v1/verification/%s", c.cfg.BaseURL, userID)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("failed to read verification status: %w", err)
	}

	return &result, nil
}

func (c *ProfileClient) GetApplicantRecord(ctx context.Context, userID string) (*ApplicantRecord, error) {
	var record ApplicantRecord
	url := fmt.Sprintf("%s/profile/internal/api/v1/applicants/%s", c.cfg.BaseURL, userID)
	if err := c.getJSON(ctx, url, &record); err != nil {
		return nil, fmt.Errorf("failed to read applicant record: %w", err)
	}

	return &record, nil
}

func (c *ProfileClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read profile service response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	var envelope profileEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode profile service envelope: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("profile service reported failure")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode profile service payload: %w", err)
	}

	return nil
}
