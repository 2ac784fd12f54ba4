package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"premium-service/internal/config"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"time"

	"github.com/google/uuid"
)

// KhaltiGateway implements the API protocol: an initiate call returns a
// payment URL and a provider token (pidx), the user pays there, and a lookup
// call with the pidx confirms the outcome.
type KhaltiGateway struct {
	cfg        config.KhaltiConfig
	httpClient *http.Client
}

func NewKhaltiGateway(cfg config.KhaltiConfig, timeout time.Duration) *KhaltiGateway {
	return &KhaltiGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *KhaltiGateway) Name() models.PaymentGateway {
	return models.GatewayKhalti
}

type khaltiCustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type khaltiInitiateRequest struct {
	ReturnURL         string             `json:"return_url"`
	WebsiteURL        string             `json:"website_url"`
	Amount            int64              `json:"amount"`
	PurchaseOrderID   string             `json:"purchase_order_id"`
	PurchaseOrderName string             `json:"purchase_order_name"`
	CustomerInfo      khaltiCustomerInfo `json:"customer_info"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

func (g *KhaltiGateway) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if g.cfg.SecretKey == "" {
		return nil, models.ErrGatewayConfigMissing
	}

	payload := khaltiInitiateRequest{
		ReturnURL:  g.cfg.ReturnURL,
		WebsiteURL: g.cfg.WebsiteURL,
		// Khalti amounts are in paisa.
		Amount:            int64(math.Round(in.Amount * 100)),
		PurchaseOrderID:   in.PaymentID.String(),
		PurchaseOrderName: in.ProductName,
		CustomerInfo: khaltiCustomerInfo{
			Name:  in.CustomerName,
			Email: in.CustomerEmail,
			Phone: in.CustomerPhone,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal khalti initiate request: %w", err)
	}

	respBody, statusCode, err := doWithRetry(ctx, g.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, g.cfg.BaseURL+"/epayment/initiate/", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "key "+g.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("khalti initiate failed: %w", err)
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("khalti initiate returned status %d: %s", statusCode, string(respBody))
	}

	var initResp khaltiInitiateResponse
	if err := json.Unmarshal(respBody, &initResp); err != nil {
		return nil, fmt.Errorf("failed to decode khalti initiate response: %w", err)
	}
	if initResp.Pidx == "" || initResp.PaymentURL == "" {
		return nil, fmt.Errorf("khalti initiate response missing pidx or payment_url")
	}

	return &InitiateResult{
		RedirectURL: initResp.PaymentURL,
		ProviderRef: initResp.Pidx,
	}, nil
}

func (g *KhaltiGateway) ExtractReference(query map[string]string) (*CallbackReference, error) {
	pidx := query["pidx"]
	if pidx == "" {
		return nil, fmt.Errorf("khalti return without pidx: %w", models.ErrMissingReference)
	}

	ref := &CallbackReference{
		ProviderRef:    pidx,
		ReportedStatus: query["status"],
		Metadata: utils.JSONMap{
			"pidx":           pidx,
			"status":         query["status"],
			"transaction_id": query["transaction_id"],
		},
	}

	if orderID := query["purchase_order_id"]; orderID != "" {
		paymentID, err := uuid.Parse(orderID)
		if err != nil {
			return nil, fmt.Errorf("non-uuid purchase_order_id %q: %w", orderID, models.ErrMissingReference)
		}
		ref.PaymentID = paymentID
	}

	return ref, nil
}

type khaltiLookupResponse struct {
	Pidx        string `json:"pidx"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
	Refunded    bool   `json:"refunded"`
}

// Verify calls the lookup endpoint with the pidx. Only the literal status
// "Completed" counts as success, the looked-up amount must match what we
// charged locally, and a refunded transaction never verifies.
func (g *KhaltiGateway) Verify(ctx context.Context, ref *CallbackReference, amount float64) error {
	if g.cfg.SecretKey == "" {
		return models.ErrGatewayConfigMissing
	}
	if ref.ProviderRef == "" {
		return models.ErrMissingReference
	}

	body, err := json.Marshal(map[string]string{"pidx": ref.ProviderRef})
	if err != nil {
		return fmt.Errorf("failed to marshal khalti lookup request: %w", err)
	}

	respBody, statusCode, err := doWithRetry(ctx, g.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, g.cfg.BaseURL+"/epayment/lookup/", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "key "+g.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("khalti lookup failed: %w", err)
	}
	if statusCode != http.StatusOK {
		return fmt.Errorf("khalti lookup returned status %d: %w", statusCode, models.ErrVerificationFailed)
	}

	var lookup khaltiLookupResponse
	if err := json.Unmarshal(respBody, &lookup); err != nil {
		return fmt.Errorf("failed to decode khalti lookup response: %w", err)
	}

	if lookup.Status != "Completed" {
		return fmt.Errorf("khalti reported status %q: %w", lookup.Status, models.ErrVerificationFailed)
	}
	if lookup.Refunded {
		return fmt.Errorf("khalti transaction was refunded: %w", models.ErrVerificationFailed)
	}

	// The pidx alone identifies the transaction; checking the looked-up
	// amount against the local payment guards against a pidx belonging to a
	// different (cheaper) transaction.
	expected := int64(math.Round(amount * 100))
	if lookup.TotalAmount != expected {
		return fmt.Errorf("khalti amount %d paisa does not match expected %d: %w",
			lookup.TotalAmount, expected, models.ErrVerificationFailed)
	}

	return nil
}
