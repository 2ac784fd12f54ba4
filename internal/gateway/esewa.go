package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"premium-service/internal/config"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EsewaGateway implements the redirect/form protocol: the browser posts a
// signed form to eSewa, and the user comes back on our success/failure URLs
// with a base64-encoded result blob. Verification is a separate synchronous
// status call.
type EsewaGateway struct {
	cfg        config.EsewaConfig
	httpClient *http.Client
}

func NewEsewaGateway(cfg config.EsewaConfig, timeout time.Duration) *EsewaGateway {
	return &EsewaGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *EsewaGateway) Name() models.PaymentGateway {
	return models.GatewayEsewa
}

// signedFieldNames is the exact list and order eSewa signs over. Changing it
// breaks interoperability.
const signedFieldNames = "total_amount,transaction_uuid,product_code"

// Signature computes base64(HMAC-SHA256) over
// "total_amount=<amt>,transaction_uuid=<uuid>,product_code=<code>".
func (g *EsewaGateway) Signature(totalAmount, transactionUUID, productCode string) string {
	message := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, productCode)
	mac := hmac.New(sha256.New, []byte(g.cfg.SecretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (g *EsewaGateway) Initiate(_ context.Context, in InitiateInput) (*InitiateResult, error) {
	if g.cfg.SecretKey == "" {
		return nil, models.ErrGatewayConfigMissing
	}

	totalAmount := formatAmount(in.Amount)
	transactionUUID := in.PaymentID.String()

	// The local payment id rides on both return URLs so the failure path
	// can be correlated even when eSewa sends no result blob.
	successURL := appendQuery(g.cfg.SuccessURL, "pid", transactionUUID)
	failureURL := appendQuery(g.cfg.FailureURL, "pid", transactionUUID)

	fields := map[string]string{
		"amount":                  totalAmount,
		"tax_amount":              "0",
		"total_amount":            totalAmount,
		"transaction_uuid":        transactionUUID,
		"product_code":            g.cfg.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             successURL,
		"failure_url":             failureURL,
		"signed_field_names":      signedFieldNames,
		"signature":               g.Signature(totalAmount, transactionUUID, g.cfg.ProductCode),
	}

	return &InitiateResult{
		FormURL:    g.cfg.FormURL,
		FormFields: fields,
	}, nil
}

// esewaCallbackData is the JSON blob eSewa base64-encodes into the success
// redirect's "data" query parameter.
type esewaCallbackData struct {
	TransactionCode  string `json:"transaction_code"`
	Status           string `json:"status"`
	TotalAmount      string `json:"total_amount"`
	TransactionUUID  string `json:"transaction_uuid"`
	ProductCode      string `json:"product_code"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`
}

func (g *EsewaGateway) ExtractReference(query map[string]string) (*CallbackReference, error) {
	if encoded := query["data"]; encoded != "" {
		decoded, err := decodeBase64Loose(encoded)
		if err != nil {
			return nil, fmt.Errorf("undecodable callback blob: %w", models.ErrMissingReference)
		}

		var data esewaCallbackData
		if err := json.Unmarshal(decoded, &data); err != nil {
			return nil, fmt.Errorf("malformed callback blob: %w", models.ErrMissingReference)
		}
		if data.TransactionUUID == "" {
			return nil, fmt.Errorf("callback blob without transaction_uuid: %w", models.ErrMissingReference)
		}

		paymentID, err := uuid.Parse(data.TransactionUUID)
		if err != nil {
			return nil, fmt.Errorf("non-uuid transaction_uuid %q: %w", data.TransactionUUID, models.ErrMissingReference)
		}

		return &CallbackReference{
			PaymentID:      paymentID,
			ProviderRef:    data.TransactionCode,
			ReportedStatus: data.Status,
			Metadata: utils.JSONMap{
				"transaction_code": data.TransactionCode,
				"status":           data.Status,
				"total_amount":     data.TotalAmount,
			},
		}, nil
	}

	// Failure redirects arrive without a data blob; fall back to the local
	// id embedded in our own URL.
	if pid := query["pid"]; pid != "" {
		paymentID, err := uuid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("non-uuid pid %q: %w", pid, models.ErrMissingReference)
		}
		return &CallbackReference{PaymentID: paymentID}, nil
	}

	return nil, models.ErrMissingReference
}

type esewaStatusResponse struct {
	ProductCode     string  `json:"product_code"`
	TransactionUUID string  `json:"transaction_uuid"`
	TotalAmount     float64 `json:"total_amount"`
	Status          string  `json:"status"`
	RefID           string  `json:"ref_id"`
}

// Verify calls the transaction status endpoint. Only the literal status
// "COMPLETE" counts as success.
func (g *EsewaGateway) Verify(ctx context.Context, ref *CallbackReference, amount float64) error {
	if g.cfg.SecretKey == "" {
		return models.ErrGatewayConfigMissing
	}

	statusURL := fmt.Sprintf("%s?product_code=%s&total_amount=%s&transaction_uuid=%s",
		g.cfg.StatusURL,
		url.QueryEscape(g.cfg.ProductCode),
		url.QueryEscape(formatAmount(amount)),
		url.QueryEscape(ref.PaymentID.String()),
	)

	body, statusCode, err := doWithRetry(ctx, g.httpClient, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, statusURL, nil)
	})
	if err != nil {
		return fmt.Errorf("esewa status check failed: %w", err)
	}
	if statusCode != http.StatusOK {
		return fmt.Errorf("esewa status endpoint returned %d: %w", statusCode, models.ErrVerificationFailed)
	}

	var status esewaStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to decode esewa status response: %w", err)
	}

	if status.Status != "COMPLETE" {
		return fmt.Errorf("esewa reported status %q: %w", status.Status, models.ErrVerificationFailed)
	}

	if status.RefID != "" {
		ref.ProviderRef = status.RefID
	}

	return nil
}

// decodeBase64Loose accepts standard or URL-safe alphabets with or without
// padding; callbacks have been observed in both forms.
func decodeBase64Loose(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.URLEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func appendQuery(rawURL, key, value string) string {
	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + key + "=" + url.QueryEscape(value)
}
