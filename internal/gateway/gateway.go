package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// InitiateInput carries everything a provider needs to start a payment. The
// payment row already exists in pending state before Initiate is called.
type InitiateInput struct {
	PaymentID     uuid.UUID
	Amount        float64
	ProductName   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// InitiateResult is either a redirect URL (API-based providers) or a form
// payload the browser posts to the provider (form-based providers).
type InitiateResult struct {
	RedirectURL string
	FormURL     string
	FormFields  map[string]string
	// ProviderRef is a provider-assigned token known at initiation time
	// (Khalti pidx). Empty for providers that only reference our own id.
	ProviderRef string
}

// CallbackReference is the decoded identity of a returning callback: which
// local payment it belongs to and what the provider claims happened.
type CallbackReference struct {
	PaymentID      uuid.UUID
	ProviderRef    string
	ReportedStatus string
	Metadata       utils.JSONMap
}

// Gateway abstracts one payment provider. Implementations must return
// models.ErrGatewayConfigMissing when credentials are absent,
// models.ErrMissingReference when a callback carries no usable transaction
// id, and models.ErrVerificationFailed when the provider does not report
// the payment as successful.
type Gateway interface {
	Name() models.PaymentGateway
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	ExtractReference(query map[string]string) (*CallbackReference, error)
	Verify(ctx context.Context, ref *CallbackReference, amount float64) error
}

const maxAttempts = 3

// doWithRetry performs an outbound provider call with a bounded retry on
// transient failure (network error or 5xx). The request is rebuilt per
// attempt so bodies can be re-read.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to build gateway request: %w", err)
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			slog.Warn("gateway call failed", "attempt", attempt, "error", err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("gateway returned status %d", resp.StatusCode)
				slog.Warn("gateway call failed", "attempt", attempt, "status", resp.StatusCode)
			} else {
				return body, resp.StatusCode, nil
			}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, 0, fmt.Errorf("gateway unreachable after %d attempts: %w", maxAttempts, lastErr)
}

// formatAmount renders a monetary amount the way providers expect it in
// query strings and signatures: no trailing zeros, dot separator.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
