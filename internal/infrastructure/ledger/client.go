package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/config"
)

// HTTPLedgerClient talks to the accounting ledger service. Entries are keyed
// by payment id on the ledger side, so recording the same payment twice is a
// no-op there.
type HTTPLedgerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLedgerClient(cfg config.LedgerConfig) application.LedgerWriter {
	return &HTTPLedgerClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type entryDTO struct {
	PaymentID     string `json:"payment_id"`
	TenantID      string `json:"tenant_id"`
	PropertyID    string `json:"property_id"`
	LeaseID       string `json:"lease_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transaction_id"`
	Description   string `json:"description,omitempty"`
}

type errorDTO struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPLedgerClient) Record(ctx context.Context, entry application.LedgerEntry) error {
	dto := entryDTO{
		PaymentID:     entry.PaymentID.String(),
		TenantID:      entry.TenantID.String(),
		PropertyID:    entry.PropertyID.String(),
		LeaseID:       entry.LeaseID.String(),
		Amount:        entry.Amount.String(),
		Currency:      entry.Currency,
		TransactionID: entry.TransactionID,
		Description:   entry.Description,
	}

	jsonData, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/entries", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", entry.PaymentID.String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		// Entry already recorded for this payment.
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		var ledgerErr errorDTO
		if err := json.Unmarshal(body, &ledgerErr); err != nil {
			return fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("ledger error [%s]: %s (status: %d)",
			ledgerErr.Err, ledgerErr.Message, resp.StatusCode)
	}
}

func (c *HTTPLedgerClient) HasEntry(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/entries/by-payment/%s", c.baseURL, paymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, string(body))
	}
}
