package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/config"
)

// HTTPSettlementClient talks to the settlement partner over its REST API.
type HTTPSettlementClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSettlementClient(cfg config.GatewayConfig) application.SettlementGateway {
	return &HTTPSettlementClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPSettlementClient) Initiate(ctx context.Context, req application.SettlementRequest) (*application.SettlementResult, error) {
	url := fmt.Sprintf("%s/api/v1/settlements", c.baseURL)

	// The payment id doubles as the partner-side idempotency key, so a
	// transport retry of the same payment cannot create a second settlement.
	resp, err := sendRequest[settlementRequestDTO, settlementResponseDTO](
		c.httpClient, ctx, http.MethodPost, url,
		toSettlementRequestDTO(req), req.PaymentID.String(),
	)
	if err != nil {
		return nil, err
	}
	return resp.toResult()
}

func sendRequest[Req any, Resp any](client *http.Client, ctx context.Context, method, url string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var partnerErrResp PartnerErrorResponse
		if err := json.Unmarshal(body, &partnerErrResp); err != nil {
			return nil, fmt.Errorf("partner returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &PartnerError{
			Code:       partnerErrResp.Err,
			Message:    partnerErrResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var partnerResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&partnerResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &partnerResp, nil
}
