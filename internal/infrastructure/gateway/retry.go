package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/config"
)

// RetrySettlementClient wraps a settlement gateway with transport-level
// retries. This covers transient network blips within a single attempt; the
// durable across-attempt retry policy lives on the payment.
type RetrySettlementClient struct {
	inner      application.SettlementGateway
	baseDelay  time.Duration
	maxRetries int
}

func NewRetrySettlementClient(inner application.SettlementGateway, cfg config.RetryConfig) application.SettlementGateway {
	return &RetrySettlementClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetrySettlementClient) Initiate(ctx context.Context, req application.SettlementRequest) (*application.SettlementResult, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := r.inner.Initiate(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var partnerErr *PartnerError
	if errors.As(err, &partnerErr) {
		if partnerErr.StatusCode >= 500 {
			return true
		}
		if partnerErr.Code == "internal_error" {
			return true
		}
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Network-level failures without a partner response are worth one more try.
	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetrySettlementClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
