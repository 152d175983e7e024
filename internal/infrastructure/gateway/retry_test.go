package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/config"
	"github.com/rentflow/payments/internal/infrastructure/gateway"
)

type stubGateway struct {
	calls      int
	initiateFn func(call int) (*application.SettlementResult, error)
}

func (s *stubGateway) Initiate(ctx context.Context, req application.SettlementRequest) (*application.SettlementResult, error) {
	s.calls++
	return s.initiateFn(s.calls)
}

func settlementRequest() application.SettlementRequest {
	return application.SettlementRequest{
		PaymentID: uuid.New(),
		TenantID:  uuid.New(),
		LeaseID:   uuid.New(),
		Amount:    decimal.RequireFromString("1200.00"),
		Currency:  "USD",
	}
}

func TestRetrySettlementClient_Success(t *testing.T) {
	expected := &application.SettlementResult{TransactionID: "tx-123"}
	stub := &stubGateway{initiateFn: func(int) (*application.SettlementResult, error) {
		return expected, nil
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 0, MaxRetries: 3})

	resp, err := client.Initiate(context.Background(), settlementRequest())

	require.NoError(t, err)
	assert.Equal(t, expected, resp)
	assert.Equal(t, 1, stub.calls)
}

func TestRetrySettlementClient_RetriesOn5xx(t *testing.T) {
	expected := &application.SettlementResult{TransactionID: "tx-123"}
	stub := &stubGateway{initiateFn: func(call int) (*application.SettlementResult, error) {
		if call < 3 {
			return nil, &gateway.PartnerError{
				Code:       "internal_error",
				Message:    "Internal server error",
				StatusCode: 500,
			}
		}
		return expected, nil
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 0, MaxRetries: 3})

	resp, err := client.Initiate(context.Background(), settlementRequest())

	require.NoError(t, err)
	assert.Equal(t, expected, resp)
	assert.Equal(t, 3, stub.calls)
}

func TestRetrySettlementClient_DoesNotRetryOn4xx(t *testing.T) {
	expectedErr := &gateway.PartnerError{
		Code:       "insufficient_funds",
		Message:    "Account balance too low",
		StatusCode: 402,
	}
	stub := &stubGateway{initiateFn: func(int) (*application.SettlementResult, error) {
		return nil, expectedErr
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 0, MaxRetries: 3})

	resp, err := client.Initiate(context.Background(), settlementRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, stub.calls)

	partnerErr, ok := gateway.IsPartnerError(err)
	require.True(t, ok)
	assert.Equal(t, expectedErr.Code, partnerErr.Code)
}

func TestRetrySettlementClient_ExhaustsRetries(t *testing.T) {
	stub := &stubGateway{initiateFn: func(int) (*application.SettlementResult, error) {
		return nil, &gateway.PartnerError{
			Code:       "internal_error",
			Message:    "Internal server error",
			StatusCode: 500,
		}
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 0, MaxRetries: 3})

	resp, err := client.Initiate(context.Background(), settlementRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 3, stub.calls)
	assert.Contains(t, err.Error(), "maximum retries exceeded")
}

func TestRetrySettlementClient_DoesNotRetryCancellation(t *testing.T) {
	stub := &stubGateway{initiateFn: func(int) (*application.SettlementResult, error) {
		return nil, context.Canceled
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 0, MaxRetries: 10})

	resp, err := client.Initiate(context.Background(), settlementRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, stub.calls)
}

func TestRetrySettlementClient_RespectsContextCancellation(t *testing.T) {
	stub := &stubGateway{initiateFn: func(int) (*application.SettlementResult, error) {
		return nil, &gateway.PartnerError{Code: "internal_error", StatusCode: 500}
	}}
	client := gateway.NewRetrySettlementClient(stub, config.RetryConfig{BaseDelay: 1, MaxRetries: 10})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	resp, err := client.Initiate(ctx, settlementRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, context.Canceled))
}
