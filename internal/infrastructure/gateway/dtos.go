package gateway

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/application"
)

type settlementRequestDTO struct {
	PaymentID      string `json:"payment_id"`
	TenantID       string `json:"tenant_id"`
	LeaseID        string `json:"lease_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	BankAccountID  string `json:"bank_account_id,omitempty"`
	ProcessorToken string `json:"processor_token,omitempty"`
}

type settlementResponseDTO struct {
	TransactionID string    `json:"transaction_id"`
	SettledAmount string    `json:"settled_amount"`
	FeeAmount     string    `json:"fee_amount"`
	Status        string    `json:"status"`
	SettledAt     time.Time `json:"settled_at"`
}

func toSettlementRequestDTO(req application.SettlementRequest) *settlementRequestDTO {
	return &settlementRequestDTO{
		PaymentID:      req.PaymentID.String(),
		TenantID:       req.TenantID.String(),
		LeaseID:        req.LeaseID.String(),
		Amount:         req.Amount.String(),
		Currency:       req.Currency,
		Method:         string(req.Method),
		BankAccountID:  req.BankAccountID,
		ProcessorToken: req.ProcessorToken,
	}
}

func (d *settlementResponseDTO) toResult() (*application.SettlementResult, error) {
	settled, err := decimal.NewFromString(d.SettledAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid settled amount %q: %w", d.SettledAmount, err)
	}
	fee := decimal.Zero
	if d.FeeAmount != "" {
		fee, err = decimal.NewFromString(d.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid fee amount %q: %w", d.FeeAmount, err)
		}
	}
	return &application.SettlementResult{
		TransactionID: d.TransactionID,
		SettledAmount: settled,
		FeeAmount:     fee,
		Status:        d.Status,
	}, nil
}
