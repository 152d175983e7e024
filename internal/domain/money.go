package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount in a single ISO-4217 currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, errors.New("amount cannot be negative")
	}
	if len(currency) != 3 {
		return Money{}, errors.New("currency must be a 3-letter ISO code")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// PaymentMethod is how the settlement partner moves the funds.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCard         PaymentMethod = "CARD"
	MethodACH          PaymentMethod = "ACH"
	MethodWallet       PaymentMethod = "WALLET"
)

type PaymentType string

const (
	TypeOneTime   PaymentType = "ONE_TIME"
	TypeRecurring PaymentType = "RECURRING"
	TypePartial   PaymentType = "PARTIAL"
	TypeFull      PaymentType = "FULL"
)
