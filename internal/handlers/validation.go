package handlers

import (
	"errors"

	"boostledger/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseOptionalAmount accepts zero, since admins may zero out a commission.
func parseOptionalAmount(raw *string) (*int64, error) {
	if raw == nil {
		return nil, nil
	}
	amount, err := money.ParseMinor(*raw)
	if err != nil || amount < 0 {
		return nil, errInvalidAmount
	}
	return &amount, nil
}
