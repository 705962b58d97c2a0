package ledger

import "errors"

var (
	// ErrInsufficientBalance means a debit or withdrawal would drive a
	// custody balance negative.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInvalidAmount means a nil or non-positive amount was supplied.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)
