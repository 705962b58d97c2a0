package asset

import (
	"errors"
	"math/big"
)

// Contract is the fungible-asset interface the ledger consumes.
// Caller identity is an explicit argument: Transfer moves the caller's own
// funds, TransferFrom spends a previously approved allowance. Both either
// move the full amount or fail with no partial transfer.
type Contract interface {
	Symbol() string
	Transfer(from, to string, amount *big.Int) error
	TransferFrom(spender, from, to string, amount *big.Int) error
	Approve(owner, spender string, amount *big.Int) error
	BalanceOf(account string) *big.Int
	Allowance(owner, spender string) *big.Int
}

var (
	ErrInsufficientBalance   = errors.New("asset: insufficient balance")
	ErrInsufficientAllowance = errors.New("asset: insufficient allowance")
	ErrInvalidAccount        = errors.New("asset: invalid account")
	ErrInvalidAmount         = errors.New("asset: invalid amount")
)
