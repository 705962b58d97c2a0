package order

import (
	"errors"
	"math/big"
	"time"
)

// Status is the lifecycle state of an order. Cancelled and Filled are
// terminal and mutually exclusive.
type Status int32

const (
	StatusOpen Status = iota
	StatusCancelled
	StatusFilled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusCancelled:
		return "cancelled"
	case StatusFilled:
		return "filled"
	default:
		return "unknown"
	}
}

// Order is a resting offer to trade AmountOffered of AssetOffered for
// AmountWanted of AssetWanted. Immutable once created; lifecycle state is
// tracked separately by the Store.
type Order struct {
	ID            int64
	Creator       string
	AssetWanted   string
	AmountWanted  *big.Int
	AssetOffered  string
	AmountOffered *big.Int
	CreatedAt     time.Time
}

var (
	ErrNotFound         = errors.New("order: not found")
	ErrUnauthorized     = errors.New("order: caller is not the creator")
	ErrAlreadyFinalized = errors.New("order: already cancelled or filled")
)
