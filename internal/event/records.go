package event

import (
	"math/big"
	"time"
)

// Type discriminates record payloads in the log.
type Type int32

const (
	TypeUnknown Type = iota
	TypeDeposit
	TypeWithdraw
	TypeOrder
	TypeCancel
	TypeTrade
)

func (t Type) String() string {
	switch t {
	case TypeDeposit:
		return "Deposit"
	case TypeWithdraw:
		return "Withdraw"
	case TypeOrder:
		return "Order"
	case TypeCancel:
		return "Cancel"
	case TypeTrade:
		return "Trade"
	default:
		return "Unknown"
	}
}

// TypeFromString is the inverse of Type.String, used when decoding
// persisted events.
func TypeFromString(s string) Type {
	switch s {
	case "Deposit":
		return TypeDeposit
	case "Withdraw":
		return TypeWithdraw
	case "Order":
		return TypeOrder
	case "Cancel":
		return TypeCancel
	case "Trade":
		return TypeTrade
	default:
		return TypeUnknown
	}
}

// Record is the interface all log payloads implement. Each record carries
// enough fields to be replayed into read-model state on its own.
type Record interface {
	EventType() Type
}

// Deposit records funds entering custody. Balance is the account's
// resulting custody balance for the asset.
type Deposit struct {
	Asset   string   `json:"asset"`
	Account string   `json:"account"`
	Amount  *big.Int `json:"amount"`
	Balance *big.Int `json:"balance"`
}

func (d Deposit) EventType() Type { return TypeDeposit }

// Withdraw records funds leaving custody.
type Withdraw struct {
	Asset   string   `json:"asset"`
	Account string   `json:"account"`
	Amount  *big.Int `json:"amount"`
	Balance *big.Int `json:"balance"`
}

func (w Withdraw) EventType() Type { return TypeWithdraw }

// Order records a new resting order.
type Order struct {
	ID            int64     `json:"id"`
	Creator       string    `json:"creator"`
	AssetWanted   string    `json:"asset_wanted"`
	AmountWanted  *big.Int  `json:"amount_wanted"`
	AssetOffered  string    `json:"asset_offered"`
	AmountOffered *big.Int  `json:"amount_offered"`
	Timestamp     time.Time `json:"timestamp"`
}

func (o Order) EventType() Type { return TypeOrder }

// Cancel records an order reaching the cancelled terminal state. It carries
// the original order fields plus the cancellation timestamp.
type Cancel struct {
	ID            int64     `json:"id"`
	Creator       string    `json:"creator"`
	AssetWanted   string    `json:"asset_wanted"`
	AmountWanted  *big.Int  `json:"amount_wanted"`
	AssetOffered  string    `json:"asset_offered"`
	AmountOffered *big.Int  `json:"amount_offered"`
	Timestamp     time.Time `json:"timestamp"`
}

func (c Cancel) EventType() Type { return TypeCancel }

// Trade records a fill. Filler is the account that executed the order;
// Creator is preserved from the original order.
type Trade struct {
	OrderID       int64     `json:"order_id"`
	Filler        string    `json:"filler"`
	Creator       string    `json:"creator"`
	AssetWanted   string    `json:"asset_wanted"`
	AmountWanted  *big.Int  `json:"amount_wanted"`
	AssetOffered  string    `json:"asset_offered"`
	AmountOffered *big.Int  `json:"amount_offered"`
	Timestamp     time.Time `json:"timestamp"`
}

func (t Trade) EventType() Type { return TypeTrade }
