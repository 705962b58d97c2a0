package projection

import (
	"time"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/event"
	fpmath "SpotLedger/internal/math"
)

// Display colors for buy/sell and price up/down.
const (
	ColorGreen = "#25CE8F"
	ColorRed   = "#F45353"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trend marks a trade's price direction relative to the previous trade.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Pair names a trading pair in base/quote orientation. An order belongs to
// the pair when its two assets are exactly the pair's base and quote.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// Matches reports whether the two assets are this pair in either direction.
func (p Pair) Matches(assetWanted, assetOffered string) bool {
	return (assetWanted == p.Base && assetOffered == p.Quote) ||
		(assetWanted == p.Quote && assetOffered == p.Base)
}

// DecoratedOrder is an open order expressed in pair terms. An order
// offering the quote asset is buying the base, so it shows as a buy;
// offering the base shows as a sell. Price is quote per base, rounded to
// five fractional digits. FillAction is the side the counterparty takes
// when executing against the order.
type DecoratedOrder struct {
	ID          int64           `json:"id"`
	Creator     string          `json:"creator"`
	Side        Side            `json:"side"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	Price       decimal.Decimal `json:"price"`
	Color       string          `json:"color"`
	FillAction  Side            `json:"fill_action"`
	Timestamp   time.Time       `json:"timestamp"`
}

// DecoratedTrade is a settled fill in pair terms. Side and color reflect
// the resting order's orientation; Trend is filled in by the trade tape,
// which needs the previous trade's price.
type DecoratedTrade struct {
	OrderID     int64           `json:"order_id"`
	Creator     string          `json:"creator"`
	Filler      string          `json:"filler"`
	Side        Side            `json:"side"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	Price       decimal.Decimal `json:"price"`
	Trend       Trend           `json:"trend"`
	Color       string          `json:"color"`
	Timestamp   time.Time       `json:"timestamp"`
}

// DecorateOrder maps a raw order onto a pair. The second return is false
// when the order trades different assets than the pair.
func DecorateOrder(o event.Order, pair Pair) (DecoratedOrder, bool) {
	if !pair.Matches(o.AssetWanted, o.AssetOffered) {
		return DecoratedOrder{}, false
	}

	d := DecoratedOrder{
		ID:        o.ID,
		Creator:   o.Creator,
		Timestamp: o.Timestamp,
	}
	if o.AssetWanted == pair.Base {
		// Wants base, offers quote: a bid for the base asset.
		d.Side = SideBuy
		d.BaseAmount = fpmath.ToDecimal(o.AmountWanted)
		d.QuoteAmount = fpmath.ToDecimal(o.AmountOffered)
		d.Price = fpmath.PriceRatio(o.AmountOffered, o.AmountWanted)
		d.Color = ColorGreen
		d.FillAction = SideSell
	} else {
		d.Side = SideSell
		d.BaseAmount = fpmath.ToDecimal(o.AmountOffered)
		d.QuoteAmount = fpmath.ToDecimal(o.AmountWanted)
		d.Price = fpmath.PriceRatio(o.AmountWanted, o.AmountOffered)
		d.Color = ColorRed
		d.FillAction = SideBuy
	}
	return d, true
}

// DecorateTrade maps a fill onto a pair, oriented from the resting
// order's side. Trend is left at its zero value for the tape to assign.
func DecorateTrade(tr event.Trade, pair Pair) (DecoratedTrade, bool) {
	if !pair.Matches(tr.AssetWanted, tr.AssetOffered) {
		return DecoratedTrade{}, false
	}

	d := DecoratedTrade{
		OrderID:   tr.OrderID,
		Creator:   tr.Creator,
		Filler:    tr.Filler,
		Timestamp: tr.Timestamp,
	}
	if tr.AssetWanted == pair.Base {
		d.Side = SideBuy
		d.BaseAmount = fpmath.ToDecimal(tr.AmountWanted)
		d.QuoteAmount = fpmath.ToDecimal(tr.AmountOffered)
		d.Price = fpmath.PriceRatio(tr.AmountOffered, tr.AmountWanted)
		d.Color = ColorGreen
	} else {
		d.Side = SideSell
		d.BaseAmount = fpmath.ToDecimal(tr.AmountOffered)
		d.QuoteAmount = fpmath.ToDecimal(tr.AmountWanted)
		d.Price = fpmath.PriceRatio(tr.AmountWanted, tr.AmountOffered)
		d.Color = ColorRed
	}
	return d, true
}

// InvertSide flips buy to sell and back. Used when presenting a trade
// from the filler's viewpoint instead of the creator's.
func InvertSide(s Side) Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}
