package marketdata

import (
	"sort"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/event"
	"SpotLedger/internal/projection"
)

// BuildTradeTape decorates the pair's fills and marks each one with its
// price trend against the trade before it. The very first trade counts
// as up; a price equal to the previous one also counts as up. The tape
// is returned most recent first.
func BuildTradeTape(trades []event.Trade, pair projection.Pair) []projection.DecoratedTrade {
	// Trades arrive in settle order, which is also time order.
	tape := make([]projection.DecoratedTrade, 0, len(trades))
	var prev decimal.Decimal
	for _, tr := range trades {
		d, ok := projection.DecorateTrade(tr, pair)
		if !ok {
			continue
		}
		if len(tape) == 0 || prev.LessThanOrEqual(d.Price) {
			d.Trend = projection.TrendUp
		} else {
			d.Trend = projection.TrendDown
		}
		prev = d.Price
		tape = append(tape, d)
	}

	sort.SliceStable(tape, func(i, j int) bool {
		return tape[i].Timestamp.After(tape[j].Timestamp)
	})
	return tape
}

// LastPrice returns the pair's most recent trade price and its trend
// against the trade before it. With fewer than two trades the trend
// defaults to up; with no trades the price is zero.
func LastPrice(trades []event.Trade, pair projection.Pair) (decimal.Decimal, projection.Trend) {
	var prices []decimal.Decimal
	for _, tr := range trades {
		if d, ok := projection.DecorateTrade(tr, pair); ok {
			prices = append(prices, d.Price)
		}
	}
	switch len(prices) {
	case 0:
		return decimal.Zero, projection.TrendUp
	case 1:
		return prices[0], projection.TrendUp
	}
	last, before := prices[len(prices)-1], prices[len(prices)-2]
	if last.GreaterThanOrEqual(before) {
		return last, projection.TrendUp
	}
	return last, projection.TrendDown
}
