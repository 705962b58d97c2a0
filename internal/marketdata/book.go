// Package marketdata derives the presentation-level read models from
// projected order state: the order book, the trade tape, per-account
// views, and hourly candles. Everything here is a pure function of a
// Projector's state for one trading pair.
package marketdata

import (
	"sort"

	"SpotLedger/internal/event"
	"SpotLedger/internal/projection"
)

// OrderBook is the open interest for a pair, split by side. Both sides
// are sorted by price descending; orders at the same price keep creation
// order between them.
type OrderBook struct {
	Pair  projection.Pair             `json:"pair"`
	Buys  []projection.DecoratedOrder `json:"buys"`
	Sells []projection.DecoratedOrder `json:"sells"`
}

// BuildOrderBook decorates the open orders for the pair and groups them
// by side. Orders trading other assets are skipped.
func BuildOrderBook(open []event.Order, pair projection.Pair) OrderBook {
	book := OrderBook{Pair: pair}
	for _, o := range open {
		d, ok := projection.DecorateOrder(o, pair)
		if !ok {
			continue
		}
		if d.Side == projection.SideBuy {
			book.Buys = append(book.Buys, d)
		} else {
			book.Sells = append(book.Sells, d)
		}
	}
	sortByPriceDesc(book.Buys)
	sortByPriceDesc(book.Sells)
	return book
}

// sortByPriceDesc orders by price descending. The input arrives in
// creation order, so the stable sort keeps equal-priced orders in
// creation order.
func sortByPriceDesc(orders []projection.DecoratedOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Price.GreaterThan(orders[j].Price)
	})
}
