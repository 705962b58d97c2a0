package marketdata

import (
	"sort"

	"SpotLedger/internal/event"
	"SpotLedger/internal/projection"
)

// AccountTrade is a fill seen from one account's side of it. Signed
// presentation: a buy shows the base amount with "+", a sell with "-".
type AccountTrade struct {
	projection.DecoratedTrade
	Sign string `json:"sign"`
}

// AccountOpenOrders returns the account's own resting orders on the
// pair, most recent first.
func AccountOpenOrders(open []event.Order, pair projection.Pair, account string) []projection.DecoratedOrder {
	var out []projection.DecoratedOrder
	for _, o := range open {
		if o.Creator != account {
			continue
		}
		if d, ok := projection.DecorateOrder(o, pair); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// AccountTrades returns the pair's fills the account took part in, most
// recent first. A trade decorates from the resting order's viewpoint;
// when the account was the filler it stood on the other side, so side,
// color and sign flip.
func AccountTrades(trades []event.Trade, pair projection.Pair, account string) []AccountTrade {
	var out []AccountTrade
	for _, tr := range trades {
		if tr.Creator != account && tr.Filler != account {
			continue
		}
		d, ok := projection.DecorateTrade(tr, pair)
		if !ok {
			continue
		}
		if tr.Creator != account {
			d.Side = projection.InvertSide(d.Side)
			if d.Side == projection.SideBuy {
				d.Color = projection.ColorGreen
			} else {
				d.Color = projection.ColorRed
			}
		}
		at := AccountTrade{DecoratedTrade: d, Sign: "+"}
		if d.Side == projection.SideSell {
			at.Sign = "-"
		}
		out = append(out, at)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
