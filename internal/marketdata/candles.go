package marketdata

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/event"
	"SpotLedger/internal/projection"
)

// Candle is one hour of trading: open and close are the first and last
// prices in the bucket, high and low the extremes.
type Candle struct {
	Start time.Time       `json:"start"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// BuildCandles buckets the pair's fills by the start of the wall-clock
// hour each trade happened in and folds each bucket into a candle.
// Candles come back in chronological order; hours with no trades get no
// candle.
func BuildCandles(trades []event.Trade, pair projection.Pair) []Candle {
	// Settle order is time order, so the first and last trade seen per
	// bucket are that hour's open and close.
	byHour := make(map[time.Time]*Candle)
	for _, tr := range trades {
		d, ok := projection.DecorateTrade(tr, pair)
		if !ok {
			continue
		}
		start := hourStart(d.Timestamp)
		c := byHour[start]
		if c == nil {
			byHour[start] = &Candle{Start: start, Open: d.Price, High: d.Price, Low: d.Price, Close: d.Price}
			continue
		}
		if d.Price.GreaterThan(c.High) {
			c.High = d.Price
		}
		if d.Price.LessThan(c.Low) {
			c.Low = d.Price
		}
		c.Close = d.Price
	}

	out := make([]Candle, 0, len(byHour))
	for _, c := range byHour {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// hourStart truncates to the start of the hour in the timestamp's own
// location, so bucket boundaries follow wall-clock hours.
func hourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
