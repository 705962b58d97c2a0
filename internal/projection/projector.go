package projection

import (
	"sort"

	"SpotLedger/internal/event"
)

// Projector folds the event log into the order-centric read state: every
// order ever made, the subset that was cancelled, and the trade for each
// fill. It is a pure function of the log — feeding the same envelopes in
// the same sequence order always yields the same state, so a projector can
// be rebuilt from scratch or advanced incrementally and the results are
// indistinguishable.
//
// A Projector is not safe for concurrent use; callers serialize access
// (the query service holds one behind its own lock).
type Projector struct {
	lastSeq int64

	orders    map[int64]event.Order
	cancelled map[int64]event.Cancel
	filled    map[int64]event.Trade
	trades    []event.Trade // fill order, ascending sequence
}

func NewProjector() *Projector {
	return &Projector{
		lastSeq:   -1,
		orders:    make(map[int64]event.Order),
		cancelled: make(map[int64]event.Cancel),
		filled:    make(map[int64]event.Trade),
	}
}

// Apply advances the projector by one envelope. Envelopes at or below the
// watermark are ignored so replays after a partial sync are harmless.
func (p *Projector) Apply(env event.Envelope) {
	if env.Sequence <= p.lastSeq {
		return
	}
	p.lastSeq = env.Sequence

	switch rec := env.Record.(type) {
	case event.Order:
		p.orders[rec.ID] = rec
	case event.Cancel:
		p.cancelled[rec.ID] = rec
	case event.Trade:
		p.filled[rec.OrderID] = rec
		p.trades = append(p.trades, rec)
	}
	// Deposits and withdrawals do not affect order state; balances are
	// served from the ledger directly.
}

// Rebuild resets the projector and folds the given envelopes from scratch.
func (p *Projector) Rebuild(envs []event.Envelope) {
	p.lastSeq = -1
	p.orders = make(map[int64]event.Order)
	p.cancelled = make(map[int64]event.Cancel)
	p.filled = make(map[int64]event.Trade)
	p.trades = nil
	for _, env := range envs {
		p.Apply(env)
	}
}

// LastSequence is the watermark: the highest sequence folded so far,
// or -1 when nothing has been applied.
func (p *Projector) LastSequence() int64 { return p.lastSeq }

// OpenOrders returns orders that are neither cancelled nor filled,
// ascending by order id. Order ids strictly increase with creation, so id
// order is creation order.
func (p *Projector) OpenOrders() []event.Order {
	out := make([]event.Order, 0, len(p.orders))
	for id, o := range p.orders {
		if _, ok := p.cancelled[id]; ok {
			continue
		}
		if _, ok := p.filled[id]; ok {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CancelledOrders returns cancellation records ascending by order id.
func (p *Projector) CancelledOrders() []event.Cancel {
	out := make([]event.Cancel, 0, len(p.cancelled))
	for _, c := range p.cancelled {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Trades returns all fills in the order they settled.
func (p *Projector) Trades() []event.Trade {
	out := make([]event.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Order looks up any order ever made, whatever its current state.
func (p *Projector) Order(id int64) (event.Order, bool) {
	o, ok := p.orders[id]
	return o, ok
}
