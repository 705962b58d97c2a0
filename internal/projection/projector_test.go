package projection_test

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"SpotLedger/internal/event"
	fpmath "SpotLedger/internal/math"
	"SpotLedger/internal/projection"
)

var pair = projection.Pair{Base: "DAPP", Quote: "mDAI"}

func ts(sec int64) time.Time { return time.Unix(1_700_000_000+sec, 0) }

func orderRec(id int64, wanted string, amtWanted int64, offered string, amtOffered int64) event.Order {
	return event.Order{
		ID:            id,
		Creator:       "user1",
		AssetWanted:   wanted,
		AmountWanted:  fpmath.Units(amtWanted),
		AssetOffered:  offered,
		AmountOffered: fpmath.Units(amtOffered),
		Timestamp:     ts(id),
	}
}

func tradeFor(o event.Order, filler string) event.Trade {
	return event.Trade{
		OrderID:       o.ID,
		Filler:        filler,
		Creator:       o.Creator,
		AssetWanted:   o.AssetWanted,
		AmountWanted:  o.AmountWanted,
		AssetOffered:  o.AssetOffered,
		AmountOffered: o.AmountOffered,
		Timestamp:     ts(o.ID + 100),
	}
}

func feed(log *event.Log, recs ...event.Record) {
	for i, r := range recs {
		log.Append(r, ts(int64(i)))
	}
}

func TestProjector_OpenOrdersExcludeTerminal(t *testing.T) {
	log := event.NewLog()
	o1 := orderRec(1, "mDAI", 1, "DAPP", 1)
	o2 := orderRec(2, "mDAI", 2, "DAPP", 1)
	o3 := orderRec(3, "DAPP", 1, "mDAI", 3)
	feed(log, o1, o2, o3,
		event.Cancel{ID: 2, Creator: "user1", AssetWanted: o2.AssetWanted, AmountWanted: o2.AmountWanted,
			AssetOffered: o2.AssetOffered, AmountOffered: o2.AmountOffered, Timestamp: ts(10)},
		tradeFor(o3, "user2"),
	)

	p := projection.NewProjector()
	for _, env := range log.All() {
		p.Apply(env)
	}

	open := p.OpenOrders()
	if len(open) != 1 || open[0].ID != 1 {
		t.Fatalf("open orders: got %v, want just order 1", open)
	}
	if got := p.CancelledOrders(); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("cancelled orders: got %v, want just order 2", got)
	}
	if got := p.Trades(); len(got) != 1 || got[0].OrderID != 3 {
		t.Errorf("trades: got %v, want just order 3's fill", got)
	}
	if p.LastSequence() != 4 {
		t.Errorf("watermark: got %d, want 4", p.LastSequence())
	}
}

func TestProjector_IgnoresBalanceEvents(t *testing.T) {
	log := event.NewLog()
	feed(log,
		event.Deposit{Asset: "DAPP", Account: "user1", Amount: fpmath.Units(5), Balance: fpmath.Units(5)},
		orderRec(1, "mDAI", 1, "DAPP", 1),
		event.Withdraw{Asset: "DAPP", Account: "user1", Amount: fpmath.Units(2), Balance: fpmath.Units(3)},
	)

	p := projection.NewProjector()
	for _, env := range log.All() {
		p.Apply(env)
	}

	if len(p.OpenOrders()) != 1 {
		t.Errorf("open orders: got %d, want 1", len(p.OpenOrders()))
	}
	// Balance events still advance the watermark.
	if p.LastSequence() != 2 {
		t.Errorf("watermark: got %d, want 2", p.LastSequence())
	}
}

func TestProjector_DuplicateApplyIsIdempotent(t *testing.T) {
	log := event.NewLog()
	o := orderRec(1, "mDAI", 1, "DAPP", 1)
	feed(log, o, tradeFor(o, "user2"))

	p := projection.NewProjector()
	for _, env := range log.All() {
		p.Apply(env)
		p.Apply(env) // replay below the watermark
	}

	if got := len(p.Trades()); got != 1 {
		t.Errorf("trades after duplicate apply: got %d, want 1", got)
	}
}

func TestProjector_RebuildMatchesIncremental(t *testing.T) {
	log := event.NewLog()
	o1 := orderRec(1, "mDAI", 1, "DAPP", 1)
	o2 := orderRec(2, "DAPP", 2, "mDAI", 4)
	o3 := orderRec(3, "mDAI", 3, "DAPP", 2)
	feed(log, o1, o2, o3,
		tradeFor(o2, "user2"),
		event.Cancel{ID: 3, Creator: "user1", AssetWanted: o3.AssetWanted, AmountWanted: o3.AmountWanted,
			AssetOffered: o3.AssetOffered, AmountOffered: o3.AmountOffered, Timestamp: ts(20)},
	)

	incremental := projection.NewProjector()
	for _, env := range log.All() {
		incremental.Apply(env)
	}

	rebuilt := projection.NewProjector()
	rebuilt.Rebuild(log.All())

	if !reflect.DeepEqual(incremental.OpenOrders(), rebuilt.OpenOrders()) {
		t.Error("open orders diverge between incremental and rebuild")
	}
	if !reflect.DeepEqual(incremental.Trades(), rebuilt.Trades()) {
		t.Error("trades diverge between incremental and rebuild")
	}
	if !reflect.DeepEqual(incremental.CancelledOrders(), rebuilt.CancelledOrders()) {
		t.Error("cancelled orders diverge between incremental and rebuild")
	}
	if incremental.LastSequence() != rebuilt.LastSequence() {
		t.Errorf("watermarks diverge: %d vs %d", incremental.LastSequence(), rebuilt.LastSequence())
	}
}

func TestDecorateOrder_BuySide(t *testing.T) {
	// Wants 2 DAPP for 3 mDAI: a bid at 1.5.
	o := orderRec(1, "DAPP", 2, "mDAI", 3)

	d, ok := projection.DecorateOrder(o, pair)
	if !ok {
		t.Fatal("order should match the pair")
	}
	if d.Side != projection.SideBuy {
		t.Errorf("side: got %v, want buy", d.Side)
	}
	if d.Color != projection.ColorGreen {
		t.Errorf("color: got %q, want %q", d.Color, projection.ColorGreen)
	}
	if d.FillAction != projection.SideSell {
		t.Errorf("fill action: got %v, want sell", d.FillAction)
	}
	if got := d.Price.String(); got != "1.5" {
		t.Errorf("price: got %s, want 1.5", got)
	}
	if got := d.BaseAmount.String(); got != "2" {
		t.Errorf("base amount: got %s, want 2", got)
	}
	if got := d.QuoteAmount.String(); got != "3" {
		t.Errorf("quote amount: got %s, want 3", got)
	}
}

func TestDecorateOrder_SellSide(t *testing.T) {
	// Offers 3 DAPP for 1 mDAI: an ask at 0.33333.
	o := orderRec(1, "mDAI", 1, "DAPP", 3)

	d, ok := projection.DecorateOrder(o, pair)
	if !ok {
		t.Fatal("order should match the pair")
	}
	if d.Side != projection.SideSell {
		t.Errorf("side: got %v, want sell", d.Side)
	}
	if d.Color != projection.ColorRed {
		t.Errorf("color: got %q, want %q", d.Color, projection.ColorRed)
	}
	if got := d.Price.String(); got != "0.33333" {
		t.Errorf("price: got %s, want 0.33333", got)
	}
}

func TestDecorateOrder_WrongPair(t *testing.T) {
	o := orderRec(1, "DOGE", 1, "DAPP", 1)
	if _, ok := projection.DecorateOrder(o, pair); ok {
		t.Error("order off the pair should not decorate")
	}
}

func TestDecorateTrade_Orientation(t *testing.T) {
	o := orderRec(7, "mDAI", 2, "DAPP", 1)
	d, ok := projection.DecorateTrade(tradeFor(o, "user2"), pair)
	if !ok {
		t.Fatal("trade should match the pair")
	}
	if d.Side != projection.SideSell {
		t.Errorf("side: got %v, want sell", d.Side)
	}
	if got := d.Price.String(); got != "2" {
		t.Errorf("price: got %s, want 2", got)
	}
	if d.BaseAmount.Cmp(fpmath.ToDecimal(big.NewInt(0))) <= 0 {
		t.Error("base amount should be positive")
	}
}

func TestInvertSide(t *testing.T) {
	if projection.InvertSide(projection.SideBuy) != projection.SideSell {
		t.Error("buy should invert to sell")
	}
	if projection.InvertSide(projection.SideSell) != projection.SideBuy {
		t.Error("sell should invert to buy")
	}
}
