package query_test

import (
	"reflect"
	"testing"
	"time"

	"SpotLedger/internal/event"
	fpmath "SpotLedger/internal/math"
	"SpotLedger/internal/projection"
	"SpotLedger/internal/query"
)

var pair = projection.Pair{Base: "DAPP", Quote: "mDAI"}

func seedLog(t *testing.T) *event.Log {
	t.Helper()
	log := event.NewLog()
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	o1 := event.Order{ID: 1, Creator: "alice", AssetWanted: "mDAI", AmountWanted: fpmath.Units(2),
		AssetOffered: "DAPP", AmountOffered: fpmath.Units(1), Timestamp: at}
	o2 := event.Order{ID: 2, Creator: "bob", AssetWanted: "DAPP", AmountWanted: fpmath.Units(1),
		AssetOffered: "mDAI", AmountOffered: fpmath.Units(1), Timestamp: at.Add(time.Minute)}
	o3 := event.Order{ID: 3, Creator: "alice", AssetWanted: "mDAI", AmountWanted: fpmath.Units(5),
		AssetOffered: "DAPP", AmountOffered: fpmath.Units(1), Timestamp: at.Add(2 * time.Minute)}

	log.Append(o1, at)
	log.Append(o2, at.Add(time.Minute))
	log.Append(o3, at.Add(2*time.Minute))
	log.Append(event.Trade{OrderID: 1, Filler: "bob", Creator: "alice",
		AssetWanted: o1.AssetWanted, AmountWanted: o1.AmountWanted,
		AssetOffered: o1.AssetOffered, AmountOffered: o1.AmountOffered,
		Timestamp: at.Add(3 * time.Minute)}, at.Add(3*time.Minute))
	log.Append(event.Cancel{ID: 3, Creator: "alice",
		AssetWanted: o3.AssetWanted, AmountWanted: o3.AmountWanted,
		AssetOffered: o3.AssetOffered, AmountOffered: o3.AmountOffered,
		Timestamp: at.Add(4 * time.Minute)}, at.Add(4*time.Minute))
	return log
}

func TestService_OrderBookTracksLog(t *testing.T) {
	log := seedLog(t)
	svc := query.NewService(log, nil)

	book := svc.OrderBook(pair)
	if book.AsOfSequence != 4 {
		t.Errorf("as-of sequence: got %d, want 4", book.AsOfSequence)
	}
	// Order 1 filled, order 3 cancelled; only bob's bid remains.
	if len(book.Buys) != 1 || book.Buys[0].ID != 2 {
		t.Fatalf("buys: got %v, want just order 2", book.Buys)
	}
	if len(book.Sells) != 0 {
		t.Errorf("sells: got %d, want 0", len(book.Sells))
	}

	// A later append is visible on the next query with no explicit sync.
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	log.Append(event.Order{ID: 4, Creator: "carol", AssetWanted: "mDAI", AmountWanted: fpmath.Units(1),
		AssetOffered: "DAPP", AmountOffered: fpmath.Units(1), Timestamp: at}, at)

	book = svc.OrderBook(pair)
	if book.AsOfSequence != 5 {
		t.Errorf("as-of sequence after append: got %d, want 5", book.AsOfSequence)
	}
	if len(book.Sells) != 1 || book.Sells[0].ID != 4 {
		t.Errorf("sells after append: got %v, want just order 4", book.Sells)
	}
}

func TestService_IncrementalMatchesRebuild(t *testing.T) {
	log := seedLog(t)

	incremental := query.NewService(log, nil)
	incremental.OrderBook(pair) // force a partial sync before more events arrive

	at := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)
	log.Append(event.Order{ID: 4, Creator: "carol", AssetWanted: "DAPP", AmountWanted: fpmath.Units(2),
		AssetOffered: "mDAI", AmountOffered: fpmath.Units(3), Timestamp: at}, at)

	fresh := query.NewService(log, nil)

	if !reflect.DeepEqual(incremental.OrderBook(pair), fresh.OrderBook(pair)) {
		t.Error("order book diverges between incremental sync and fresh fold")
	}
	if !reflect.DeepEqual(incremental.TradeTape(pair), fresh.TradeTape(pair)) {
		t.Error("trade tape diverges between incremental sync and fresh fold")
	}
	if !reflect.DeepEqual(incremental.Candles(pair), fresh.Candles(pair)) {
		t.Error("candles diverge between incremental sync and fresh fold")
	}

	// Rebuild after the fact answers the same too.
	incremental.Rebuild()
	if !reflect.DeepEqual(incremental.OrderBook(pair), fresh.OrderBook(pair)) {
		t.Error("order book diverges after rebuild")
	}
}

func TestService_AccountViews(t *testing.T) {
	svc := query.NewService(seedLog(t), nil)

	orders := svc.AccountOrders(pair, "bob")
	if len(orders.Orders) != 1 || orders.Orders[0].ID != 2 {
		t.Errorf("bob's open orders: got %v, want just order 2", orders.Orders)
	}

	trades := svc.AccountTrades(pair, "bob")
	if len(trades.Trades) != 1 {
		t.Fatalf("bob's trades: got %d, want 1", len(trades.Trades))
	}
	// Bob filled alice's sell, so his side of it is a buy.
	if trades.Trades[0].Side != projection.SideBuy || trades.Trades[0].Sign != "+" {
		t.Errorf("bob's viewpoint: got %v/%q, want buy/+", trades.Trades[0].Side, trades.Trades[0].Sign)
	}
}

func TestService_EmptyPair(t *testing.T) {
	svc := query.NewService(seedLog(t), nil)
	ghost := projection.Pair{Base: "FOO", Quote: "BAR"}

	if book := svc.OrderBook(ghost); len(book.Buys)+len(book.Sells) != 0 {
		t.Error("unknown pair should yield an empty book")
	}
	if tape := svc.TradeTape(ghost); len(tape.Trades) != 0 {
		t.Error("unknown pair should yield an empty tape")
	}
	if lp := svc.LastPrice(ghost); !lp.Price.IsZero() || lp.Trend != projection.TrendUp {
		t.Errorf("unknown pair last price: got %s/%v, want 0/up", lp.Price, lp.Trend)
	}
}
