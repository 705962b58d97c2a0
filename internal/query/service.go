// Package query serves the read models. A Service keeps one projector
// synced against the event log and derives order book, trade tape,
// account views and candles on demand. All responses carry AsOfSequence,
// the log watermark the answer was computed at.
package query

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/event"
	"SpotLedger/internal/marketdata"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/projection"
)

type Service struct {
	mu        sync.Mutex
	log       *event.Log
	projector *projection.Projector
	metrics   *observability.Metrics
}

func NewService(log *event.Log, metrics *observability.Metrics) *Service {
	return &Service{
		log:       log,
		projector: projection.NewProjector(),
		metrics:   metrics,
	}
}

// sync folds any envelopes appended since the last query, then returns
// the watermark. Incremental on purpose: queries touch only the log
// suffix, and the result is identical to a full rebuild.
func (s *Service) sync() int64 {
	for _, env := range s.log.Since(s.projector.LastSequence()) {
		s.projector.Apply(env)
	}
	return s.projector.LastSequence()
}

func (s *Service) observe(endpoint string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

type OrderBookResponse struct {
	marketdata.OrderBook
	AsOfSequence int64 `json:"as_of_sequence"`
}

func (s *Service) OrderBook(pair projection.Pair) OrderBookResponse {
	defer s.observe("orderbook", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	return OrderBookResponse{
		OrderBook:    marketdata.BuildOrderBook(s.projector.OpenOrders(), pair),
		AsOfSequence: seq,
	}
}

type TradeTapeResponse struct {
	Pair         projection.Pair             `json:"pair"`
	Trades       []projection.DecoratedTrade `json:"trades"`
	AsOfSequence int64                       `json:"as_of_sequence"`
}

func (s *Service) TradeTape(pair projection.Pair) TradeTapeResponse {
	defer s.observe("trades", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	return TradeTapeResponse{
		Pair:         pair,
		Trades:       marketdata.BuildTradeTape(s.projector.Trades(), pair),
		AsOfSequence: seq,
	}
}

type AccountOrdersResponse struct {
	Account      string                      `json:"account"`
	Pair         projection.Pair             `json:"pair"`
	Orders       []projection.DecoratedOrder `json:"orders"`
	AsOfSequence int64                       `json:"as_of_sequence"`
}

func (s *Service) AccountOrders(pair projection.Pair, account string) AccountOrdersResponse {
	defer s.observe("account_orders", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	return AccountOrdersResponse{
		Account:      account,
		Pair:         pair,
		Orders:       marketdata.AccountOpenOrders(s.projector.OpenOrders(), pair, account),
		AsOfSequence: seq,
	}
}

type AccountTradesResponse struct {
	Account      string                    `json:"account"`
	Pair         projection.Pair           `json:"pair"`
	Trades       []marketdata.AccountTrade `json:"trades"`
	AsOfSequence int64                     `json:"as_of_sequence"`
}

func (s *Service) AccountTrades(pair projection.Pair, account string) AccountTradesResponse {
	defer s.observe("account_trades", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	return AccountTradesResponse{
		Account:      account,
		Pair:         pair,
		Trades:       marketdata.AccountTrades(s.projector.Trades(), pair, account),
		AsOfSequence: seq,
	}
}

type CandlesResponse struct {
	Pair         projection.Pair     `json:"pair"`
	Candles      []marketdata.Candle `json:"candles"`
	AsOfSequence int64               `json:"as_of_sequence"`
}

func (s *Service) Candles(pair projection.Pair) CandlesResponse {
	defer s.observe("candles", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	return CandlesResponse{
		Pair:         pair,
		Candles:      marketdata.BuildCandles(s.projector.Trades(), pair),
		AsOfSequence: seq,
	}
}

type LastPriceResponse struct {
	Pair         projection.Pair  `json:"pair"`
	Price        decimal.Decimal  `json:"price"`
	Trend        projection.Trend `json:"trend"`
	AsOfSequence int64            `json:"as_of_sequence"`
}

func (s *Service) LastPrice(pair projection.Pair) LastPriceResponse {
	defer s.observe("last_price", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sync()
	price, trend := marketdata.LastPrice(s.projector.Trades(), pair)
	return LastPriceResponse{Pair: pair, Price: price, Trend: trend, AsOfSequence: seq}
}

// Rebuild discards the cached projector and refolds the whole log. The
// next query after Rebuild answers identically to one served
// incrementally; this exists for operational resets.
func (s *Service) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projector.Rebuild(s.log.All())
}
