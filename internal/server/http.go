// Package server exposes the write operations and read models over
// HTTP/JSON. Amounts cross the wire as decimal strings and are parsed
// into fixed-point units at the boundary.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"SpotLedger/internal/core"
	"SpotLedger/internal/ledger"
	fpmath "SpotLedger/internal/math"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/order"
	"SpotLedger/internal/projection"
	"SpotLedger/internal/query"
)

type Server struct {
	exchange *core.Exchange
	queries  *query.Service
	health   *observability.HealthChecker
	logger   zerolog.Logger
}

func New(exchange *core.Exchange, queries *query.Service, health *observability.HealthChecker, logger zerolog.Logger) *Server {
	return &Server{
		exchange: exchange,
		queries:  queries,
		health:   health,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	r.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))

	api := r.Group("/api")

	api.POST("/deposits", s.handleDeposit)
	api.POST("/withdrawals", s.handleWithdraw)

	orders := api.Group("/orders")
	orders.POST("", s.handleMakeOrder)
	orders.POST("/:id/cancel", s.handleCancelOrder)
	orders.POST("/:id/fill", s.handleFillOrder)

	api.GET("/balances/:asset/:account", s.handleBalance)

	markets := api.Group("/markets/:base/:quote")
	markets.GET("/orderbook", s.handleOrderBook)
	markets.GET("/trades", s.handleTradeTape)
	markets.GET("/candles", s.handleCandles)
	markets.GET("/last-price", s.handleLastPrice)
	markets.GET("/accounts/:account/orders", s.handleAccountOrders)
	markets.GET("/accounts/:account/trades", s.handleAccountTrades)

	return r
}

type transferRequest struct {
	Asset   string `json:"asset" binding:"required"`
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

func (s *Server) handleDeposit(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := fpmath.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := s.exchange.Deposit(req.Asset, req.Account, amount); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":   req.Asset,
		"account": req.Account,
		"balance": fpmath.FormatAmount(s.exchange.BalanceOf(req.Asset, req.Account)),
	})
}

func (s *Server) handleWithdraw(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := fpmath.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := s.exchange.Withdraw(req.Asset, req.Account, amount); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":   req.Asset,
		"account": req.Account,
		"balance": fpmath.FormatAmount(s.exchange.BalanceOf(req.Asset, req.Account)),
	})
}

type makeOrderRequest struct {
	Creator       string `json:"creator" binding:"required"`
	AssetWanted   string `json:"asset_wanted" binding:"required"`
	AmountWanted  string `json:"amount_wanted" binding:"required"`
	AssetOffered  string `json:"asset_offered" binding:"required"`
	AmountOffered string `json:"amount_offered" binding:"required"`
}

func (s *Server) handleMakeOrder(c *gin.Context) {
	var req makeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amountWanted, err := fpmath.ParseAmount(req.AmountWanted)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "amount_wanted: " + err.Error()})
		return
	}
	amountOffered, err := fpmath.ParseAmount(req.AmountOffered)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "amount_offered: " + err.Error()})
		return
	}

	o, err := s.exchange.MakeOrder(req.Creator, req.AssetWanted, amountWanted, req.AssetOffered, amountOffered)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             o.ID,
		"creator":        o.Creator,
		"asset_wanted":   o.AssetWanted,
		"amount_wanted":  fpmath.FormatAmount(o.AmountWanted),
		"asset_offered":  o.AssetOffered,
		"amount_offered": fpmath.FormatAmount(o.AmountOffered),
		"timestamp":      o.CreatedAt,
	})
}

type cancelRequest struct {
	Account string `json:"account" binding:"required"`
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.exchange.CancelOrder(id, req.Account); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "cancelled"})
}

type fillRequest struct {
	Filler string `json:"filler" binding:"required"`
}

func (s *Server) handleFillOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.exchange.FillOrder(id, req.Filler); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "filled"})
}

func (s *Server) handleBalance(c *gin.Context) {
	asset := c.Param("asset")
	account := c.Param("account")
	c.JSON(http.StatusOK, gin.H{
		"asset":   asset,
		"account": account,
		"balance": fpmath.FormatAmount(s.exchange.BalanceOf(asset, account)),
	})
}

func (s *Server) pair(c *gin.Context) projection.Pair {
	return projection.Pair{Base: c.Param("base"), Quote: c.Param("quote")}
}

func (s *Server) handleOrderBook(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.OrderBook(s.pair(c)))
}

func (s *Server) handleTradeTape(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.TradeTape(s.pair(c)))
}

func (s *Server) handleCandles(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.Candles(s.pair(c)))
}

func (s *Server) handleLastPrice(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.LastPrice(s.pair(c)))
}

func (s *Server) handleAccountOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.AccountOrders(s.pair(c), c.Param("account")))
}

func (s *Server) handleAccountTrades(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.AccountTrades(s.pair(c), c.Param("account")))
}

func (s *Server) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, core.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, order.ErrAlreadyFinalized):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, core.ErrSameAsset),
		errors.Is(err, core.ErrAssetTransferRejected):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("unhandled operation error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
