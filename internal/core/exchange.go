package core

import (
	"SpotLedger/internal/asset"
	"SpotLedger/internal/event"
	"SpotLedger/internal/ledger"
	fpmath "SpotLedger/internal/math"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/order"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAssetTransferRejected wraps a failure reported by the external asset
// contract during deposit or withdrawal. Ledger state is unchanged when it
// is returned.
var ErrAssetTransferRejected = errors.New("core: asset transfer rejected")

// ErrUnknownAsset means no contract is registered for the asset symbol.
var ErrUnknownAsset = errors.New("core: unknown asset")

// ErrSameAsset means an order wants and offers the same asset. Such an
// order belongs to no trading pair, so it is rejected at creation.
var ErrSameAsset = errors.New("core: order wants and offers the same asset")

// Config fixes the exchange parameters at construction.
type Config struct {
	// CustodyAccount is the exchange's own identity on asset contracts;
	// deposited funds are held under it.
	CustodyAccount string

	// FeeAccount receives FeePercent of every fill's wanted-asset amount.
	FeeAccount string

	// FeePercent is the fill fee, charged to the filler, as a whole
	// percentage of the amount wanted.
	FeePercent int64

	// Clock supplies server-assigned timestamps. Defaults to time.Now.
	Clock func() time.Time

	// FirstOrderID is the id assigned to the first order created. Zero
	// means 1; a process resuming on top of a durable event log passes
	// the highest recorded order id plus one.
	FirstOrderID int64
}

// Exchange is the custodial ledger and order-lifecycle engine. Every
// operation runs as one atomic transaction behind a single mutex: balances
// mutate, the order registry updates, and the event record is appended
// together, or nothing happens at all.
type Exchange struct {
	mu sync.Mutex

	cfg       Config
	book      *ledger.BalanceBook
	orders    *order.Store
	contracts map[string]asset.Contract
	validator *ledger.InvariantValidator
	log       *event.Log

	logger      zerolog.Logger
	metrics     *observability.Metrics
	droppedSeen int64
}

func NewExchange(cfg Config, log *event.Log, logger zerolog.Logger, metrics *observability.Metrics) *Exchange {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	book := ledger.NewBalanceBook()
	return &Exchange{
		cfg:       cfg,
		book:      book,
		orders:    order.NewStoreAt(cfg.FirstOrderID),
		contracts: make(map[string]asset.Contract),
		validator: ledger.NewInvariantValidator(book),
		log:       log,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterAsset makes an asset tradable. Symbols are unique.
func (e *Exchange) RegisterAsset(c asset.Contract) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym := c.Symbol()
	if _, ok := e.contracts[sym]; ok {
		return fmt.Errorf("core: asset %s already registered", sym)
	}
	e.contracts[sym] = c
	return nil
}

// Deposit moves amount of asset from the account's external wallet into
// custody. The external contract must have been approved beforehand; its
// rejection propagates with no ledger change.
func (e *Exchange) Deposit(assetSym, account string, amount *big.Int) error {
	return e.run("deposit", func() error {
		c, err := e.contract(assetSym)
		if err != nil {
			return err
		}

		if err := c.TransferFrom(e.cfg.CustodyAccount, account, e.cfg.CustodyAccount, amount); err != nil {
			return fmt.Errorf("%w: %v", ErrAssetTransferRejected, err)
		}
		if err := e.book.Credit(assetSym, account, amount); err != nil {
			// The external transfer succeeded but the amount was invalid;
			// TransferFrom validates amounts first, so this is unreachable
			// for the same input. Guard anyway.
			return err
		}

		e.log.Append(event.Deposit{
			Asset:   assetSym,
			Account: account,
			Amount:  new(big.Int).Set(amount),
			Balance: e.book.Balance(assetSym, account),
		}, e.cfg.Clock())

		e.logger.Info().
			Str("asset", assetSym).
			Str("account", account).
			Str("amount", fpmath.FormatAmount(amount)).
			Msg("deposit")
		return nil
	})
}

// Withdraw moves amount of asset from custody back to the account's
// external wallet. Fails with ErrInsufficientBalance if custody holds
// less; an external transfer failure rolls the debit back.
func (e *Exchange) Withdraw(assetSym, account string, amount *big.Int) error {
	return e.run("withdraw", func() error {
		c, err := e.contract(assetSym)
		if err != nil {
			return err
		}

		if err := e.book.Debit(assetSym, account, amount); err != nil {
			return err
		}
		if err := c.Transfer(e.cfg.CustodyAccount, account, amount); err != nil {
			// Undo the debit so the failed operation has no observable effect.
			if cerr := e.book.Credit(assetSym, account, amount); cerr != nil {
				panic(fmt.Sprintf("FATAL: withdraw rollback failed: %v", cerr))
			}
			return fmt.Errorf("%w: %v", ErrAssetTransferRejected, err)
		}

		e.log.Append(event.Withdraw{
			Asset:   assetSym,
			Account: account,
			Amount:  new(big.Int).Set(amount),
			Balance: e.book.Balance(assetSym, account),
		}, e.cfg.Clock())

		e.logger.Info().
			Str("asset", assetSym).
			Str("account", account).
			Str("amount", fpmath.FormatAmount(amount)).
			Msg("withdraw")
		return nil
	})
}

// MakeOrder posts a resting order. The offered asset must already be in
// custody for at least amountOffered; no funds move until fill time.
func (e *Exchange) MakeOrder(creator, assetWanted string, amountWanted *big.Int, assetOffered string, amountOffered *big.Int) (order.Order, error) {
	var created order.Order
	err := e.run("make_order", func() error {
		if _, err := e.contract(assetWanted); err != nil {
			return err
		}
		if _, err := e.contract(assetOffered); err != nil {
			return err
		}
		if assetWanted == assetOffered {
			return fmt.Errorf("%w: %s", ErrSameAsset, assetWanted)
		}
		if amountWanted == nil || amountWanted.Sign() <= 0 || amountOffered == nil || amountOffered.Sign() <= 0 {
			return ledger.ErrInvalidAmount
		}

		if e.book.Balance(assetOffered, creator).Cmp(amountOffered) < 0 {
			return fmt.Errorf("%w: creator %s offers %s %s without custody",
				ledger.ErrInsufficientBalance, creator, fpmath.FormatAmount(amountOffered), assetOffered)
		}

		now := e.cfg.Clock()
		created = e.orders.Create(creator, assetWanted, amountWanted, assetOffered, amountOffered, now)

		e.log.Append(event.Order{
			ID:            created.ID,
			Creator:       created.Creator,
			AssetWanted:   created.AssetWanted,
			AmountWanted:  new(big.Int).Set(created.AmountWanted),
			AssetOffered:  created.AssetOffered,
			AmountOffered: new(big.Int).Set(created.AmountOffered),
			Timestamp:     created.CreatedAt,
		}, now)

		e.logger.Info().
			Int64("order_id", created.ID).
			Str("creator", creator).
			Str("wanted", assetWanted).
			Str("offered", assetOffered).
			Msg("order created")
		return nil
	})
	return created, err
}

// CancelOrder marks an open order cancelled. Only the creator may cancel;
// cancellation never moves balances.
func (e *Exchange) CancelOrder(id int64, caller string) error {
	return e.run("cancel_order", func() error {
		o, err := e.orders.Get(id)
		if err != nil {
			return err
		}
		if o.Creator != caller {
			return fmt.Errorf("%w: order %d belongs to %s", order.ErrUnauthorized, id, o.Creator)
		}
		if err := e.orders.Finalize(id, order.StatusCancelled); err != nil {
			return err
		}

		now := e.cfg.Clock()
		e.log.Append(event.Cancel{
			ID:            o.ID,
			Creator:       o.Creator,
			AssetWanted:   o.AssetWanted,
			AmountWanted:  new(big.Int).Set(o.AmountWanted),
			AssetOffered:  o.AssetOffered,
			AmountOffered: new(big.Int).Set(o.AmountOffered),
			Timestamp:     now,
		}, now)

		e.logger.Info().Int64("order_id", id).Str("caller", caller).Msg("order cancelled")
		return nil
	})
}

// FillOrder executes an open order as filler. The filler pays
// amountWanted plus the fee in the wanted asset; the creator's offered
// amount moves to the filler. Settlement is all-or-nothing. The creator
// cannot act as filler: the settlement legs would be self-transfers,
// which the ledger's batch validation forbids.
func (e *Exchange) FillOrder(id int64, filler string) error {
	return e.run("fill_order", func() error {
		o, err := e.orders.Get(id)
		if err != nil {
			return err
		}
		st, err := e.orders.Status(id)
		if err != nil {
			return err
		}
		if st != order.StatusOpen {
			return fmt.Errorf("%w: order %d is %s", order.ErrAlreadyFinalized, id, st)
		}
		if filler == o.Creator {
			return fmt.Errorf("%w: order %d cannot be filled by its creator", order.ErrUnauthorized, id)
		}

		fee := fpmath.PercentFloor(o.AmountWanted, e.cfg.FeePercent)

		transfers := []ledger.Transfer{
			{Asset: o.AssetWanted, From: filler, To: o.Creator, Amount: o.AmountWanted},
		}
		if fee.Sign() > 0 {
			transfers = append(transfers, ledger.Transfer{
				Asset: o.AssetWanted, From: filler, To: e.cfg.FeeAccount, Amount: fee,
			})
		}
		transfers = append(transfers, ledger.Transfer{
			Asset: o.AssetOffered, From: o.Creator, To: filler, Amount: o.AmountOffered,
		})

		if err := e.book.ApplyBatch(ledger.NewBatch(transfers...)); err != nil {
			return err
		}
		if err := e.orders.Finalize(id, order.StatusFilled); err != nil {
			// Status was checked open above, inside the same critical section.
			panic(fmt.Sprintf("FATAL: fill finalize failed after settlement: %v", err))
		}

		now := e.cfg.Clock()
		e.log.Append(event.Trade{
			OrderID:       o.ID,
			Filler:        filler,
			Creator:       o.Creator,
			AssetWanted:   o.AssetWanted,
			AmountWanted:  new(big.Int).Set(o.AmountWanted),
			AssetOffered:  o.AssetOffered,
			AmountOffered: new(big.Int).Set(o.AmountOffered),
			Timestamp:     now,
		}, now)

		e.logger.Info().
			Int64("order_id", id).
			Str("filler", filler).
			Str("creator", o.Creator).
			Str("fee", fpmath.FormatAmount(fee)).
			Msg("order filled")
		return nil
	})
}

// BalanceOf returns the custody balance for (asset, account).
func (e *Exchange) BalanceOf(assetSym, account string) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Balance(assetSym, account)
}

// OrderCount returns how many orders have ever been created.
func (e *Exchange) OrderCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.Count()
}

// CustodyAccount returns the account asset contracts hold custody under.
func (e *Exchange) CustodyAccount() string { return e.cfg.CustodyAccount }

// FeeAccount returns the configured fee account.
func (e *Exchange) FeeAccount() string { return e.cfg.FeeAccount }

// FeePercent returns the configured fee percentage.
func (e *Exchange) FeePercent() int64 { return e.cfg.FeePercent }

// run executes op inside the serialization boundary, records metrics, and
// post-checks invariants. An invariant violation after a committed
// operation means the ledger is corrupt; that is unrecoverable, so it
// panics like any other broken internal assumption.
func (e *Exchange) run(op string, fn func() error) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	err := fn()

	if e.metrics != nil {
		if err != nil {
			e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
		} else {
			e.metrics.OpsApplied.WithLabelValues(op).Inc()
			e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			e.metrics.EventLogSequence.Set(float64(e.log.LastSequence()))
		}
		if dropped := e.log.Dropped(); dropped > e.droppedSeen {
			e.metrics.EventWatchDrops.Add(float64(dropped - e.droppedSeen))
			e.droppedSeen = dropped
		}
	}

	if err == nil {
		if verr := e.checkInvariants(); verr != nil {
			panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", op, verr))
		}
	}
	return err
}

func (e *Exchange) checkInvariants() error {
	if err := e.validator.ValidateNonNegative(); err != nil {
		return err
	}
	for sym, c := range e.contracts {
		if err := e.validator.ValidateCustody(sym, c.BalanceOf(e.cfg.CustodyAccount)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exchange) contract(sym string) (asset.Contract, error) {
	c, ok := e.contracts[sym]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, sym)
	}
	return c, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, order.ErrNotFound):
		return "not_found"
	case errors.Is(err, order.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, order.ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrAssetTransferRejected):
		return "asset_transfer_rejected"
	case errors.Is(err, ErrUnknownAsset):
		return "unknown_asset"
	case errors.Is(err, ErrSameAsset):
		return "same_asset"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}
