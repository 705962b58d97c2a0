package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Transfer moves Amount of Asset between two custody accounts.
type Transfer struct {
	Asset  string
	From   string
	To     string
	Amount *big.Int
}

// Batch groups the transfers of one settlement so they apply all-or-nothing.
type Batch struct {
	BatchID   uuid.UUID
	Transfers []Transfer
}

func NewBatch(transfers ...Transfer) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		Transfers: transfers,
	}
}

// Validate ensures the batch is well-formed: positive amounts and no
// self-transfers. Amounts conserve by construction — every transfer debits
// exactly what it credits.
func (b *Batch) Validate() error {
	if len(b.Transfers) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}
	for i, tr := range b.Transfers {
		if tr.Amount == nil || tr.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: batch %s transfer %d", ErrInvalidAmount, b.BatchID, i)
		}
		if tr.From == tr.To {
			return fmt.Errorf("batch %s transfer %d is a self-transfer on %s", b.BatchID, i, tr.From)
		}
	}
	return nil
}

// ApplyBatch settles a batch atomically. The net delta of every touched
// balance is checked for non-negativity before any balance mutates; if any
// debit would fail, the book is left byte-identical to its pre-call state
// and ErrInsufficientBalance is returned.
func (b *BalanceBook) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	deltas := make(map[Key]*big.Int)
	for _, tr := range batch.Transfers {
		fromKey := Key{Asset: tr.Asset, Account: tr.From}
		toKey := Key{Asset: tr.Asset, Account: tr.To}
		delta(deltas, fromKey).Sub(delta(deltas, fromKey), tr.Amount)
		delta(deltas, toKey).Add(delta(deltas, toKey), tr.Amount)
	}

	for key, d := range deltas {
		if new(big.Int).Add(b.get(key), d).Sign() < 0 {
			return fmt.Errorf("%w: batch %s would drive %s negative",
				ErrInsufficientBalance, batch.BatchID, key)
		}
	}

	for key, d := range deltas {
		b.balances[key] = new(big.Int).Add(b.get(key), d)
	}
	return nil
}

func delta(deltas map[Key]*big.Int, key Key) *big.Int {
	if d, ok := deltas[key]; ok {
		return d
	}
	d := big.NewInt(0)
	deltas[key] = d
	return d
}
