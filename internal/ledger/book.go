package ledger

import (
	"fmt"
	"math/big"
)

// Key identifies one custody balance.
type Key struct {
	Asset   string
	Account string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Asset, k.Account)
}

// BalanceBook maintains in-memory custody balances, keyed by
// (asset, account). Every balance is a non-negative fixed-point integer.
// The book is not internally synchronized: the owning engine serializes
// all access behind its transaction boundary.
type BalanceBook struct {
	balances map[Key]*big.Int
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[Key]*big.Int),
	}
}

// Balance returns a copy of the current balance, zero for unknown keys.
func (b *BalanceBook) Balance(asset, account string) *big.Int {
	if bal, ok := b.balances[Key{Asset: asset, Account: account}]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Credit increases a balance. Amount must be positive.
func (b *BalanceBook) Credit(asset, account string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	key := Key{Asset: asset, Account: account}
	b.balances[key] = new(big.Int).Add(b.get(key), amount)
	return nil
}

// Debit decreases a balance, failing with ErrInsufficientBalance if the
// result would be negative. On failure nothing changes.
func (b *BalanceBook) Debit(asset, account string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	key := Key{Asset: asset, Account: account}
	cur := b.get(key)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, key, cur, amount)
	}
	b.balances[key] = new(big.Int).Sub(cur, amount)
	return nil
}

// AssetTotal sums all account balances for an asset. Together with the
// external contract's custody holding this drives the conservation check.
func (b *BalanceBook) AssetTotal(asset string) *big.Int {
	total := big.NewInt(0)
	for key, bal := range b.balances {
		if key.Asset == asset {
			total.Add(total, bal)
		}
	}
	return total
}

// Snapshot returns a copy of all balances.
func (b *BalanceBook) Snapshot() map[Key]*big.Int {
	out := make(map[Key]*big.Int, len(b.balances))
	for k, v := range b.balances {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

func (b *BalanceBook) get(key Key) *big.Int {
	if bal, ok := b.balances[key]; ok {
		return bal
	}
	return big.NewInt(0)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
