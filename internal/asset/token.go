package asset

import (
	"fmt"
	"math/big"
	"sync"
)

// Token is an in-memory fungible asset with 18 fractional decimals.
// The full supply is assigned to the issuer account at construction.
// It implements Contract and is used for tests, demos, and local runs;
// production deployments point the ledger at a real asset backend.
type Token struct {
	mu sync.Mutex

	name        string
	symbol      string
	decimals    uint8
	totalSupply *big.Int

	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// NewToken mints totalSupply (in whole units, scaled by 10^18) to issuer.
func NewToken(name, symbol string, totalUnits int64, issuer string) *Token {
	supply := new(big.Int).Mul(big.NewInt(totalUnits), Scale())

	t := &Token{
		name:        name,
		symbol:      symbol,
		decimals:    18,
		totalSupply: supply,
		balances:    make(map[string]*big.Int),
		allowances:  make(map[string]map[string]*big.Int),
	}
	t.balances[issuer] = new(big.Int).Set(supply)
	return t
}

// Scale returns 10^18, the fixed-point scale shared by all assets.
func Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func (t *Token) Name() string          { return t.name }
func (t *Token) Symbol() string        { return t.symbol }
func (t *Token) Decimals() uint8       { return t.decimals }
func (t *Token) TotalSupply() *big.Int { return new(big.Int).Set(t.totalSupply) }

func (t *Token) BalanceOf(account string) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(account))
}

func (t *Token) Allowance(owner, spender string) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowance(owner, spender))
}

func (t *Token) Transfer(from, to string, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *Token) Approve(owner, spender string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if owner == "" || spender == "" {
		return ErrInvalidAccount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[string]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom spends spender's allowance on owner's funds. The allowance
// is reduced by the transferred amount before balances move.
func (t *Token) TransferFrom(spender, from, to string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spender %s allowed %s, need %s",
			ErrInsufficientAllowance, spender, allowed, amount)
	}

	if err := t.move(from, to, amount); err != nil {
		return err
	}

	t.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

// move assumes the lock is held.
func (t *Token) move(from, to string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if from == "" || to == "" {
		return ErrInvalidAccount
	}

	fromBal := t.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s holds %s, need %s",
			ErrInsufficientBalance, from, fromBal, amount)
	}

	t.balances[from] = new(big.Int).Sub(fromBal, amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *Token) balance(account string) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *Token) allowance(owner, spender string) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
