package ledger

import (
	"fmt"
	"math/big"
)

// InvariantValidator checks ledger invariants.
type InvariantValidator struct {
	book *BalanceBook
}

func NewInvariantValidator(book *BalanceBook) *InvariantValidator {
	return &InvariantValidator{book: book}
}

// ValidateNonNegative verifies no custody balance is negative.
func (v *InvariantValidator) ValidateNonNegative() error {
	for key, bal := range v.book.balances {
		if bal.Sign() < 0 {
			return fmt.Errorf("account %s has negative balance %s", key, bal)
		}
	}
	return nil
}

// ValidateCustody verifies conservation: the sum of all book balances for
// an asset equals what the asset contract reports as held in custody.
func (v *InvariantValidator) ValidateCustody(asset string, held *big.Int) error {
	total := v.book.AssetTotal(asset)
	if total.Cmp(held) != 0 {
		return fmt.Errorf("custody mismatch for %s: book total %s, contract holds %s",
			asset, total, held)
	}
	return nil
}
