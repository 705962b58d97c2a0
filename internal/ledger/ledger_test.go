package ledger_test

import (
	"SpotLedger/internal/ledger"
	"errors"
	"math/big"
	"testing"
)

func amt(n int64) *big.Int { return big.NewInt(n) }

// ============================================================================
// Test: BalanceBook
// ============================================================================

func TestBalanceBook_InitialBalanceZero(t *testing.T) {
	book := ledger.NewBalanceBook()

	if book.Balance("mDAI", "alice").Sign() != 0 {
		t.Errorf("initial balance should be 0, got %s", book.Balance("mDAI", "alice"))
	}
}

func TestBalanceBook_CreditDebit(t *testing.T) {
	book := ledger.NewBalanceBook()

	if err := book.Credit("mDAI", "alice", amt(1_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := book.Debit("mDAI", "alice", amt(400)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := book.Balance("mDAI", "alice"); got.Cmp(amt(600)) != 0 {
		t.Errorf("balance: got %s, want 600", got)
	}
}

func TestBalanceBook_DebitInsufficient(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(100))

	err := book.Debit("mDAI", "alice", amt(101))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if got := book.Balance("mDAI", "alice"); got.Cmp(amt(100)) != 0 {
		t.Errorf("failed debit mutated balance: got %s, want 100", got)
	}
}

func TestBalanceBook_InvalidAmounts(t *testing.T) {
	book := ledger.NewBalanceBook()

	if err := book.Credit("mDAI", "alice", amt(0)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero credit: got %v, want ErrInvalidAmount", err)
	}
	if err := book.Credit("mDAI", "alice", nil); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("nil credit: got %v, want ErrInvalidAmount", err)
	}
	if err := book.Debit("mDAI", "alice", amt(-5)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("negative debit: got %v, want ErrInvalidAmount", err)
	}
}

func TestBalanceBook_BalanceReturnsCopy(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(999))

	bal := book.Balance("mDAI", "alice")
	bal.SetInt64(0)

	if got := book.Balance("mDAI", "alice"); got.Cmp(amt(999)) != 0 {
		t.Error("mutating a returned balance must not affect the book")
	}
}

func TestBalanceBook_AssetTotal(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(300))
	book.Credit("mDAI", "bob", amt(200))
	book.Credit("DAPP", "alice", amt(999))

	if got := book.AssetTotal("mDAI"); got.Cmp(amt(500)) != 0 {
		t.Errorf("mDAI total: got %s, want 500", got)
	}
	if got := book.AssetTotal("DAPP"); got.Cmp(amt(999)) != 0 {
		t.Errorf("DAPP total: got %s, want 999", got)
	}
}

func TestBalanceBook_Snapshot(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(50))

	snap := book.Snapshot()
	for k := range snap {
		snap[k].SetInt64(0)
	}

	if got := book.Balance("mDAI", "alice"); got.Cmp(amt(50)) != 0 {
		t.Error("book should not be affected by snapshot mutation")
	}
}

// ============================================================================
// Test: Batch
// ============================================================================

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := ledger.NewBatch()
	if err := batch.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	batch := ledger.NewBatch(
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "bob", Amount: amt(0)},
	)
	if err := batch.Validate(); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	batch := ledger.NewBatch(
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "alice", Amount: amt(10)},
	)
	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestApplyBatch_MovesBalances(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(1_000))

	batch := ledger.NewBatch(
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "bob", Amount: amt(700)},
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "fees", Amount: amt(100)},
	)
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := book.Balance("mDAI", "alice"); got.Cmp(amt(200)) != 0 {
		t.Errorf("alice: got %s, want 200", got)
	}
	if got := book.Balance("mDAI", "bob"); got.Cmp(amt(700)) != 0 {
		t.Errorf("bob: got %s, want 700", got)
	}
	if got := book.Balance("mDAI", "fees"); got.Cmp(amt(100)) != 0 {
		t.Errorf("fees: got %s, want 100", got)
	}
}

func TestApplyBatch_AllOrNothing(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(500))
	book.Credit("DAPP", "bob", amt(50))

	before := book.Snapshot()

	// Second leg exceeds bob's DAPP balance; nothing may move.
	batch := ledger.NewBatch(
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "bob", Amount: amt(100)},
		ledger.Transfer{Asset: "DAPP", From: "bob", To: "alice", Amount: amt(51)},
	)
	err := book.ApplyBatch(batch)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	after := book.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("balance set changed: %d keys before, %d after", len(before), len(after))
	}
	for k, v := range before {
		if after[k].Cmp(v) != 0 {
			t.Errorf("balance %s changed: before %s, after %s", k, v, after[k])
		}
	}
}

func TestApplyBatch_ConservesPerAsset(t *testing.T) {
	book := ledger.NewBalanceBook()
	book.Credit("mDAI", "alice", amt(1_000))
	book.Credit("DAPP", "bob", amt(1_000))

	batch := ledger.NewBatch(
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "bob", Amount: amt(400)},
		ledger.Transfer{Asset: "mDAI", From: "alice", To: "fees", Amount: amt(40)},
		ledger.Transfer{Asset: "DAPP", From: "bob", To: "alice", Amount: amt(250)},
	)
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := book.AssetTotal("mDAI"); got.Cmp(amt(1_000)) != 0 {
		t.Errorf("mDAI total changed: got %s, want 1000", got)
	}
	if got := book.AssetTotal("DAPP"); got.Cmp(amt(1_000)) != 0 {
		t.Errorf("DAPP total changed: got %s, want 1000", got)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_Custody(t *testing.T) {
	book := ledger.NewBalanceBook()
	v := ledger.NewInvariantValidator(book)

	if err := v.ValidateCustody("mDAI", amt(0)); err != nil {
		t.Errorf("empty book vs zero custody: %v", err)
	}

	book.Credit("mDAI", "alice", amt(100))
	book.Credit("mDAI", "bob", amt(25))

	if err := v.ValidateCustody("mDAI", amt(125)); err != nil {
		t.Errorf("matching custody: %v", err)
	}
	if err := v.ValidateCustody("mDAI", amt(124)); err == nil {
		t.Error("mismatched custody should fail")
	}
}

func TestInvariantValidator_NonNegative(t *testing.T) {
	book := ledger.NewBalanceBook()
	v := ledger.NewInvariantValidator(book)

	book.Credit("mDAI", "alice", amt(10))
	if err := v.ValidateNonNegative(); err != nil {
		t.Errorf("non-negative book should pass: %v", err)
	}
}
