package order_test

import (
	"SpotLedger/internal/order"
	"errors"
	"math/big"
	"testing"
	"time"
)

var t0 = time.Unix(1_700_000_000, 0)

func create(s *order.Store) order.Order {
	return s.Create("alice", "mDAI", big.NewInt(100), "DAPP", big.NewInt(200), t0)
}

func TestStore_SequentialIDs(t *testing.T) {
	s := order.NewStore()

	for want := int64(1); want <= 3; want++ {
		o := create(s)
		if o.ID != want {
			t.Errorf("order id: got %d, want %d", o.ID, want)
		}
	}
	if s.Count() != 3 {
		t.Errorf("count: got %d, want 3", s.Count())
	}
}

func TestStoreAt_ContinuesIDs(t *testing.T) {
	s := order.NewStoreAt(7)

	if o := create(s); o.ID != 7 {
		t.Errorf("first order id: got %d, want 7", o.ID)
	}
	if o := create(s); o.ID != 8 {
		t.Errorf("second order id: got %d, want 8", o.ID)
	}
	if s.Count() != 8 {
		t.Errorf("count: got %d, want 8", s.Count())
	}
}

func TestStore_IDsNotReusedAfterCancel(t *testing.T) {
	s := order.NewStore()

	o1 := create(s)
	if err := s.Finalize(o1.ID, order.StatusCancelled); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	o2 := create(s)
	if o2.ID != o1.ID+1 {
		t.Errorf("id after cancel: got %d, want %d", o2.ID, o1.ID+1)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := order.NewStore()

	if _, err := s.Get(999); !errors.Is(err, order.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := s.Status(999); !errors.Is(err, order.ErrNotFound) {
		t.Errorf("status: got %v, want ErrNotFound", err)
	}
}

func TestStore_TerminalityIsIdempotent(t *testing.T) {
	s := order.NewStore()
	o := create(s)

	if err := s.Finalize(o.ID, order.StatusCancelled); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// Neither a repeat cancel nor a fill may succeed.
	if err := s.Finalize(o.ID, order.StatusCancelled); !errors.Is(err, order.ErrAlreadyFinalized) {
		t.Errorf("second cancel: got %v, want ErrAlreadyFinalized", err)
	}
	if err := s.Finalize(o.ID, order.StatusFilled); !errors.Is(err, order.ErrAlreadyFinalized) {
		t.Errorf("fill after cancel: got %v, want ErrAlreadyFinalized", err)
	}

	st, err := s.Status(o.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != order.StatusCancelled {
		t.Errorf("status: got %s, want cancelled", st)
	}
}

func TestStore_FinalizeToOpenRejected(t *testing.T) {
	s := order.NewStore()
	o := create(s)

	if err := s.Finalize(o.ID, order.StatusOpen); err == nil {
		t.Error("finalizing to open should fail")
	}
}

func TestStore_OrderIsImmutable(t *testing.T) {
	s := order.NewStore()
	o := s.Create("alice", "mDAI", big.NewInt(100), "DAPP", big.NewInt(200), t0)

	// Mutating the returned amounts must not affect the stored record.
	o.AmountWanted.SetInt64(0)

	stored, err := s.Get(o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.AmountWanted.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("stored amount mutated: got %s, want 100", stored.AmountWanted)
	}
}
