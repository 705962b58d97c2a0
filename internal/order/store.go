package order

import (
	"fmt"
	"math/big"
	"time"
)

// Store owns all order records and their terminal-state flags. Ids are
// assigned sequentially from 1 and never reused, including after
// cancellation. Not internally synchronized; the owning engine serializes
// access.
type Store struct {
	nextID int64
	orders map[int64]Order
	status map[int64]Status
}

func NewStore() *Store {
	return NewStoreAt(1)
}

// NewStoreAt returns a store whose first order is assigned id next. A
// process resuming on top of a durable event log starts past the ids it
// already recorded so they are never reused.
func NewStoreAt(next int64) *Store {
	if next < 1 {
		next = 1
	}
	return &Store{
		nextID: next,
		orders: make(map[int64]Order),
		status: make(map[int64]Status),
	}
}

// Create stores a new open order and returns it with its assigned id.
func (s *Store) Create(creator, assetWanted string, amountWanted *big.Int, assetOffered string, amountOffered *big.Int, at time.Time) Order {
	o := Order{
		ID:            s.nextID,
		Creator:       creator,
		AssetWanted:   assetWanted,
		AmountWanted:  new(big.Int).Set(amountWanted),
		AssetOffered:  assetOffered,
		AmountOffered: new(big.Int).Set(amountOffered),
		CreatedAt:     at,
	}
	s.orders[o.ID] = o
	s.status[o.ID] = StatusOpen
	s.nextID++
	return o.clone()
}

// Get returns a copy of the order with the given id.
func (s *Store) Get(id int64) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return o.clone(), nil
}

func (o Order) clone() Order {
	o.AmountWanted = new(big.Int).Set(o.AmountWanted)
	o.AmountOffered = new(big.Int).Set(o.AmountOffered)
	return o
}

// Status returns the lifecycle state of an order.
func (s *Store) Status(id int64) (Status, error) {
	st, ok := s.status[id]
	if !ok {
		return StatusOpen, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return st, nil
}

// Finalize transitions an open order to a terminal state. A second
// transition attempt fails with ErrAlreadyFinalized, whichever terminal
// state was reached first.
func (s *Store) Finalize(id int64, to Status) error {
	st, ok := s.status[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if st != StatusOpen {
		return fmt.Errorf("%w: id %d is %s", ErrAlreadyFinalized, id, st)
	}
	if to != StatusCancelled && to != StatusFilled {
		return fmt.Errorf("order: %s is not a terminal state", to)
	}
	s.status[id] = to
	return nil
}

// Count returns how many orders have ever been created.
func (s *Store) Count() int64 {
	return s.nextID - 1
}
