package payment

import (
	"context"
	"sync"
)

type chargeKey struct{ customer, order int }

// MemoryRepository is the in-memory payment store used by the memory storage
// mode and by tests.
type MemoryRepository struct {
	mu    sync.Mutex
	lines map[chargeKey][]Line
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lines: make(map[chargeKey][]Line)}
}

// InsertLines stores all lines of one charge.
func (r *MemoryRepository) InsertLines(_ context.Context, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range lines {
		k := chargeKey{l.CustomerID, l.OrderID}
		r.lines[k] = append(r.lines[k], l)
	}
	return nil
}

// GetLines loads the lines of one order's charge.
func (r *MemoryRepository) GetLines(_ context.Context, customerID, orderID int) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.lines[chargeKey{customerID, orderID}]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return append([]Line(nil), lines...), nil
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = make(map[chargeKey][]Line)
	return nil
}
