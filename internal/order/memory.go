package order

import (
	"context"
	"sync"
)

type orderKey struct{ customer, order int }

// MemoryRepository is the in-memory order store used by the memory storage
// mode and by tests.
type MemoryRepository struct {
	mu      sync.Mutex
	orders  map[orderKey]Order
	items   map[orderKey][]Item
	history map[orderKey][]History

	seqMu sync.Mutex
	locks map[int]*sync.Mutex
	seqs  map[int]Sequence
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[orderKey]Order),
		items:   make(map[orderKey][]Item),
		history: make(map[orderKey][]History),
		locks:   make(map[int]*sync.Mutex),
		seqs:    make(map[int]Sequence),
	}
}

// GetOrder loads an order copy.
func (r *MemoryRepository) GetOrder(_ context.Context, customerID, orderID int) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderKey{customerID, orderID}]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// InsertOrder stores an order.
func (r *MemoryRepository) InsertOrder(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderKey{o.CustomerID, o.OrderID}] = *o
	return nil
}

// UpdateOrder overwrites an order.
func (r *MemoryRepository) UpdateOrder(ctx context.Context, o *Order) error {
	return r.InsertOrder(ctx, o)
}

func (r *MemoryRepository) customerLock(customerID int) *sync.Mutex {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	l, ok := r.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[customerID] = l
	}
	return l
}

// GetSequenceForUpdate takes the customer's lock; it is released by the
// paired InsertSequence/UpdateSequence, mirroring lock-for-update semantics.
func (r *MemoryRepository) GetSequenceForUpdate(_ context.Context, customerID int) (*Sequence, error) {
	r.customerLock(customerID).Lock()
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	seq, ok := r.seqs[customerID]
	if !ok {
		return nil, nil
	}
	return &seq, nil
}

// InsertSequence stores the counter and releases the customer's lock.
func (r *MemoryRepository) InsertSequence(ctx context.Context, seq *Sequence) error {
	return r.UpdateSequence(ctx, seq)
}

// UpdateSequence stores the counter and releases the customer's lock.
func (r *MemoryRepository) UpdateSequence(_ context.Context, seq *Sequence) error {
	r.seqMu.Lock()
	r.seqs[seq.CustomerID] = *seq
	r.seqMu.Unlock()
	r.customerLock(seq.CustomerID).Unlock()
	return nil
}

// InsertItem stores an order line.
func (r *MemoryRepository) InsertItem(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := orderKey{it.CustomerID, it.OrderID}
	r.items[k] = append(r.items[k], *it)
	return nil
}

// InsertHistory appends an audit row.
func (r *MemoryRepository) InsertHistory(_ context.Context, h *History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := orderKey{h.CustomerID, h.OrderID}
	r.history[k] = append(r.history[k], *h)
	return nil
}

// Items returns the stored lines for an order. Test helper.
func (r *MemoryRepository) Items(customerID, orderID int) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Item(nil), r.items[orderKey{customerID, orderID}]...)
}

// HistoryFor returns the audit rows for an order. Test helper.
func (r *MemoryRepository) HistoryFor(customerID, orderID int) []History {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]History(nil), r.history[orderKey{customerID, orderID}]...)
}

// Orders returns a copy of every stored order. Test helper.
func (r *MemoryRepository) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	r.orders = make(map[orderKey]Order)
	r.items = make(map[orderKey][]Item)
	r.history = make(map[orderKey][]History)
	r.seqs = make(map[int]Sequence)
	return nil
}
