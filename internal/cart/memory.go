package cart

import (
	"context"
	"sync"
)

type itemKey struct{ customer, seller, product int }

// MemoryRepository is the in-memory cart store used by the memory storage
// mode and by tests.
type MemoryRepository struct {
	mu    sync.Mutex
	carts map[int]Cart
	items map[itemKey]Item
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[int]Cart), items: make(map[itemKey]Item)}
}

// GetCart loads a cart copy.
func (r *MemoryRepository) GetCart(_ context.Context, customerID int) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[customerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return &c, nil
}

// InsertCart stores a cart head row.
func (r *MemoryRepository) InsertCart(_ context.Context, c *Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[c.CustomerID] = *c
	return nil
}

// UpdateCart overwrites a cart head row.
func (r *MemoryRepository) UpdateCart(ctx context.Context, c *Cart) error {
	return r.InsertCart(ctx, c)
}

// DeleteItems removes the customer's lines.
func (r *MemoryRepository) DeleteItems(_ context.Context, customerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.items {
		if k.customer == customerID {
			delete(r.items, k)
		}
	}
	return nil
}

// GetItems loads the customer's lines.
func (r *MemoryRepository) GetItems(_ context.Context, customerID int) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for k, it := range r.items {
		if k.customer == customerID {
			out = append(out, it)
		}
	}
	return out, nil
}

// GetItemsByProduct loads lines for (seller, product) holding one version.
func (r *MemoryRepository) GetItemsByProduct(_ context.Context, sellerID, productID int, version string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for k, it := range r.items {
		if k.seller == sellerID && k.product == productID && it.Version == version {
			out = append(out, it)
		}
	}
	return out, nil
}

// UpsertItem stores one line.
func (r *MemoryRepository) UpsertItem(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[itemKey{it.CustomerID, it.SellerID, it.ProductID}] = *it
	return nil
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = make(map[int]Cart)
	r.items = make(map[itemKey]Item)
	return nil
}

// MemoryReplicaRepository is the in-memory replica cache.
type MemoryReplicaRepository struct {
	mu    sync.Mutex
	items map[ProductKey]ProductReplica
}

// NewMemoryReplicaRepository builds an empty cache.
func NewMemoryReplicaRepository() *MemoryReplicaRepository {
	return &MemoryReplicaRepository{items: make(map[ProductKey]ProductReplica)}
}

// Get loads a replica copy.
func (r *MemoryReplicaRepository) Get(_ context.Context, sellerID, productID int) (*ProductReplica, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[ProductKey{sellerID, productID}]
	if !ok {
		return nil, ErrReplicaNotFound
	}
	return &p, nil
}

// GetForUpdate behaves like Get; the store lock substitutes for the row lock.
func (r *MemoryReplicaRepository) GetForUpdate(ctx context.Context, sellerID, productID int) (*ProductReplica, error) {
	return r.Get(ctx, sellerID, productID)
}

// GetByKeys loads the replicas that exist for the given keys.
func (r *MemoryReplicaRepository) GetByKeys(_ context.Context, keys []ProductKey) ([]ProductReplica, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProductReplica
	for _, k := range keys {
		if p, ok := r.items[k]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Upsert stores a replica.
func (r *MemoryReplicaRepository) Upsert(_ context.Context, p *ProductReplica) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ProductKey{p.SellerID, p.ProductID}] = *p
	return nil
}

// Cleanup drops everything.
func (r *MemoryReplicaRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[ProductKey]ProductReplica)
	return nil
}
