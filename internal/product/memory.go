package product

import (
	"context"
	"sync"
)

type key struct{ seller, product int }

// MemoryRepository is the in-memory product store used by the memory storage
// mode and by tests.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[key]Product
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[key]Product)}
}

// Get loads a product copy.
func (r *MemoryRepository) Get(_ context.Context, sellerID, productID int) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[key{sellerID, productID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetForUpdate behaves like Get; the store lock substitutes for the row lock.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, sellerID, productID int) (*Product, error) {
	return r.Get(ctx, sellerID, productID)
}

// Insert stores a product.
func (r *MemoryRepository) Insert(_ context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key{p.SellerID, p.ProductID}] = *p
	return nil
}

// Update overwrites a product.
func (r *MemoryRepository) Update(ctx context.Context, p *Product) error {
	return r.Insert(ctx, p)
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[key]Product)
	return nil
}
