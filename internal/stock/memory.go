package stock

import (
	"context"
	"sync"
)

type key struct{ seller, product int }

// MemoryRepository is the in-memory stock store used by the memory storage
// mode and by tests.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[key]Item
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[key]Item)}
}

// Find loads a stock item copy.
func (r *MemoryRepository) Find(_ context.Context, sellerID, productID int) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key{sellerID, productID}]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &it, nil
}

// FindForUpdate behaves like Find; the store lock substitutes for the row lock.
func (r *MemoryRepository) FindForUpdate(ctx context.Context, sellerID, productID int) (*Item, error) {
	return r.Find(ctx, sellerID, productID)
}

// Insert stores a stock item.
func (r *MemoryRepository) Insert(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key{it.SellerID, it.ProductID}] = *it
	return nil
}

// Update overwrites a stock item.
func (r *MemoryRepository) Update(ctx context.Context, it *Item) error {
	return r.Insert(ctx, it)
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[key]Item)
	return nil
}
