// Package product owns the authoritative product catalog and publishes
// price and product change events that drive the replica caches downstream.
package product

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product: not found")

// Product is the authoritative row for one seller's product.
type Product struct {
	SellerID     int
	ProductID    int
	Name         string
	SKU          string
	Category     string
	Description  string
	Price        float64
	FreightValue float64
	Status       string
	Version      string
	UpdatedAt    time.Time
}

// Repository is the product persistence capability set. All methods run
// inside the transaction carried by the context when one is open.
type Repository interface {
	Get(ctx context.Context, sellerID, productID int) (*Product, error)
	// GetForUpdate acquires an exclusive read-lock on the row.
	GetForUpdate(ctx context.Context, sellerID, productID int) (*Product, error)
	Insert(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Cleanup(ctx context.Context) error
}
