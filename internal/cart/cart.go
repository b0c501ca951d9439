// Package cart owns customer carts and the local product replica cache, and
// starts the checkout saga.
package cart

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCartNotFound is returned when a customer has no cart.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartEmpty is returned when checkout finds no usable items.
	ErrCartEmpty = errors.New("cart: no items to check out")
	// ErrReplicaNotFound is returned when a product replica is missing.
	ErrReplicaNotFound = errors.New("cart: product replica not found")
)

// Status is the cart lifecycle state.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusCheckoutSent Status = "CHECKOUT_SENT"
)

// Cart is one customer's cart head row.
type Cart struct {
	CustomerID int
	Status     Status
	UpdatedAt  time.Time
}

// Item is a cart line, keyed by (customer, seller, product). Version is the
// product version token copied from the replica at add-time.
type Item struct {
	CustomerID   int
	SellerID     int
	ProductID    int
	ProductName  string
	UnitPrice    float64
	FreightValue float64
	Quantity     int
	Voucher      float64
	Version      string
}

// ProductReplica is the local read cache of authoritative price/version.
// It may lag the product service.
type ProductReplica struct {
	SellerID  int
	ProductID int
	Name      string
	Price     float64
	Version   string
}

// Repository is the cart persistence capability set.
type Repository interface {
	GetCart(ctx context.Context, customerID int) (*Cart, error)
	InsertCart(ctx context.Context, c *Cart) error
	UpdateCart(ctx context.Context, c *Cart) error
	// DeleteItems removes every line of the customer's cart.
	DeleteItems(ctx context.Context, customerID int) error
	GetItems(ctx context.Context, customerID int) ([]Item, error)
	// GetItemsByProduct returns every line for (seller, product) holding the
	// given version token, across all customers.
	GetItemsByProduct(ctx context.Context, sellerID, productID int, version string) ([]Item, error)
	UpsertItem(ctx context.Context, item *Item) error
	Cleanup(ctx context.Context) error
}

// ReplicaRepository is the product replica capability set.
type ReplicaRepository interface {
	Get(ctx context.Context, sellerID, productID int) (*ProductReplica, error)
	GetForUpdate(ctx context.Context, sellerID, productID int) (*ProductReplica, error)
	GetByKeys(ctx context.Context, keys []ProductKey) ([]ProductReplica, error)
	Upsert(ctx context.Context, p *ProductReplica) error
	Cleanup(ctx context.Context) error
}

// ProductKey identifies one seller's product.
type ProductKey struct {
	SellerID  int
	ProductID int
}
