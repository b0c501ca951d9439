// Package stock owns per-product inventory and the reservation step of the
// checkout saga.
package stock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrItemNotFound is returned when a stock item does not exist.
	ErrItemNotFound = errors.New("stock: item not found")
	// ErrNoneReservable is returned when no line of a checkout could be
	// reserved; the session cannot proceed.
	ErrNoneReservable = errors.New("stock: no reservable items in checkout")
)

// Item tracks inventory for one seller's product.
type Item struct {
	SellerID     int
	ProductID    int
	QtyAvailable int
	QtyReserved  int
	OrderCount   int
	Version      string
	UpdatedAt    time.Time
}

// Repository is the stock persistence capability set.
type Repository interface {
	Find(ctx context.Context, sellerID, productID int) (*Item, error)
	// FindForUpdate acquires an exclusive read-lock on the row.
	FindForUpdate(ctx context.Context, sellerID, productID int) (*Item, error)
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Cleanup(ctx context.Context) error
}
