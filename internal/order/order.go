// Package order owns invoicing: order numbering, voucher application and the
// append-only order history.
package order

import (
	"context"
	"errors"
	"time"
)

// ErrOrderNotFound is returned when an order does not exist.
var ErrOrderNotFound = errors.New("order: not found")

// Status is the order lifecycle state.
type Status string

const (
	StatusInvoiced         Status = "INVOICED"
	StatusPaymentProcessed Status = "PAYMENT_PROCESSED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusReadyForShipment Status = "READY_FOR_SHIPMENT"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusDelivered        Status = "DELIVERED"
)

// Order is one invoiced purchase, keyed by (customer, order).
type Order struct {
	CustomerID            int
	OrderID               int
	InvoiceNumber         string
	Status                Status
	PurchaseDate          time.Time
	PaymentDate           time.Time
	DeliveredCarrierDate  time.Time
	DeliveredCustomerDate time.Time
	TotalAmount           float64
	TotalItems            float64
	TotalFreight          float64
	TotalIncentive        float64
	TotalInvoice          float64
	CountItems            int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Item is one invoiced line.
type Item struct {
	CustomerID        int
	OrderID           int
	OrderItemID       int
	ProductID         int
	ProductName       string
	SellerID          int
	UnitPrice         float64
	Quantity          int
	TotalItems        float64
	TotalAmount       float64
	FreightValue      float64
	ShippingLimitDate time.Time
}

// History is an append-only audit row; one per status transition.
type History struct {
	CustomerID int
	OrderID    int
	CreatedAt  time.Time
	Status     Status
}

// Sequence is the per-customer order counter. It is the only state in the
// saga requiring a pessimistic row lock: order ids must be gapless and
// strictly increasing per customer without a global auto-increment.
type Sequence struct {
	CustomerID  int
	NextOrderID int
}

// Repository is the order persistence capability set.
type Repository interface {
	GetOrder(ctx context.Context, customerID, orderID int) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	// GetSequenceForUpdate acquires the customer's counter row with an
	// exclusive read-lock; (nil, nil) when the customer has no row yet.
	GetSequenceForUpdate(ctx context.Context, customerID int) (*Sequence, error)
	InsertSequence(ctx context.Context, seq *Sequence) error
	UpdateSequence(ctx context.Context, seq *Sequence) error
	InsertItem(ctx context.Context, item *Item) error
	InsertHistory(ctx context.Context, h *History) error
	Cleanup(ctx context.Context) error
}
