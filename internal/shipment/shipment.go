// Package shipment owns the delivery leg of the saga: one shipment per paid
// order, one package per invoiced line, and the time-driven delivery sweep
// that moves the oldest open shipment of every seller forward.
package shipment

import (
	"context"
	"errors"
	"time"

	"marketflow/internal/events"
)

// ErrShipmentNotFound is returned when a shipment does not exist.
var ErrShipmentNotFound = errors.New("shipment: not found")

// Shipment is the delivery record of one paid order, keyed by
// (customer, order). The address is denormalized from the checkout so the
// carrier view needs no join back to the customer.
type Shipment struct {
	CustomerID        int
	OrderID           int
	PackageCount      int
	TotalFreightValue float64
	RequestDate       time.Time
	Status            events.ShipmentStatus
	FirstName         string
	LastName          string
	Street            string
	Complement        string
	ZipCode           string
	City              string
	State             string
}

// Package is one deliverable unit of a shipment.
type Package struct {
	CustomerID   int
	OrderID      int
	PackageID    int
	SellerID     int
	ProductID    int
	ProductName  string
	FreightValue float64
	Quantity     int
	Status       events.PackageStatus
	ShippingDate time.Time
	DeliveryDate time.Time
}

// ShipmentKey identifies a shipment.
type ShipmentKey struct {
	CustomerID int
	OrderID    int
}

// Repository is the shipment persistence capability set.
type Repository interface {
	InsertShipment(ctx context.Context, sh *Shipment) error
	InsertPackages(ctx context.Context, pkgs []Package) error
	GetShipment(ctx context.Context, customerID, orderID int) (*Shipment, error)
	UpdateShipmentStatus(ctx context.Context, customerID, orderID int, status events.ShipmentStatus) error
	// OldestOpenShipmentPerSeller returns, for every seller with undelivered
	// packages, the key of the oldest shipment still carrying them.
	OldestOpenShipmentPerSeller(ctx context.Context) (map[int]ShipmentKey, error)
	GetShippedPackages(ctx context.Context, key ShipmentKey, sellerID int) ([]Package, error)
	MarkPackageDelivered(ctx context.Context, pkg *Package) error
	CountDeliveredPackages(ctx context.Context, key ShipmentKey) (int, error)
	Cleanup(ctx context.Context) error
}
