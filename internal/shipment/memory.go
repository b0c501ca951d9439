package shipment

import (
	"context"
	"sort"
	"sync"

	"marketflow/internal/events"
)

type packageKey struct {
	customer, order, pkg int
}

// MemoryRepository is the in-memory shipment store used by the memory
// storage mode and by tests.
type MemoryRepository struct {
	mu        sync.Mutex
	shipments map[ShipmentKey]Shipment
	packages  map[packageKey]Package
}

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		shipments: make(map[ShipmentKey]Shipment),
		packages:  make(map[packageKey]Package),
	}
}

// InsertShipment stores a shipment.
func (r *MemoryRepository) InsertShipment(_ context.Context, sh *Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments[ShipmentKey{sh.CustomerID, sh.OrderID}] = *sh
	return nil
}

// InsertPackages stores all packages of one shipment.
func (r *MemoryRepository) InsertPackages(_ context.Context, pkgs []Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pkgs {
		r.packages[packageKey{p.CustomerID, p.OrderID, p.PackageID}] = p
	}
	return nil
}

// GetShipment loads a shipment copy.
func (r *MemoryRepository) GetShipment(_ context.Context, customerID, orderID int) (*Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[ShipmentKey{customerID, orderID}]
	if !ok {
		return nil, ErrShipmentNotFound
	}
	return &sh, nil
}

// UpdateShipmentStatus overwrites the shipment status.
func (r *MemoryRepository) UpdateShipmentStatus(_ context.Context, customerID, orderID int, status events.ShipmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ShipmentKey{customerID, orderID}
	sh, ok := r.shipments[key]
	if !ok {
		return ErrShipmentNotFound
	}
	sh.Status = status
	r.shipments[key] = sh
	return nil
}

// OldestOpenShipmentPerSeller picks, per seller, the shipment with the
// earliest request date that still has shipped packages for that seller.
func (r *MemoryRepository) OldestOpenShipmentPerSeller(_ context.Context) (map[int]ShipmentKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := make(map[int]ShipmentKey)
	for _, p := range r.packages {
		if p.Status != events.PackageShipped {
			continue
		}
		candidate := ShipmentKey{p.CustomerID, p.OrderID}
		current, ok := open[p.SellerID]
		if !ok || r.older(candidate, current) {
			open[p.SellerID] = candidate
		}
	}
	return open, nil
}

func (r *MemoryRepository) older(a, b ShipmentKey) bool {
	sa, sb := r.shipments[a], r.shipments[b]
	if !sa.RequestDate.Equal(sb.RequestDate) {
		return sa.RequestDate.Before(sb.RequestDate)
	}
	if a.CustomerID != b.CustomerID {
		return a.CustomerID < b.CustomerID
	}
	return a.OrderID < b.OrderID
}

// GetShippedPackages loads one seller's shipped packages in a shipment.
func (r *MemoryRepository) GetShippedPackages(_ context.Context, key ShipmentKey, sellerID int) ([]Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pkgs []Package
	for _, p := range r.packages {
		if p.CustomerID == key.CustomerID && p.OrderID == key.OrderID &&
			p.SellerID == sellerID && p.Status == events.PackageShipped {
			pkgs = append(pkgs, p)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PackageID < pkgs[j].PackageID })
	return pkgs, nil
}

// MarkPackageDelivered overwrites the package status and delivery date.
func (r *MemoryRepository) MarkPackageDelivered(_ context.Context, p *Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[packageKey{p.CustomerID, p.OrderID, p.PackageID}] = *p
	return nil
}

// CountDeliveredPackages counts a shipment's delivered packages.
func (r *MemoryRepository) CountDeliveredPackages(_ context.Context, key ShipmentKey) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, p := range r.packages {
		if p.CustomerID == key.CustomerID && p.OrderID == key.OrderID &&
			p.Status == events.PackageDelivered {
			n++
		}
	}
	return n, nil
}

// Packages returns every stored package. Test helper.
func (r *MemoryRepository) Packages() []Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.PackageID < b.PackageID
	})
	return out
}

// Cleanup drops everything.
func (r *MemoryRepository) Cleanup(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments = make(map[ShipmentKey]Shipment)
	r.packages = make(map[packageKey]Package)
	return nil
}
