package shipment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"marketflow/internal/events"
	"marketflow/internal/storage"
)

// PostgresRepository persists shipments and packages.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shipmentColumns = `customer_id, order_id, package_count, total_freight_value, request_date,
	status, first_name, last_name, street, complement, zip_code, city, state`

const packageColumns = `customer_id, order_id, package_id, seller_id, product_id, product_name,
	freight_value, quantity, status, shipping_date, delivery_date`

// InsertShipment adds a shipment row.
func (r *PostgresRepository) InsertShipment(ctx context.Context, sh *Shipment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO shipments (`+shipmentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sh.CustomerID, sh.OrderID, sh.PackageCount, sh.TotalFreightValue, sh.RequestDate,
		sh.Status, sh.FirstName, sh.LastName, sh.Street, sh.Complement, sh.ZipCode,
		sh.City, sh.State)
	return err
}

// InsertPackages adds all packages of one shipment.
func (r *PostgresRepository) InsertPackages(ctx context.Context, pkgs []Package) error {
	for _, p := range pkgs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO packages (`+packageColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			p.CustomerID, p.OrderID, p.PackageID, p.SellerID, p.ProductID, p.ProductName,
			p.FreightValue, p.Quantity, p.Status, p.ShippingDate, p.DeliveryDate)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetShipment loads one shipment.
func (r *PostgresRepository) GetShipment(ctx context.Context, customerID, orderID int) (*Shipment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE customer_id = $1 AND order_id = $2`,
		customerID, orderID)
	var sh Shipment
	err := row.Scan(&sh.CustomerID, &sh.OrderID, &sh.PackageCount, &sh.TotalFreightValue,
		&sh.RequestDate, &sh.Status, &sh.FirstName, &sh.LastName, &sh.Street, &sh.Complement,
		&sh.ZipCode, &sh.City, &sh.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// UpdateShipmentStatus overwrites the shipment status.
func (r *PostgresRepository) UpdateShipmentStatus(ctx context.Context, customerID, orderID int, status events.ShipmentStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE shipments SET status = $3 WHERE customer_id = $1 AND order_id = $2`,
		customerID, orderID, status)
	return err
}

// OldestOpenShipmentPerSeller picks, per seller, the shipment with the
// earliest request date that still has shipped packages for that seller.
func (r *PostgresRepository) OldestOpenShipmentPerSeller(ctx context.Context) (map[int]ShipmentKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ON (p.seller_id) p.seller_id, s.customer_id, s.order_id
		 FROM packages p
		 JOIN shipments s ON s.customer_id = p.customer_id AND s.order_id = p.order_id
		 WHERE p.status = $1
		 ORDER BY p.seller_id, s.request_date, s.customer_id, s.order_id`,
		events.PackageShipped)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	open := make(map[int]ShipmentKey)
	for rows.Next() {
		var sellerID int
		var key ShipmentKey
		if err := rows.Scan(&sellerID, &key.CustomerID, &key.OrderID); err != nil {
			return nil, err
		}
		open[sellerID] = key
	}
	return open, rows.Err()
}

// GetShippedPackages loads one seller's shipped packages in a shipment.
func (r *PostgresRepository) GetShippedPackages(ctx context.Context, key ShipmentKey, sellerID int) ([]Package, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+packageColumns+` FROM packages
		 WHERE customer_id = $1 AND order_id = $2 AND seller_id = $3 AND status = $4
		 ORDER BY package_id`,
		key.CustomerID, key.OrderID, sellerID, events.PackageShipped)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pkgs []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.CustomerID, &p.OrderID, &p.PackageID, &p.SellerID, &p.ProductID,
			&p.ProductName, &p.FreightValue, &p.Quantity, &p.Status, &p.ShippingDate,
			&p.DeliveryDate); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}

// MarkPackageDelivered overwrites the package status and delivery date.
func (r *PostgresRepository) MarkPackageDelivered(ctx context.Context, p *Package) error {
	_, err := r.db.Exec(ctx,
		`UPDATE packages SET status = $4, delivery_date = $5
		 WHERE customer_id = $1 AND order_id = $2 AND package_id = $3`,
		p.CustomerID, p.OrderID, p.PackageID, p.Status, p.DeliveryDate)
	return err
}

// CountDeliveredPackages counts a shipment's delivered packages.
func (r *PostgresRepository) CountDeliveredPackages(ctx context.Context, key ShipmentKey) (int, error) {
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM packages
		 WHERE customer_id = $1 AND order_id = $2 AND status = $3`,
		key.CustomerID, key.OrderID, events.PackageDelivered)
	var n int
	err := row.Scan(&n)
	return n, err
}

// Cleanup truncates the shipment tables. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	for _, table := range []string{"packages", "shipments"} {
		if _, err := r.db.Exec(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}
