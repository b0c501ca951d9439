package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"marketflow/internal/storage"
)

// PostgresRepository persists orders, items, history and sequences.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `customer_id, order_id, invoice_number, status, purchase_date, payment_date,
	delivered_carrier_date, delivered_customer_date, total_amount, total_items, total_freight,
	total_incentive, total_invoice, count_items, created_at, updated_at`

// GetOrder loads one order.
func (r *PostgresRepository) GetOrder(ctx context.Context, customerID, orderID int) (*Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 AND order_id = $2`,
		customerID, orderID)
	var o Order
	err := row.Scan(&o.CustomerID, &o.OrderID, &o.InvoiceNumber, &o.Status, &o.PurchaseDate,
		&o.PaymentDate, &o.DeliveredCarrierDate, &o.DeliveredCustomerDate, &o.TotalAmount,
		&o.TotalItems, &o.TotalFreight, &o.TotalIncentive, &o.TotalInvoice, &o.CountItems,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrder adds an order row.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o *Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.CustomerID, o.OrderID, o.InvoiceNumber, o.Status, o.PurchaseDate, o.PaymentDate,
		o.DeliveredCarrierDate, o.DeliveredCustomerDate, o.TotalAmount, o.TotalItems,
		o.TotalFreight, o.TotalIncentive, o.TotalInvoice, o.CountItems, o.CreatedAt, o.UpdatedAt)
	return err
}

// UpdateOrder overwrites the mutable order fields.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, o *Order) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status=$3, payment_date=$4, delivered_carrier_date=$5,
		 delivered_customer_date=$6, updated_at=$7
		 WHERE customer_id=$1 AND order_id=$2`,
		o.CustomerID, o.OrderID, o.Status, o.PaymentDate,
		o.DeliveredCarrierDate, o.DeliveredCustomerDate, o.UpdatedAt)
	return err
}

// GetSequenceForUpdate locks the customer's counter row; (nil, nil) if absent.
func (r *PostgresRepository) GetSequenceForUpdate(ctx context.Context, customerID int) (*Sequence, error) {
	row := r.db.QueryRow(ctx,
		`SELECT customer_id, next_order_id FROM customer_order_seq
		 WHERE customer_id = $1 FOR UPDATE`, customerID)
	var seq Sequence
	err := row.Scan(&seq.CustomerID, &seq.NextOrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// InsertSequence adds a counter row.
func (r *PostgresRepository) InsertSequence(ctx context.Context, seq *Sequence) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO customer_order_seq (customer_id, next_order_id) VALUES ($1, $2)`,
		seq.CustomerID, seq.NextOrderID)
	return err
}

// UpdateSequence overwrites a counter row.
func (r *PostgresRepository) UpdateSequence(ctx context.Context, seq *Sequence) error {
	_, err := r.db.Exec(ctx,
		`UPDATE customer_order_seq SET next_order_id = $2 WHERE customer_id = $1`,
		seq.CustomerID, seq.NextOrderID)
	return err
}

// InsertItem adds an order line.
func (r *PostgresRepository) InsertItem(ctx context.Context, it *Item) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_items (customer_id, order_id, order_item_id, product_id, product_name,
		 seller_id, unit_price, quantity, total_items, total_amount, freight_value, shipping_limit_date)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		it.CustomerID, it.OrderID, it.OrderItemID, it.ProductID, it.ProductName,
		it.SellerID, it.UnitPrice, it.Quantity, it.TotalItems, it.TotalAmount,
		it.FreightValue, it.ShippingLimitDate)
	return err
}

// InsertHistory appends an audit row.
func (r *PostgresRepository) InsertHistory(ctx context.Context, h *History) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_history (customer_id, order_id, created_at, status) VALUES ($1,$2,$3,$4)`,
		h.CustomerID, h.OrderID, h.CreatedAt, h.Status)
	return err
}

// Cleanup truncates all order tables. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	for _, table := range []string{"order_history", "order_items", "orders", "customer_order_seq"} {
		if _, err := r.db.Exec(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}
