package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"marketflow/internal/storage"
)

// PostgresRepository persists carts and cart items.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCart loads a cart head row.
func (r *PostgresRepository) GetCart(ctx context.Context, customerID int) (*Cart, error) {
	row := r.db.QueryRow(ctx,
		`SELECT customer_id, status, updated_at FROM carts WHERE customer_id = $1`, customerID)
	var c Cart
	err := row.Scan(&c.CustomerID, &c.Status, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCart adds a cart head row.
func (r *PostgresRepository) InsertCart(ctx context.Context, c *Cart) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO carts (customer_id, status, updated_at) VALUES ($1, $2, $3)`,
		c.CustomerID, c.Status, c.UpdatedAt)
	return err
}

// UpdateCart overwrites a cart head row.
func (r *PostgresRepository) UpdateCart(ctx context.Context, c *Cart) error {
	_, err := r.db.Exec(ctx,
		`UPDATE carts SET status = $2, updated_at = $3 WHERE customer_id = $1`,
		c.CustomerID, c.Status, c.UpdatedAt)
	return err
}

// DeleteItems removes every line of the customer's cart.
func (r *PostgresRepository) DeleteItems(ctx context.Context, customerID int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	return err
}

const itemColumns = `customer_id, seller_id, product_id, product_name, unit_price, freight_value, quantity, voucher, version`

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.CustomerID, &it.SellerID, &it.ProductID, &it.ProductName,
			&it.UnitPrice, &it.FreightValue, &it.Quantity, &it.Voucher, &it.Version); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItems loads the customer's cart lines.
func (r *PostgresRepository) GetItems(ctx context.Context, customerID int) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// GetItemsByProduct loads lines for (seller, product) holding one version.
func (r *PostgresRepository) GetItemsByProduct(ctx context.Context, sellerID, productID int, version string) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM cart_items
		 WHERE seller_id = $1 AND product_id = $2 AND version = $3`,
		sellerID, productID, version)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// UpsertItem inserts or overwrites one cart line.
func (r *PostgresRepository) UpsertItem(ctx context.Context, it *Item) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cart_items (`+itemColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (customer_id, seller_id, product_id) DO UPDATE SET
		 product_name = EXCLUDED.product_name, unit_price = EXCLUDED.unit_price,
		 freight_value = EXCLUDED.freight_value, quantity = EXCLUDED.quantity,
		 voucher = EXCLUDED.voucher, version = EXCLUDED.version`,
		it.CustomerID, it.SellerID, it.ProductID, it.ProductName,
		it.UnitPrice, it.FreightValue, it.Quantity, it.Voucher, it.Version)
	return err
}

// Cleanup truncates both tables. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items`); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM carts`)
	return err
}

// PostgresReplicaRepository persists the product replica cache.
type PostgresReplicaRepository struct {
	db *storage.DB
}

// NewPostgresReplicaRepository builds the repository.
func NewPostgresReplicaRepository(db *storage.DB) *PostgresReplicaRepository {
	return &PostgresReplicaRepository{db: db}
}

func (r *PostgresReplicaRepository) get(ctx context.Context, sellerID, productID int, lock string) (*ProductReplica, error) {
	row := r.db.QueryRow(ctx,
		`SELECT seller_id, product_id, name, price, version FROM product_replicas
		 WHERE seller_id = $1 AND product_id = $2`+lock, sellerID, productID)
	var p ProductReplica
	err := row.Scan(&p.SellerID, &p.ProductID, &p.Name, &p.Price, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReplicaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get loads a replica.
func (r *PostgresReplicaRepository) Get(ctx context.Context, sellerID, productID int) (*ProductReplica, error) {
	return r.get(ctx, sellerID, productID, "")
}

// GetForUpdate loads a replica holding an exclusive row lock.
func (r *PostgresReplicaRepository) GetForUpdate(ctx context.Context, sellerID, productID int) (*ProductReplica, error) {
	return r.get(ctx, sellerID, productID, " FOR UPDATE")
}

// GetByKeys loads the replicas for the given product keys.
func (r *PostgresReplicaRepository) GetByKeys(ctx context.Context, keys []ProductKey) ([]ProductReplica, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for i, k := range keys {
		clauses = append(clauses, fmt.Sprintf("(seller_id = $%d AND product_id = $%d)", i*2+1, i*2+2))
		args = append(args, k.SellerID, k.ProductID)
	}
	rows, err := r.db.Query(ctx,
		`SELECT seller_id, product_id, name, price, version FROM product_replicas WHERE `+
			strings.Join(clauses, " OR "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductReplica
	for rows.Next() {
		var p ProductReplica
		if err := rows.Scan(&p.SellerID, &p.ProductID, &p.Name, &p.Price, &p.Version); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts or overwrites a replica.
func (r *PostgresReplicaRepository) Upsert(ctx context.Context, p *ProductReplica) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO product_replicas (seller_id, product_id, name, price, version)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (seller_id, product_id) DO UPDATE SET
		 name = EXCLUDED.name, price = EXCLUDED.price, version = EXCLUDED.version`,
		p.SellerID, p.ProductID, p.Name, p.Price, p.Version)
	return err
}

// Cleanup truncates the cache. Test harness only.
func (r *PostgresReplicaRepository) Cleanup(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM product_replicas`)
	return err
}
