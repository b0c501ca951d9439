package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"marketflow/internal/storage"
)

// PostgresRepository persists stock items.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const stockColumns = `seller_id, product_id, qty_available, qty_reserved, order_count, version, updated_at`

func (r *PostgresRepository) find(ctx context.Context, sellerID, productID int, lock string) (*Item, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE seller_id = $1 AND product_id = $2`+lock,
		sellerID, productID)
	var it Item
	err := row.Scan(&it.SellerID, &it.ProductID, &it.QtyAvailable, &it.QtyReserved,
		&it.OrderCount, &it.Version, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Find loads a stock item.
func (r *PostgresRepository) Find(ctx context.Context, sellerID, productID int) (*Item, error) {
	return r.find(ctx, sellerID, productID, "")
}

// FindForUpdate loads a stock item holding an exclusive row lock.
func (r *PostgresRepository) FindForUpdate(ctx context.Context, sellerID, productID int) (*Item, error) {
	return r.find(ctx, sellerID, productID, " FOR UPDATE")
}

// Insert adds a stock item.
func (r *PostgresRepository) Insert(ctx context.Context, it *Item) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO stock_items (`+stockColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		it.SellerID, it.ProductID, it.QtyAvailable, it.QtyReserved, it.OrderCount, it.Version, it.UpdatedAt)
	return err
}

// Update overwrites a stock item.
func (r *PostgresRepository) Update(ctx context.Context, it *Item) error {
	_, err := r.db.Exec(ctx,
		`UPDATE stock_items SET qty_available=$3, qty_reserved=$4, order_count=$5, version=$6, updated_at=$7
		 WHERE seller_id=$1 AND product_id=$2`,
		it.SellerID, it.ProductID, it.QtyAvailable, it.QtyReserved, it.OrderCount, it.Version, it.UpdatedAt)
	return err
}

// Cleanup truncates the table. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM stock_items`)
	return err
}
