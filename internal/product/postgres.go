package product

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"marketflow/internal/storage"
)

// PostgresRepository persists products in the products table.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `seller_id, product_id, name, sku, category, description, price, freight_value, status, version, updated_at`

func (r *PostgresRepository) get(ctx context.Context, sellerID, productID int, lock string) (*Product, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE seller_id = $1 AND product_id = $2`+lock,
		sellerID, productID)
	var p Product
	err := row.Scan(&p.SellerID, &p.ProductID, &p.Name, &p.SKU, &p.Category, &p.Description,
		&p.Price, &p.FreightValue, &p.Status, &p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get loads a product.
func (r *PostgresRepository) Get(ctx context.Context, sellerID, productID int) (*Product, error) {
	return r.get(ctx, sellerID, productID, "")
}

// GetForUpdate loads a product holding an exclusive row lock.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, sellerID, productID int) (*Product, error) {
	return r.get(ctx, sellerID, productID, " FOR UPDATE")
}

// Insert adds a product row.
func (r *PostgresRepository) Insert(ctx context.Context, p *Product) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.SellerID, p.ProductID, p.Name, p.SKU, p.Category, p.Description,
		p.Price, p.FreightValue, p.Status, p.Version, p.UpdatedAt)
	return err
}

// Update overwrites a product row.
func (r *PostgresRepository) Update(ctx context.Context, p *Product) error {
	_, err := r.db.Exec(ctx,
		`UPDATE products SET name=$3, sku=$4, category=$5, description=$6, price=$7,
		 freight_value=$8, status=$9, version=$10, updated_at=$11
		 WHERE seller_id=$1 AND product_id=$2`,
		p.SellerID, p.ProductID, p.Name, p.SKU, p.Category, p.Description,
		p.Price, p.FreightValue, p.Status, p.Version, p.UpdatedAt)
	return err
}

// Cleanup truncates the table. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products`)
	return err
}
