package payment

import (
	"context"

	"marketflow/internal/storage"
)

// PostgresRepository persists payment lines.
type PostgresRepository struct {
	db *storage.DB
}

// NewPostgresRepository builds the repository.
func NewPostgresRepository(db *storage.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertLines adds all lines of one charge.
func (r *PostgresRepository) InsertLines(ctx context.Context, lines []Line) error {
	for _, l := range lines {
		_, err := r.db.Exec(ctx,
			`INSERT INTO payment_lines (customer_id, order_id, payment_id, type, installments, value, status)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			l.CustomerID, l.OrderID, l.PaymentID, l.Type, l.Installments, l.Value, l.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetLines loads the lines of one order's charge, in payment id order.
func (r *PostgresRepository) GetLines(ctx context.Context, customerID, orderID int) ([]Line, error) {
	rows, err := r.db.Query(ctx,
		`SELECT customer_id, order_id, payment_id, type, installments, value, status
		 FROM payment_lines WHERE customer_id = $1 AND order_id = $2 ORDER BY payment_id`,
		customerID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.CustomerID, &l.OrderID, &l.PaymentID, &l.Type,
			&l.Installments, &l.Value, &l.Status); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrPaymentNotFound
	}
	return lines, nil
}

// Cleanup truncates the payment table. Test harness only.
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM payment_lines`)
	return err
}
