// Package payment charges invoiced orders and records the charge as a set of
// payment lines, one per product plus one for freight and one per voucher.
package payment

import (
	"context"
	"errors"
)

// ErrPaymentNotFound is returned when no lines exist for an order.
var ErrPaymentNotFound = errors.New("payment: not found")

// LineType discriminates what a payment line pays for.
type LineType string

const (
	LineProduct LineType = "PRODUCT"
	LineFreight LineType = "FREIGHT"
	LineVoucher LineType = "VOUCHER"
)

// LineStatus is the settlement state of one line.
type LineStatus string

const (
	LineSucceeded LineStatus = "SUCCEEDED"
	LineRefunded  LineStatus = "REFUNDED"
)

// Line is one component of an order's charge, keyed by
// (customer, order, payment_id).
type Line struct {
	CustomerID   int
	OrderID      int
	PaymentID    int
	Type         LineType
	Installments int
	Value        float64
	Status       LineStatus
}

// Repository is the payment persistence capability set.
type Repository interface {
	InsertLines(ctx context.Context, lines []Line) error
	GetLines(ctx context.Context, customerID, orderID int) ([]Line, error)
	Cleanup(ctx context.Context) error
}
