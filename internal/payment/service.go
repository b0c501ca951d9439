package payment

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"marketflow/internal/bus"
	"marketflow/internal/events"
	"marketflow/internal/saga"
	"marketflow/internal/storage"
)

// Service implements the payment saga step.
type Service struct {
	repo     Repository
	db       storage.Runner
	pub      bus.Publisher
	provider Provider
	log      *slog.Logger
}

// NewService wires a payment service.
func NewService(repo Repository, db storage.Runner, pub bus.Publisher, provider Provider, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, pub: pub, provider: provider, log: log}
}

// Register binds the payment input channel on the dispatcher.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.PaymentInvoiceIssuedChannel, s.ProcessPayment, s.ProcessPoisonPayment)
}

// ProcessPayment authorizes the invoice total with the provider, then in one
// transaction records the charge lines and publishes the outcome. A declined
// charge is a business outcome, not an error: it publishes PaymentFailed and
// the handler succeeds.
func (s *Service) ProcessPayment(ctx context.Context, inv events.InvoiceIssued) error {
	auth, err := s.provider.Authorize(ctx, Charge{
		CustomerID:   inv.Customer.CustomerID,
		OrderID:      inv.OrderID,
		InvoiceID:    inv.InvoiceNumber,
		PaymentType:  inv.Customer.PaymentType,
		Installments: inv.Customer.Installments,
		Value:        inv.TotalInvoice,
	})
	if err != nil {
		return err
	}

	if !auth.Approved {
		s.log.Warn("charge declined",
			slog.Int("customer_id", inv.Customer.CustomerID),
			slog.Int("order_id", inv.OrderID),
			slog.String("status", auth.Status))
		return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
			return s.pub.Publish(ctx, events.TopicPaymentFailed, events.PaymentFailed{
				Status:      auth.Status,
				Customer:    inv.Customer,
				OrderID:     inv.OrderID,
				Items:       inv.Items,
				TotalAmount: inv.TotalInvoice,
				InstanceID:  inv.InstanceID,
			})
		})
	}

	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		if err := s.repo.InsertLines(ctx, buildLines(inv)); err != nil {
			return err
		}
		return s.pub.Publish(ctx, events.TopicPaymentConfirmed, events.PaymentConfirmed{
			Customer:    inv.Customer,
			OrderID:     inv.OrderID,
			TotalAmount: inv.TotalInvoice,
			Items:       inv.Items,
			Date:        time.Now().UTC(),
			InstanceID:  inv.InstanceID,
		})
	})
}

// buildLines decomposes the invoice into charge lines: one per product line,
// one for the combined freight, and one refund-style line per applied voucher.
func buildLines(inv events.InvoiceIssued) []Line {
	lines := make([]Line, 0, len(inv.Items)+1)
	nextID := 1
	var totalFreight float64
	for _, item := range inv.Items {
		totalFreight += item.FreightValue
		lines = append(lines, Line{
			CustomerID:   inv.Customer.CustomerID,
			OrderID:      inv.OrderID,
			PaymentID:    nextID,
			Type:         LineProduct,
			Installments: inv.Customer.Installments,
			Value:        item.TotalAmount,
			Status:       LineSucceeded,
		})
		nextID++
	}
	lines = append(lines, Line{
		CustomerID:   inv.Customer.CustomerID,
		OrderID:      inv.OrderID,
		PaymentID:    nextID,
		Type:         LineFreight,
		Installments: inv.Customer.Installments,
		Value:        totalFreight,
		Status:       LineSucceeded,
	})
	nextID++
	for _, item := range inv.Items {
		if item.TotalIncentive <= 0 {
			continue
		}
		lines = append(lines, Line{
			CustomerID: inv.Customer.CustomerID,
			OrderID:    inv.OrderID,
			PaymentID:  nextID,
			Type:       LineVoucher,
			Value:      item.TotalIncentive,
			Status:     LineRefunded,
		})
		nextID++
	}
	return lines
}

// ProcessPoisonPayment terminates the session with an ABORT mark.
func (s *Service) ProcessPoisonPayment(ctx context.Context, inv events.InvoiceIssued) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       inv.InstanceID,
		Type:      saga.CustomerSession,
		SubjectID: strconv.Itoa(inv.Customer.CustomerID),
		Status:    saga.StatusAbort,
		Source:    "payment",
	})
}
