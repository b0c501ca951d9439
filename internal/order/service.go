package order

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"marketflow/internal/bus"
	"marketflow/internal/events"
	"marketflow/internal/saga"
	"marketflow/internal/storage"
)

// Service implements the invoicing saga step and the order status follow-ups.
type Service struct {
	repo Repository
	db   storage.Runner
	pub  bus.Publisher
	log  *slog.Logger
}

// NewService wires an order service.
func NewService(repo Repository, db storage.Runner, pub bus.Publisher, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, pub: pub, log: log}
}

// Register binds the order input channels on the dispatcher. Only the
// invoicing step poisons the session; status follow-ups log and stop.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.OrderStockConfirmedChannel, s.ProcessStockConfirmed, s.ProcessPoisonStockConfirmed)
	bus.JSON(d, events.OrderShipmentChannel, s.ProcessShipmentNotification, nil)
	bus.JSON(d, events.OrderPaymentConfirmedChannel, s.ProcessPaymentConfirmed, nil)
	bus.JSON(d, events.OrderPaymentFailedChannel, s.ProcessPaymentFailed, nil)
}

// ProcessStockConfirmed turns a confirmed checkout into an invoiced order in
// one transaction: voucher application per line, the locked per-customer
// order number, order + items + first history row, and the InvoiceIssued
// event for the payment step.
func (s *Service) ProcessStockConfirmed(ctx context.Context, checkout events.StockConfirmed) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		now := time.Now().UTC()

		var totalFreight, totalAmount float64
		for _, item := range checkout.Items {
			totalFreight += item.FreightValue
			totalAmount += item.UnitPrice * float64(item.Quantity)
		}
		totalItems := totalAmount

		// Vouchers apply to their own line only and never drive it below
		// zero; the remainder of an oversized voucher is forfeited.
		lineTotals := make([]float64, len(checkout.Items))
		var totalIncentive float64
		for i, item := range checkout.Items {
			lineTotal := item.UnitPrice * float64(item.Quantity)
			if lineTotal-item.Voucher > 0 {
				totalAmount -= item.Voucher
				totalIncentive += item.Voucher
				lineTotal -= item.Voucher
			} else {
				totalAmount -= lineTotal
				totalIncentive += lineTotal
				lineTotal = 0
			}
			lineTotals[i] = lineTotal
		}

		orderID, err := s.nextOrderID(ctx, checkout.Customer.CustomerID)
		if err != nil {
			return err
		}
		invoiceNumber := fmt.Sprintf("%d-%s-%d",
			checkout.Customer.CustomerID, now.Format("20060102"), orderID)

		newOrder := &Order{
			CustomerID:     checkout.Customer.CustomerID,
			OrderID:        orderID,
			InvoiceNumber:  invoiceNumber,
			Status:         StatusInvoiced,
			PurchaseDate:   checkout.Timestamp,
			TotalAmount:    totalAmount,
			TotalItems:     totalItems,
			TotalFreight:   totalFreight,
			TotalIncentive: totalIncentive,
			TotalInvoice:   totalAmount + totalFreight,
			CountItems:     len(checkout.Items),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.InsertOrder(ctx, newOrder); err != nil {
			return err
		}

		wireItems := make([]events.OrderItem, 0, len(checkout.Items))
		for i, item := range checkout.Items {
			line := &Item{
				CustomerID:        checkout.Customer.CustomerID,
				OrderID:           orderID,
				OrderItemID:       i + 1,
				ProductID:         item.ProductID,
				ProductName:       item.ProductName,
				SellerID:          item.SellerID,
				UnitPrice:         item.UnitPrice,
				Quantity:          item.Quantity,
				TotalItems:        item.UnitPrice * float64(item.Quantity),
				TotalAmount:       lineTotals[i],
				FreightValue:      item.FreightValue,
				ShippingLimitDate: now.AddDate(0, 0, 3),
			}
			if err := s.repo.InsertItem(ctx, line); err != nil {
				return err
			}
			wireItems = append(wireItems, events.OrderItem{
				OrderID:           line.OrderID,
				OrderItemID:       line.OrderItemID,
				ProductID:         line.ProductID,
				ProductName:       line.ProductName,
				SellerID:          line.SellerID,
				UnitPrice:         line.UnitPrice,
				Quantity:          line.Quantity,
				TotalItems:        line.TotalItems,
				TotalAmount:       line.TotalAmount,
				TotalIncentive:    item.Voucher,
				FreightValue:      line.FreightValue,
				ShippingLimitDate: line.ShippingLimitDate,
			})
		}

		if err := s.repo.InsertHistory(ctx, &History{
			CustomerID: newOrder.CustomerID,
			OrderID:    orderID,
			CreatedAt:  now,
			Status:     StatusInvoiced,
		}); err != nil {
			return err
		}

		return s.pub.Publish(ctx, events.TopicInvoiceIssued, events.InvoiceIssued{
			Customer:      checkout.Customer,
			OrderID:       orderID,
			InvoiceNumber: invoiceNumber,
			IssueDate:     now,
			TotalInvoice:  newOrder.TotalInvoice,
			Items:         wireItems,
			InstanceID:    checkout.InstanceID,
		})
	})
}

// nextOrderID increments the customer's counter under an exclusive row lock.
func (s *Service) nextOrderID(ctx context.Context, customerID int) (int, error) {
	seq, err := s.repo.GetSequenceForUpdate(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if seq == nil {
		seq = &Sequence{CustomerID: customerID, NextOrderID: 1}
		if err := s.repo.InsertSequence(ctx, seq); err != nil {
			return 0, err
		}
		return seq.NextOrderID, nil
	}
	seq.NextOrderID++
	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return 0, err
	}
	return seq.NextOrderID, nil
}

// ProcessPoisonStockConfirmed terminates the session with an ABORT mark.
func (s *Service) ProcessPoisonStockConfirmed(ctx context.Context, checkout events.StockConfirmed) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       checkout.InstanceID,
		Type:      saga.CustomerSession,
		SubjectID: strconv.Itoa(checkout.Customer.CustomerID),
		Status:    saga.StatusAbort,
		Source:    "order",
	})
}

// ProcessPaymentConfirmed advances the order to PAYMENT_PROCESSED.
func (s *Service) ProcessPaymentConfirmed(ctx context.Context, pc events.PaymentConfirmed) error {
	return s.transition(ctx, pc.Customer.CustomerID, pc.OrderID, func(o *Order) {
		o.Status = StatusPaymentProcessed
		o.PaymentDate = pc.Date
	})
}

// ProcessPaymentFailed advances the order to PAYMENT_FAILED.
func (s *Service) ProcessPaymentFailed(ctx context.Context, pf events.PaymentFailed) error {
	return s.transition(ctx, pf.Customer.CustomerID, pf.OrderID, func(o *Order) {
		o.Status = StatusPaymentFailed
	})
}

// ProcessShipmentNotification tracks shipment progress on the order.
func (s *Service) ProcessShipmentNotification(ctx context.Context, sn events.ShipmentNotification) error {
	return s.transition(ctx, sn.CustomerID, sn.OrderID, func(o *Order) {
		switch sn.Status {
		case events.ShipmentDeliveryInProgress:
			o.Status = StatusInTransit
			o.DeliveredCarrierDate = sn.EventDate
		case events.ShipmentConcluded:
			o.Status = StatusDelivered
			o.DeliveredCustomerDate = sn.EventDate
		default:
			o.Status = StatusReadyForShipment
		}
	})
}

// transition loads the order, applies mutate, and appends the history row,
// all in one transaction.
func (s *Service) transition(ctx context.Context, customerID, orderID int, mutate func(*Order)) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		o, err := s.repo.GetOrder(ctx, customerID, orderID)
		if err != nil {
			return fmt.Errorf("order %d-%d: %w", customerID, orderID, err)
		}
		now := time.Now().UTC()
		mutate(o)
		o.UpdatedAt = now
		if err := s.repo.UpdateOrder(ctx, o); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, &History{
			CustomerID: customerID,
			OrderID:    orderID,
			CreatedAt:  now,
			Status:     o.Status,
		})
	})
}
