package stock

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"marketflow/internal/bus"
	"marketflow/internal/events"
	"marketflow/internal/saga"
	"marketflow/internal/storage"
)

// Service implements the stock saga step.
type Service struct {
	repo Repository
	db   storage.Runner
	pub  bus.Publisher
	log  *slog.Logger
}

// NewService wires a stock service.
func NewService(repo Repository, db storage.Runner, pub bus.Publisher, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, pub: pub, log: log}
}

// Register binds the stock input channels on the dispatcher. Payment
// outcomes carry no poison path: a failure there is logged and the
// reservation is retried by operators, never compensated automatically.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.StockCheckoutUpdateChannel, s.ReserveStock, s.ProcessPoisonReserveStock)
	bus.JSON(d, events.StockProductUpdateChannel, s.ProcessProductUpdate, s.ProcessPoisonProductUpdate)
	bus.JSON(d, events.StockPaymentConfirmedChannel, s.ConfirmReservation, nil)
	bus.JSON(d, events.StockPaymentFailedChannel, s.CancelReservation, nil)
}

// ReserveStock moves available quantity to reserved for every line that can
// be satisfied and forwards the reservable subset to invoicing. A checkout
// with nothing reservable fails the session.
func (s *Service) ReserveStock(ctx context.Context, rs events.ReserveStock) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		confirmed := make([]events.CartItem, 0, len(rs.Items))
		for _, line := range rs.Items {
			item, err := s.repo.FindForUpdate(ctx, line.SellerID, line.ProductID)
			if errors.Is(err, ErrItemNotFound) {
				s.log.Warn("stock item missing, dropping line",
					"seller", line.SellerID, "product", line.ProductID)
				continue
			}
			if err != nil {
				return err
			}
			if item.QtyAvailable-item.QtyReserved < line.Quantity {
				s.log.Info("insufficient stock, dropping line",
					"seller", line.SellerID, "product", line.ProductID, "wanted", line.Quantity)
				continue
			}
			item.QtyReserved += line.Quantity
			item.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, item); err != nil {
				return err
			}
			confirmed = append(confirmed, line)
		}
		if len(confirmed) == 0 {
			return ErrNoneReservable
		}
		return s.pub.Publish(ctx, events.TopicStockConfirmed, events.StockConfirmed{
			Timestamp:  time.Now().UTC(),
			Customer:   rs.Customer,
			Items:      confirmed,
			InstanceID: rs.InstanceID,
		})
	})
}

// ProcessPoisonReserveStock terminates the session with an ABORT mark.
func (s *Service) ProcessPoisonReserveStock(ctx context.Context, rs events.ReserveStock) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       rs.InstanceID,
		Type:      saga.CustomerSession,
		SubjectID: strconv.Itoa(rs.Customer.CustomerID),
		Status:    saga.StatusAbort,
		Source:    "stock",
	})
}

// ConfirmReservation converts reserved quantity into a completed sale.
func (s *Service) ConfirmReservation(ctx context.Context, pc events.PaymentConfirmed) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		for _, line := range pc.Items {
			item, err := s.repo.FindForUpdate(ctx, line.SellerID, line.ProductID)
			if err != nil {
				return err
			}
			item.QtyAvailable -= line.Quantity
			item.QtyReserved -= line.Quantity
			item.OrderCount++
			item.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelReservation returns reserved quantity to the pool after a failed
// payment.
func (s *Service) CancelReservation(ctx context.Context, pf events.PaymentFailed) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		for _, line := range pf.Items {
			item, err := s.repo.FindForUpdate(ctx, line.SellerID, line.ProductID)
			if err != nil {
				return err
			}
			item.QtyReserved -= line.Quantity
			item.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProcessProductUpdate refreshes the version token so future checkouts
// carry the current one.
func (s *Service) ProcessProductUpdate(ctx context.Context, update events.ProductUpdated) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		item, err := s.repo.FindForUpdate(ctx, update.SellerID, update.ProductID)
		if err != nil {
			return err
		}
		item.Version = update.Version
		item.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, item)
	})
}

// ProcessPoisonProductUpdate emits the ABORT mark for a failed version
// refresh.
func (s *Service) ProcessPoisonProductUpdate(ctx context.Context, update events.ProductUpdated) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       update.Version,
		Type:      saga.UpdateProduct,
		SubjectID: strconv.Itoa(update.SellerID),
		Status:    saga.StatusAbort,
		Source:    "stock",
	})
}
