package shipment

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"marketflow/internal/bus"
	"marketflow/internal/events"
	"marketflow/internal/saga"
	"marketflow/internal/storage"
)

// Service implements the shipment saga step and the delivery sweep.
type Service struct {
	repo Repository
	db   storage.Runner
	pub  bus.Publisher
	log  *slog.Logger
}

// NewService wires a shipment service.
func NewService(repo Repository, db storage.Runner, pub bus.Publisher, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, pub: pub, log: log}
}

// Register binds the shipment input channel on the dispatcher.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.ShipmentPaymentConfirmedChannel, s.ProcessShipment, s.ProcessPoisonShipment)
}

// ProcessShipment turns a confirmed payment into an approved shipment with
// one shipped package per invoiced line, then publishes the approval and the
// session's SUCCESS mark in the same transaction. This mark is what closes
// the checkout saga; delivery progress is tracked separately by the sweep.
func (s *Service) ProcessShipment(ctx context.Context, pc events.PaymentConfirmed) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		now := time.Now().UTC()

		var totalFreight float64
		pkgs := make([]Package, 0, len(pc.Items))
		for i, item := range pc.Items {
			totalFreight += item.FreightValue
			pkgs = append(pkgs, Package{
				CustomerID:   pc.Customer.CustomerID,
				OrderID:      pc.OrderID,
				PackageID:    i + 1,
				SellerID:     item.SellerID,
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				FreightValue: item.FreightValue,
				Quantity:     item.Quantity,
				Status:       events.PackageShipped,
				ShippingDate: now,
			})
		}

		sh := &Shipment{
			CustomerID:        pc.Customer.CustomerID,
			OrderID:           pc.OrderID,
			PackageCount:      len(pkgs),
			TotalFreightValue: totalFreight,
			RequestDate:       now,
			Status:            events.ShipmentApproved,
			FirstName:         pc.Customer.FirstName,
			LastName:          pc.Customer.LastName,
			Street:            pc.Customer.Street,
			Complement:        pc.Customer.Complement,
			ZipCode:           pc.Customer.ZipCode,
			City:              pc.Customer.City,
			State:             pc.Customer.State,
		}
		if err := s.repo.InsertShipment(ctx, sh); err != nil {
			return err
		}
		if err := s.repo.InsertPackages(ctx, pkgs); err != nil {
			return err
		}

		if err := s.pub.Publish(ctx, events.TopicShipment, events.ShipmentNotification{
			CustomerID: pc.Customer.CustomerID,
			OrderID:    pc.OrderID,
			EventDate:  now,
			InstanceID: pc.InstanceID,
			Status:     events.ShipmentApproved,
		}); err != nil {
			return err
		}

		return saga.Emit(ctx, s.pub, saga.TransactionMark{
			TID:       pc.InstanceID,
			Type:      saga.CustomerSession,
			SubjectID: strconv.Itoa(pc.Customer.CustomerID),
			Status:    saga.StatusSuccess,
			Source:    "shipment",
		})
	})
}

// ProcessPoisonShipment terminates the session with an ABORT mark.
func (s *Service) ProcessPoisonShipment(ctx context.Context, pc events.PaymentConfirmed) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       pc.InstanceID,
		Type:      saga.CustomerSession,
		SubjectID: strconv.Itoa(pc.Customer.CustomerID),
		Status:    saga.StatusAbort,
		Source:    "shipment",
	})
}

// UpdateShipment is one delivery sweep. For every seller it delivers the
// shipped packages of that seller's oldest open shipment, publishing a
// notification per package and advancing the shipment's status when its
// first or last package lands. The whole sweep is one serializable
// transaction so concurrent sweeps cannot deliver a package twice.
func (s *Service) UpdateShipment(ctx context.Context, instanceID string) error {
	return s.db.RunInTx(ctx, storage.TxOptions{Serializable: true}, func(ctx context.Context) error {
		open, err := s.repo.OldestOpenShipmentPerSeller(ctx)
		if err != nil {
			return err
		}

		sellers := make([]int, 0, len(open))
		for sellerID := range open {
			sellers = append(sellers, sellerID)
		}
		sort.Ints(sellers)

		var delivered int
		for _, sellerID := range sellers {
			n, err := s.deliverBatch(ctx, sellerID, open[sellerID], instanceID)
			if err != nil {
				return err
			}
			delivered += n
		}
		if delivered == 0 {
			return nil
		}

		return saga.Emit(ctx, s.pub, saga.TransactionMark{
			TID:       instanceID,
			Type:      saga.UpdateDelivery,
			SubjectID: strconv.Itoa(delivered),
			Status:    saga.StatusSuccess,
			Source:    "shipment",
		})
	})
}

// deliverBatch delivers every shipped package one seller still has in the
// given shipment and reports the batch size.
func (s *Service) deliverBatch(ctx context.Context, sellerID int, key ShipmentKey, instanceID string) (int, error) {
	batch, err := s.repo.GetShippedPackages(ctx, key, sellerID)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	sh, err := s.repo.GetShipment(ctx, key.CustomerID, key.OrderID)
	if err != nil {
		return 0, err
	}
	priorDelivered, err := s.repo.CountDeliveredPackages(ctx, key)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()

	// An approved shipment enters delivery before its first package lands,
	// even when this batch will also conclude it.
	if sh.Status == events.ShipmentApproved {
		if err := s.transition(ctx, key, events.ShipmentDeliveryInProgress, now, instanceID); err != nil {
			return 0, err
		}
	}

	for i := range batch {
		pkg := &batch[i]
		pkg.Status = events.PackageDelivered
		pkg.DeliveryDate = now
		if err := s.repo.MarkPackageDelivered(ctx, pkg); err != nil {
			return 0, err
		}
		if err := s.pub.Publish(ctx, events.TopicDelivery, events.DeliveryNotification{
			CustomerID:   pkg.CustomerID,
			OrderID:      pkg.OrderID,
			PackageID:    pkg.PackageID,
			SellerID:     pkg.SellerID,
			ProductID:    pkg.ProductID,
			ProductName:  pkg.ProductName,
			Status:       events.PackageDelivered,
			DeliveryDate: now,
			InstanceID:   instanceID,
		}); err != nil {
			return 0, err
		}
	}

	if priorDelivered+len(batch) == sh.PackageCount {
		if err := s.transition(ctx, key, events.ShipmentConcluded, now, instanceID); err != nil {
			return 0, err
		}
	}
	return len(batch), nil
}

// transition advances a shipment's status and publishes the matching
// notification.
func (s *Service) transition(ctx context.Context, key ShipmentKey, status events.ShipmentStatus, now time.Time, instanceID string) error {
	if err := s.repo.UpdateShipmentStatus(ctx, key.CustomerID, key.OrderID, status); err != nil {
		return err
	}
	return s.pub.Publish(ctx, events.TopicShipment, events.ShipmentNotification{
		CustomerID: key.CustomerID,
		OrderID:    key.OrderID,
		EventDate:  now,
		InstanceID: instanceID,
		Status:     status,
	})
}
