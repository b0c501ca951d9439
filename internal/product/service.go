package product

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

// Service applies catalog writes and publishes the resulting change events.
// Unlike the listener-driven steps, it is invoked directly by the outer edge.
type Service struct {
	repo Repository
	db   storage.Runner
	pub  bus.Publisher
	log  *slog.Logger
}

// NewService wires a product service.
func NewService(repo Repository, db storage.Runner, pub bus.Publisher, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, pub: pub, log: log}
}

// Register binds the catalog command channels on the dispatcher.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.ProductPriceUpdateChannel, s.ProcessPriceUpdate, s.ProcessPoisonPriceUpdate)
	bus.JSON(d, events.ProductUpdateChannel, s.processProductUpdated, s.poisonProductUpdated)
}

func (s *Service) processProductUpdated(ctx context.Context, update events.ProductUpdated) error {
	return s.ProcessProductUpdate(ctx, productFromEvent(update))
}

func (s *Service) poisonProductUpdated(ctx context.Context, update events.ProductUpdated) error {
	return s.ProcessPoisonProductUpdate(ctx, productFromEvent(update))
}

func productFromEvent(update events.ProductUpdated) Product {
	return Product{
		SellerID:     update.SellerID,
		ProductID:    update.ProductID,
		Name:         update.Name,
		SKU:          update.SKU,
		Category:     update.Category,
		Description:  update.Description,
		Price:        update.Price,
		FreightValue: update.FreightValue,
		Status:       update.Status,
		Version:      update.Version,
	}
}

// ProcessCreateProduct upserts a product row.
func (s *Service) ProcessCreateProduct(ctx context.Context, p Product) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		p.UpdatedAt = time.Now().UTC()
		_, err := s.repo.Get(ctx, p.SellerID, p.ProductID)
		if errors.Is(err, ErrNotFound) {
			return s.repo.Insert(ctx, &p)
		}
		if err != nil {
			return err
		}
		return s.repo.Update(ctx, &p)
	})
}

// ProcessPriceUpdate applies a price change if the carried version still
// matches the stored one; a mismatch means the change arrived out of order
// and the write is skipped. The event is published either way because cart
// items holding the event's version must still be repriced.
func (s *Service) ProcessPriceUpdate(ctx context.Context, update events.PriceUpdated) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, update.SellerID, update.ProductID)
		if err != nil {
			return err
		}
		if p.Version == update.Version {
			p.Price = update.Price
			p.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, p); err != nil {
				return err
			}
		}
		return s.pub.Publish(ctx, events.TopicPriceChanges, update)
	})
}

// ProcessPoisonPriceUpdate emits the ERROR mark for a failed price update.
func (s *Service) ProcessPoisonPriceUpdate(ctx context.Context, update events.PriceUpdated) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       update.InstanceID,
		Type:      saga.PriceUpdate,
		SubjectID: strconv.Itoa(update.SellerID),
		Status:    saga.StatusError,
		Source:    "product",
	})
}

// ProcessProductUpdate overwrites a product and announces the new version.
func (s *Service) ProcessProductUpdate(ctx context.Context, p Product) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		if _, err := s.repo.GetForUpdate(ctx, p.SellerID, p.ProductID); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, &p); err != nil {
			return err
		}
		return s.pub.Publish(ctx, events.TopicProductChanges, events.ProductUpdated{
			SellerID:     p.SellerID,
			ProductID:    p.ProductID,
			Name:         p.Name,
			SKU:          p.SKU,
			Category:     p.Category,
			Description:  p.Description,
			Price:        p.Price,
			FreightValue: p.FreightValue,
			Status:       p.Status,
			Version:      p.Version,
		})
	})
}

// ProcessPoisonProductUpdate emits the ERROR mark for a failed overwrite.
// The product version doubles as the saga instance id for this flow.
func (s *Service) ProcessPoisonProductUpdate(ctx context.Context, p Product) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       p.Version,
		Type:      saga.UpdateProduct,
		SubjectID: strconv.Itoa(p.SellerID),
		Status:    saga.StatusError,
		Source:    "product",
	})
}
