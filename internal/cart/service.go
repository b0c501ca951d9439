package cart

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

// Service implements the cart saga step.
type Service struct {
	carts    Repository
	replicas ReplicaRepository
	db       storage.Runner
	pub      bus.Publisher
	log      *slog.Logger
}

// NewService wires a cart service.
func NewService(carts Repository, replicas ReplicaRepository, db storage.Runner, pub bus.Publisher, log *slog.Logger) *Service {
	return &Service{carts: carts, replicas: replicas, db: db, pub: pub, log: log}
}

// Register binds the cart's input channels on the dispatcher, including the
// checkout command channel the outer edge starts sessions on.
func (s *Service) Register(d *bus.Dispatcher) {
	bus.JSON(d, events.CartCheckoutChannel, s.NotifyCheckout, s.abortCheckout)
	bus.JSON(d, events.CartPriceUpdateChannel, s.ProcessPriceUpdate, s.ProcessPoisonPriceUpdate)
	bus.JSON(d, events.CartProductUpdateChannel, s.ProcessProductUpdated, s.ProcessPoisonProductUpdated)
}

func (s *Service) abortCheckout(ctx context.Context, checkout events.CustomerCheckout) error {
	return s.ProcessPoisonCheckout(ctx, checkout, saga.StatusAbort)
}

// AddItem puts a line into the customer's cart. When a replica exists the
// authoritative price and version are copied onto the line; the version
// token is what checkout later compares for staleness.
func (s *Service) AddItem(ctx context.Context, item Item) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		c, err := s.carts.GetCart(ctx, item.CustomerID)
		if errors.Is(err, ErrCartNotFound) {
			c = &Cart{CustomerID: item.CustomerID, Status: StatusOpen, UpdatedAt: time.Now().UTC()}
			if err := s.carts.InsertCart(ctx, c); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		replica, err := s.replicas.Get(ctx, item.SellerID, item.ProductID)
		if err == nil {
			item.UnitPrice = replica.Price
			item.Version = replica.Version
		} else if !errors.Is(err, ErrReplicaNotFound) {
			return err
		}
		return s.carts.UpsertItem(ctx, &item)
	})
}

// NotifyCheckout seals the cart and publishes ReserveStock for the session.
// Divergent lines (version matches the replica but price does not) are
// dropped before the event is built: they must not be charged at a stale
// price.
func (s *Service) NotifyCheckout(ctx context.Context, checkout events.CustomerCheckout) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		items, err := s.GetItemsWithoutDivergencies(ctx, checkout.CustomerID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}
		c, err := s.carts.GetCart(ctx, checkout.CustomerID)
		if err != nil {
			return err
		}
		c.Status = StatusCheckoutSent
		if err := s.carts.UpdateCart(ctx, c); err != nil {
			return err
		}
		if err := s.seal(ctx, c); err != nil {
			return err
		}
		wire := make([]events.CartItem, 0, len(items))
		for _, it := range items {
			wire = append(wire, events.CartItem{
				SellerID:     it.SellerID,
				ProductID:    it.ProductID,
				ProductName:  it.ProductName,
				UnitPrice:    it.UnitPrice,
				FreightValue: it.FreightValue,
				Quantity:     it.Quantity,
				Voucher:      it.Voucher,
				Version:      it.Version,
			})
		}
		return s.pub.Publish(ctx, events.TopicCheckout, events.ReserveStock{
			Timestamp:  time.Now().UTC(),
			Customer:   checkout,
			Items:      wire,
			InstanceID: checkout.InstanceID,
		})
	})
}

// seal clears the cart lines and reopens the head row.
func (s *Service) seal(ctx context.Context, c *Cart) error {
	if err := s.carts.DeleteItems(ctx, c.CustomerID); err != nil {
		return err
	}
	c.Status = StatusOpen
	c.UpdatedAt = time.Now().UTC()
	return s.carts.UpdateCart(ctx, c)
}

// ProcessPoisonCheckout emits the session's terminating mark.
func (s *Service) ProcessPoisonCheckout(ctx context.Context, checkout events.CustomerCheckout, status saga.Status) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       checkout.InstanceID,
		Type:      saga.CustomerSession,
		SubjectID: strconv.Itoa(checkout.CustomerID),
		Status:    status,
		Source:    "cart",
	})
}

// GetItemsWithoutDivergencies filters the customer's cart against the
// replica cache. A line whose version matches the replica but whose price
// differs is divergent and excluded; a line whose version differs is kept,
// its staleness is someone else's update still in flight.
func (s *Service) GetItemsWithoutDivergencies(ctx context.Context, customerID int) ([]Item, error) {
	items, err := s.carts.GetItems(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	keys := make([]ProductKey, 0, len(items))
	for _, it := range items {
		keys = append(keys, ProductKey{SellerID: it.SellerID, ProductID: it.ProductID})
	}
	replicas, err := s.replicas.GetByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	divergent := make(map[ProductKey]bool, len(replicas))
	byKey := make(map[ProductKey]Item, len(items))
	for _, it := range items {
		byKey[ProductKey{it.SellerID, it.ProductID}] = it
	}
	for _, rep := range replicas {
		k := ProductKey{rep.SellerID, rep.ProductID}
		it, ok := byKey[k]
		if !ok {
			continue
		}
		if it.Version == rep.Version && it.UnitPrice != rep.Price {
			divergent[k] = true
		}
	}
	kept := make([]Item, 0, len(items))
	for _, it := range items {
		if !divergent[ProductKey{it.SellerID, it.ProductID}] {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

// ProcessPriceUpdate applies a price change to the replica cache when the
// version token matches, and reprices cart lines holding the event's version
// regardless of the match. Cart-side staleness is resolved again at checkout
// by the divergence filter.
func (s *Service) ProcessPriceUpdate(ctx context.Context, update events.PriceUpdated) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		rep, err := s.replicas.GetForUpdate(ctx, update.SellerID, update.ProductID)
		if err != nil && !errors.Is(err, ErrReplicaNotFound) {
			return err
		}
		if rep != nil && rep.Version == update.Version {
			rep.Price = update.Price
			if err := s.replicas.Upsert(ctx, rep); err != nil {
				return err
			}
		}
		items, err := s.carts.GetItemsByProduct(ctx, update.SellerID, update.ProductID, update.Version)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].UnitPrice = update.Price
			if err := s.carts.UpsertItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		return saga.Emit(ctx, s.pub, saga.TransactionMark{
			TID:       update.InstanceID,
			Type:      saga.PriceUpdate,
			SubjectID: strconv.Itoa(update.SellerID),
			Status:    saga.StatusSuccess,
			Source:    "cart",
		})
	})
}

// ProcessPoisonPriceUpdate emits the ABORT mark for a failed price update.
func (s *Service) ProcessPoisonPriceUpdate(ctx context.Context, update events.PriceUpdated) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       update.InstanceID,
		Type:      saga.PriceUpdate,
		SubjectID: strconv.Itoa(update.SellerID),
		Status:    saga.StatusAbort,
		Source:    "cart",
	})
}

// ProcessProductUpdated refreshes the replica cache with the new product.
func (s *Service) ProcessProductUpdated(ctx context.Context, update events.ProductUpdated) error {
	return s.db.RunInTx(ctx, storage.TxOptions{}, func(ctx context.Context) error {
		return s.replicas.Upsert(ctx, &ProductReplica{
			SellerID:  update.SellerID,
			ProductID: update.ProductID,
			Name:      update.Name,
			Price:     update.Price,
			Version:   update.Version,
		})
	})
}

// ProcessPoisonProductUpdated emits the ABORT mark for a failed replica
// refresh. The product version doubles as the saga instance id.
func (s *Service) ProcessPoisonProductUpdated(ctx context.Context, update events.ProductUpdated) error {
	return saga.Emit(ctx, s.pub, saga.TransactionMark{
		TID:       update.Version,
		Type:      saga.UpdateProduct,
		SubjectID: strconv.Itoa(update.SellerID),
		Status:    saga.StatusAbort,
		Source:    "cart",
	})
}

// Cleanup wipes both stores. Test harness only.
func (s *Service) Cleanup(ctx context.Context) error {
	if err := s.carts.Cleanup(ctx); err != nil {
		return err
	}
	return s.replicas.Cleanup(ctx)
}
