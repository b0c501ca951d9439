package saga_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketflow/internal/aggregator"
	"marketflow/internal/bus"
	"marketflow/internal/cart"
	"marketflow/internal/events"
	"marketflow/internal/order"
	"marketflow/internal/payment"
	"marketflow/internal/product"
	"marketflow/internal/saga"
	"marketflow/internal/shipment"
	"marketflow/internal/stock"
	"marketflow/internal/storage"
)

// world wires every service on the in-process bus, the way the binary does
// in memory mode.
type world struct {
	bus       *bus.MemoryBus
	carts     *cart.Service
	stocks    *stock.MemoryRepository
	orders    *order.MemoryRepository
	payments  *payment.MemoryRepository
	shipments *shipment.Service
	shipRepo  *shipment.MemoryRepository
	products  *product.MemoryRepository
	replicas  *cart.MemoryReplicaRepository
	successes chan aggregator.TypedOutput
	poisons   chan aggregator.TypedMark
}

func newWorld(t *testing.T) *world {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := storage.NewMemoryRunner()
	mb := bus.NewMemoryBus(events.Routes(), logger)
	d := bus.NewDispatcher(logger)

	w := &world{
		bus:       mb,
		stocks:    stock.NewMemoryRepository(),
		orders:    order.NewMemoryRepository(),
		payments:  payment.NewMemoryRepository(),
		shipRepo:  shipment.NewMemoryRepository(),
		products:  product.NewMemoryRepository(),
		replicas:  cart.NewMemoryReplicaRepository(),
		successes: make(chan aggregator.TypedOutput, 64),
		poisons:   make(chan aggregator.TypedMark, 64),
	}
	w.carts = cart.NewService(cart.NewMemoryRepository(), w.replicas, runner, mb, logger)
	w.shipments = shipment.NewService(w.shipRepo, runner, mb, logger)

	product.NewService(w.products, runner, mb, logger).Register(d)
	w.carts.Register(d)
	stock.NewService(w.stocks, runner, mb, logger).Register(d)
	order.NewService(w.orders, runner, mb, logger).Register(d)
	payment.NewService(w.payments, runner, mb, payment.ApprovingProvider{}, logger).Register(d)
	w.shipments.Register(d)
	aggregator.New(aggregator.ChannelSink{
		Successes: w.successes,
		Poisons:   w.poisons,
	}, logger).Register(d)

	mb.Attach(d)
	return w
}

func (w *world) drainedSuccesses() []aggregator.TypedOutput {
	var out []aggregator.TypedOutput
	for {
		select {
		case s := <-w.successes:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestCheckoutSessionRunsToDelivery(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.stocks.Insert(ctx, &stock.Item{
		SellerID: 1, ProductID: 10, QtyAvailable: 8, Version: "v1",
	}))
	require.NoError(t, w.replicas.Upsert(ctx, &cart.ProductReplica{
		SellerID: 1, ProductID: 10, Name: "lamp", Price: 10, Version: "v1",
	}))
	require.NoError(t, w.carts.AddItem(ctx, cart.Item{
		CustomerID: 5, SellerID: 1, ProductID: 10, ProductName: "lamp",
		Quantity: 2, FreightValue: 2,
	}))

	require.NoError(t, w.bus.Publish(ctx, events.CartCheckoutChannel, events.CustomerCheckout{
		CustomerID: 5, PaymentType: "CREDIT_CARD", Installments: 1, InstanceID: "tid-1",
	}))
	w.bus.Drain(ctx)

	// The whole chain ran: reservation, invoicing, charge, shipment.
	o, err := w.orders.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, o.TotalAmount)
	assert.Equal(t, 22.0, o.TotalInvoice)

	lines, err := w.payments.GetLines(ctx, 5, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, lines)

	sh, err := w.shipRepo.GetShipment(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentApproved, sh.Status)

	item, err := w.stocks.Find(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, item.QtyAvailable)
	assert.Equal(t, 0, item.QtyReserved)
	assert.Equal(t, 1, item.OrderCount)

	successes := w.drainedSuccesses()
	require.Len(t, successes, 1)
	assert.Equal(t, saga.CustomerSession, successes[0].Type)
	assert.Equal(t, "tid-1", successes[0].Output.TID)

	// Delivery sweep concludes the shipment and the order follows.
	require.NoError(t, w.shipments.UpdateShipment(ctx, "sweep-1"))
	w.bus.Drain(ctx)

	sh, err = w.shipRepo.GetShipment(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentConcluded, sh.Status)
	o, err = w.orders.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, o.Status)
	assert.False(t, o.DeliveredCarrierDate.IsZero())
	assert.False(t, o.DeliveredCustomerDate.IsZero())
}

func TestCheckoutWithNothingReservableAborts(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.carts.AddItem(ctx, cart.Item{
		CustomerID: 5, SellerID: 1, ProductID: 10, Quantity: 2,
	}))
	require.NoError(t, w.bus.Publish(ctx, events.CartCheckoutChannel, events.CustomerCheckout{
		CustomerID: 5, InstanceID: "tid-2",
	}))
	w.bus.Drain(ctx)

	var aborted aggregator.TypedMark
	select {
	case aborted = <-w.poisons:
	default:
		t.Fatal("expected a poison mark")
	}
	assert.Equal(t, saga.CustomerSession, aborted.Type)
	assert.Equal(t, saga.StatusAbort, aborted.Mark.Status)
	assert.Equal(t, "stock", aborted.Mark.Source)

	_, err := w.orders.GetOrder(ctx, 5, 1)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPriceUpdateFlowsFromCatalogToCart(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.products.Insert(ctx, &product.Product{
		SellerID: 1, ProductID: 10, Name: "lamp", Price: 10, Version: "v1",
	}))
	require.NoError(t, w.replicas.Upsert(ctx, &cart.ProductReplica{
		SellerID: 1, ProductID: 10, Name: "lamp", Price: 10, Version: "v1",
	}))
	require.NoError(t, w.carts.AddItem(ctx, cart.Item{
		CustomerID: 5, SellerID: 1, ProductID: 10, Quantity: 1,
	}))

	require.NoError(t, w.bus.Publish(ctx, events.ProductPriceUpdateChannel, events.PriceUpdated{
		InstanceID: "tid-3", SellerID: 1, ProductID: 10, Price: 14, Version: "v1",
	}))
	w.bus.Drain(ctx)

	p, err := w.products.Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 14.0, p.Price)
	rep, err := w.replicas.Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 14.0, rep.Price)

	successes := w.drainedSuccesses()
	require.Len(t, successes, 1)
	assert.Equal(t, saga.PriceUpdate, successes[0].Type)
	assert.Equal(t, "tid-3", successes[0].Output.TID)
}
