package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketflow/internal/bus"
	"marketflow/internal/events"
	"marketflow/internal/saga"
	"marketflow/internal/storage"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository, *bus.Recorder) {
	t.Helper()
	repo := NewMemoryRepository()
	rec := &bus.Recorder{}
	svc := NewService(repo, storage.NewMemoryRunner(), rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, rec
}

func confirmedCheckout(customerID int, instanceID string, items ...events.CartItem) events.StockConfirmed {
	return events.StockConfirmed{
		Timestamp:  time.Now().UTC(),
		Customer:   events.CustomerCheckout{CustomerID: customerID, InstanceID: instanceID},
		Items:      items,
		InstanceID: instanceID,
	}
}

func TestProcessStockConfirmedAppliesVouchersPerLine(t *testing.T) {
	svc, repo, rec := newTestService(t)

	// Two lines of 20.00 each. The first voucher discounts within the line,
	// the second exceeds its line and is capped; the remainder is forfeited.
	err := svc.ProcessStockConfirmed(context.Background(), confirmedCheckout(5, "tid-1",
		events.CartItem{SellerID: 1, ProductID: 10, UnitPrice: 10, Quantity: 2, Voucher: 5, FreightValue: 2},
		events.CartItem{SellerID: 2, ProductID: 20, UnitPrice: 10, Quantity: 2, Voucher: 25, FreightValue: 3},
	))
	require.NoError(t, err)

	orders := repo.Orders()
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, 40.0, o.TotalItems)
	assert.Equal(t, 15.0, o.TotalAmount)
	assert.Equal(t, 25.0, o.TotalIncentive)
	assert.Equal(t, 5.0, o.TotalFreight)
	assert.Equal(t, 20.0, o.TotalInvoice)
	assert.Equal(t, StatusInvoiced, o.Status)
	assert.Equal(t, 1, o.OrderID)
	assert.Equal(t, "5-"+time.Now().UTC().Format("20060102")+"-1", o.InvoiceNumber)

	lines := repo.Items(5, 1)
	require.Len(t, lines, 2)
	assert.Equal(t, 15.0, lines[0].TotalAmount)
	assert.Equal(t, 0.0, lines[1].TotalAmount)

	payloads := rec.ByTopic(events.TopicInvoiceIssued)
	require.Len(t, payloads, 1)
	var inv events.InvoiceIssued
	require.NoError(t, json.Unmarshal(payloads[0], &inv))
	assert.Equal(t, 20.0, inv.TotalInvoice)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, 5.0, inv.Items[0].TotalIncentive)

	history := repo.HistoryFor(5, 1)
	require.Len(t, history, 1)
	assert.Equal(t, StatusInvoiced, history[0].Status)
}

func TestOrderIDsAreGaplessPerCustomer(t *testing.T) {
	svc, _, rec := newTestService(t)
	const n = 16

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := svc.ProcessStockConfirmed(context.Background(), confirmedCheckout(
				5, fmt.Sprintf("tid-%d", i),
				events.CartItem{SellerID: 1, ProductID: 10, UnitPrice: 10, Quantity: 1},
			))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	payloads := rec.ByTopic(events.TopicInvoiceIssued)
	require.Len(t, payloads, n)
	ids := make([]int, 0, n)
	for _, p := range payloads {
		var inv events.InvoiceIssued
		require.NoError(t, json.Unmarshal(p, &inv))
		ids = append(ids, inv.OrderID)
	}
	sort.Ints(ids)
	for i, id := range ids {
		assert.Equal(t, i+1, id)
	}
}

// failingRepository rejects order inserts so the invoicing transaction fails
// before any row lands.
type failingRepository struct {
	*MemoryRepository
}

func (r failingRepository) InsertOrder(context.Context, *Order) error {
	return errors.New("insert rejected")
}

func TestFailedInvoicingPoisonsSessionExactlyOnce(t *testing.T) {
	mem := NewMemoryRepository()
	rec := &bus.Recorder{}
	svc := NewService(failingRepository{mem}, storage.NewMemoryRunner(), rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d := bus.NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.Register(d)

	body, err := json.Marshal(confirmedCheckout(5, "tid-9",
		events.CartItem{SellerID: 1, ProductID: 10, UnitPrice: 10, Quantity: 1},
	))
	require.NoError(t, err)
	d.Dispatch(context.Background(), bus.Event{Topic: events.OrderStockConfirmedChannel, Payload: body})

	assert.Empty(t, mem.Orders())
	assert.Empty(t, mem.Items(5, 1))
	assert.Empty(t, rec.ByTopic(events.TopicInvoiceIssued))

	marks := rec.ByTopic(saga.MarkTopic(saga.CustomerSession))
	require.Len(t, marks, 1)
	var mark saga.TransactionMark
	require.NoError(t, json.Unmarshal(marks[0], &mark))
	assert.Equal(t, saga.StatusAbort, mark.Status)
	assert.Equal(t, "tid-9", mark.TID)
	assert.Equal(t, "order", mark.Source)
}

func TestPaymentOutcomeTransitions(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.ProcessStockConfirmed(ctx, confirmedCheckout(5, "tid-1",
		events.CartItem{SellerID: 1, ProductID: 10, UnitPrice: 10, Quantity: 1},
	)))

	paidAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ProcessPaymentConfirmed(ctx, events.PaymentConfirmed{
		Customer: events.CustomerCheckout{CustomerID: 5}, OrderID: 1, Date: paidAt,
	}))

	o, err := repo.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentProcessed, o.Status)
	assert.Equal(t, paidAt, o.PaymentDate)
	assert.Len(t, repo.HistoryFor(5, 1), 2)

	require.NoError(t, svc.ProcessPaymentFailed(ctx, events.PaymentFailed{
		Customer: events.CustomerCheckout{CustomerID: 5}, OrderID: 1,
	}))
	o, err = repo.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentFailed, o.Status)
}

func TestShipmentNotificationsDriveDeliveryStatuses(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.ProcessStockConfirmed(ctx, confirmedCheckout(5, "tid-1",
		events.CartItem{SellerID: 1, ProductID: 10, UnitPrice: 10, Quantity: 1},
	)))

	when := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ProcessShipmentNotification(ctx, events.ShipmentNotification{
		CustomerID: 5, OrderID: 1, EventDate: when, Status: events.ShipmentDeliveryInProgress,
	}))
	o, err := repo.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, o.Status)
	assert.Equal(t, when, o.DeliveredCarrierDate)

	require.NoError(t, svc.ProcessShipmentNotification(ctx, events.ShipmentNotification{
		CustomerID: 5, OrderID: 1, EventDate: when.Add(time.Hour), Status: events.ShipmentConcluded,
	}))
	o, err = repo.GetOrder(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, when.Add(time.Hour), o.DeliveredCustomerDate)
}
