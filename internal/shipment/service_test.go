package shipment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

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

func paymentFor(customerID, orderID int, instanceID string, items ...events.OrderItem) events.PaymentConfirmed {
	return events.PaymentConfirmed{
		Customer:   events.CustomerCheckout{CustomerID: customerID, InstanceID: instanceID},
		OrderID:    orderID,
		Items:      items,
		InstanceID: instanceID,
	}
}

func shipmentNotifications(t *testing.T, rec *bus.Recorder) []events.ShipmentNotification {
	t.Helper()
	var out []events.ShipmentNotification
	for _, p := range rec.ByTopic(events.TopicShipment) {
		var sn events.ShipmentNotification
		require.NoError(t, json.Unmarshal(p, &sn))
		out = append(out, sn)
	}
	return out
}

func TestProcessShipmentCreatesPackagesAndClosesSession(t *testing.T) {
	svc, repo, rec := newTestService(t)

	err := svc.ProcessShipment(context.Background(), paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 2, FreightValue: 2},
		events.OrderItem{SellerID: 2, ProductID: 20, Quantity: 1, FreightValue: 3},
	))
	require.NoError(t, err)

	sh, err := repo.GetShipment(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentApproved, sh.Status)
	assert.Equal(t, 2, sh.PackageCount)
	assert.Equal(t, 5.0, sh.TotalFreightValue)

	pkgs := repo.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, events.PackageShipped, pkgs[0].Status)
	assert.Equal(t, 1, pkgs[0].PackageID)
	assert.Equal(t, 2, pkgs[1].PackageID)

	notes := shipmentNotifications(t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, events.ShipmentApproved, notes[0].Status)

	marks := rec.ByTopic(saga.MarkTopic(saga.CustomerSession))
	require.Len(t, marks, 1)
	var mark saga.TransactionMark
	require.NoError(t, json.Unmarshal(marks[0], &mark))
	assert.Equal(t, saga.StatusSuccess, mark.Status)
	assert.Equal(t, "shipment", mark.Source)
	assert.Equal(t, "tid-1", mark.TID)
}

func TestSweepDeliversOldestShipmentPerSeller(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 1},
	)))
	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(6, 1, "tid-2",
		events.OrderItem{SellerID: 1, ProductID: 11, Quantity: 1},
	)))

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-1"))

	// Only the older shipment moved.
	first, err := repo.GetShipment(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentConcluded, first.Status)
	second, err := repo.GetShipment(ctx, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentApproved, second.Status)

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-2"))
	second, err = repo.GetShipment(ctx, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentConcluded, second.Status)

	deliveries := rec.ByTopic(events.TopicDelivery)
	assert.Len(t, deliveries, 2)
}

func TestFullDeliveryInOneSweepNotifiesProgressThenConclusion(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 1},
	)))

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-1"))

	// A single-batch conclusion still passes through delivery_in_progress,
	// so downstream order status tracking sees the in-transit step.
	notes := shipmentNotifications(t, rec)
	require.Len(t, notes, 3)
	assert.Equal(t, events.ShipmentApproved, notes[0].Status)
	assert.Equal(t, events.ShipmentDeliveryInProgress, notes[1].Status)
	assert.Equal(t, events.ShipmentConcluded, notes[2].Status)
}

func TestSweepMarksProgressBeforeConclusion(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	// Seller 2's oldest open shipment is the first one, so the second
	// shipment only gets its seller 1 batch on the first sweep.
	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 2, ProductID: 20, Quantity: 1},
	)))
	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(6, 1, "tid-2",
		events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 1},
		events.OrderItem{SellerID: 2, ProductID: 21, Quantity: 1},
	)))

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-1"))

	mixed, err := repo.GetShipment(ctx, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentDeliveryInProgress, mixed.Status)

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-2"))
	mixed, err = repo.GetShipment(ctx, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, events.ShipmentConcluded, mixed.Status)

	var concluded int
	for _, sn := range shipmentNotifications(t, rec) {
		if sn.CustomerID == 6 && sn.Status == events.ShipmentConcluded {
			concluded++
		}
	}
	assert.Equal(t, 1, concluded)
}

func TestSweepWithNothingToDeliverEmitsNoMark(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 1},
	)))

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-1"))
	require.NoError(t, svc.UpdateShipment(ctx, "sweep-2"))

	marks := rec.ByTopic(saga.MarkTopic(saga.UpdateDelivery))
	assert.Len(t, marks, 1)
	deliveries := rec.ByTopic(events.TopicDelivery)
	assert.Len(t, deliveries, 1)
}

func TestConcurrentSweepsDeliverEachPackageOnce(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	for customer := 5; customer < 9; customer++ {
		require.NoError(t, svc.ProcessShipment(ctx, paymentFor(customer, 1, fmt.Sprintf("tid-%d", customer),
			events.OrderItem{SellerID: 1, ProductID: 10, Quantity: 1},
			events.OrderItem{SellerID: 2, ProductID: 20, Quantity: 1},
		)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.UpdateShipment(ctx, fmt.Sprintf("sweep-%d", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[[3]int]int)
	for _, p := range rec.ByTopic(events.TopicDelivery) {
		var dn events.DeliveryNotification
		require.NoError(t, json.Unmarshal(p, &dn))
		seen[[3]int{dn.CustomerID, dn.OrderID, dn.PackageID}]++
	}
	assert.Len(t, seen, 8)
	for key, n := range seen {
		assert.Equalf(t, 1, n, "package %v notified %d times", key, n)
	}
	for _, pkg := range repo.Packages() {
		assert.Equal(t, events.PackageDelivered, pkg.Status)
	}
}

func TestDeliveryNotificationCarriesPackageDetails(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.ProcessShipment(ctx, paymentFor(5, 1, "tid-1",
		events.OrderItem{SellerID: 1, ProductID: 10, ProductName: "lamp", Quantity: 2},
	)))

	require.NoError(t, svc.UpdateShipment(ctx, "sweep-1"))

	payloads := rec.ByTopic(events.TopicDelivery)
	require.Len(t, payloads, 1)
	var dn events.DeliveryNotification
	require.NoError(t, json.Unmarshal(payloads[0], &dn))
	assert.Equal(t, 5, dn.CustomerID)
	assert.Equal(t, 1, dn.PackageID)
	assert.Equal(t, "lamp", dn.ProductName)
	assert.Equal(t, events.PackageDelivered, dn.Status)
	assert.Equal(t, "sweep-1", dn.InstanceID)
}
