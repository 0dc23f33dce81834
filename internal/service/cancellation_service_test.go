package service

import (
	"context"
	"testing"

	"go-material-store/internal/model"
	"go-material-store/internal/testdb"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminCancelsConfirmedOrderAndRestoresStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "budi@example.com")
	q := testdb.SeedProduct(t, h.db, "Keramik", 50000, 10)
	res := h.placeOrder(t, user, addr, q, 3)
	require.Equal(t, 7, testdb.Stock(t, h.db, q.ID))

	admin := Actor{UserID: uuid.New(), Kind: ActorAdmin}
	confirmed, err := h.fulfillment.Confirm(ctx, res.Order.ID, admin)
	require.NoError(t, err)
	require.Equal(t, model.OrderConfirmed, confirmed.Status)

	cancelled, err := h.cancellation.Cancel(ctx, res.Order.ID, admin, "customer called")
	require.NoError(t, err)

	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, ActorAdmin, cancelled.CancelledBy)
	assert.Equal(t, "customer called", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, model.ShipmentCancelled, cancelled.Shipment.Status)
	require.Len(t, cancelled.Payments, 1)
	assert.Equal(t, model.PaymentCancelled, cancelled.Payments[0].Status)
	assert.Equal(t, 10, testdb.Stock(t, h.db, q.ID))

	assert.Equal(t, []string{res.Payment.GatewayReference()}, h.gw.cancelled)
	assert.Equal(t, 1, h.notifier.count(KindOrderCancelled))

	movements, err := h.ledger.Movements(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	var restored *model.StockMovement
	for i := range movements {
		if movements[i].Reason == model.ReasonCancellation {
			restored = &movements[i]
		}
	}
	require.NotNil(t, restored)
	assert.Equal(t, model.MovementIn, restored.Type)
	assert.Equal(t, 3, restored.Quantity)
}

func TestCancelTwiceRestoresOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "sari@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen", 10000, 5)
	res := h.placeOrder(t, user, addr, p, 2)
	admin := Actor{UserID: uuid.New(), Kind: ActorAdmin}

	_, err := h.cancellation.Cancel(ctx, res.Order.ID, admin, "")
	require.NoError(t, err)
	_, err = h.cancellation.Cancel(ctx, res.Order.ID, admin, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	assert.Equal(t, 5, testdb.Stock(t, h.db, p.ID))
	assert.Equal(t, 1, h.notifier.count(KindOrderCancelled))
}

func TestDeliveredOrderCannotBeCancelled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "tomi@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen", 10000, 5)
	res := h.placeOrder(t, user, addr, p, 2)
	admin := Actor{UserID: uuid.New(), Kind: ActorAdmin}

	_, err := h.reconciler.HandleNotification(ctx, notification(res.Payment.GatewayReference(), "settlement", "", "22200.00"))
	require.NoError(t, err)
	_, err = h.fulfillment.Ship(ctx, res.Order.ID, admin, ShipRequest{DeliveryNumber: "JNE-001"})
	require.NoError(t, err)
	_, err = h.fulfillment.Deliver(ctx, res.Order.ID, admin)
	require.NoError(t, err)

	_, err = h.cancellation.Cancel(ctx, res.Order.ID, admin, "too late")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	order, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, order.Status)
	assert.Equal(t, 3, testdb.Stock(t, h.db, p.ID))
	assert.Equal(t, 0, h.notifier.count(KindOrderCancelled))
}

func TestCustomerCancellationRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "owner@example.com")
	stranger, _ := h.customer(t, "stranger@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen", 10000, 10)

	pending := h.placeOrder(t, user, addr, p, 1)
	paid := h.placeOrder(t, user, addr, p, 1)
	_, err := h.reconciler.HandleNotification(ctx, notification(paid.Payment.GatewayReference(), "settlement", "", "11100.00"))
	require.NoError(t, err)

	_, err = h.cancellation.Cancel(ctx, pending.Order.ID, Actor{UserID: stranger.ID, Kind: ActorCustomer}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = h.cancellation.Cancel(ctx, paid.Order.ID, Actor{UserID: user.ID, Kind: ActorCustomer}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	order, err := h.cancellation.Cancel(ctx, pending.Order.ID, Actor{UserID: user.ID, Kind: ActorCustomer}, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.Equal(t, ActorCustomer, order.CancelledBy)
	assert.Equal(t, 9, testdb.Stock(t, h.db, p.ID))
}

func TestCancellingPaidOrderKeepsSuccessfulPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "rani@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen", 10000, 5)
	res := h.placeOrder(t, user, addr, p, 2)
	_, err := h.reconciler.HandleNotification(ctx, notification(res.Payment.GatewayReference(), "settlement", "", "22200.00"))
	require.NoError(t, err)

	order, err := h.cancellation.Cancel(ctx, res.Order.ID, Actor{UserID: uuid.New(), Kind: ActorAdmin}, "out of delivery area")
	require.NoError(t, err)

	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.Equal(t, model.PaymentSuccess, order.Payments[0].Status)
	assert.Empty(t, h.gw.cancelled)
	assert.Equal(t, 5, testdb.Stock(t, h.db, p.ID))

	// a late settlement for a cancelled payment must not revive anything
	out, err := h.reconciler.HandleNotification(ctx, notification(res.Payment.GatewayReference(), "settlement", "", "22200.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out.Outcome)
}
