package service

import (
	"context"
	"sync"
	"testing"

	"go-material-store/internal/gateway"
	"go-material-store/internal/model"
	"go-material-store/internal/testdb"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutComputesTotalsAndReservesStock(t *testing.T) {
	h := newHarness(t)
	user, addr := h.customer(t, "budi@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen 50kg", 10000, 5)

	res := h.placeOrder(t, user, addr, p, 2)

	order := res.Order
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, int64(20000), order.SubtotalAmount)
	assert.Equal(t, int64(2200), order.TaxAmount)
	assert.Equal(t, int64(22200), order.TotalAmount)
	assert.Equal(t, 3, testdb.Stock(t, h.db, p.ID))

	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(10000), order.Items[0].Price)
	require.NotNil(t, order.Shipment)
	assert.Equal(t, model.ShipmentPending, order.Shipment.Status)
	require.Len(t, order.Shipment.Items, 1)
	assert.Equal(t, 2, order.Shipment.Items[0].Quantity)

	require.False(t, res.PaymentPending)
	require.NotNil(t, res.Payment)
	assert.Equal(t, model.PaymentPending, res.Payment.Status)
	assert.Equal(t, int64(22200), res.Payment.Amount)
	require.NotNil(t, res.Payment.TransactionID)
	assert.Equal(t, res.Payment.GatewayReference(), *res.Payment.TransactionID)
	assert.Equal(t, "8800123456", res.Payment.VANumber)

	require.Equal(t, 1, h.gw.createCalls())
	require.NoError(t, gateway.ReconcileItems(h.gw.created[0].Items, 22200))

	movements, err := h.ledger.Movements(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementOut, movements[0].Type)
	assert.Equal(t, 3, movements[0].StockAfter)

	// the cart stays until payment is confirmed
	view, err := h.cart.List(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
}

func TestCheckoutPriceSnapshotSurvivesPriceChange(t *testing.T) {
	h := newHarness(t)
	user, addr := h.customer(t, "sari@example.com")
	p := testdb.SeedProduct(t, h.db, "Bata Merah", 1000, 100)

	res := h.placeOrder(t, user, addr, p, 10)
	require.NoError(t, h.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("price", 5000).Error)

	order, err := h.orders.FindByID(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.Items[0].Price)
	assert.Equal(t, int64(11100), order.TotalAmount)
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	h := newHarness(t)
	p := testdb.SeedProduct(t, h.db, "Keramik 40x40", 75000, 1)

	ctx := context.Background()
	u1, a1 := h.customer(t, "a@example.com")
	u2, a2 := h.customer(t, "b@example.com")
	_, err := h.cart.AddItem(ctx, u1.ID, p.ID, 1)
	require.NoError(t, err)
	_, err = h.cart.AddItem(ctx, u2.ID, p.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyer := range []struct {
		user *model.User
		addr *model.Address
	}{{u1, a1}, {u2, a2}} {
		wg.Add(1)
		go func(i int, user *model.User, addr *model.Address) {
			defer wg.Done()
			_, errs[i] = h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: addr.ID})
		}(i, buyer.user, buyer.addr)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.Is(err, apperrors.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, testdb.Stock(t, h.db, p.ID))
	assert.Equal(t, int64(1), countRows(t, h.db, &model.Order{}))
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "rina@example.com")
	plenty := testdb.SeedProduct(t, h.db, "Pasir", 200000, 5)
	scarce := testdb.SeedProduct(t, h.db, "Besi 10mm", 90000, 1)

	_, err := h.cart.AddItem(ctx, user.ID, plenty.ID, 2)
	require.NoError(t, err)
	_, err = h.cart.AddItem(ctx, user.ID, scarce.ID, 1)
	require.NoError(t, err)
	// someone else bought the last one after it went into the cart
	require.NoError(t, h.db.Model(&model.Product{}).Where("id = ?", scarce.ID).Update("stock", 0).Error)

	_, err = h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: addr.ID})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientStock))
	shortage, ok := apperrors.As(err).Details().(model.StockShortage)
	require.True(t, ok)
	assert.Equal(t, scarce.ID.String(), shortage.ProductID)

	assert.Equal(t, 5, testdb.Stock(t, h.db, plenty.ID))
	assert.Equal(t, 0, testdb.Stock(t, h.db, scarce.ID))
	assert.Equal(t, int64(0), countRows(t, h.db, &model.Order{}))
	assert.Equal(t, int64(0), countRows(t, h.db, &model.OrderItem{}))
	assert.Equal(t, int64(0), countRows(t, h.db, &model.Payment{}))
	assert.Equal(t, int64(0), countRows(t, h.db, &model.Shipment{}))
	assert.Equal(t, int64(0), countRows(t, h.db, &model.StockMovement{}))
	assert.Equal(t, 0, h.gw.createCalls())
}

func TestCheckoutValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "andi@example.com")
	_, strangerAddr := h.customer(t, "stranger@example.com")
	p := testdb.SeedProduct(t, h.db, "Cat Tembok", 150000, 10)

	_, err := h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: addr.ID})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = h.cart.AddItem(ctx, user.ID, p.ID, 1)
	require.NoError(t, err)

	_, err = h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: strangerAddr.ID})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: addr.ID, PaymentMethod: "cash"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	assert.Equal(t, 10, testdb.Stock(t, h.db, p.ID))
}

func TestCheckoutSelectedItemsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "dewi@example.com")
	p1 := testdb.SeedProduct(t, h.db, "Paku", 500, 100)
	p2 := testdb.SeedProduct(t, h.db, "Kawat", 700, 100)

	_, err := h.cart.AddItem(ctx, user.ID, p1.ID, 4)
	require.NoError(t, err)
	view, err := h.cart.AddItem(ctx, user.ID, p2.ID, 3)
	require.NoError(t, err)

	var selected model.CartLine
	for _, l := range view.Lines {
		if l.ProductID == p2.ID {
			selected = l
		}
	}
	res, err := h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: addr.ID, ItemIDs: []uuid.UUID{selected.ItemID}})
	require.NoError(t, err)

	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, p2.ID, res.Order.Items[0].ProductID)
	assert.Equal(t, 100, testdb.Stock(t, h.db, p1.ID))
	assert.Equal(t, 97, testdb.Stock(t, h.db, p2.ID))
}

func TestGatewayFailureLeavesResumableOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "joko@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen 50kg", 10000, 5)

	h.gw.setCreateErr(apperrors.New(apperrors.CodeGateway, "connection refused"))
	res := h.placeOrder(t, user, addr, p, 2)

	assert.True(t, res.PaymentPending)
	assert.NotEmpty(t, res.GatewayError)
	assert.Equal(t, model.OrderPending, res.Order.Status)
	require.NotNil(t, res.Payment)
	assert.Nil(t, res.Payment.TransactionID)
	assert.Equal(t, 3, testdb.Stock(t, h.db, p.ID))

	h.gw.setCreateErr(nil)
	resumed, err := h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	require.NoError(t, err)

	assert.False(t, resumed.PaymentPending)
	require.NotNil(t, resumed.Payment.TransactionID)
	assert.Equal(t, res.Payment.ID, resumed.Payment.ID)
	assert.Equal(t, 3, testdb.Stock(t, h.db, p.ID))
	assert.Equal(t, int64(1), countRows(t, h.db, &model.Order{}))
	assert.Equal(t, int64(1), countRows(t, h.db, &model.Payment{}))

	// once attached, resuming again does not call the gateway
	_, err = h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, h.gw.createCalls())
}

func TestResumeAdoptsTransactionTheGatewayAlreadyHas(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "tono@example.com")
	p := testdb.SeedProduct(t, h.db, "Genteng", 4000, 50)

	h.gw.setCreateErr(apperrors.New(apperrors.CodeGateway, "timeout"))
	res := h.placeOrder(t, user, addr, p, 5)
	ref := res.Payment.GatewayReference()

	h.gw.setCreateErr(apperrors.Wrap(apperrors.CodeGateway, gateway.ErrDuplicateOrder, "duplicate order id"))
	h.gw.setStatus(ref, &gateway.Result{
		Success: true, StatusCode: "201", OrderID: ref, TransactionID: "gw-existing",
		PaymentType: "bank_transfer", TransactionStatus: "pending",
		VANumbers: []gateway.VANumber{{Bank: "bni", VANumber: "9880001"}},
	})

	resumed, err := h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, resumed.Payment.TransactionID)
	assert.Equal(t, ref, *resumed.Payment.TransactionID)
	assert.Equal(t, "gw-existing", resumed.Payment.GatewayTransactionID)
	assert.Equal(t, "9880001", resumed.Payment.VANumber)
}

func TestResumeAfterFailedPaymentOpensNewPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "wati@example.com")
	p := testdb.SeedProduct(t, h.db, "Triplek", 85000, 10)

	res := h.placeOrder(t, user, addr, p, 1)
	ref := res.Payment.GatewayReference()

	out, err := h.reconciler.HandleNotification(ctx, notification(ref, "expire", "", "94350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out.Outcome)

	resumed, err := h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, res.Payment.ID, resumed.Payment.ID)
	assert.Equal(t, model.PaymentPending, resumed.Payment.Status)
	assert.Equal(t, int64(94350), resumed.Payment.Amount)
	require.NotNil(t, resumed.Payment.TransactionID)
	assert.Len(t, resumed.Order.Payments, 2)
	assert.Equal(t, 9, testdb.Stock(t, h.db, p.ID))
}

func TestResumeRejectsOtherUsersAndPaidOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "owner@example.com")
	other, _ := h.customer(t, "other@example.com")
	p := testdb.SeedProduct(t, h.db, "Cat Kayu", 60000, 10)

	res := h.placeOrder(t, user, addr, p, 1)

	_, err := h.checkout.ResumePayment(ctx, other.ID, res.Order.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = h.reconciler.HandleNotification(ctx, notification(res.Payment.GatewayReference(), "settlement", "", "66600.00"))
	require.NoError(t, err)

	_, err = h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestCancelDuringGatewayCallVoidsTheTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, addr := h.customer(t, "rina@example.com")
	p := testdb.SeedProduct(t, h.db, "Semen 50kg", 10000, 5)

	h.gw.setCreateErr(apperrors.New(apperrors.CodeGateway, "timeout"))
	res := h.placeOrder(t, user, addr, p, 2)
	require.Nil(t, res.Payment.TransactionID)
	ref := res.Payment.GatewayReference()

	// the customer cancels while the gateway is still creating the transaction
	h.gw.setCreateErr(nil)
	h.gw.setOnCreate(func() {
		_, err := h.cancellation.Cancel(ctx, res.Order.ID, Actor{UserID: user.ID, Kind: ActorCustomer}, "changed my mind")
		require.NoError(t, err)
	})

	resumed, err := h.checkout.ResumePayment(ctx, user.ID, res.Order.ID)
	require.NoError(t, err)
	h.gw.setOnCreate(nil)

	assert.Equal(t, model.OrderCancelled, resumed.Order.Status)
	assert.Equal(t, model.PaymentCancelled, resumed.Payment.Status)
	require.NotNil(t, resumed.Payment.TransactionID)
	assert.Equal(t, ref, *resumed.Payment.TransactionID)
	assert.Contains(t, h.gw.cancelledRefs(), ref)
	assert.Equal(t, 5, testdb.Stock(t, h.db, p.ID))

	// a settlement that slipped through still resolves to the payment and revives nothing
	out, err := h.reconciler.HandleNotification(ctx, notification(ref, "settlement", "", "22200.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Outcome)

	order, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.Equal(t, 5, testdb.Stock(t, h.db, p.ID))
}
