package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"go-material-store/internal/gateway"
	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	"go-material-store/internal/testdb"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testServerKey = "SB-Mid-server-test"

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	created   []gateway.TransactionRequest
	statuses  map[string]*gateway.Result
	cancelled []string
	approved  []string
	// onCreate runs after the gateway accepts a transaction, before the reply is returned.
	onCreate func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]*gateway.Result{}}
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req gateway.TransactionRequest) (*gateway.Result, error) {
	g.mu.Lock()
	g.created = append(g.created, req)
	createErr, onCreate := g.createErr, g.onCreate
	g.mu.Unlock()
	if createErr != nil {
		return nil, createErr
	}
	if onCreate != nil {
		onCreate()
	}
	return &gateway.Result{
		Success:           true,
		StatusCode:        "201",
		TransactionID:     "gw-" + req.OrderID,
		OrderID:           req.OrderID,
		GrossAmount:       strconv.FormatInt(req.GrossAmount, 10) + ".00",
		PaymentType:       "bank_transfer",
		TransactionStatus: "pending",
		VANumbers:         []gateway.VANumber{{Bank: "bca", VANumber: "8800123456"}},
	}, nil
}

func (g *fakeGateway) CheckStatus(_ context.Context, orderID string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.statuses[orderID]; ok {
		return res, nil
	}
	return nil, gateway.ErrTransactionNotFound
}

func (g *fakeGateway) Cancel(_ context.Context, orderID string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderID)
	return &gateway.Result{Success: true, StatusCode: "200", OrderID: orderID, TransactionStatus: "cancel"}, nil
}

func (g *fakeGateway) Approve(_ context.Context, orderID string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approved = append(g.approved, orderID)
	return &gateway.Result{Success: true, StatusCode: "200", OrderID: orderID,
		TransactionStatus: "capture", FraudStatus: "accept"}, nil
}

func (g *fakeGateway) setCreateErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func (g *fakeGateway) setOnCreate(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCreate = fn
}

func (g *fakeGateway) cancelledRefs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}

func (g *fakeGateway) setStatus(ref string, res *gateway.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[ref] = res
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type sentNotification struct {
	UserID  uuid.UUID
	Kind    string
	Payload map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Kind == kind {
			c++
		}
	}
	return c
}

type harness struct {
	db       *gorm.DB
	gw       *fakeGateway
	notifier *recordingNotifier

	products repository.ProductRepository
	carts    repository.CartRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository

	ledger       *StockLedger
	cart         CartService
	checkout     CheckoutService
	reconciler   ReconcilerService
	cancellation CancellationService
	fulfillment  FulfillmentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.Open(t)

	h := &harness{
		db:       db,
		gw:       newFakeGateway(),
		notifier: &recordingNotifier{},
		products: repository.NewProductRepo(db),
		carts:    repository.NewCartRepo(db),
		orders:   repository.NewOrderRepo(db),
		payments: repository.NewPaymentRepo(db),
	}
	h.ledger = NewStockLedger(db, h.products)
	h.cart = NewCartService(db, h.carts, h.products, h.orders)
	h.checkout = NewCheckoutService(CheckoutDeps{
		DB:        db,
		Carts:     h.carts,
		Products:  h.products,
		Orders:    h.orders,
		Payments:  h.payments,
		Addresses: repository.NewAddressRepo(db),
		Users:     repository.NewUserRepo(db),
		Ledger:    h.ledger,
		Gateway:   h.gw,
		Tax:       money.MustTaxCalculator("0.11", "half_up"),
	})
	h.reconciler = NewReconcilerService(ReconcilerDeps{
		DB:        db,
		Orders:    h.orders,
		Payments:  h.payments,
		Carts:     h.carts,
		Gateway:   h.gw,
		ServerKey: testServerKey,
		Dedup:     cache.NewMemory(),
		Notifier:  h.notifier,
	})
	h.cancellation = NewCancellationService(CancellationDeps{
		DB:       db,
		Orders:   h.orders,
		Payments: h.payments,
		Ledger:   h.ledger,
		Gateway:  h.gw,
		Notifier: h.notifier,
	})
	h.fulfillment = NewFulfillmentService(db, h.orders, h.carts, h.notifier, nil)
	return h
}

// customer seeds a user with an address.
func (h *harness) customer(t *testing.T, email string) (*model.User, *model.Address) {
	t.Helper()
	u := testdb.SeedUser(t, h.db, email)
	return u, testdb.SeedAddress(t, h.db, u.ID)
}

// placeOrder puts qty of product in the user's cart and checks it out.
func (h *harness) placeOrder(t *testing.T, user *model.User, address *model.Address, product *model.Product, qty int) *CheckoutResult {
	t.Helper()
	ctx := context.Background()
	_, err := h.cart.AddItem(ctx, user.ID, product.ID, qty)
	require.NoError(t, err)
	res, err := h.checkout.Checkout(ctx, user.ID, CheckoutRequest{AddressID: address.ID})
	require.NoError(t, err)
	return res
}

// notification builds a signed callback body for a payment reference.
func notification(ref, transactionStatus, fraudStatus, gross string) []byte {
	return notificationWithKey(ref, transactionStatus, fraudStatus, gross, testServerKey)
}

func notificationWithKey(ref, transactionStatus, fraudStatus, gross, key string) []byte {
	sig := gateway.Signature(ref, "200", gross, key)
	return []byte(`{"order_id":"` + ref + `","transaction_id":"gw-` + ref +
		`","transaction_status":"` + transactionStatus + `","fraud_status":"` + fraudStatus +
		`","status_code":"200","gross_amount":"` + gross + `","signature_key":"` + sig +
		`","payment_type":"bank_transfer"}`)
}

func countRows(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}
