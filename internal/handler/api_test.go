package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"go-material-store/internal/app"
	"go-material-store/internal/gateway"
	"go-material-store/internal/testdb"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/config"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	serverKey     = "SB-Mid-server-api-test"
	adminEmail    = "admin@store.test"
	adminPassword = "admin-password"
)

type stubGateway struct {
	mu       sync.Mutex
	created  int
	statuses map[string]*gateway.Result
}

func (g *stubGateway) CreateTransaction(_ context.Context, req gateway.TransactionRequest) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return &gateway.Result{
		Success:           true,
		StatusCode:        "201",
		TransactionID:     "gw-" + req.OrderID,
		OrderID:           req.OrderID,
		GrossAmount:       strconv.FormatInt(req.GrossAmount, 10) + ".00",
		PaymentType:       "bank_transfer",
		TransactionStatus: "pending",
		VANumbers:         []gateway.VANumber{{Bank: "bca", VANumber: "8800999999"}},
	}, nil
}

func (g *stubGateway) CheckStatus(_ context.Context, orderID string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.statuses[orderID]; ok {
		return res, nil
	}
	return nil, gateway.ErrTransactionNotFound
}

func (g *stubGateway) Cancel(_ context.Context, orderID string) (*gateway.Result, error) {
	return &gateway.Result{Success: true, StatusCode: "200", OrderID: orderID, TransactionStatus: "cancel"}, nil
}

func (g *stubGateway) Approve(_ context.Context, orderID string) (*gateway.Result, error) {
	return &gateway.Result{Success: true, StatusCode: "200", OrderID: orderID, TransactionStatus: "capture", FraudStatus: "accept"}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, string, map[string]any) {}

type api struct {
	app *fiber.App
	db  *gorm.DB
	gw  *stubGateway
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testdb.Open(t)
	cfg := &config.Config{
		App:     config.AppConfig{Name: "store-test"},
		JWT:     config.JWTConfig{Secret: "api-test-secret", Issuer: "store-test", ExpirationHours: 1},
		Gateway: config.GatewayConfig{ServerKey: serverKey, DefaultBank: "bca"},
		Tax:     config.TaxConfig{Rate: "0.11", Rounding: "half_up"},
		Redis:   config.RedisConfig{SessionTTL: time.Minute, DedupTTL: time.Hour},
		Reconcile: config.ReconcileConfig{
			StaleAfter: 30 * time.Minute,
			BatchSize:  10,
		},
	}
	gw := &stubGateway{statuses: map[string]*gateway.Result{}}
	services, err := app.NewServices(app.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   logger.Nop(),
		Gateway:  gw,
		Store:    cache.NewMemory(),
		Notifier: nopNotifier{},
	})
	require.NoError(t, err)
	require.NoError(t, services.Access.Seed(context.Background(), adminEmail, adminPassword))

	fiberApp := fiber.New()
	services.Router(logger.Nop()).Mount(fiberApp)
	return &api{app: fiberApp, db: db, gw: gw}
}

// do sends a JSON request and decodes the JSON response into a map.
func (a *api) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reader = bytes.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (a *api) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (a *api) customer(t *testing.T, email string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "password1", "full_name": "Budi Santoso",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return a.login(t, email, "password1")
}

func (a *api) address(t *testing.T, token string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/addresses", token, map[string]any{
		"recipient": "Budi", "phone": "0812000000", "street": "Jl. Merdeka 1", "city": "Bandung", "postal_code": "40111",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func notificationBody(ref, transactionStatus, gross, key string) []byte {
	sig := gateway.Signature(ref, "200", gross, key)
	return []byte(`{"order_id":"` + ref + `","transaction_id":"gw-` + ref +
		`","transaction_status":"` + transactionStatus + `","fraud_status":"","status_code":"200","gross_amount":"` +
		gross + `","signature_key":"` + sig + `","payment_type":"bank_transfer"}`)
}
