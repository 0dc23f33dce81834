package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "go-material-store/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient("SB-server-key", append([]Option{WithBaseURL(srv.URL)}, opts...)...)
	require.NoError(t, err)
	return client
}

func TestCreateTransactionSendsChargeAndParsesVA(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/charge", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "SB-server-key", user)
		assert.Empty(t, pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status_code":"201","status_message":"Success, Bank Transfer transaction is created",
			"transaction_id":"9aed5972","order_id":"PAY-1","gross_amount":"22200.00","payment_type":"bank_transfer",
			"transaction_status":"pending","fraud_status":"accept","va_numbers":[{"bank":"bca","va_number":"812785002530231"}],
			"expiry_time":"2025-01-02 10:00:00"}`))
	})

	res, err := client.CreateTransaction(context.Background(), TransactionRequest{
		OrderID:     "PAY-1",
		GrossAmount: 22200,
		Items:       []ItemDetail{{ID: "p", Name: "Cement", Price: 11100, Quantity: 2}},
		Customer:    CustomerDetails{FirstName: "Budi", Email: "budi@example.com"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	bank, va := res.VA()
	assert.Equal(t, "bca", bank)
	assert.Equal(t, "812785002530231", va)
	require.NotNil(t, res.Expiry())
	assert.NotEmpty(t, res.Raw)

	assert.Equal(t, "bank_transfer", got["payment_type"])
	assert.Equal(t, map[string]any{"bank": "bca"}, got["bank_transfer"])
	details := got["transaction_details"].(map[string]any)
	assert.Equal(t, float64(22200), details["gross_amount"])
}

func TestCreateTransactionRejectsUnreconciledItems(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := client.CreateTransaction(context.Background(), TransactionRequest{
		OrderID:     "PAY-1",
		GrossAmount: 22201,
		Items:       []ItemDetail{{ID: "p", Name: "Cement", Price: 11100, Quantity: 2}},
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestDuplicateOrderIsDistinguishable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":"406","status_message":"The request could not be completed due to a conflict"}`))
	})

	_, err := client.CreateTransaction(context.Background(), TransactionRequest{
		OrderID: "PAY-1", GrossAmount: 100, Items: []ItemDetail{{ID: "p", Name: "x", Price: 100, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateOrder))
	assert.True(t, apperrors.Is(err, apperrors.CodeGateway))
}

func TestServerErrorIsGatewayError(t *testing.T) {
	var mu sync.Mutex
	var observed []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, WithObserver(func(op string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			observed = append(observed, op)
		}
	}))

	_, err := client.CheckStatus(context.Background(), "PAY-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeGateway))
	assert.Equal(t, []string{OpStatus}, observed)
}

func TestCheckStatusAndCancel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/PAY-1/status":
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"status_code":"200","transaction_status":"settlement","order_id":"PAY-1"}`))
		case "/v2/PAY-1/cancel":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"status_code":"412","status_message":"Transaction status cannot be updated"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := client.CheckStatus(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "settlement", res.TransactionStatus)

	res, err = client.Cancel(context.Background(), "PAY-1")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "412", res.StatusCode)
}

func TestStatusRepliesOutsideTwoHundredCarryState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/PAY-1/status":
			_, _ = w.Write([]byte(`{"status_code":"407","status_message":"Success, transaction is expired",` +
				`"transaction_status":"expire","order_id":"PAY-1","gross_amount":"100.00"}`))
		case "/v2/PAY-2/approve":
			_, _ = w.Write([]byte(`{"status_code":"202","status_message":"Deny by Bank [CIMB] with code [05]",` +
				`"transaction_status":"deny","fraud_status":"accept","order_id":"PAY-2"}`))
		case "/v2/PAY-3/status":
			_, _ = w.Write([]byte(`{"status_code":"500","status_message":"Internal server error",` +
				`"transaction_status":"pending","order_id":"PAY-3"}`))
		default:
			_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
		}
	})
	ctx := context.Background()

	res, err := client.CheckStatus(ctx, "PAY-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "407", res.StatusCode)
	assert.Equal(t, "expire", res.TransactionStatus)

	res, err = client.Approve(ctx, "PAY-2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "deny", res.TransactionStatus)

	_, err = client.CheckStatus(ctx, "PAY-3")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeGateway))

	_, err = client.CheckStatus(ctx, "PAY-4")
	assert.True(t, errors.Is(err, ErrTransactionNotFound))
}

func TestApproveIsSandboxOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not reach the gateway")
	}, WithSandbox(false))

	_, err := client.Approve(context.Background(), "PAY-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSandboxOnly))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}
