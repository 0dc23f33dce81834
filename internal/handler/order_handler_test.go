package handler_test

import (
	"net/http"
	"testing"

	"go-material-store/internal/model"
	"go-material-store/internal/testdb"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutAndWebhookSettlement(t *testing.T) {
	a := newAPI(t)
	token := a.customer(t, "budi@example.com")
	addressID := a.address(t, token)
	p := testdb.SeedProduct(t, a.db, "Semen 50kg", 10000, 5)

	status, body := a.do(t, http.MethodPost, "/api/v1/cart/items", token, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, map[string]any{
		"address_id": addressID, "payment_method": "bank_transfer", "bank": "bca",
	})
	require.Equal(t, http.StatusCreated, status, body)
	order := body["order"].(map[string]any)
	payment := body["payment"].(map[string]any)
	assert.Equal(t, string(model.OrderPending), order["status"])
	assert.EqualValues(t, 22200, order["total_amount"])
	assert.Equal(t, false, body["payment_pending"])
	assert.Equal(t, 3, testdb.Stock(t, a.db, p.ID))

	ref := "PAY-" + payment["id"].(string)

	// forged signature
	status, body = a.do(t, http.MethodPost, "/api/v1/webhooks/payment", "",
		notificationBody(ref, "settlement", "22200.00", "wrong-key"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(apperrors.CodeInvalidSignature), body["code"])

	status, body = a.do(t, http.MethodPost, "/api/v1/webhooks/payment", "",
		notificationBody(ref, "settlement", "22200.00", serverKey))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "processed", body["outcome"])
	assert.Equal(t, string(model.OrderConfirmed), body["order_status"])

	// redelivery is acknowledged without side effects
	status, body = a.do(t, http.MethodPost, "/api/v1/webhooks/payment", "",
		notificationBody(ref, "settlement", "22200.00", serverKey))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "duplicate", body["outcome"])

	status, body = a.do(t, http.MethodGet, "/api/v1/orders/"+order["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderConfirmed), body["status"])

	// paid orders can only be cancelled by the back office
	status, body = a.do(t, http.MethodPost, "/api/v1/orders/"+order["id"].(string)+"/cancel", token, map[string]string{"reason": "changed my mind"})
	assert.Equal(t, http.StatusConflict, status, body)
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	a := newAPI(t)
	token := a.customer(t, "sari@example.com")
	addressID := a.address(t, token)

	status, body := a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, map[string]any{"address_id": addressID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperrors.CodeValidation), body["code"])
}

func TestCheckoutReportsInsufficientStock(t *testing.T) {
	a := newAPI(t)
	token := a.customer(t, "andi@example.com")
	addressID := a.address(t, token)
	p := testdb.SeedProduct(t, a.db, "Pasir 1m3", 250000, 3)

	status, body := a.do(t, http.MethodPost, "/api/v1/cart/items", token, map[string]any{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, status, body)
	require.NoError(t, a.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("stock", 1).Error)

	status, body = a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, map[string]any{"address_id": addressID})
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)
	assert.Equal(t, string(apperrors.CodeInsufficientStock), body["code"])
	assert.Equal(t, 1, testdb.Stock(t, a.db, p.ID))
}

func TestCustomerCancelsPendingOrder(t *testing.T) {
	a := newAPI(t)
	token := a.customer(t, "rina@example.com")
	addressID := a.address(t, token)
	p := testdb.SeedProduct(t, a.db, "Bata merah", 800, 100)

	status, body := a.do(t, http.MethodPost, "/api/v1/cart/items", token, map[string]any{"product_id": p.ID, "quantity": 40})
	require.Equal(t, http.StatusCreated, status, body)
	status, body = a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, map[string]any{"address_id": addressID})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := body["order"].(map[string]any)["id"].(string)
	assert.Equal(t, 60, testdb.Stock(t, a.db, p.ID))

	// someone else's order looks missing
	other := a.customer(t, "joko@example.com")
	status, _ = a.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = a.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", token, map[string]string{"reason": "wrong address"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 100, testdb.Stock(t, a.db, p.ID))

	status, _ = a.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestOrderRoutesRejectBadInput(t *testing.T) {
	a := newAPI(t)
	token := a.customer(t, "dewi@example.com")

	status, body := a.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperrors.CodeValidation), body["code"])

	status, _ = a.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, []byte("{broken"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMalformedWebhookIsRejected(t *testing.T) {
	a := newAPI(t)
	status, body := a.do(t, http.MethodPost, "/api/v1/webhooks/payment", "", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperrors.CodeValidation), body["code"])
}
