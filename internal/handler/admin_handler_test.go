package handler_test

import (
	"net/http"
	"testing"

	"go-material-store/internal/model"
	"go-material-store/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *api) pendingOrder(t *testing.T, email string, qty int) (token, orderID string, p *model.Product) {
	t.Helper()
	token = a.customer(t, email)
	addressID := a.address(t, token)
	p = testdb.SeedProduct(t, a.db, "Besi 10mm", 95000, 20)

	status, body := a.do(t, http.MethodPost, "/api/v1/cart/items", token, map[string]any{"product_id": p.ID, "quantity": qty})
	require.Equal(t, http.StatusCreated, status, body)
	status, body = a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, map[string]any{"address_id": addressID})
	require.Equal(t, http.StatusCreated, status, body)
	return token, body["order"].(map[string]any)["id"].(string), p
}

func TestAdminFulfilsOrder(t *testing.T) {
	a := newAPI(t)
	admin := a.login(t, adminEmail, adminPassword)
	_, orderID, _ := a.pendingOrder(t, "budi@example.com", 2)
	base := "/api/v1/admin/orders/" + orderID

	// processing requires a confirmed order
	status, _ := a.do(t, http.MethodPost, base+"/process", admin, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body := a.do(t, http.MethodPost, base+"/confirm", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderConfirmed), body["status"])

	status, body = a.do(t, http.MethodPost, base+"/process", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderProcessing), body["status"])

	status, _ = a.do(t, http.MethodPost, base+"/ship", admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.do(t, http.MethodPost, base+"/ship", admin, map[string]any{"delivery_number": "JNE-0001", "courier": "JNE"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderShipped), body["status"])

	status, body = a.do(t, http.MethodPost, base+"/deliver", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderDelivered), body["status"])

	status, _ = a.do(t, http.MethodPost, base+"/cancel", admin, map[string]string{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestAdminCancelRestoresStock(t *testing.T) {
	a := newAPI(t)
	admin := a.login(t, adminEmail, adminPassword)
	token, orderID, p := a.pendingOrder(t, "sari@example.com", 4)
	assert.Equal(t, 16, testdb.Stock(t, a.db, p.ID))

	status, body := a.do(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/cancel", admin, map[string]string{"reason": "out of delivery area"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 20, testdb.Stock(t, a.db, p.ID))

	status, body = a.do(t, http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.OrderCancelled), body["status"])
}

func TestAdminReconcileOnQuietStore(t *testing.T) {
	a := newAPI(t)
	admin := a.login(t, adminEmail, adminPassword)

	status, body := a.do(t, http.MethodPost, "/api/v1/admin/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 0, body["resubmitted"])
	assert.EqualValues(t, 0, body["failed"])
}

func TestDashboardSummarisesStore(t *testing.T) {
	a := newAPI(t)
	admin := a.login(t, adminEmail, adminPassword)
	token, _, _ := a.pendingOrder(t, "rina@example.com", 3)

	status, _ := a.do(t, http.MethodGet, "/api/v1/admin/dashboard/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := a.do(t, http.MethodGet, "/api/v1/admin/dashboard/stats", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["total_products"])
	assert.EqualValues(t, 17*95000, body["total_valuation"])
	assert.EqualValues(t, 1, body["open_payments"])
	assert.EqualValues(t, 1, body["orders_by_status"].(map[string]any)[string(model.OrderPending)])

	status, body = a.do(t, http.MethodGet, "/api/v1/admin/dashboard/stock-movement?days=1", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["period"])
	days := body["data"].([]any)
	require.Len(t, days, 1)
	assert.EqualValues(t, 3, days[0].(map[string]any)["outbound"])
}
