package order

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

func newTestRouter(env *testEnv) http.Handler {
	h := NewHandler(env.svc, logger.NewWithWriter("order-test", env.logs))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, actor *auth.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := logger.WithRequestID(req.Context(), "req-test")
	if actor != nil {
		ctx = auth.WithActor(ctx, *actor)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

type cartBody struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	TotalAmount string `json:"total_amount"`
}

func TestHandlerCartAndCheckoutFlow(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)
	actor := customer

	rec := doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"b","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, &actor, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body cartBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
	assert.Equal(t, "74.97", body.TotalAmount)

	rec = doRequest(t, router, &actor, http.MethodPost, "/orders", `{"order_type":"takeaway","payment_method":"card"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		Order   models.Order   `json:"order"`
		Payment models.Payment `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "74.97", result.Order.TotalAmount.StringFixed(2))
	assert.Len(t, result.Order.Items, 2)
	assert.True(t, result.Payment.Amount.Equal(result.Order.TotalAmount))

	rec = doRequest(t, router, &actor, http.MethodGet, "/cart", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Items)
}

func TestHandlerCheckoutValidation(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)
	actor := customer

	rec := doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, &actor, http.MethodPost, "/orders", `{"order_type":"dine-in","payment_method":"card"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "table_number")
	assert.Empty(t, env.store.orders)

	rec = doRequest(t, router, &actor, http.MethodPost, "/orders", `{"order_type":"takeaway","payment_method":"card","tip":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresActor(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)

	rec := doRequest(t, router, nil, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, nil, http.MethodPost, "/orders", `{"order_type":"takeaway","payment_method":"card"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerUpdateCartItem(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)
	actor := customer

	doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a"}`)

	rec := doRequest(t, router, &actor, http.MethodPatch, "/cart/items/a", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body cartBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, 4, body.Items[0].Quantity)

	rec = doRequest(t, router, &actor, http.MethodPatch, "/cart/items/a", `{"quantity":-2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Items)

	rec = doRequest(t, router, &actor, http.MethodDelete, "/cart/items/a", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, &actor, http.MethodDelete, "/cart", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerRejectsOversizedQuantity(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)
	actor := customer

	rec := doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a","quantity":99}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a","quantity":9223372036854775807}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, &actor, http.MethodPatch, "/cart/items/a", `{"quantity":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, &actor, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body cartBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, 99, body.Items[0].Quantity)
}

func TestHandlerUpdateStatus(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env)
	id := placedOrder(env, models.StatusPending)

	tests := []struct {
		name   string
		actor  auth.Actor
		path   string
		body   string
		status int
	}{
		{"staff moves to preparing", staff, "/orders/" + id + "/status", `{"status":"preparing"}`, http.StatusOK},
		{"repeat is idempotent", admin, "/orders/" + id + "/status", `{"status":"preparing"}`, http.StatusOK},
		{"customer forbidden", customer, "/orders/" + id + "/status", `{"status":"cancelled"}`, http.StatusForbidden},
		{"bad status", staff, "/orders/" + id + "/status", `{"status":"cooking"}`, http.StatusBadRequest},
		{"unknown order", staff, "/orders/00000000-0000-0000-0000-000000000000/status", `{"status":"ready"}`, http.StatusNotFound},
		{"deliver", staff, "/orders/" + id + "/status", `{"status":"delivered"}`, http.StatusOK},
		{"terminal conflict", staff, "/orders/" + id + "/status", `{"status":"pending"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := tt.actor
			rec := doRequest(t, router, &actor, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerCheckoutPlatformFailure(t *testing.T) {
	env := newTestEnv()
	env.store.failOn = "InsertPayment"
	router := newTestRouter(env)
	actor := customer

	doRequest(t, router, &actor, http.MethodPost, "/cart/items", `{"menu_item_id":"a"}`)

	rec := doRequest(t, router, &actor, http.MethodPost, "/orders", `{"order_type":"takeaway","payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	c, err := env.svc.GetCart(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.True(t, bytes.Contains(env.logs.Bytes(), []byte("checkout_failed")))
}
