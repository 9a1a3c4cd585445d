package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/clock"
	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/receipt"
	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 10, 18, 9, 30, 15, 123*int(time.Millisecond), time.UTC)

type harness struct {
	srv   *httptest.Server
	store *storage.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemory()
	e, err := pos.Open(context.Background(), store,
		pos.WithClock(clock.NewFixed(testNow)),
		pos.WithLogger(logger),
		pos.WithSeed(func() []pos.Item {
			return []pos.Item{
				{ID: "ramen", Name: "Samyang Spicy Ramen", Category: "Noodles", UnitPrice: money.FromMajor(55), Stock: 3},
				{ID: "milk", Name: "Banana Milk", Category: "Drinks", UnitPrice: money.FromMajor(35), Stock: 10},
			}
		}),
	)
	require.NoError(t, err)

	h := &POSHandler{
		Engine:   e,
		Gate:     auth.NewGate("s3cret"),
		Profile:  receipt.Profile{Name: "Korean Mart", Address: "Brgy. Sta. Rosa, Rizal, Laguna", Footer: "Thank you!"},
		Location: time.UTC,
		Clock:    clock.NewFixed(testNow),
		Logger:   logger,
	}
	r := NewRouter(promhttp.Handler())
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: store}
}

func (h *harness) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/session", "", `{"secret":"s3cret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResp
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, _ = h.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCartAndCheckout(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		resp, _ := h.do(t, http.MethodPost, "/cart/items/ramen", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := h.do(t, http.MethodPost, "/cart/items/ramen", "", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient_stock", errorCode(t, body))

	resp, body = h.do(t, http.MethodPost, "/cart/items/ramen/decrement", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap pos.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Cart, 1)
	assert.Equal(t, 2, snap.Cart[0].Quantity)
	assert.Equal(t, money.FromMajor(110), snap.Total)

	resp, body = h.do(t, http.MethodPost, "/checkout", "", `{"cash":"100"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_payment", errorCode(t, body))

	resp, body = h.do(t, http.MethodPost, "/checkout", "", `{"cash":"150.00"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out checkoutResp
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, money.FromMajor(40), out.Sale.Change)
	assert.Contains(t, out.Receipt, "Receipt #: "+out.Sale.ID)
	assert.Contains(t, out.Receipt, "₱40.00")

	resp, body = h.do(t, http.MethodPost, "/checkout", "", `{"cash":"150.00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "empty_cart", errorCode(t, body))
}

func TestCartErrors(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/cart/items/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "item_not_found", errorCode(t, body))

	resp, body = h.do(t, http.MethodPost, "/cart/items/milk/increment", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "line_not_found", errorCode(t, body))

	resp, body = h.do(t, http.MethodPost, "/checkout", "", `{"cash":"1.005"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_amount", errorCode(t, body))

	resp, _ = h.do(t, http.MethodPost, "/checkout", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/checkout", "", `{"cash":"100000000000000000000"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_amount", errorCode(t, body))

	_, _ = h.do(t, http.MethodPost, "/cart/items/milk", "", "")
	resp, body = h.do(t, http.MethodDelete, "/cart", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap pos.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Empty(t, snap.Cart)
}

func TestSession(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/session", "", `{"secret":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(t, body))

	resp, _ = h.do(t, http.MethodGet, "/sales", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := h.login(t)
	resp, _ = h.do(t, http.MethodGet, "/sales", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/session", token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/sales", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCatalogManagement(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	resp, _ := h.do(t, http.MethodPut, "/catalog/items/tea", token, `{"name":"Corn Tea","category":"Drinks","price":"45.00","stock":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPut, "/catalog/items/bad", token, `{"name":"","price":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_item", errorCode(t, body))

	_, _ = h.do(t, http.MethodPost, "/cart/items/tea", "", "")
	resp, body = h.do(t, http.MethodDelete, "/catalog/items/tea", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "item_in_use", errorCode(t, body))

	resp, body = h.do(t, http.MethodPost, "/catalog/reset", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "cart_not_empty", errorCode(t, body))

	_, _ = h.do(t, http.MethodDelete, "/cart", "", "")
	resp, _ = h.do(t, http.MethodDelete, "/catalog/items/tea", token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/catalog/reset", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalog []pos.Item
	require.NoError(t, json.Unmarshal(body, &catalog))
	assert.Len(t, catalog, 2)
}

func TestSalesReceiptsAndReports(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	_, _ = h.do(t, http.MethodPost, "/cart/items/milk", "", "")
	_, _ = h.do(t, http.MethodPost, "/cart/items/milk", "", "")
	resp, body := h.do(t, http.MethodPost, "/checkout", "", `{"cash":"70"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out checkoutResp
	require.NoError(t, json.Unmarshal(body, &out))

	resp, body = h.do(t, http.MethodGet, "/sales?window=today", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sales salesResp
	require.NoError(t, json.Unmarshal(body, &sales))
	require.Len(t, sales.Days, 1)
	assert.Equal(t, out.Sale.ID, sales.Days[0].Sales[0].ID)
	assert.Equal(t, []string{"Drinks"}, sales.Categories)

	resp, _ = h.do(t, http.MethodGet, "/sales?window=fortnight", token, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/sales/"+out.Sale.ID+"/receipt", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Banana Milk x2")

	resp, body = h.do(t, http.MethodGet, "/reports?window=all", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep reportResp
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 1, rep.Transactions)
	assert.Equal(t, money.FromMajor(70), rep.Revenue)
	require.Len(t, rep.Bestsellers, 1)
	assert.Equal(t, "Banana Milk", rep.Bestsellers[0].Name)

	resp, _ = h.do(t, http.MethodDelete, "/sales/"+out.Sale.ID, token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = h.do(t, http.MethodGet, "/sales/"+out.Sale.ID+"/receipt", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "sale_not_found", errorCode(t, body))
}

func TestHaltedEngineReturns503(t *testing.T) {
	h := newHarness(t)
	_, _ = h.do(t, http.MethodPost, "/cart/items/milk", "", "")

	h.store.FailCommits(assert.AnError)
	resp, _ := h.do(t, http.MethodPost, "/checkout", "", `{"cash":"35"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	h.store.FailCommits(nil)
	resp, body := h.do(t, http.MethodPost, "/cart/items/milk", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "halted", errorCode(t, body))
}
