package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/clock"
	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/receipt"
	"github.com/ariefcatur/go-pos-terminal/internal/report"
	"github.com/go-chi/chi/v5"
)

type POSHandler struct {
	Engine   *pos.Engine
	Gate     *auth.Gate
	Profile  receipt.Profile
	Location *time.Location
	Clock    clock.Clock
	Logger   *slog.Logger
}

type checkoutReq struct {
	Cash string `json:"cash"`
}

type checkoutResp struct {
	Sale    pos.Sale `json:"sale"`
	Receipt string   `json:"receipt"`
}

type loginReq struct {
	Secret string `json:"secret"`
}

type itemReq struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
	Stock    int    `json:"stock"`
}

type salesResp struct {
	Days       []report.Day `json:"days"`
	Categories []string     `json:"categories"`
	Items      []string     `json:"items"`
}

type reportResp struct {
	report.Summary
	Categories []string `json:"categories"`
	Items      []string `json:"items"`
}

type sessionKey struct{}

func (h *POSHandler) Register(r chi.Router) {
	r.Get("/pos", h.snapshot)
	r.Post("/cart/items/{id}", h.cartOp(h.Engine.AddOne))
	r.Post("/cart/items/{id}/increment", h.cartOp(h.Engine.IncrementOne))
	r.Post("/cart/items/{id}/decrement", h.cartOp(h.Engine.DecrementOne))
	r.Delete("/cart/items/{id}", h.cartOp(h.Engine.RemoveLine))
	r.Delete("/cart", h.resetCart)
	r.Post("/checkout", h.checkout)

	r.Post("/session", h.login)
	r.Delete("/session", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Put("/catalog/items/{id}", h.upsertItem)
		r.Delete("/catalog/items/{id}", h.removeItem)
		r.Post("/catalog/reset", h.resetCatalog)
		r.Get("/sales", h.listSales)
		r.Get("/sales/{id}/receipt", h.saleReceipt)
		r.Delete("/sales/{id}", h.deleteSale)
		r.Get("/reports", h.report)
	})
}

func (h *POSHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *POSHandler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock.Now()
}

func (h *POSHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Get())
}

func (h *POSHandler) cartOp(op func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, h.logger(), err)
			return
		}
		writeJSON(w, http.StatusOK, h.Engine.Get())
	}
}

func (h *POSHandler) resetCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ResetCart(r.Context()); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.Get())
}

func (h *POSHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	cash, err := money.Parse(req.Cash)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	sale, err := h.Engine.Checkout(r.Context(), cash)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	text, err := h.render(sale)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResp{Sale: sale, Receipt: text})
}

func (h *POSHandler) render(sale pos.Sale) (string, error) {
	var buf bytes.Buffer
	if err := receipt.Render(&buf, receipt.NewView(sale, h.Profile), receipt.WithLocation(h.Location)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *POSHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	sess, err := h.Gate.Login(req.Secret)
	if err != nil {
		h.logger().Warn("login refused", slog.String("remote", r.RemoteAddr))
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": sess.Token()})
}

func (h *POSHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.Gate.Logout(bearer(r))
	w.WriteHeader(http.StatusNoContent)
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func (h *POSHandler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.Gate.Lookup(bearer(r))
		if err != nil {
			writeError(w, h.logger(), err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// session returns the capability stored by requireSession, or the zero
// (unauthorized) session.
func session(r *http.Request) auth.Session {
	sess, _ := r.Context().Value(sessionKey{}).(auth.Session)
	return sess
}

func (h *POSHandler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	price, err := money.Parse(req.Price)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	item := pos.Item{
		ID:        chi.URLParam(r, "id"),
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.TrimSpace(req.Category),
		UnitPrice: price,
		Stock:     req.Stock,
	}
	if err := h.Engine.UpsertItem(r.Context(), session(r), item); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *POSHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RemoveItem(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *POSHandler) resetCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ResetCatalog(r.Context(), session(r)); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.Get().Catalog)
}

func (h *POSHandler) filter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	window, err := report.ParseWindow(q.Get("window"))
	if err != nil {
		return report.Filter{}, err
	}
	from, err := report.ParseDate(q.Get("from"), h.Location)
	if err != nil {
		return report.Filter{}, err
	}
	to, err := report.ParseDate(q.Get("to"), h.Location)
	if err != nil {
		return report.Filter{}, err
	}
	return report.Filter{
		Window:   window,
		From:     from,
		To:       to,
		Category: q.Get("category"),
		Item:     q.Get("item"),
		Location: h.Location,
	}, nil
}

func (h *POSHandler) listSales(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	all := h.Engine.Sales()
	categories, items := report.Facets(all)
	writeJSON(w, http.StatusOK, salesResp{
		Days:       report.GroupByDay(report.Apply(all, f, h.now()), h.Location),
		Categories: categories,
		Items:      items,
	})
}

func (h *POSHandler) saleReceipt(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.Engine.Sale(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, h.logger(), pos.ErrSaleNotFound)
		return
	}
	text, err := h.render(sale)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (h *POSHandler) deleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteSale(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *POSHandler) report(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	top, _ := strconv.Atoi(r.URL.Query().Get("top"))
	all := h.Engine.Sales()
	categories, items := report.Facets(all)
	writeJSON(w, http.StatusOK, reportResp{
		Summary:    report.Summarize(report.Apply(all, f, h.now()), top),
		Categories: categories,
		Items:      items,
	})
}
