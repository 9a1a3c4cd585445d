package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/report"
)

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{pos.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{pos.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{pos.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{pos.ErrSaleNotFound, http.StatusNotFound, "sale_not_found"},
	{pos.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{pos.ErrItemInUse, http.StatusConflict, "item_in_use"},
	{pos.ErrCartNotEmpty, http.StatusConflict, "cart_not_empty"},
	{pos.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{pos.ErrInsufficientPayment, http.StatusUnprocessableEntity, "insufficient_payment"},
	{pos.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
	{pos.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{money.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{money.ErrNegativeAmount, http.StatusBadRequest, "invalid_amount"},
	{money.ErrTooPrecise, http.StatusBadRequest, "invalid_amount"},
	{report.ErrUnknownWindow, http.StatusBadRequest, "invalid_window"},
	{report.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{pos.ErrHalted, http.StatusServiceUnavailable, "halted"},
	{pos.ErrClosed, http.StatusServiceUnavailable, "closed"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, errorResp{Error: err.Error(), Code: e.code})
			return
		}
	}
	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error(), Code: "internal"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: msg, Code: "bad_request"})
}
