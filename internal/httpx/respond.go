package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/siibarnut/pimarket/internal/market"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// writeError maps the error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, market.ErrValidation),
		errors.Is(err, market.ErrEmptyCart),
		errors.Is(err, market.ErrPaymentMismatch):
		code = http.StatusBadRequest
	case errors.Is(err, market.ErrOrderNotFound),
		errors.Is(err, market.ErrProductNotFound),
		errors.Is(err, market.ErrShopNotFound):
		code = http.StatusNotFound
	case errors.Is(err, market.ErrConflict),
		errors.Is(err, market.ErrDuplicatePayment),
		errors.Is(err, market.ErrStockExhausted):
		code = http.StatusConflict
	case errors.Is(err, market.ErrUpstream):
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"message": err.Error()})
}
