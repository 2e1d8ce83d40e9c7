package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/reconcile"
)

// PaymentsHandler exposes the four reconciliation entry points the platform
// and the storefront call. The auth gateway in front of this service injects
// the signed-in user id as X-User-Id.
type PaymentsHandler struct {
	Engine *reconcile.Engine
	Log    *zap.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/approve", h.approve)
	r.Post("/payments/complete", h.complete)
	r.Post("/payments/incomplete", h.incomplete)
	r.Post("/payments/cancelled_payment", h.cancelled)
}

type approveReq struct {
	PaymentID string `json:"paymentId"`
}

func (h *PaymentsHandler) approve(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "unauthorized", "message": "User needs to sign in first",
		})
		return
	}

	var req approveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := h.Engine.Approve(ctx, req.PaymentID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Approved the payment "+req.PaymentID)
}

type completeReq struct {
	PaymentID string `json:"paymentId"`
	Txid      string `json:"txid"`
}

func (h *PaymentsHandler) complete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	err := h.Engine.Complete(ctx, req.PaymentID, req.Txid)
	if errors.Is(err, market.ErrOrderNotFound) {
		// platform webhook for a payment this backend never created
		// (restart, replay): acknowledge and move on
		h.Log.Warn("complete for unknown payment", zap.String("payment_id", req.PaymentID))
		writeMessage(w, http.StatusOK, "Unknown payment "+req.PaymentID)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Completed the payment "+req.PaymentID)
}

type incompleteReq struct {
	Payment struct {
		Identifier  string `json:"identifier"`
		Transaction struct {
			Txid string `json:"txid"`
			Link string `json:"_link"`
		} `json:"transaction"`
	} `json:"payment"`
}

func (h *PaymentsHandler) incomplete(w http.ResponseWriter, r *http.Request) {
	var req incompleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	err := h.Engine.ReconcileIncomplete(ctx, market.IncompletePayment{
		Identifier: req.Payment.Identifier,
		Txid:       req.Payment.Transaction.Txid,
		TxURL:      req.Payment.Transaction.Link,
	})
	if errors.Is(err, market.ErrOrderNotFound) {
		writeMessage(w, http.StatusBadRequest, "Order not found")
		return
	}
	if errors.Is(err, market.ErrPaymentMismatch) {
		writeMessage(w, http.StatusBadRequest, "Payment id doesn't match.")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Handled the incomplete payment "+req.Payment.Identifier)
}

type cancelReq struct {
	PaymentID string `json:"paymentId"`
}

func (h *PaymentsHandler) cancelled(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.Engine.Cancel(ctx, req.PaymentID)
	if errors.Is(err, market.ErrOrderNotFound) {
		h.Log.Warn("cancel for unknown payment", zap.String("payment_id", req.PaymentID))
		writeMessage(w, http.StatusOK, "Unknown payment "+req.PaymentID)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cancelled the payment "+req.PaymentID)
}
