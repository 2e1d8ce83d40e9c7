package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/cart"
	"github.com/siibarnut/pimarket/internal/checkout"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/store"
)

type CartHandler struct {
	Carts    *cart.Store
	Checkout *checkout.Service
	Ledger   *store.Store
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/cart/add", h.add)
	r.Patch("/cart/update", h.update)
	r.Get("/cart/{userId}", h.get)
	r.Delete("/cart/{userId}/{productId}", h.remove)
	r.Post("/cart/checkout", h.checkout)
}

type cartItemReq struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.Quantity == 0 {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Ledger.ProductByID(ctx, req.ProductID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Carts.AddItem(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item added to cart")
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Ledger.ProductByID(ctx, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Quantity > p.AvailableStock {
		writeMessage(w, http.StatusBadRequest, "Not enough stock available")
		return
	}
	if err := h.Carts.SetQuantity(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart updated successfully")
}

type cartLineResp struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Carts.Get(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	// enrich lines with current product data for display
	lines := lo.Map(c.Items, func(it market.CartItem, _ int) cartLineResp {
		line := cartLineResp{ProductID: it.ProductID, Quantity: it.Quantity}
		p, err := h.Ledger.ProductByID(ctx, it.ProductID)
		if err != nil {
			return line
		}
		line.Name, line.Price, line.ImageURL = p.Name, p.Price, p.ImageURL
		return line
	})
	writeJSON(w, http.StatusOK, map[string]any{"cart": lines})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	found, err := h.Carts.RemoveItem(ctx, userID, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeMessage(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	writeMessage(w, http.StatusOK, "Item removed from cart")
}

type checkoutReq struct {
	UserID string `json:"userId"`
}

type checkoutResp struct {
	Message     string          `json:"message"`
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, shortfalls, err := h.Checkout.Checkout(ctx, req.UserID)
	if errors.Is(err, market.ErrEmptyCart) {
		writeMessage(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	if errors.Is(err, market.ErrOutOfStock) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "One or more items are out of stock",
			"details": shortfalls,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{
		Message: "Checkout successful", OrderID: o.ID, TotalAmount: o.TotalAmount,
	})
}
