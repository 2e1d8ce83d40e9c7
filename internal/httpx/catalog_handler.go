package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/store"
)

// CatalogHandler is the thin product/shop CRUD the core needs around it.
// Image handling is an opaque URL; uploads live behind a separate service.
type CatalogHandler struct {
	Ledger *store.Store
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Post("/products", h.addProduct)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/shops", h.addShop)
	r.Get("/shops", h.listShops)
	r.Get("/shops/{id}", h.getShop)
}

type addProductReq struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"availableStock"`
	ImageURL       string          `json:"imageUrl"`
	ShopID         string          `json:"shopId"`
}

func (h *CatalogHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.ShopID == "" || !req.Price.IsPositive() || req.AvailableStock < 0 {
		writeMessage(w, http.StatusBadRequest, "All fields are required, including shopId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Ledger.ShopByID(ctx, req.ShopID); err != nil {
		writeError(w, err)
		return
	}

	p := market.Product{
		ID:             uuid.NewString(),
		ShopID:         req.ShopID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Price:          req.Price,
		AvailableStock: req.AvailableStock,
		ImageURL:       req.ImageURL,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Ledger.CreateProduct(ctx, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product added successfully", "product": p})
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ps, err := h.Ledger.ListProducts(ctx, r.URL.Query().Get("shopId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Ledger.ProductByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

type addShopReq struct {
	ShopName    string `json:"shopName"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Country     string `json:"country"`
	City        string `json:"city"`
}

func (h *CatalogHandler) addShop(w http.ResponseWriter, r *http.Request) {
	var req addShopReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ShopName == "" || req.FullName == "" || req.Email == "" || req.PhoneNumber == "" || req.Country == "" || req.City == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh := market.Shop{
		ID:          uuid.NewString(),
		ShopName:    req.ShopName,
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
		City:        req.City,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Ledger.CreateShop(ctx, sh); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Shop created successfully", "shop": sh})
}

func (h *CatalogHandler) listShops(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	shops, err := h.Ledger.ListShops(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": shops})
}

func (h *CatalogHandler) getShop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sh, err := h.Ledger.ShopByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": sh})
}
