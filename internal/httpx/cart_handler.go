package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
)

type CartStore interface {
	Get(ctx context.Context, userID string) ([]orders.CartItem, error)
	Add(ctx context.Context, userID string, item orders.CartItem) error
	Clear(ctx context.Context, userID string) error
}

type CartHandler struct {
	Cart CartStore
	Log  *zap.Logger
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart/{userID}", h.getCart)
	r.Post("/cart/{userID}/items", h.addItem)
	r.Delete("/cart/{userID}", h.clearCart)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Cart.Get(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		h.Log.Error("get cart failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []orders.CartItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var item orders.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if item.ProductID == "" || item.Qty < 1 {
		writeError(w, http.StatusBadRequest, "product_id and qty >= 1 required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.Add(ctx, chi.URLParam(r, "userID"), item); err != nil {
		h.Log.Error("add cart item failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.Clear(ctx, chi.URLParam(r, "userID")); err != nil {
		h.Log.Error("clear cart failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
