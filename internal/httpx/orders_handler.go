package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/checkout"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/redisx"
)

// Coordinator is what the handler needs from the checkout service.
type Coordinator interface {
	PlaceOrder(ctx context.Context, userID string, shipping orders.ShippingDetails) (*checkout.Result, error)
}

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*orders.Order, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Checkout Coordinator
	Repo     OrderReader
	Redis    *redis.Client
	Log      *zap.Logger
}

type CheckoutReq struct {
	UserID   string                 `json:"user_id"`
	Shipping orders.ShippingDetails `json:"shipping"`
}

type CheckoutResp struct {
	OrderID          string `json:"order_id"`
	TotalCents       int64  `json:"total_cents"`
	PaymentSessionID string `json:"payment_session_id,omitempty"`
	PaymentNote      string `json:"payment_note,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.PlaceOrder(ctx, req.UserID, req.Shipping)
	if err != nil {
		code, msg := classify(err)
		writeError(w, code, msg)
		return
	}

	resp := CheckoutResp{
		OrderID:     res.Order.ID,
		TotalCents:  res.Order.TotalCents,
		PaymentNote: res.Note,
	}
	if res.Session != nil {
		resp.PaymentSessionID = res.Session.SessionID
	}
	writeJSON(w, http.StatusCreated, resp)
}

type orderResp struct {
	OrderID          string                 `json:"order_id"`
	Status           orders.Status          `json:"status"`
	PaymentStatus    orders.PaymentStatus   `json:"payment_status"`
	TotalCents       int64                  `json:"total_cents"`
	Items            []orders.LineItem      `json:"items"`
	Shipping         orders.ShippingDetails `json:"shipping"`
	PaymentSessionID *string                `json:"payment_session_id"`
	CreatedAt        time.Time              `json:"created_at"`
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// status-only fast path from the cache the consumer keeps warm
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.Log.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, orderResp{
		OrderID:          o.ID,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		TotalCents:       o.TotalCents,
		Items:            o.Items,
		Shipping:         o.Shipping,
		PaymentSessionID: o.PaymentSessionID,
		CreatedAt:        o.CreatedAt,
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		h.Log.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func classify(err error) (int, string) {
	var ve *orders.ValidationError
	var pnf *orders.ProductNotFoundError
	var ins *orders.InsufficientStockError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, orders.ErrEmptyCart):
		return http.StatusBadRequest, orders.ErrEmptyCart.Error()
	case errors.As(err, &pnf):
		return http.StatusNotFound, pnf.Error()
	case errors.As(err, &ins):
		return http.StatusConflict, ins.Error()
	case errors.Is(err, orders.ErrTransactionAborted):
		return http.StatusConflict, "order could not be committed, please retry"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
