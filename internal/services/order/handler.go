package order

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/httputil"
	"restaurant-system/internal/logger"
)

// Handler handles HTTP requests for carts and order writes
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes mounts the handler on an authenticated router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Patch("/items/{itemID}", h.UpdateCartItem)
		r.Delete("/items/{itemID}", h.RemoveCartItem)
	})
	r.Post("/orders", h.Checkout)
	r.Patch("/orders/{orderID}/status", h.UpdateStatus)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// GetCart handles GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	c, err := h.service.GetCart(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

// AddCartItem handles POST /cart/items
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	var req AddCartItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	c, err := h.service.AddToCart(r.Context(), actor, req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

// UpdateCartItem handles PATCH /cart/items/{itemID}
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	var req updateQuantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	c, err := h.service.UpdateCartItem(r.Context(), actor, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

// RemoveCartItem handles DELETE /cart/items/{itemID}
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	c, err := h.service.RemoveCartItem(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

// ClearCart handles DELETE /cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.service.ClearCart(r.Context(), actor); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /orders
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFromContext(r.Context())

	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	var req CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("order_received", "Received checkout request", requestID, map[string]interface{}{
		"customer_id": actor.UserID,
		"order_type":  req.OrderType,
	})

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	c, err := h.service.GetCart(ctx, actor)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Checkout(ctx, actor, c, req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, result)
}

// UpdateStatus handles PATCH /orders/{orderID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	var req updateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	status, err := ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.SetStatus(r.Context(), actor, chi.URLParam(r, "orderID"), status)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, order)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httputil.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
