package tracking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/httputil"
	"restaurant-system/internal/logger"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes mounts the handler on an authenticated router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/counts", h.StatusCounts)
	r.Get("/orders/{orderID}", h.GetOrder)
	r.Get("/orders/{orderID}/history", h.GetOrderHistory)
}

// ListOrders handles GET /orders. Staff see every order and may filter with
// ?status=active|<status>; customers see their own.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("request_received", "List orders request", logger.RequestIDFromContext(r.Context()), map[string]interface{}{
		"user_id": actor.UserID,
		"role":    actor.Role,
		"filter":  r.URL.Query().Get("status"),
	})

	if actor.Role.CanManageOrders() {
		orders, err := h.service.ListOrders(r.Context(), actor, r.URL.Query().Get("status"))
		if err != nil {
			httputil.WriteError(w, r, h.logger, err)
			return
		}
		h.writeJSON(w, r, orders)
		return
	}

	orders, err := h.service.ListCustomerOrders(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, orders)
}

// StatusCounts handles GET /orders/counts
func (h *Handler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	counts, err := h.service.StatusCounts(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, counts)
}

// GetOrder handles GET /orders/{orderID}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, order)
}

// GetOrderHistory handles GET /orders/{orderID}/history
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	history, err := h.service.GetOrderHistory(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, history)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	if err := httputil.WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
