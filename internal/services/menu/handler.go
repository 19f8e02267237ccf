package menu

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/httputil"
	"restaurant-system/internal/logger"
)

// Handler handles HTTP requests for the menu
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterPublicRoutes mounts the read-only menu endpoints
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/menu", h.GetMenu)
	r.Get("/menu/categories", h.ListCategories)
	r.Get("/menu/items", h.ListItems)
	r.Get("/menu/items/{itemID}", h.GetItem)
}

// RegisterAdminRoutes mounts the menu maintenance endpoints. The router must
// already authenticate the caller.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/menu/categories", h.CreateCategory)
	r.Put("/menu/categories/{categoryID}", h.UpdateCategory)
	r.Delete("/menu/categories/{categoryID}", h.DeleteCategory)
	r.Post("/menu/items", h.CreateItem)
	r.Put("/menu/items/{itemID}", h.UpdateItem)
	r.Delete("/menu/items/{itemID}", h.DeleteItem)
}

// GetMenu handles GET /menu
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.Menu(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, menu)
}

// ListCategories handles GET /menu/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, categories)
}

// ListItems handles GET /menu/items?category=&q=&available=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ItemFilter{
		CategoryID: q.Get("category"),
		Query:      q.Get("q"),
	}
	if raw := q.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, r, h.logger, apperrors.Invalid("available", "must be true or false"))
			return
		}
		filter.OnlyAvailable = available
	}

	items, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

// GetItem handles GET /menu/items/{itemID}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, item)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, in, ok := decodeAdmin[CategoryInput](h, w, r)
	if !ok {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), actor, in)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, c)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	actor, in, ok := decodeAdmin[CategoryInput](h, w, r)
	if !ok {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), actor, chi.URLParam(r, "categoryID"), in)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), actor, chi.URLParam(r, "categoryID")); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, in, ok := decodeAdmin[ItemInput](h, w, r)
	if !ok {
		return
	}
	item, err := h.service.CreateItem(r.Context(), actor, in)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, in, ok := decodeAdmin[ItemInput](h, w, r)
	if !ok {
		return
	}
	item, err := h.service.UpdateItem(r.Context(), actor, chi.URLParam(r, "itemID"), in)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), actor, chi.URLParam(r, "itemID")); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeAdmin resolves the actor and decodes the body, writing the error
// response itself when either fails
func decodeAdmin[T any](h *Handler, w http.ResponseWriter, r *http.Request) (auth.Actor, T, bool) {
	var in T
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return actor, in, false
	}
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return actor, in, false
	}
	return actor, in, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httputil.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
