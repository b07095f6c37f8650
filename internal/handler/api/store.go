package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/handler"
	"github.com/dukerupert/idunn/internal/service"
	"github.com/dukerupert/idunn/internal/telemetry"
)

// StoreHandler serves CRUD endpoints for affiliate stores. Creation runs
// through the plan limit gate in the service layer.
type StoreHandler struct {
	stores service.StoreService
	logger *slog.Logger
}

// NewStoreHandler creates a new store handler.
func NewStoreHandler(stores service.StoreService, logger *slog.Logger) *StoreHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreHandler{
		stores: stores,
		logger: logger,
	}
}

type storeBody struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toStoreBody(store domain.Store) storeBody {
	return storeBody{
		ID:          store.ID,
		Name:        store.Name,
		Slug:        store.Slug,
		Description: store.Description,
		CreatedAt:   store.CreatedAt,
		UpdatedAt:   store.UpdatedAt,
	}
}

type createStoreRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
}

// Create handles POST /api/stores. A plan-limit denial comes back as 403.
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "api.store.create"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req createStoreRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	store, err := h.stores.CreateStore(r.Context(), service.CreateStoreParams{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.StoresCreated.Inc()
	}
	handler.JSON(w, http.StatusCreated, struct {
		Store storeBody `json:"store"`
	}{Store: toStoreBody(*store)})
}

// List handles GET /api/stores.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	stores, err := h.stores.ListStores(r.Context(), userID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]storeBody, 0, len(stores))
	for _, s := range stores {
		out = append(out, toStoreBody(s))
	}
	handler.JSON(w, http.StatusOK, struct {
		Stores []storeBody `json:"stores"`
	}{Stores: out})
}

// Get handles GET /api/stores/{id}.
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "api.store.get"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	storeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid store ID"))
		return
	}

	store, err := h.stores.GetStore(r.Context(), userID, storeID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		Store storeBody `json:"store"`
	}{Store: toStoreBody(*store)})
}

type updateStoreRequest struct {
	Name        string `json:"name" validate:"max=120"`
	Description string `json:"description" validate:"max=1000"`
}

// Update handles PUT /api/stores/{id}. The slug never changes.
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "api.store.update"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	storeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid store ID"))
		return
	}

	var req updateStoreRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	store, err := h.stores.UpdateStore(r.Context(), service.UpdateStoreParams{
		UserID:      userID,
		StoreID:     storeID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		Store storeBody `json:"store"`
	}{Store: toStoreBody(*store)})
}

// Delete handles DELETE /api/stores/{id}.
func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "api.store.delete"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	storeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid store ID"))
		return
	}

	if err := h.stores.DeleteStore(r.Context(), userID, storeID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
