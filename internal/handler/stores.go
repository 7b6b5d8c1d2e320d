package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StoreStore defines the database methods needed by store handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StoreStore interface {
	ListStores(ctx context.Context, arg database.ListStoresParams) ([]database.Store, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	CreateStore(ctx context.Context, arg database.CreateStoreParams) (database.Store, error)
	UpdateStore(ctx context.Context, arg database.UpdateStoreParams) (database.Store, error)
	SoftDeleteStore(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// StoreHandler handles retail store (customer) endpoints.
type StoreHandler struct {
	store StoreStore
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(store StoreStore) *StoreHandler {
	return &StoreHandler{store: store}
}

// RegisterReadRoutes registers list/get, open to every role.
// Distributors only see stores assigned to them.
func (h *StoreHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterWriteRoutes registers create/update/delete.
func (h *StoreHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type storeRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Address       string `json:"address" validate:"omitempty,max=500"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	ContactName   string `json:"contact_name" validate:"omitempty,max=120"`
	DistributorID string `json:"distributor_id" validate:"omitempty,uuid"`
}

type storeResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Address       *string    `json:"address"`
	Phone         *string    `json:"phone"`
	ContactName   *string    `json:"contact_name"`
	DistributorID *uuid.UUID `json:"distributor_id"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toStoreResponse(s database.Store) storeResponse {
	return storeResponse{
		ID:            s.ID,
		Name:          s.Name,
		Address:       textPtr(s.Address),
		Phone:         textPtr(s.Phone),
		ContactName:   textPtr(s.ContactName),
		DistributorID: uuidPtr(s.DistributorID),
		IsActive:      s.IsActive,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// --- Handlers ---

// List returns active stores with optional ?search= and ?distributor_id=.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	distributorID, err := queryUUID(r, "distributor_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid distributor_id")
		return
	}
	if scope := distributorScope(r); scope.Valid {
		distributorID = scope
	}

	stores, err := h.store.ListStores(r.Context(), database.ListStoresParams{
		Search:        queryText(r, "search"),
		DistributorID: distributorID,
	})
	if err != nil {
		writeInternalError(w, err, "list stores")
		return
	}

	resp := make([]storeResponse, len(stores))
	for i, s := range stores {
		resp[i] = toStoreResponse(s)
	}

	writeData(w, http.StatusOK, resp)
}

// Get returns a single store by ID.
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseUUIDParam(w, r, "id", "store")
	if !ok {
		return
	}

	store, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "store not found")
			return
		}
		writeInternalError(w, err, "get store")
		return
	}
	if !canSeeStore(r, store.DistributorID) {
		writeError(w, http.StatusNotFound, "store not found")
		return
	}

	writeData(w, http.StatusOK, toStoreResponse(store))
}

// Create adds a new store.
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store, err := h.store.CreateStore(r.Context(), database.CreateStoreParams{
		Name:          req.Name,
		Address:       optionalText(req.Address),
		Phone:         optionalText(req.Phone),
		ContactName:   optionalText(req.ContactName),
		DistributorID: optionalUUID(req.DistributorID),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "distributor not found")
			return
		}
		writeInternalError(w, err, "create store")
		return
	}

	writeData(w, http.StatusCreated, toStoreResponse(store))
}

// Update modifies an existing store.
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseUUIDParam(w, r, "id", "store")
	if !ok {
		return
	}

	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store, err := h.store.UpdateStore(r.Context(), database.UpdateStoreParams{
		ID:            storeID,
		Name:          req.Name,
		Address:       optionalText(req.Address),
		Phone:         optionalText(req.Phone),
		ContactName:   optionalText(req.ContactName),
		DistributorID: optionalUUID(req.DistributorID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "store not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "distributor not found")
			return
		}
		writeInternalError(w, err, "update store")
		return
	}

	writeData(w, http.StatusOK, toStoreResponse(store))
}

// Delete soft-deletes a store by setting is_active=false. Its orders stay.
func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseUUIDParam(w, r, "id", "store")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteStore(r.Context(), storeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "store not found")
			return
		}
		writeInternalError(w, err, "delete store")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

