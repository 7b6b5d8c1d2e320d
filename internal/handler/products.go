package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// ProductHandler handles product catalogue endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterReadRoutes registers list/get.
func (h *ProductHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterWriteRoutes registers create/update/delete.
func (h *ProductHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Sku       string `json:"sku" validate:"required,max=64"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type productResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Sku       string    `json:"sku"`
	UnitPrice string    `json:"unit_price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Sku:       p.Sku,
		UnitPrice: database.NumericString(p.UnitPrice),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// --- Handlers ---

// List returns active products with optional ?search= on name or SKU.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		Search: queryText(r, "search"),
	})
	if err != nil {
		writeInternalError(w, err, "list products")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}

	writeData(w, http.StatusOK, resp)
}

// Get returns a single product by ID.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id", "product")
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, err, "get product")
		return
	}

	writeData(w, http.StatusOK, toProductResponse(product))
}

// Create adds a new product.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	price, err := parseUnitPrice(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unit_price must be a non-negative amount of at most 9999999999.99 with 2 decimals")
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:      req.Name,
		Sku:       strings.ToUpper(strings.TrimSpace(req.Sku)),
		UnitPrice: price,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "sku already exists")
			return
		}
		writeInternalError(w, err, "create product")
		return
	}

	writeData(w, http.StatusCreated, toProductResponse(product))
}

// Update modifies an existing product. Prices already on orders are not
// touched: order items keep the unit price they were created with.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id", "product")
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	price, err := parseUnitPrice(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unit_price must be a non-negative amount of at most 9999999999.99 with 2 decimals")
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:        productID,
		Name:      req.Name,
		Sku:       strings.ToUpper(strings.TrimSpace(req.Sku)),
		UnitPrice: price,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "sku already exists")
			return
		}
		writeInternalError(w, err, "update product")
		return
	}

	writeData(w, http.StatusOK, toProductResponse(product))
}

// Delete soft-deletes a product by setting is_active=false.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id", "product")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, err, "delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

var errNegativePrice = errors.New("negative price")

func parseUnitPrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	if err := service.CheckMoney(d, service.MaxUnitPrice); err != nil {
		return pgtype.Numeric{}, err
	}
	return database.DecimalToNumeric(d), nil
}
