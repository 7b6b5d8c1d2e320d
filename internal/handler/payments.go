package handler

import (
	"context"
	"net/http"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.OrderRow, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg database.UpdateOrderPaymentStatusParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error)
}

// PaymentHandler handles the payment axis of orders. Payment status is
// independent of the order status: any value may be set at any time.
type PaymentHandler struct {
	store  PaymentStore
	events EventPublisher
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pub EventPublisher) *PaymentHandler {
	return &PaymentHandler{store: store, events: pub}
}

// RegisterRoutes registers payment endpoints on the orders router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/{id}/payment-status", h.UpdatePaymentStatus)
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,payment_status"`
}

// UpdatePaymentStatus handles PATCH /orders/{id}/payment-status.
func (h *PaymentHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	var req updatePaymentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	row, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternalError(w, err, "get order")
		return
	}

	updated, err := h.store.UpdateOrderPaymentStatus(r.Context(), database.UpdateOrderPaymentStatusParams{
		ID:            orderID,
		PaymentStatus: enum.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternalError(w, err, "update payment status")
		return
	}

	row.Order = updated
	resp, err := loadOrderResponse(r.Context(), h.store, row)
	if err != nil {
		writeInternalError(w, err, "update payment status")
		return
	}

	h.events.Publish(r.Context(), orderEvent(enum.EventOrderPaymentStatus, resp))
	writeData(w, http.StatusOK, resp)
}
