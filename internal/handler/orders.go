package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/events"
	"github.com/bakehouse/api/internal/middleware"
	"github.com/bakehouse/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateOrder(ctx context.Context, req service.UpdateOrderRequest) (*service.OrderResult, error)
	PreviewOrder(ctx context.Context, items []service.OrderItemInput, discount decimal.Decimal) (*service.Preview, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.OrderRow, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.OrderRow, error)
	CountOrders(ctx context.Context, arg database.OrderFilter) (int64, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) (uuid.UUID, error)
}

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event)
}

// orderItemLister is the part of OrderStore needed to render an order.
type orderItemLister interface {
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderStore
	events EventPublisher
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, pub EventPublisher) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, events: pub}
}

// RegisterReadRoutes registers the endpoints every role may call.
// Distributors only see orders of their own stores and may only mark them
// delivered.
func (h *OrderHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// RegisterWriteRoutes registers the endpoints reserved for admins and managers.
func (h *OrderHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/preview", h.Preview)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/cancel", h.Cancel)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type orderRequest struct {
	StoreID        string             `json:"store_id" validate:"required,uuid"`
	OrderDate      string             `json:"order_date" validate:"required,datetime=2006-01-02"`
	DeliveryDate   string             `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	DiscountAmount string             `json:"discount_amount" validate:"omitempty,numeric"`
	Notes          string             `json:"notes" validate:"omitempty,max=1000"`
	Items          []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int32  `json:"quantity" validate:"gt=0"`
	UnitPrice      string `json:"unit_price" validate:"omitempty,numeric"`
	DiscountAmount string `json:"discount_amount" validate:"omitempty,numeric"`
	GiftQuantity   int32  `json:"gift_quantity" validate:"gte=0"`
}

type previewRequest struct {
	DiscountAmount string             `json:"discount_amount" validate:"omitempty,numeric"`
	Items          []orderItemRequest `json:"items" validate:"omitempty,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	StoreID        uuid.UUID           `json:"store_id"`
	StoreName      string              `json:"store_name"`
	StoreAddress   *string             `json:"store_address"`
	DistributorID  *uuid.UUID          `json:"distributor_id"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	OrderDate      string              `json:"order_date"`
	DeliveryDate   string              `json:"delivery_date"`
	Status         enum.OrderStatus    `json:"status"`
	PaymentStatus  enum.PaymentStatus  `json:"payment_status"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	Notes          *string             `json:"notes"`
	Permissions    service.Permissions `json:"permissions"`
	NextStatuses   []enum.OrderStatus  `json:"next_statuses"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	DiscountAmount string    `json:"discount_amount"`
	GiftQuantity   int32     `json:"gift_quantity"`
	Total          string    `json:"total"`
}

type previewItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	DiscountAmount string    `json:"discount_amount"`
	GiftQuantity   int32     `json:"gift_quantity"`
	Total          string    `json:"total"`
}

type previewResponse struct {
	Items          []previewItemResponse `json:"items"`
	Subtotal       string                `json:"subtotal"`
	DiscountAmount string                `json:"discount_amount"`
	Total          string                `json:"total"`
}

func toOrderResponse(o database.OrderRow, items []database.OrderItemRow) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		StoreID:        o.StoreID,
		StoreName:      o.StoreName,
		StoreAddress:   textPtr(o.StoreAddress),
		DistributorID:  uuidPtr(o.DistributorID),
		CreatedBy:      o.CreatedBy,
		OrderDate:      o.OrderDate.Format(dateLayout),
		DeliveryDate:   o.DeliveryDate.Format(dateLayout),
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		Subtotal:       database.NumericString(o.Subtotal),
		DiscountAmount: database.NumericString(o.DiscountAmount),
		TotalAmount:    database.NumericString(o.TotalAmount),
		Notes:          textPtr(o.Notes),
		Permissions:    service.PermissionsFor(o.Status),
		NextStatuses:   service.NextStatuses(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if len(items) > 0 {
		resp.Items = make([]orderItemResponse, len(items))
		for i, it := range items {
			resp.Items[i] = orderItemResponse{
				ID:             it.ID,
				ProductID:      it.ProductID,
				ProductName:    it.ProductName,
				Quantity:       it.Quantity,
				UnitPrice:      database.NumericString(it.UnitPrice),
				DiscountAmount: database.NumericString(it.DiscountAmount),
				GiftQuantity:   it.GiftQuantity,
				Total:          database.NumericString(it.Total),
			}
		}
	}
	return resp
}

func toPreviewResponse(p *service.Preview) previewResponse {
	items := make([]previewItemResponse, len(p.Items))
	for i, it := range p.Items {
		items[i] = previewItemResponse{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice.StringFixed(2),
			DiscountAmount: it.DiscountAmount.StringFixed(2),
			GiftQuantity:   it.GiftQuantity,
			Total:          it.Total.StringFixed(2),
		}
	}
	return previewResponse{
		Items:          items,
		Subtotal:       p.Totals.Subtotal.StringFixed(2),
		DiscountAmount: p.Totals.DiscountAmount.StringFixed(2),
		Total:          p.Totals.Total.StringFixed(2),
	}
}

// loadOrderResponse renders row together with its items.
func loadOrderResponse(ctx context.Context, store orderItemLister, row database.OrderRow) (orderResponse, error) {
	items, err := store.ListOrderItemsByOrder(ctx, row.ID)
	if err != nil {
		return orderResponse{}, errors.Wrap(err, "list order items")
	}
	return toOrderResponse(row, items), nil
}

// orderEvent builds the event published after a write to row.
func orderEvent(eventType string, resp orderResponse) events.Event {
	e := events.Event{
		Type:    eventType,
		Key:     resp.ID,
		Payload: resp,
	}
	if resp.DistributorID != nil {
		e.DistributorID = *resp.DistributorID
	}
	return e
}

// --- Handlers ---

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sortColumn, sortDesc := "created_at", true
	if s := r.URL.Query().Get("sort"); s != "" {
		sortDesc = strings.HasPrefix(s, "-")
		sortColumn = strings.TrimPrefix(s, "-")
		if !database.IsOrderSortColumn(sortColumn) {
			writeError(w, http.StatusBadRequest, "invalid sort")
			return
		}
	}

	limit, offset := parsePagination(r)

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		OrderFilter: filter,
		SortColumn:  sortColumn,
		SortDesc:    sortDesc,
		Limit:       int32(limit),
		Offset:      int32(offset),
	})
	if err != nil {
		writeInternalError(w, err, "list orders")
		return
	}

	total, err := h.store.CountOrders(r.Context(), filter)
	if err != nil {
		writeInternalError(w, err, "count orders")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}

	writeList(w, resp, listMeta{Limit: limit, Offset: offset, Total: total})
}

func parseOrderFilter(r *http.Request) (database.OrderFilter, error) {
	var f database.OrderFilter
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		if !enum.OrderStatus(s).IsValid() {
			return f, errors.New("invalid status")
		}
		f.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("payment_status"); s != "" {
		if !enum.PaymentStatus(s).IsValid() {
			return f, errors.New("invalid payment_status")
		}
		f.PaymentStatus = pgtype.Text{String: s, Valid: true}
	}

	var err error
	if f.StoreID, err = queryUUID(r, "store_id"); err != nil {
		return f, errors.New("invalid store_id")
	}
	if f.DistributorID, err = queryUUID(r, "distributor_id"); err != nil {
		return f, errors.New("invalid distributor_id")
	}
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, errors.New("invalid from, use YYYY-MM-DD")
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, errors.New("invalid to, use YYYY-MM-DD")
	}
	f.Search = queryText(r, "search")

	if scope := distributorScope(r); scope.Valid {
		f.DistributorID = scope
	}
	return f, nil
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	row, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}

	resp, err := loadOrderResponse(r.Context(), h.store, row)
	if err != nil {
		writeInternalError(w, err, "get order")
		return
	}
	writeData(w, http.StatusOK, resp)
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		OrderInput: input,
		CreatedBy:  claims.UserID,
	})
	if err != nil {
		writeOrderError(w, err, "create order")
		return
	}

	h.respondWritten(w, r, http.StatusCreated, result.Order.ID, enum.EventOrderCreated)
}

// Update handles PUT /orders/{id}. Only draft and confirmed orders are editable.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.svc.UpdateOrder(r.Context(), service.UpdateOrderRequest{
		OrderInput: input,
		ID:         orderID,
	}); err != nil {
		writeOrderError(w, err, "update order")
		return
	}

	h.respondWritten(w, r, http.StatusOK, orderID, enum.EventOrderUpdated)
}

// Preview handles POST /orders/preview: the totals an order would get,
// without saving it.
func (h *OrderHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	discount, err := parseAmount(req.DiscountAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid discount_amount")
		return
	}
	items, err := toItemInputs(req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := h.svc.PreviewOrder(r.Context(), items, discount)
	if err != nil {
		writeOrderError(w, err, "preview order")
		return
	}
	writeData(w, http.StatusOK, toPreviewResponse(preview))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	row, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	next := enum.OrderStatus(req.Status)

	if distributorScope(r).Valid && next != enum.OrderStatusDelivered {
		writeError(w, http.StatusForbidden, "distributors may only mark orders delivered")
		return
	}

	if err := service.ValidateStatusTransition(row.Status, next); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.changeStatus(w, r, row, next, enum.EventOrderStatusChanged)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	row, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}

	if !service.CanCancelOrder(row.Status) {
		writeError(w, http.StatusConflict, "order cannot be cancelled in status "+string(row.Status))
		return
	}

	h.changeStatus(w, r, row, enum.OrderStatusCancelled, enum.EventOrderStatusChanged)
}

// Delete handles DELETE /orders/{id}. Only drafts can be deleted.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	row, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}

	if !service.CanDeleteOrder(row.Status) {
		writeError(w, http.StatusConflict, "order cannot be deleted in status "+string(row.Status))
		return
	}

	if _, err := h.store.DeleteOrder(r.Context(), database.DeleteOrderParams{
		ID:            row.ID,
		CurrentStatus: row.Status,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "order status changed, please retry")
			return
		}
		writeInternalError(w, err, "delete order")
		return
	}

	h.events.Publish(r.Context(), orderEvent(enum.EventOrderDeleted, toOrderResponse(row, nil)))
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// loadVisibleOrder fetches the {id} order and hides orders of other
// distributors behind a 404.
func (h *OrderHandler) loadVisibleOrder(w http.ResponseWriter, r *http.Request) (database.OrderRow, bool) {
	orderID, ok := parseUUIDParam(w, r, "id", "order")
	if !ok {
		return database.OrderRow{}, false
	}

	row, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return database.OrderRow{}, false
		}
		writeInternalError(w, err, "get order")
		return database.OrderRow{}, false
	}

	if !canSeeStore(r, row.DistributorID) {
		writeError(w, http.StatusNotFound, "order not found")
		return database.OrderRow{}, false
	}
	return row, true
}

// changeStatus moves row to next only if nobody changed it since it was read.
func (h *OrderHandler) changeStatus(w http.ResponseWriter, r *http.Request, row database.OrderRow, next enum.OrderStatus, eventType string) {
	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:            row.ID,
		Status:        next,
		CurrentStatus: row.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "order status changed, please retry")
			return
		}
		writeInternalError(w, err, "update order status")
		return
	}

	row.Order = updated
	resp, err := loadOrderResponse(r.Context(), h.store, row)
	if err != nil {
		writeInternalError(w, err, "update order status")
		return
	}

	h.events.Publish(r.Context(), orderEvent(eventType, resp))
	writeData(w, http.StatusOK, resp)
}

// respondWritten reloads a freshly written order, publishes eventType and
// writes it with status.
func (h *OrderHandler) respondWritten(w http.ResponseWriter, r *http.Request, status int, orderID uuid.UUID, eventType string) {
	row, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		writeInternalError(w, err, "reload order")
		return
	}
	resp, err := loadOrderResponse(r.Context(), h.store, row)
	if err != nil {
		writeInternalError(w, err, "reload order")
		return
	}

	h.events.Publish(r.Context(), orderEvent(eventType, resp))
	writeData(w, status, resp)
}

func (req orderRequest) toInput() (service.OrderInput, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return service.OrderInput{}, errors.New("invalid store_id")
	}
	orderDate, err := parseDate(req.OrderDate)
	if err != nil {
		return service.OrderInput{}, errors.New("invalid order_date, use YYYY-MM-DD")
	}
	deliveryDate, err := parseDate(req.DeliveryDate)
	if err != nil {
		return service.OrderInput{}, errors.New("invalid delivery_date, use YYYY-MM-DD")
	}
	discount, err := parseAmount(req.DiscountAmount)
	if err != nil {
		return service.OrderInput{}, errors.New("invalid discount_amount")
	}
	items, err := toItemInputs(req.Items)
	if err != nil {
		return service.OrderInput{}, err
	}

	return service.OrderInput{
		StoreID:        storeID,
		OrderDate:      orderDate,
		DeliveryDate:   deliveryDate,
		DiscountAmount: discount,
		Notes:          strings.TrimSpace(req.Notes),
		Items:          items,
	}, nil
}

func toItemInputs(in []orderItemRequest) ([]service.OrderItemInput, error) {
	out := make([]service.OrderItemInput, len(in))
	for i, item := range in {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, errors.Errorf("item[%d]: invalid product_id", i)
		}
		discount, err := parseAmount(item.DiscountAmount)
		if err != nil {
			return nil, errors.Errorf("item[%d]: invalid discount_amount", i)
		}
		out[i] = service.OrderItemInput{
			ProductID:      productID,
			Quantity:       item.Quantity,
			DiscountAmount: discount,
			GiftQuantity:   item.GiftQuantity,
		}
		if item.UnitPrice != "" {
			price, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				return nil, errors.Errorf("item[%d]: invalid unit_price", i)
			}
			out[i].UnitPrice = &price
		}
	}
	return out, nil
}

// parseAmount reads an optional money amount; empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// writeOrderError maps service errors to HTTP status codes.
func writeOrderError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrOrderNotEditable):
		writeError(w, http.StatusConflict, err.Error())
	case isOrderValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeInternalError(w, err, msg)
	}
}

func isOrderValidationError(err error) bool {
	for _, target := range []error{
		service.ErrEmptyItems,
		service.ErrStoreNotFound,
		service.ErrProductNotFound,
		service.ErrInvalidOrderDate,
		service.ErrInvalidDeliveryDate,
		service.ErrInvalidQuantity,
		service.ErrNegativeUnitPrice,
		service.ErrInvalidItemDiscount,
		service.ErrNegativeGiftQuantity,
		service.ErrInvalidOrderDiscount,
		service.ErrTooManyDecimals,
		service.ErrAmountTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
