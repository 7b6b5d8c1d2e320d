package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DistributionStore defines the database methods needed by distribution handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DistributionStore interface {
	ListDistributionOrders(ctx context.Context, arg database.ListDistributionOrdersParams) ([]database.OrderRow, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItemRow, error)
	DispatchOrders(ctx context.Context, arg database.DispatchOrdersParams) ([]uuid.UUID, error)
}

// DistributionHandler builds the daily delivery run: which stores to visit,
// what each one ordered, and what has to be loaded on the vehicle.
type DistributionHandler struct {
	store  DistributionStore
	events EventPublisher
	loc    *time.Location
	now    func() time.Time
}

// NewDistributionHandler creates a new DistributionHandler. loc decides
// which calendar day "today" is.
func NewDistributionHandler(store DistributionStore, pub EventPublisher, loc *time.Location) *DistributionHandler {
	return &DistributionHandler{store: store, events: pub, loc: loc, now: time.Now}
}

// RegisterReadRoutes registers GET /distribution/daily.
func (h *DistributionHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

// RegisterWriteRoutes registers POST /distribution/daily/dispatch.
func (h *DistributionHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/daily/dispatch", h.Dispatch)
}

// --- Request / Response types ---

type dispatchRequest struct {
	Date          string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DistributorID string `json:"distributor_id" validate:"omitempty,uuid"`
}

type dispatchResponse struct {
	Date          string      `json:"date"`
	DistributorID *uuid.UUID  `json:"distributor_id"`
	Dispatched    int         `json:"dispatched"`
	OrderIDs      []uuid.UUID `json:"order_ids"`
}

type distributionResponse struct {
	Date          string             `json:"date"`
	DistributorID *uuid.UUID         `json:"distributor_id"`
	Stops         []distributionStop `json:"stops"`
	Load          []productLoad      `json:"load"`
	OrderCount    int                `json:"order_count"`
	TotalAmount   string             `json:"total_amount"`
}

type distributionStop struct {
	StoreID       uuid.UUID           `json:"store_id"`
	StoreName     string              `json:"store_name"`
	StoreAddress  *string             `json:"store_address"`
	DistributorID *uuid.UUID          `json:"distributor_id"`
	Orders        []distributionOrder `json:"orders"`
	TotalAmount   string              `json:"total_amount"`
}

type distributionOrder struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enum.OrderStatus    `json:"status"`
	PaymentStatus enum.PaymentStatus  `json:"payment_status"`
	TotalAmount   string              `json:"total_amount"`
	Notes         *string             `json:"notes"`
	Items         []orderItemResponse `json:"items"`
}

// productLoad is what goes on the vehicle for one product. Gifts are loaded
// too but are listed apart from the paid quantity.
type productLoad struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int64     `json:"quantity"`
	GiftQuantity int64     `json:"gift_quantity"`
}

// --- Handlers ---

// Daily handles GET /distribution/daily?date=&distributor_id=.
// The date defaults to today; distributors always get their own run.
func (h *DistributionHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date := h.today()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, use YYYY-MM-DD")
			return
		}
		date = t
	}

	distributorID, err := queryUUID(r, "distributor_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid distributor_id")
		return
	}
	if scope := distributorScope(r); scope.Valid {
		distributorID = scope
	}

	orders, err := h.store.ListDistributionOrders(r.Context(), database.ListDistributionOrdersParams{
		DeliveryDate:  date,
		DistributorID: distributorID,
	})
	if err != nil {
		writeInternalError(w, err, "list distribution orders")
		return
	}

	var items []database.OrderItemRow
	if len(orders) > 0 {
		ids := make([]uuid.UUID, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		items, err = h.store.ListOrderItemsByOrders(r.Context(), ids)
		if err != nil {
			writeInternalError(w, err, "list distribution items")
			return
		}
	}

	resp := buildDistribution(orders, items)
	resp.Date = date.Format(dateLayout)
	resp.DistributorID = uuidPtr(distributorID)
	writeData(w, http.StatusOK, resp)
}

// Dispatch handles POST /distribution/daily/dispatch: every confirmed order
// of the day (optionally of one distributor) moves to in_progress.
func (h *DistributionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date := h.today()
	if req.Date != "" {
		t, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, use YYYY-MM-DD")
			return
		}
		date = t
	}
	distributorID := optionalUUID(req.DistributorID)

	ids, err := h.store.DispatchOrders(r.Context(), database.DispatchOrdersParams{
		DeliveryDate:  date,
		DistributorID: distributorID,
	})
	if err != nil {
		writeInternalError(w, err, "dispatch orders")
		return
	}

	resp := dispatchResponse{
		Date:          date.Format(dateLayout),
		DistributorID: uuidPtr(distributorID),
		Dispatched:    len(ids),
		OrderIDs:      ids,
	}

	if len(ids) > 0 {
		e := events.Event{
			Type:    enum.EventDistributionRun,
			Key:     dispatchKey(date, distributorID),
			Payload: resp,
		}
		if distributorID.Valid {
			e.DistributorID = distributorID.Bytes
		}
		h.events.Publish(r.Context(), e)
	}

	writeData(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *DistributionHandler) today() time.Time {
	return truncateDay(h.now().In(h.loc))
}

// dispatchKey derives a stable event key for one day's run, so repeated
// dispatches of the same run land on the same partition.
func dispatchKey(date time.Time, distributorID pgtype.UUID) uuid.UUID {
	name := date.Format(dateLayout)
	if distributorID.Valid {
		name += "/" + uuid.UUID(distributorID.Bytes).String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("dispatch/"+name))
}

// buildDistribution groups orders (already sorted by store name, then order
// number) into stops and sums the product load. Gift quantities are loaded
// but carry no money.
func buildDistribution(orders []database.OrderRow, items []database.OrderItemRow) distributionResponse {
	itemsByOrder := make(map[uuid.UUID][]database.OrderItemRow, len(orders))
	for _, it := range items {
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], it)
	}

	resp := distributionResponse{
		Stops: []distributionStop{},
		Load:  []productLoad{},
	}
	stopIndex := map[uuid.UUID]int{}
	stopTotals := []decimal.Decimal{}
	loadIndex := map[uuid.UUID]int{}
	grandTotal := decimal.Zero

	for _, o := range orders {
		idx, ok := stopIndex[o.StoreID]
		if !ok {
			idx = len(resp.Stops)
			stopIndex[o.StoreID] = idx
			resp.Stops = append(resp.Stops, distributionStop{
				StoreID:       o.StoreID,
				StoreName:     o.StoreName,
				StoreAddress:  textPtr(o.StoreAddress),
				DistributorID: uuidPtr(o.DistributorID),
				Orders:        []distributionOrder{},
			})
			stopTotals = append(stopTotals, decimal.Zero)
		}

		orderItems := itemsByOrder[o.ID]
		lines := toOrderResponse(o, orderItems).Items
		if lines == nil {
			lines = []orderItemResponse{}
		}
		resp.Stops[idx].Orders = append(resp.Stops[idx].Orders, distributionOrder{
			ID:            o.ID,
			OrderNumber:   o.OrderNumber,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			TotalAmount:   database.NumericString(o.TotalAmount),
			Notes:         textPtr(o.Notes),
			Items:         lines,
		})

		total := database.NumericToDecimal(o.TotalAmount)
		stopTotals[idx] = stopTotals[idx].Add(total)
		grandTotal = grandTotal.Add(total)

		for _, it := range orderItems {
			li, ok := loadIndex[it.ProductID]
			if !ok {
				li = len(resp.Load)
				loadIndex[it.ProductID] = li
				resp.Load = append(resp.Load, productLoad{
					ProductID:   it.ProductID,
					ProductName: it.ProductName,
				})
			}
			resp.Load[li].Quantity += int64(it.Quantity)
			resp.Load[li].GiftQuantity += int64(it.GiftQuantity)
		}
	}

	for i := range resp.Stops {
		resp.Stops[i].TotalAmount = stopTotals[i].StringFixed(2)
	}
	sort.SliceStable(resp.Load, func(i, j int) bool {
		return resp.Load[i].ProductName < resp.Load[j].ProductName
	})

	resp.OrderCount = len(orders)
	resp.TotalAmount = grandTotal.StringFixed(2)
	return resp
}
