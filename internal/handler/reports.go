package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// defaultReportDays is the window used when ?from= is omitted.
const defaultReportDays = 30

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetOrderStatusCounts(ctx context.Context, arg database.ReportRangeParams) ([]database.StatusCountRow, error)
	GetPaymentStatusCounts(ctx context.Context, arg database.ReportRangeParams) ([]database.StatusCountRow, error)
	GetRevenueSummary(ctx context.Context, arg database.ReportRangeParams) (database.RevenueSummaryRow, error)
	GetProductSales(ctx context.Context, arg database.ReportRangeParams) ([]database.ProductSalesRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. loc decides which calendar
// day "today" is when the range is defaulted.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/product-sales", h.ProductSales)
}

// --- Response types ---

type dashboardResponse struct {
	From                string                       `json:"from"`
	To                  string                       `json:"to"`
	StatusCounts        map[enum.OrderStatus]int64   `json:"status_counts"`
	PaymentStatusCounts map[enum.PaymentStatus]int64 `json:"payment_status_counts"`
	OrderCount          int64                        `json:"order_count"`
	Revenue             string                       `json:"revenue"`
	Outstanding         string                       `json:"outstanding"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int64     `json:"quantity"`
	GiftQuantity int64     `json:"gift_quantity"`
	Revenue      string    `json:"revenue"`
}

// --- Handlers ---

// Dashboard returns order counts per status and payment status plus revenue
// and outstanding amounts for delivery dates in [from, to].
// Cancelled orders count toward status_counts only.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseReportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	statusRows, err := h.store.GetOrderStatusCounts(r.Context(), params)
	if err != nil {
		writeInternalError(w, err, "get order status counts")
		return
	}
	paymentRows, err := h.store.GetPaymentStatusCounts(r.Context(), params)
	if err != nil {
		writeInternalError(w, err, "get payment status counts")
		return
	}
	summary, err := h.store.GetRevenueSummary(r.Context(), params)
	if err != nil {
		writeInternalError(w, err, "get revenue summary")
		return
	}

	// Every status is present, zero when there are no orders in it.
	statusCounts := make(map[enum.OrderStatus]int64, len(enum.OrderStatuses))
	for _, s := range enum.OrderStatuses {
		statusCounts[s] = 0
	}
	for _, row := range statusRows {
		statusCounts[enum.OrderStatus(row.Status)] = row.Count
	}

	paymentCounts := make(map[enum.PaymentStatus]int64, len(enum.PaymentStatuses))
	for _, s := range enum.PaymentStatuses {
		paymentCounts[s] = 0
	}
	for _, row := range paymentRows {
		paymentCounts[enum.PaymentStatus(row.Status)] = row.Count
	}

	writeData(w, http.StatusOK, dashboardResponse{
		From:                params.From.Time.Format(dateLayout),
		To:                  params.To.Time.Format(dateLayout),
		StatusCounts:        statusCounts,
		PaymentStatusCounts: paymentCounts,
		OrderCount:          summary.OrderCount,
		Revenue:             database.NumericString(summary.Revenue),
		Outstanding:         database.NumericString(summary.Outstanding),
	})
}

// ProductSales returns quantities and revenue per product for the range.
func (h *ReportsHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseReportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.store.GetProductSales(r.Context(), params)
	if err != nil {
		writeInternalError(w, err, "get product sales")
		return
	}

	resp := make([]productSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			Quantity:     row.Quantity,
			GiftQuantity: row.GiftQuantity,
			Revenue:      database.NumericString(row.Revenue),
		}
	}
	writeData(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseReportRange reads ?from=, ?to= and ?distributor_id=. The range
// defaults to the last 30 days up to today; both ends are inclusive.
func (h *ReportsHandler) parseReportRange(r *http.Request) (database.ReportRangeParams, error) {
	var params database.ReportRangeParams

	today := truncateDay(h.now().In(h.loc))
	params.To = pgtype.Date{Time: today, Valid: true}
	params.From = pgtype.Date{Time: today.AddDate(0, 0, -defaultReportDays), Valid: true}

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return params, errors.New("invalid from, use YYYY-MM-DD")
		}
		params.From = pgtype.Date{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return params, errors.New("invalid to, use YYYY-MM-DD")
		}
		params.To = pgtype.Date{Time: t, Valid: true}
	}
	if params.From.Time.After(params.To.Time) {
		return params, errors.New("from must not be after to")
	}

	distributorID, err := queryUUID(r, "distributor_id")
	if err != nil {
		return params, errors.New("invalid distributor_id")
	}
	params.DistributorID = distributorID
	if scope := distributorScope(r); scope.Valid {
		params.DistributorID = scope
	}
	return params, nil
}

// truncateDay returns midnight UTC of t's calendar day, the form DATE
// columns are compared in.
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
