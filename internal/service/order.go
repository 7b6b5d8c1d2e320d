package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrStoreNotFound       = errors.New("store not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidOrderDate    = errors.New("order_date is required")
	ErrInvalidDeliveryDate = errors.New("delivery_date must not be before order_date")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotEditable    = errors.New("order can no longer be edited")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to write orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetNextOrderNumber(ctx context.Context, orderDate time.Time) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// OrderInput is the editable part of an order, shared by create and update.
type OrderInput struct {
	StoreID        uuid.UUID
	OrderDate      time.Time
	DeliveryDate   time.Time
	DiscountAmount decimal.Decimal
	Notes          string
	Items          []OrderItemInput
}

// OrderItemInput is a single line. A nil UnitPrice takes the product's
// current price.
type OrderItemInput struct {
	ProductID      uuid.UUID
	Quantity       int32
	UnitPrice      *decimal.Decimal
	DiscountAmount decimal.Decimal
	GiftQuantity   int32
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	OrderInput
	CreatedBy uuid.UUID
}

// UpdateOrderRequest replaces the editable part of an existing order.
type UpdateOrderRequest struct {
	OrderInput
	ID uuid.UUID
}

// OrderResult is the written order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// PricedItem is an item resolved against the catalogue.
type PricedItem struct {
	ProductID   uuid.UUID
	ProductName string
	LineItem
	Total decimal.Decimal
}

// Preview is the priced form of an unsaved order.
type Preview struct {
	Items  []PricedItem
	Totals Totals
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder validates, prices, and creates an order atomically in draft
// status with pending payment.
// Retries up to maxOrderNumberRetries times on order_number unique constraint
// violations (concurrent transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if err := validateInput(req.OrderInput); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number.
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := checkStore(ctx, store, req.StoreID); err != nil {
		return nil, err
	}

	preview, err := priceItems(ctx, store, req.Items, req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx, req.OrderDate)
	if err != nil {
		return nil, errors.Wrap(err, "get next order number")
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    formatOrderNumber(req.OrderDate, nextNum),
		StoreID:        req.StoreID,
		CreatedBy:      req.CreatedBy,
		OrderDate:      req.OrderDate,
		DeliveryDate:   req.DeliveryDate,
		Subtotal:       database.DecimalToNumeric(preview.Totals.Subtotal),
		DiscountAmount: database.DecimalToNumeric(preview.Totals.DiscountAmount),
		TotalAmount:    database.DecimalToNumeric(preview.Totals.Total),
		Notes:          optionalText(req.Notes),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	items, err := insertItems(ctx, store, order.ID, preview.Items)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// UpdateOrder re-prices an order and replaces its items. The order row is
// locked for the duration so a concurrent status change cannot slip in
// between the editability check and the write.
func (s *OrderService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error) {
	if err := validateInput(req.OrderInput); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "lock order")
	}
	if !CanEditOrder(current.Status) {
		return nil, errors.Wrapf(ErrOrderNotEditable, "status %s", current.Status)
	}

	if err := checkStore(ctx, store, req.StoreID); err != nil {
		return nil, err
	}

	preview, err := priceItems(ctx, store, req.Items, req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	order, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:             req.ID,
		StoreID:        req.StoreID,
		OrderDate:      req.OrderDate,
		DeliveryDate:   req.DeliveryDate,
		Subtotal:       database.DecimalToNumeric(preview.Totals.Subtotal),
		DiscountAmount: database.DecimalToNumeric(preview.Totals.DiscountAmount),
		TotalAmount:    database.DecimalToNumeric(preview.Totals.Total),
		Notes:          optionalText(req.Notes),
	})
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, errors.Wrap(err, "delete order items")
	}

	items, err := insertItems(ctx, store, order.ID, preview.Items)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// PreviewOrder prices an unsaved order against the current catalogue
// without writing anything.
func (s *OrderService) PreviewOrder(ctx context.Context, items []OrderItemInput, discount decimal.Decimal) (*Preview, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return priceItems(ctx, s.newStore(tx), items, discount)
}

// --- Helpers ---

func validateInput(in OrderInput) error {
	if len(in.Items) == 0 {
		return ErrEmptyItems
	}
	if in.OrderDate.IsZero() {
		return ErrInvalidOrderDate
	}
	if in.DeliveryDate.Before(in.OrderDate) {
		return ErrInvalidDeliveryDate
	}
	if in.DiscountAmount.IsNegative() {
		return ErrInvalidOrderDiscount
	}
	return nil
}

func checkStore(ctx context.Context, store OrderStore, id uuid.UUID) error {
	if _, err := store.GetStore(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStoreNotFound
		}
		return errors.Wrap(err, "get store")
	}
	return nil
}

// priceItems resolves every product, fills in default unit prices and runs
// the calculator.
func priceItems(ctx context.Context, store OrderStore, in []OrderItemInput, discount decimal.Decimal) (*Preview, error) {
	priced := make([]PricedItem, 0, len(in))
	lines := make([]LineItem, 0, len(in))

	for i, item := range in {
		product, err := store.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errors.Wrapf(ErrProductNotFound, "item[%d]", i)
			}
			return nil, errors.Wrapf(err, "item[%d]: get product", i)
		}

		unitPrice := database.NumericToDecimal(product.UnitPrice)
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}

		line := LineItem{
			Quantity:       item.Quantity,
			UnitPrice:      unitPrice,
			DiscountAmount: item.DiscountAmount,
			GiftQuantity:   item.GiftQuantity,
		}
		total, err := CalculateItemTotal(line)
		if err != nil {
			return nil, errors.Wrapf(err, "item[%d]", i)
		}

		lines = append(lines, line)
		priced = append(priced, PricedItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			LineItem:    line,
			Total:       total,
		})
	}

	totals, err := CalculateOrderTotal(lines, discount)
	if err != nil {
		return nil, err
	}
	return &Preview{Items: priced, Totals: totals}, nil
}

func insertItems(ctx context.Context, store OrderStore, orderID uuid.UUID, items []PricedItem) ([]database.OrderItem, error) {
	out := make([]database.OrderItem, 0, len(items))
	for _, pi := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:        orderID,
			ProductID:      pi.ProductID,
			Quantity:       pi.Quantity,
			UnitPrice:      database.DecimalToNumeric(pi.UnitPrice),
			DiscountAmount: database.DecimalToNumeric(pi.DiscountAmount),
			GiftQuantity:   pi.GiftQuantity,
			Total:          database.DecimalToNumeric(pi.Total),
		})
		if err != nil {
			return nil, errors.Wrap(err, "create order item")
		}
		out = append(out, item)
	}
	return out, nil
}

// formatOrderNumber renders ORD-YYYYMMDD-NNN.
func formatOrderNumber(orderDate time.Time, seq int32) string {
	return fmt.Sprintf("ORD-%s-%03d", orderDate.Format("20060102"), seq)
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
