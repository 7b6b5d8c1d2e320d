package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bakehouse/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `o.id, o.order_number, o.store_id, o.created_by, o.order_date, o.delivery_date,
  o.status, o.payment_status, o.subtotal, o.discount_amount, o.total_amount, o.notes,
  o.created_at, o.updated_at`

const orderRowColumns = orderColumns + `, s.name, s.address, s.distributor_id`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.StoreID,
		&i.CreatedBy,
		&i.OrderDate,
		&i.DeliveryDate,
		&i.Status,
		&i.PaymentStatus,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TotalAmount,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrderRow(row interface{ Scan(...any) error }) (OrderRow, error) {
	var i OrderRow
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.StoreID,
		&i.CreatedBy,
		&i.OrderDate,
		&i.DeliveryDate,
		&i.Status,
		&i.PaymentStatus,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TotalAmount,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.StoreName,
		&i.StoreAddress,
		&i.DistributorID,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(split_part(order_number, '-', 3)::int), 0) + 1)::int
FROM orders
WHERE order_date = $1
`

// GetNextOrderNumber returns the next per-day sequence number for
// order_number. Concurrent callers can see the same value; the unique
// constraint on order_number catches that.
func (q *Queries) GetNextOrderNumber(ctx context.Context, orderDate time.Time) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, orderDate).Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders AS o (order_number, store_id, created_by, order_date, delivery_date,
  subtotal, discount_amount, total_amount, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns + `
`

type CreateOrderParams struct {
	OrderNumber    string
	StoreID        uuid.UUID
	CreatedBy      uuid.UUID
	OrderDate      time.Time
	DeliveryDate   time.Time
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.StoreID,
		arg.CreatedBy,
		arg.OrderDate,
		arg.DeliveryDate,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TotalAmount,
		arg.Notes,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderRowColumns + `
FROM orders o
JOIN stores s ON s.id = o.store_id
WHERE o.id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (OrderRow, error) {
	return scanOrderRow(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders o
WHERE o.id = $1
FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

// OrderFilter narrows ListOrders and CountOrders. Invalid (NULL) fields
// do not filter.
type OrderFilter struct {
	Status        pgtype.Text
	PaymentStatus pgtype.Text
	StoreID       pgtype.UUID
	DistributorID pgtype.UUID
	From          pgtype.Date
	To            pgtype.Date
	Search        pgtype.Text
}

func (f OrderFilter) args() []any {
	return []any{f.Status, f.PaymentStatus, f.StoreID, f.DistributorID, f.From, f.To, containsPattern(f.Search)}
}

const orderFilterWhere = `
WHERE ($1::text IS NULL OR o.status = $1)
  AND ($2::text IS NULL OR o.payment_status = $2)
  AND ($3::uuid IS NULL OR o.store_id = $3)
  AND ($4::uuid IS NULL OR s.distributor_id = $4)
  AND ($5::date IS NULL OR o.delivery_date >= $5)
  AND ($6::date IS NULL OR o.delivery_date <= $6)
  AND ($7::text IS NULL OR o.order_number ILIKE $7 OR s.name ILIKE $7)
`

// orderSortColumns whitelists the columns ListOrders can sort by.
var orderSortColumns = map[string]string{
	"order_date":    "o.order_date",
	"delivery_date": "o.delivery_date",
	"total_amount":  "o.total_amount",
	"created_at":    "o.created_at",
	"order_number":  "o.order_number",
}

// IsOrderSortColumn reports whether ListOrders accepts column as a sort key.
func IsOrderSortColumn(column string) bool {
	_, ok := orderSortColumns[column]
	return ok
}

type ListOrdersParams struct {
	OrderFilter
	SortColumn string
	SortDesc   bool
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]OrderRow, error) {
	column, ok := orderSortColumns[arg.SortColumn]
	if !ok {
		column = "o.created_at"
	}
	direction := "ASC"
	if arg.SortDesc {
		direction = "DESC"
	}
	query := `-- name: ListOrders :many
SELECT ` + orderRowColumns + `
FROM orders o
JOIN stores s ON s.id = o.store_id` + orderFilterWhere +
		fmt.Sprintf("ORDER BY %s %s, o.id\nLIMIT $8 OFFSET $9\n", column, direction)

	args := append(arg.OrderFilter.args(), arg.Limit, arg.Offset)
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderRow{}
	for rows.Next() {
		i, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOrders = `-- name: CountOrders :one
SELECT count(*)
FROM orders o
JOIN stores s ON s.id = o.store_id` + orderFilterWhere

func (q *Queries) CountOrders(ctx context.Context, arg OrderFilter) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrders, arg.args()...).Scan(&count)
	return count, err
}

const updateOrder = `-- name: UpdateOrder :one
UPDATE orders AS o
SET store_id = $2, order_date = $3, delivery_date = $4, subtotal = $5,
    discount_amount = $6, total_amount = $7, notes = $8, updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns + `
`

type UpdateOrderParams struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	OrderDate      time.Time
	DeliveryDate   time.Time
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrder,
		arg.ID,
		arg.StoreID,
		arg.OrderDate,
		arg.DeliveryDate,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TotalAmount,
		arg.Notes,
	))
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders AS o
SET status = $2, updated_at = now()
WHERE o.id = $1 AND o.status = $3
RETURNING ` + orderColumns + `
`

// UpdateOrderStatusParams moves an order from CurrentStatus to Status. No row
// is returned when the stored status no longer equals CurrentStatus.
type UpdateOrderStatusParams struct {
	ID            uuid.UUID
	Status        enum.OrderStatus
	CurrentStatus enum.OrderStatus
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.CurrentStatus))
}

const updateOrderPaymentStatus = `-- name: UpdateOrderPaymentStatus :one
UPDATE orders AS o
SET payment_status = $2, updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns + `
`

type UpdateOrderPaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus enum.PaymentStatus
}

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPaymentStatus, arg.ID, arg.PaymentStatus))
}

const deleteOrder = `-- name: DeleteOrder :one
DELETE FROM orders
WHERE id = $1 AND status = $2
RETURNING id
`

type DeleteOrderParams struct {
	ID            uuid.UUID
	CurrentStatus enum.OrderStatus
}

func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrder, arg.ID, arg.CurrentStatus).Scan(&id)
	return id, err
}

const listDistributionOrders = `-- name: ListDistributionOrders :many
SELECT ` + orderRowColumns + `
FROM orders o
JOIN stores s ON s.id = o.store_id
WHERE o.delivery_date = $1
  AND o.status IN ('confirmed', 'in_progress', 'delivered')
  AND ($2::uuid IS NULL OR s.distributor_id = $2)
ORDER BY s.name, o.order_number
`

type ListDistributionOrdersParams struct {
	DeliveryDate  time.Time
	DistributorID pgtype.UUID
}

func (q *Queries) ListDistributionOrders(ctx context.Context, arg ListDistributionOrdersParams) ([]OrderRow, error) {
	rows, err := q.db.Query(ctx, listDistributionOrders, arg.DeliveryDate, arg.DistributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderRow{}
	for rows.Next() {
		i, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const dispatchOrders = `-- name: DispatchOrders :many
UPDATE orders AS o
SET status = 'in_progress', updated_at = now()
FROM stores s
WHERE s.id = o.store_id
  AND o.delivery_date = $1
  AND o.status = 'confirmed'
  AND ($2::uuid IS NULL OR s.distributor_id = $2)
RETURNING o.id
`

type DispatchOrdersParams struct {
	DeliveryDate  time.Time
	DistributorID pgtype.UUID
}

// DispatchOrders moves every confirmed order delivered on DeliveryDate to
// in_progress and returns the affected order IDs.
func (q *Queries) DispatchOrders(ctx context.Context, arg DispatchOrdersParams) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, dispatchOrders, arg.DeliveryDate, arg.DistributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
