package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReportRangeParams bounds dashboard aggregates by delivery date. NULL
// bounds are open.
type ReportRangeParams struct {
	From          pgtype.Date
	To            pgtype.Date
	DistributorID pgtype.UUID
}

const reportRangeWhere = `
WHERE ($1::date IS NULL OR o.delivery_date >= $1)
  AND ($2::date IS NULL OR o.delivery_date <= $2)
  AND ($3::uuid IS NULL OR s.distributor_id = $3)
`

type StatusCountRow struct {
	Status string
	Count  int64
}

const getOrderStatusCounts = `-- name: GetOrderStatusCounts :many
SELECT o.status, count(*)
FROM orders o
JOIN stores s ON s.id = o.store_id` + reportRangeWhere + `
GROUP BY o.status
ORDER BY o.status
`

func (q *Queries) GetOrderStatusCounts(ctx context.Context, arg ReportRangeParams) ([]StatusCountRow, error) {
	return q.statusCounts(ctx, getOrderStatusCounts, arg)
}

const getPaymentStatusCounts = `-- name: GetPaymentStatusCounts :many
SELECT o.payment_status, count(*)
FROM orders o
JOIN stores s ON s.id = o.store_id` + reportRangeWhere + `
  AND o.status <> 'cancelled'
GROUP BY o.payment_status
ORDER BY o.payment_status
`

func (q *Queries) GetPaymentStatusCounts(ctx context.Context, arg ReportRangeParams) ([]StatusCountRow, error) {
	return q.statusCounts(ctx, getPaymentStatusCounts, arg)
}

func (q *Queries) statusCounts(ctx context.Context, query string, arg ReportRangeParams) ([]StatusCountRow, error) {
	rows, err := q.db.Query(ctx, query, arg.From, arg.To, arg.DistributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StatusCountRow{}
	for rows.Next() {
		var i StatusCountRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type RevenueSummaryRow struct {
	OrderCount  int64
	Revenue     pgtype.Numeric
	Outstanding pgtype.Numeric
}

const getRevenueSummary = `-- name: GetRevenueSummary :one
SELECT
  count(*),
  COALESCE(SUM(o.total_amount), 0)::numeric(14,2),
  COALESCE(SUM(o.total_amount) FILTER (WHERE o.payment_status <> 'paid'), 0)::numeric(14,2)
FROM orders o
JOIN stores s ON s.id = o.store_id` + reportRangeWhere + `
  AND o.status <> 'cancelled'
`

// GetRevenueSummary totals non-cancelled orders. Outstanding is the part of
// that revenue whose payment status is not paid.
func (q *Queries) GetRevenueSummary(ctx context.Context, arg ReportRangeParams) (RevenueSummaryRow, error) {
	var i RevenueSummaryRow
	err := q.db.QueryRow(ctx, getRevenueSummary, arg.From, arg.To, arg.DistributorID).Scan(
		&i.OrderCount,
		&i.Revenue,
		&i.Outstanding,
	)
	return i, err
}

type ProductSalesRow struct {
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int64
	GiftQuantity int64
	Revenue      pgtype.Numeric
}

const getProductSales = `-- name: GetProductSales :many
SELECT p.id, p.name,
  COALESCE(SUM(oi.quantity), 0)::bigint,
  COALESCE(SUM(oi.gift_quantity), 0)::bigint,
  COALESCE(SUM(oi.total), 0)::numeric(14,2)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN stores s ON s.id = o.store_id
JOIN products p ON p.id = oi.product_id` + reportRangeWhere + `
  AND o.status <> 'cancelled'
GROUP BY p.id, p.name
ORDER BY 5 DESC, p.name
`

// GetProductSales sums item quantities, gifts and line totals per product
// over non-cancelled orders.
func (q *Queries) GetProductSales(ctx context.Context, arg ReportRangeParams) ([]ProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSales, arg.From, arg.To, arg.DistributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductSalesRow{}
	for rows.Next() {
		var i ProductSalesRow
		if err := rows.Scan(
			&i.ProductID,
			&i.ProductName,
			&i.Quantity,
			&i.GiftQuantity,
			&i.Revenue,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
