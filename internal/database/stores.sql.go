package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const storeColumns = `id, name, address, phone, contact_name, distributor_id, is_active, created_at, updated_at`

func scanStore(row interface{ Scan(...any) error }) (Store, error) {
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.ContactName,
		&i.DistributorID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listStores = `-- name: ListStores :many
SELECT ` + storeColumns + ` FROM stores
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE $1 OR contact_name ILIKE $1)
  AND ($2::uuid IS NULL OR distributor_id = $2)
ORDER BY name
`

type ListStoresParams struct {
	Search        pgtype.Text
	DistributorID pgtype.UUID
}

func (q *Queries) ListStores(ctx context.Context, arg ListStoresParams) ([]Store, error) {
	rows, err := q.db.Query(ctx, listStores, containsPattern(arg.Search), arg.DistributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Store{}
	for rows.Next() {
		i, err := scanStore(rows)
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

const getStore = `-- name: GetStore :one
SELECT ` + storeColumns + ` FROM stores
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	return scanStore(q.db.QueryRow(ctx, getStore, id))
}

const createStore = `-- name: CreateStore :one
INSERT INTO stores (name, address, phone, contact_name, distributor_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + storeColumns + `
`

type CreateStoreParams struct {
	Name          string
	Address       pgtype.Text
	Phone         pgtype.Text
	ContactName   pgtype.Text
	DistributorID pgtype.UUID
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	return scanStore(q.db.QueryRow(ctx, createStore,
		arg.Name,
		arg.Address,
		arg.Phone,
		arg.ContactName,
		arg.DistributorID,
	))
}

const updateStore = `-- name: UpdateStore :one
UPDATE stores
SET name = $2, address = $3, phone = $4, contact_name = $5, distributor_id = $6, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING ` + storeColumns + `
`

type UpdateStoreParams struct {
	ID            uuid.UUID
	Name          string
	Address       pgtype.Text
	Phone         pgtype.Text
	ContactName   pgtype.Text
	DistributorID pgtype.UUID
}

func (q *Queries) UpdateStore(ctx context.Context, arg UpdateStoreParams) (Store, error) {
	return scanStore(q.db.QueryRow(ctx, updateStore,
		arg.ID,
		arg.Name,
		arg.Address,
		arg.Phone,
		arg.ContactName,
		arg.DistributorID,
	))
}

const softDeleteStore = `-- name: SoftDeleteStore :one
UPDATE stores SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteStore(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteStore, id).Scan(&deleted)
	return deleted, err
}
