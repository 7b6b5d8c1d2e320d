package database

import (
	"time"

	"github.com/bakehouse/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Phone          pgtype.Text
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Store struct {
	ID            uuid.UUID
	Name          string
	Address       pgtype.Text
	Phone         pgtype.Text
	ContactName   pgtype.Text
	DistributorID pgtype.UUID
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Product struct {
	ID        uuid.UUID
	Name      string
	Sku       string
	UnitPrice pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	StoreID        uuid.UUID
	CreatedBy      uuid.UUID
	OrderDate      time.Time
	DeliveryDate   time.Time
	Status         enum.OrderStatus
	PaymentStatus  enum.PaymentStatus
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderRow is an order joined with the store it is delivered to.
type OrderRow struct {
	Order
	StoreName     string
	StoreAddress  pgtype.Text
	DistributorID pgtype.UUID
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	Quantity       int32
	UnitPrice      pgtype.Numeric
	DiscountAmount pgtype.Numeric
	GiftQuantity   int32
	Total          pgtype.Numeric
	CreatedAt      time.Time
}

// OrderItemRow is an order item joined with its product name.
type OrderItemRow struct {
	OrderItem
	ProductName string
}
