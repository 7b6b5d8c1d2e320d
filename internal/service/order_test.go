package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = m.commitErr == nil
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getStoreFn                func(ctx context.Context, id uuid.UUID) (database.Store, error)
	getProductFn              func(ctx context.Context, id uuid.UUID) (database.Product, error)
	getNextOrderNumberFn      func(ctx context.Context, orderDate time.Time) (int32, error)
	createOrderFn             func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn         func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderForUpdateFn       func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderFn             func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	deleteOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) error
}

func (m *mockOrderStore) GetStore(ctx context.Context, id uuid.UUID) (database.Store, error) {
	return m.getStoreFn(ctx, id)
}
func (m *mockOrderStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockOrderStore) GetNextOrderNumber(ctx context.Context, orderDate time.Time) (int32, error) {
	return m.getNextOrderNumberFn(ctx, orderDate)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockOrderStore) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	return m.updateOrderFn(ctx, arg)
}
func (m *mockOrderStore) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteOrderItemsByOrderFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := database.NumericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

var (
	testOrderDate    = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testDeliveryDate = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
)

// newTestService creates an OrderService with mocked dependencies.
// store is the mock OrderStore that will be returned by the NewOrderStore factory.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

// defaultStore returns a mockOrderStore that knows one store and a bread
// (2.50) and a croissant (1.25). Individual tests override what they need.
func defaultStore(storeID, breadID, croissantID uuid.UUID) *mockOrderStore {
	products := map[uuid.UUID]database.Product{
		breadID:     {ID: breadID, Name: "Sourdough", UnitPrice: makeNumeric("2.50"), IsActive: true},
		croissantID: {ID: croissantID, Name: "Croissant", UnitPrice: makeNumeric("1.25"), IsActive: true},
	}
	return &mockOrderStore{
		getStoreFn: func(ctx context.Context, id uuid.UUID) (database.Store, error) {
			if id == storeID {
				return database.Store{ID: storeID, Name: "Corner Cafe", IsActive: true}, nil
			}
			return database.Store{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			if p, ok := products[id]; ok {
				return p, nil
			}
			return database.Product{}, pgx.ErrNoRows
		},
		getNextOrderNumberFn: func(ctx context.Context, orderDate time.Time) (int32, error) {
			return 1, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:             uuid.New(),
				OrderNumber:    arg.OrderNumber,
				StoreID:        arg.StoreID,
				CreatedBy:      arg.CreatedBy,
				OrderDate:      arg.OrderDate,
				DeliveryDate:   arg.DeliveryDate,
				Status:         enum.OrderStatusDraft,
				PaymentStatus:  enum.PaymentStatusPending,
				Subtotal:       arg.Subtotal,
				DiscountAmount: arg.DiscountAmount,
				TotalAmount:    arg.TotalAmount,
				Notes:          arg.Notes,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:             uuid.New(),
				OrderID:        arg.OrderID,
				ProductID:      arg.ProductID,
				Quantity:       arg.Quantity,
				UnitPrice:      arg.UnitPrice,
				DiscountAmount: arg.DiscountAmount,
				GiftQuantity:   arg.GiftQuantity,
				Total:          arg.Total,
			}, nil
		},
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{ID: id, Status: enum.OrderStatusDraft}, nil
		},
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{
				ID:             arg.ID,
				StoreID:        arg.StoreID,
				OrderDate:      arg.OrderDate,
				DeliveryDate:   arg.DeliveryDate,
				Status:         enum.OrderStatusConfirmed,
				Subtotal:       arg.Subtotal,
				DiscountAmount: arg.DiscountAmount,
				TotalAmount:    arg.TotalAmount,
			}, nil
		},
		deleteOrderItemsByOrderFn: func(ctx context.Context, orderID uuid.UUID) error {
			return nil
		},
	}
}

func basicReq(storeID, productID uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		CreatedBy: uuid.New(),
		OrderInput: OrderInput{
			StoreID:      storeID,
			OrderDate:    testOrderDate,
			DeliveryDate: testDeliveryDate,
			Items: []OrderItemInput{
				{ProductID: productID, Quantity: 2},
			},
		},
	}
}

func priceOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =====================
// Validation tests
// =====================

func TestCreateOrder_EmptyItems(t *testing.T) {
	storeID := uuid.New()
	svc, _ := newTestService(defaultStore(storeID, uuid.New(), uuid.New()))

	req := basicReq(storeID, uuid.New())
	req.Items = nil
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestCreateOrder_DeliveryBeforeOrderDate(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.DeliveryDate = testOrderDate.AddDate(0, 0, -1)
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidDeliveryDate) {
		t.Fatalf("expected ErrInvalidDeliveryDate, got: %v", err)
	}
}

func TestCreateOrder_SameDayDeliveryAllowed(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.DeliveryDate = req.OrderDate
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrder_MissingOrderDate(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.OrderDate = time.Time{}
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidOrderDate) {
		t.Fatalf("expected ErrInvalidOrderDate, got: %v", err)
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.Items[0].Quantity = 0
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
	if !strings.Contains(err.Error(), "item[0]") {
		t.Errorf("expected item index in error, got: %v", err)
	}
}

func TestCreateOrder_NegativeOrderDiscount(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.DiscountAmount = decimal.NewFromInt(-1)
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidOrderDiscount) {
		t.Fatalf("expected ErrInvalidOrderDiscount, got: %v", err)
	}
}

func TestCreateOrder_ItemDiscountAboveLine(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.Items[0].DiscountAmount = decimal.NewFromInt(6) // 2 x 2.50 = 5
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidItemDiscount) {
		t.Fatalf("expected ErrInvalidItemDiscount, got: %v", err)
	}
}

func TestCreateOrder_SubCentPriceRejected(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())
	created := false
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = true
		return database.Order{}, nil
	}
	svc, _ := newTestService(store)

	req := basicReq(storeID, breadID)
	req.Items = []OrderItemInput{
		{ProductID: breadID, Quantity: 1, UnitPrice: priceOf("0.005")},
		{ProductID: breadID, Quantity: 1, UnitPrice: priceOf("0.005")},
		{ProductID: breadID, Quantity: 1, UnitPrice: priceOf("0.005")},
	}
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrTooManyDecimals) {
		t.Fatalf("expected ErrTooManyDecimals, got: %v", err)
	}
	if created {
		t.Error("order must not be written")
	}
}

func TestCreateOrder_StoredSubtotalMatchesItems(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.Items = []OrderItemInput{
		{ProductID: breadID, Quantity: 1, UnitPrice: priceOf("0.01")},
		{ProductID: breadID, Quantity: 3, UnitPrice: priceOf("0.33")},
		{ProductID: breadID, Quantity: 7, UnitPrice: priceOf("1.15"), DiscountAmount: decimal.RequireFromString("0.05")},
	}
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := decimal.Zero
	for _, item := range result.Items {
		sum = sum.Add(database.NumericToDecimal(item.Total))
	}
	if !numericEquals(result.Order.Subtotal, sum.String()) {
		t.Errorf("subtotal %s does not match item totals %s",
			database.NumericString(result.Order.Subtotal), sum.StringFixed(2))
	}
	if !numericEquals(result.Order.TotalAmount, sum.String()) {
		t.Errorf("total %s does not match item totals %s",
			database.NumericString(result.Order.TotalAmount), sum.StringFixed(2))
	}
}

func TestCreateOrder_AmountBeyondColumnRejected(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	tests := []struct {
		name  string
		items []OrderItemInput
	}{
		{"unit price", []OrderItemInput{{ProductID: breadID, Quantity: 1, UnitPrice: priceOf("10000000000")}}},
		{"line gross", []OrderItemInput{{ProductID: breadID, Quantity: 2000000000, UnitPrice: priceOf("1000")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := basicReq(storeID, breadID)
			req.Items = tt.items
			_, err := svc.CreateOrder(context.Background(), req)
			if !errors.Is(err, ErrAmountTooLarge) {
				t.Fatalf("expected ErrAmountTooLarge, got: %v", err)
			}
		})
	}
}

func TestCreateOrder_StoreNotFound(t *testing.T) {
	breadID := uuid.New()
	svc, _ := newTestService(defaultStore(uuid.New(), breadID, uuid.New()))

	_, err := svc.CreateOrder(context.Background(), basicReq(uuid.New(), breadID))
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got: %v", err)
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	storeID := uuid.New()
	svc, _ := newTestService(defaultStore(storeID, uuid.New(), uuid.New()))

	_, err := svc.CreateOrder(context.Background(), basicReq(storeID, uuid.New()))
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

// =====================
// Pricing
// =====================

func TestCreateOrder_DefaultsToCatalogPrice(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())

	var gotItem database.CreateOrderItemParams
	baseCreateItem := store.createOrderItemFn
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		gotItem = arg
		return baseCreateItem(ctx, arg)
	}

	svc, tx := newTestService(store)
	result, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(gotItem.UnitPrice, "2.50") {
		t.Errorf("expected unit price 2.50, got %v", database.NumericString(gotItem.UnitPrice))
	}
	if !numericEquals(gotItem.Total, "5.00") {
		t.Errorf("expected item total 5.00, got %v", database.NumericString(gotItem.Total))
	}
	if !numericEquals(result.Order.TotalAmount, "5.00") {
		t.Errorf("expected order total 5.00, got %v", database.NumericString(result.Order.TotalAmount))
	}
	if result.Order.Status != enum.OrderStatusDraft || result.Order.PaymentStatus != enum.PaymentStatusPending {
		t.Errorf("expected draft/pending, got %s/%s", result.Order.Status, result.Order.PaymentStatus)
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
}

func TestCreateOrder_WorkedExampleTotals(t *testing.T) {
	storeID, breadID, croissantID := uuid.New(), uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, croissantID)

	var gotOrder database.CreateOrderParams
	baseCreate := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		gotOrder = arg
		return baseCreate(ctx, arg)
	}

	svc, _ := newTestService(store)
	req := basicReq(storeID, breadID)
	req.DiscountAmount = decimal.NewFromInt(10)
	req.Items = []OrderItemInput{
		{ProductID: breadID, Quantity: 10},
		{ProductID: croissantID, Quantity: 20, DiscountAmount: decimal.NewFromInt(5), GiftQuantity: 3},
	}

	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(gotOrder.Subtotal, "45") {
		t.Errorf("subtotal: got %s, want 45.00", database.NumericString(gotOrder.Subtotal))
	}
	if !numericEquals(gotOrder.DiscountAmount, "10") {
		t.Errorf("discount: got %s, want 10.00", database.NumericString(gotOrder.DiscountAmount))
	}
	if !numericEquals(gotOrder.TotalAmount, "35") {
		t.Errorf("total: got %s, want 35.00", database.NumericString(gotOrder.TotalAmount))
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[1].GiftQuantity != 3 {
		t.Errorf("expected gift quantity 3 to be stored, got %d", result.Items[1].GiftQuantity)
	}
	if !numericEquals(result.Items[1].Total, "20") {
		t.Errorf("croissant total: got %s, want 20.00", database.NumericString(result.Items[1].Total))
	}
}

func TestCreateOrder_ExplicitUnitPriceOverridesCatalog(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.Items[0].UnitPrice = priceOf("2.00")
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.TotalAmount, "4.00") {
		t.Errorf("expected total 4.00, got %s", database.NumericString(result.Order.TotalAmount))
	}
}

func TestCreateOrder_DiscountAboveSubtotalClampedToZero(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	svc, _ := newTestService(defaultStore(storeID, breadID, uuid.New()))

	req := basicReq(storeID, breadID)
	req.DiscountAmount = decimal.NewFromInt(100)
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.TotalAmount, "0") {
		t.Errorf("expected total 0, got %s", database.NumericString(result.Order.TotalAmount))
	}
}

// =====================
// Order number
// =====================

func TestCreateOrder_OrderNumberFormat(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())
	var gotDate time.Time
	store.getNextOrderNumberFn = func(ctx context.Context, orderDate time.Time) (int32, error) {
		gotDate = orderDate
		return 7, nil
	}

	svc, _ := newTestService(store)
	result, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.OrderNumber != "ORD-20260302-007" {
		t.Errorf("expected ORD-20260302-007, got %s", result.Order.OrderNumber)
	}
	if !gotDate.Equal(testOrderDate) {
		t.Errorf("expected numbering per order date, got %v", gotDate)
	}
}

// =====================
// Retry on unique constraint violation
// =====================

func TestCreateOrder_RetryOnUniqueViolation(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())

	createCallCount := 0
	baseCreate := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCallCount++
		if createCallCount == 1 {
			return database.Order{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "orders_order_number_key",
			}
		}
		return baseCreate(ctx, arg)
	}

	orderNumCallCount := 0
	store.getNextOrderNumberFn = func(ctx context.Context, orderDate time.Time) (int32, error) {
		orderNumCallCount++
		return int32(orderNumCallCount), nil
	}

	svc, _ := newTestService(store)
	result, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if createCallCount != 2 {
		t.Errorf("expected 2 CreateOrder calls (1 fail + 1 success), got %d", createCallCount)
	}
	if result.Order.OrderNumber != "ORD-20260302-002" {
		t.Errorf("expected retried number ORD-20260302-002, got %s", result.Order.OrderNumber)
	}
}

func TestCreateOrder_RetryExhausted(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())

	callCount := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		callCount++
		return database.Order{}, &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "orders_order_number_key",
		}
	}

	svc, _ := newTestService(store)
	_, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if !strings.Contains(err.Error(), "create order") {
		t.Errorf("expected 'create order' in error message, got: %v", err)
	}
	if callCount != maxOrderNumberRetries {
		t.Errorf("expected %d attempts, got %d", maxOrderNumberRetries, callCount)
	}
}

func TestCreateOrder_NonUniqueErrorNotRetried(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())

	callCount := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		callCount++
		return database.Order{}, errors.New("some other DB error")
	}

	svc, _ := newTestService(store)
	_, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("expected 1 attempt, got %d", callCount)
	}
}

func TestCreateOrder_BeginError(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	pool := &mockTxBeginner{err: errors.New("pool closed")}
	svc := NewOrderService(pool, func(db database.DBTX) OrderStore { return defaultStore(storeID, breadID, uuid.New()) })

	_, err := svc.CreateOrder(context.Background(), basicReq(storeID, breadID))
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin tx error, got: %v", err)
	}
}

// =====================
// UpdateOrder
// =====================

func updateReq(orderID, storeID, productID uuid.UUID) UpdateOrderRequest {
	return UpdateOrderRequest{
		ID: orderID,
		OrderInput: OrderInput{
			StoreID:      storeID,
			OrderDate:    testOrderDate,
			DeliveryDate: testDeliveryDate,
			Items:        []OrderItemInput{{ProductID: productID, Quantity: 4}},
		},
	}
}

func TestUpdateOrder_ReplacesItems(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	orderID := uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())

	var deletedFor uuid.UUID
	store.deleteOrderItemsByOrderFn = func(ctx context.Context, id uuid.UUID) error {
		deletedFor = id
		return nil
	}

	svc, tx := newTestService(store)
	result, err := svc.UpdateOrder(context.Background(), updateReq(orderID, storeID, breadID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedFor != orderID {
		t.Errorf("expected items of %s to be replaced, got %s", orderID, deletedFor)
	}
	if len(result.Items) != 1 || result.Items[0].Quantity != 4 {
		t.Errorf("unexpected items: %+v", result.Items)
	}
	if !numericEquals(result.Order.TotalAmount, "10.00") {
		t.Errorf("expected total 10.00, got %s", database.NumericString(result.Order.TotalAmount))
	}
	if !tx.committed {
		t.Error("expected commit")
	}
}

func TestUpdateOrder_NotEditable(t *testing.T) {
	for _, status := range []enum.OrderStatus{enum.OrderStatusInProgress, enum.OrderStatusDelivered, enum.OrderStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			storeID, breadID := uuid.New(), uuid.New()
			store := defaultStore(storeID, breadID, uuid.New())
			store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
				return database.Order{ID: id, Status: status}, nil
			}
			store.updateOrderFn = func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
				t.Fatal("UpdateOrder must not be called")
				return database.Order{}, nil
			}

			svc, tx := newTestService(store)
			_, err := svc.UpdateOrder(context.Background(), updateReq(uuid.New(), storeID, breadID))
			if !errors.Is(err, ErrOrderNotEditable) {
				t.Fatalf("expected ErrOrderNotEditable, got: %v", err)
			}
			if tx.committed {
				t.Error("expected no commit")
			}
		})
	}
}

func TestUpdateOrder_NotFound(t *testing.T) {
	storeID, breadID := uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, uuid.New())
	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	svc, _ := newTestService(store)
	_, err := svc.UpdateOrder(context.Background(), updateReq(uuid.New(), storeID, breadID))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

// =====================
// PreviewOrder
// =====================

func TestPreviewOrder(t *testing.T) {
	storeID, breadID, croissantID := uuid.New(), uuid.New(), uuid.New()
	store := defaultStore(storeID, breadID, croissantID)
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		t.Fatal("preview must not write")
		return database.Order{}, nil
	}

	svc, tx := newTestService(store)
	preview, err := svc.PreviewOrder(context.Background(), []OrderItemInput{
		{ProductID: breadID, Quantity: 10},
		{ProductID: croissantID, Quantity: 20, DiscountAmount: decimal.NewFromInt(5)},
	}, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.Totals.Total.StringFixed(2) != "35.00" {
		t.Errorf("expected total 35.00, got %s", preview.Totals.Total.StringFixed(2))
	}
	if preview.Items[1].ProductName != "Croissant" || preview.Items[1].Total.StringFixed(2) != "20.00" {
		t.Errorf("unexpected second line: %+v", preview.Items[1])
	}
	if tx.committed {
		t.Error("preview must not commit")
	}
}

func TestPreviewOrder_EmptyItemsTotalsZero(t *testing.T) {
	svc, _ := newTestService(defaultStore(uuid.New(), uuid.New(), uuid.New()))

	preview, err := svc.PreviewOrder(context.Background(), nil, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !preview.Totals.Total.IsZero() {
		t.Errorf("expected zero total, got %s", preview.Totals.Total)
	}
}
