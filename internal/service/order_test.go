package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokokita/api/internal/database"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return nil
}
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
	createOrderFn               func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	updateOrderFn               func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	deleteOrderFn               func(ctx context.Context, id int64) (int64, error)
	getItemForUpdateFn          func(ctx context.Context, id int64) (database.Item, error)
	updateItemStockFn           func(ctx context.Context, arg database.UpdateItemStockParams) (int64, error)
	getOrderDetailFn            func(ctx context.Context, id int64) (database.OrderDetail, error)
	createOrderDetailFn         func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error)
	updateOrderDetailFn         func(ctx context.Context, arg database.UpdateOrderDetailParams) (database.OrderDetail, error)
	deleteOrderDetailsByOrderFn func(ctx context.Context, orderID int64) error
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	return m.updateOrderFn(ctx, arg)
}
func (m *mockOrderStore) DeleteOrder(ctx context.Context, id int64) (int64, error) {
	return m.deleteOrderFn(ctx, id)
}
func (m *mockOrderStore) GetItemForUpdate(ctx context.Context, id int64) (database.Item, error) {
	return m.getItemForUpdateFn(ctx, id)
}
func (m *mockOrderStore) UpdateItemStock(ctx context.Context, arg database.UpdateItemStockParams) (int64, error) {
	return m.updateItemStockFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderDetail(ctx context.Context, id int64) (database.OrderDetail, error) {
	return m.getOrderDetailFn(ctx, id)
}
func (m *mockOrderStore) CreateOrderDetail(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
	return m.createOrderDetailFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderDetail(ctx context.Context, arg database.UpdateOrderDetailParams) (database.OrderDetail, error) {
	return m.updateOrderDetailFn(ctx, arg)
}
func (m *mockOrderStore) DeleteOrderDetailsByOrder(ctx context.Context, orderID int64) error {
	return m.deleteOrderDetailsByOrderFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func dec(val string) decimal.Decimal {
	d, _ := decimal.NewFromString(val)
	return d
}

// newTestService creates an OrderService with mocked dependencies.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

// stockStore returns a mockOrderStore backed by an in-memory stock map so
// tests can observe compound decrements. Detail and order writes succeed.
func stockStore(stock map[int64]string) *mockOrderStore {
	nextDetailID := int64(1)
	return &mockOrderStore{
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:                1,
				CashierID:         arg.CashierID,
				ShopID:            arg.ShopID,
				TotalSellingPrice: arg.TotalSellingPrice,
				TotalActualPrice:  arg.TotalActualPrice,
			}, nil
		},
		getItemForUpdateFn: func(ctx context.Context, id int64) (database.Item, error) {
			s, ok := stock[id]
			if !ok {
				return database.Item{}, pgx.ErrNoRows
			}
			return database.Item{ID: id, ItemID: id, NumOfItems: makeNumeric(s)}, nil
		},
		updateItemStockFn: func(ctx context.Context, arg database.UpdateItemStockParams) (int64, error) {
			stock[arg.ID] = numericToDecimal(arg.NumOfItems).String()
			return arg.ID, nil
		},
		createOrderDetailFn: func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
			d := database.OrderDetail{
				ID:                 nextDetailID,
				OrderID:            arg.OrderID,
				ItemID:             arg.ItemID,
				Type:               arg.Type,
				NeededAmount:       arg.NeededAmount,
				NumOfItems:         arg.NumOfItems,
				TotalPricePerUnits: arg.TotalPricePerUnits,
			}
			nextDetailID++
			return d, nil
		},
	}
}

func detail(itemID int64, needed string) OrderDetailRequest {
	return OrderDetailRequest{
		ItemID:             itemID,
		Type:               "QTY",
		NeededAmount:       dec(needed),
		NumOfItems:         dec(needed),
		TotalPricePerUnits: dec("15000"),
	}
}

func createReq(details ...OrderDetailRequest) CreateOrderRequest {
	return CreateOrderRequest{
		CashierID:         1,
		ShopID:            1,
		TotalSellingPrice: dec("45000"),
		TotalActualPrice:  dec("36000"),
		Details:           details,
	}
}

// --- CreateOrder tests ---

func TestCreateOrder_DecrementsStock(t *testing.T) {
	stock := map[int64]string{1: "50"}
	store := stockStore(stock)
	svc, tx := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3")))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if stock[1] != "47" {
		t.Errorf("stock after order: got %s, want 47", stock[1])
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
	if len(result.Details) != 1 {
		t.Fatalf("details: got %d, want 1", len(result.Details))
	}
	if !numericEquals(result.Details[0].Item.NumOfItems, "47") {
		t.Errorf("result item stock: got %v, want 47", result.Details[0].Item.NumOfItems)
	}
}

func TestCreateOrder_CompoundsDuplicateItems(t *testing.T) {
	stock := map[int64]string{1: "10"}
	store := stockStore(stock)
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3"), detail(1, "4")))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// The second line must see the stock already reduced by the first.
	if stock[1] != "3" {
		t.Errorf("stock after order: got %s, want 3", stock[1])
	}
}

func TestCreateOrder_ExactStockAllowed(t *testing.T) {
	stock := map[int64]string{1: "3"}
	store := stockStore(stock)
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3")))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if stock[1] != "0" {
		t.Errorf("stock after order: got %s, want 0", stock[1])
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	stock := map[int64]string{1: "2"}
	store := stockStore(stock)
	var detailsCreated int
	inner := store.createOrderDetailFn
	store.createOrderDetailFn = func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
		detailsCreated++
		return inner(ctx, arg)
	}
	svc, tx := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3")))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "1") {
		t.Errorf("expected offending item ID in error, got %q", err.Error())
	}
	if tx.committed {
		t.Error("transaction must not be committed")
	}
	if detailsCreated != 0 {
		t.Errorf("details created: got %d, want 0", detailsCreated)
	}
}

func TestCreateOrder_SecondLineFailsRollsBack(t *testing.T) {
	stock := map[int64]string{1: "10", 2: "1"}
	store := stockStore(stock)
	svc, tx := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3"), detail(2, "5")))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if tx.committed {
		t.Error("transaction must not be committed when a later line fails")
	}
}

func TestCreateOrder_ItemNotFound(t *testing.T) {
	store := stockStore(map[int64]string{})
	svc, tx := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq(detail(42, "1")))
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "42") {
		t.Errorf("expected item ID in error, got %q", err.Error())
	}
	if tx.committed {
		t.Error("transaction must not be committed")
	}
}

func TestCreateOrder_EmptyDetails(t *testing.T) {
	store := stockStore(map[int64]string{})
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), createReq())
	if !errors.Is(err, ErrEmptyDetails) {
		t.Fatalf("expected ErrEmptyDetails, got %v", err)
	}
}

func TestCreateOrder_CommitError(t *testing.T) {
	stock := map[int64]string{1: "10"}
	store := stockStore(stock)
	svc, tx := newTestService(store)
	tx.commitErr = errors.New("connection lost")

	_, err := svc.CreateOrder(context.Background(), createReq(detail(1, "3")))
	if err == nil || !strings.Contains(err.Error(), "commit tx") {
		t.Fatalf("expected commit error, got %v", err)
	}
}

// --- UpdateOrder tests ---

func updateReq(details ...OrderDetailRequest) UpdateOrderRequest {
	return UpdateOrderRequest{
		OrderID:           1,
		CashierID:         1,
		ShopID:            1,
		TotalSellingPrice: dec("45000"),
		TotalActualPrice:  dec("36000"),
		Details:           details,
	}
}

func TestUpdateOrder_UpsertExistingDetail(t *testing.T) {
	var updated, created int
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{ID: arg.ID, CashierID: arg.CashierID, ShopID: arg.ShopID}, nil
		},
		getOrderDetailFn: func(ctx context.Context, id int64) (database.OrderDetail, error) {
			return database.OrderDetail{ID: id, OrderID: 1}, nil
		},
		updateOrderDetailFn: func(ctx context.Context, arg database.UpdateOrderDetailParams) (database.OrderDetail, error) {
			updated++
			return database.OrderDetail{ID: arg.ID}, nil
		},
		createOrderDetailFn: func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
			created++
			return database.OrderDetail{}, nil
		},
	}
	svc, tx := newTestService(store)

	d := detail(1, "3")
	d.ID = 7
	_, err := svc.UpdateOrder(context.Background(), updateReq(d))
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated != 1 || created != 0 {
		t.Errorf("updated=%d created=%d, want 1/0", updated, created)
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
}

func TestUpdateOrder_UnknownDetailIDInserts(t *testing.T) {
	var created int
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{ID: arg.ID}, nil
		},
		getOrderDetailFn: func(ctx context.Context, id int64) (database.OrderDetail, error) {
			return database.OrderDetail{}, pgx.ErrNoRows
		},
		createOrderDetailFn: func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
			created++
			if arg.OrderID != 1 {
				t.Errorf("order id on inserted detail: got %d, want 1", arg.OrderID)
			}
			return database.OrderDetail{}, nil
		},
	}
	svc, _ := newTestService(store)

	d := detail(1, "3")
	d.ID = 999
	_, err := svc.UpdateOrder(context.Background(), updateReq(d))
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if created != 1 {
		t.Errorf("created: got %d, want 1", created)
	}
}

func TestUpdateOrder_NewDetailWithoutID(t *testing.T) {
	var created, fetched int
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{ID: arg.ID}, nil
		},
		getOrderDetailFn: func(ctx context.Context, id int64) (database.OrderDetail, error) {
			fetched++
			return database.OrderDetail{}, pgx.ErrNoRows
		},
		createOrderDetailFn: func(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error) {
			created++
			return database.OrderDetail{}, nil
		},
	}
	svc, _ := newTestService(store)

	_, err := svc.UpdateOrder(context.Background(), updateReq(detail(1, "3")))
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if created != 1 {
		t.Errorf("created: got %d, want 1", created)
	}
	if fetched != 0 {
		t.Errorf("details without an id must not be looked up, got %d lookups", fetched)
	}
}

// Stock is deliberately left alone on update: the store's item methods are
// nil, so any call would panic.
func TestUpdateOrder_DoesNotTouchStock(t *testing.T) {
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{ID: arg.ID}, nil
		},
		getOrderDetailFn: func(ctx context.Context, id int64) (database.OrderDetail, error) {
			return database.OrderDetail{ID: id}, nil
		},
		updateOrderDetailFn: func(ctx context.Context, arg database.UpdateOrderDetailParams) (database.OrderDetail, error) {
			return database.OrderDetail{ID: arg.ID}, nil
		},
	}
	svc, _ := newTestService(store)

	d := detail(1, "3")
	d.ID = 7
	if _, err := svc.UpdateOrder(context.Background(), updateReq(d)); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
}

func TestUpdateOrder_NotFound(t *testing.T) {
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	svc, _ := newTestService(store)

	_, err := svc.UpdateOrder(context.Background(), updateReq())
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

// --- DeleteOrder tests ---

func TestDeleteOrder_DetailsFirst(t *testing.T) {
	var calls []string
	store := &mockOrderStore{
		deleteOrderDetailsByOrderFn: func(ctx context.Context, orderID int64) error {
			calls = append(calls, "details")
			return nil
		},
		deleteOrderFn: func(ctx context.Context, id int64) (int64, error) {
			calls = append(calls, "order")
			return id, nil
		},
	}
	svc, tx := newTestService(store)

	if err := svc.DeleteOrder(context.Background(), 1); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if len(calls) != 2 || calls[0] != "details" || calls[1] != "order" {
		t.Errorf("call order: got %v, want [details order]", calls)
	}
	if !tx.committed {
		t.Error("expected transaction to be committed")
	}
}

func TestDeleteOrder_NotFound(t *testing.T) {
	store := &mockOrderStore{
		deleteOrderDetailsByOrderFn: func(ctx context.Context, orderID int64) error {
			return nil
		},
		deleteOrderFn: func(ctx context.Context, id int64) (int64, error) {
			return 0, pgx.ErrNoRows
		},
	}
	svc, tx := newTestService(store)

	err := svc.DeleteOrder(context.Background(), 99)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if tx.committed {
		t.Error("transaction must not be committed")
	}
}
