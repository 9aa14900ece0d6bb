package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokokita/api/internal/database"
)

// Errors returned by the order service.
var (
	ErrEmptyDetails      = errors.New("order_details are required")
	ErrItemNotFound      = errors.New("item not found with ID")
	ErrInsufficientStock = errors.New("insufficient stock for item ID")
	ErrOrderNotFound     = errors.New("order not found")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order transactions.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id int64) (int64, error)
	GetItemForUpdate(ctx context.Context, id int64) (database.Item, error)
	UpdateItemStock(ctx context.Context, arg database.UpdateItemStockParams) (int64, error)
	GetOrderDetail(ctx context.Context, id int64) (database.OrderDetail, error)
	CreateOrderDetail(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error)
	UpdateOrderDetail(ctx context.Context, arg database.UpdateOrderDetailParams) (database.OrderDetail, error)
	DeleteOrderDetailsByOrder(ctx context.Context, orderID int64) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CashierID         int64
	ShopID            int64
	TotalSellingPrice decimal.Decimal
	TotalActualPrice  decimal.Decimal
	Details           []OrderDetailRequest
}

// OrderDetailRequest is a single line of an order payload. ID is only
// meaningful on update, where it selects the detail row to overwrite.
type OrderDetailRequest struct {
	ID                 int64
	ItemID             int64
	Type               string
	NeededAmount       decimal.Decimal
	NumOfItems         decimal.Decimal
	TotalPricePerUnits decimal.Decimal
}

// UpdateOrderRequest carries the fields for the order update transaction.
type UpdateOrderRequest struct {
	OrderID           int64
	CashierID         int64
	ShopID            int64
	TotalSellingPrice decimal.Decimal
	TotalActualPrice  decimal.Decimal
	Details           []OrderDetailRequest
}

// OrderDetailResult is a created detail with the item it references,
// reflecting the stock level after the decrement.
type OrderDetailResult struct {
	Detail database.OrderDetail
	Item   database.Item
}

// CreateOrderResult is the full created order with its details.
type CreateOrderResult struct {
	Order   database.Order
	Details []OrderDetailResult
}

// OrderService owns the multi-row order transactions.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder inserts the order and its details atomically, decrementing
// each referenced item's stock by the detail's needed amount. Details are
// processed in payload order; two lines referencing the same item compound
// their deduction against the running stock value. Items are loaded with
// FOR UPDATE so concurrent orders against the same item serialize instead
// of both reading stale stock.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Details) == 0 {
		return nil, ErrEmptyDetails
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CashierID:         req.CashierID,
		ShopID:            req.ShopID,
		TotalSellingPrice: decimalToNumeric(req.TotalSellingPrice),
		TotalActualPrice:  decimalToNumeric(req.TotalActualPrice),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var details []OrderDetailResult
	for i, d := range req.Details {
		item, err := store.GetItemForUpdate(ctx, d.ItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %d", ErrItemNotFound, d.ItemID)
			}
			return nil, fmt.Errorf("order_details[%d]: get item: %w", i, err)
		}

		remaining := numericToDecimal(item.NumOfItems).Sub(d.NeededAmount)
		if remaining.IsNegative() {
			return nil, fmt.Errorf("%w: %d", ErrInsufficientStock, d.ItemID)
		}

		if _, err := store.UpdateItemStock(ctx, database.UpdateItemStockParams{
			ID:         item.ID,
			NumOfItems: decimalToNumeric(remaining),
		}); err != nil {
			return nil, fmt.Errorf("order_details[%d]: update stock: %w", i, err)
		}
		item.NumOfItems = decimalToNumeric(remaining)

		detail, err := store.CreateOrderDetail(ctx, database.CreateOrderDetailParams{
			OrderID:            order.ID,
			ItemID:             d.ItemID,
			Type:               d.Type,
			NeededAmount:       decimalToNumeric(d.NeededAmount),
			NumOfItems:         decimalToNumeric(d.NumOfItems),
			TotalPricePerUnits: decimalToNumeric(d.TotalPricePerUnits),
		})
		if err != nil {
			return nil, fmt.Errorf("order_details[%d]: create detail: %w", i, err)
		}

		details = append(details, OrderDetailResult{Detail: detail, Item: item})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Details: details}, nil
}

// UpdateOrder overwrites the order's fields and upserts the provided
// details keyed by their own id. Details omitted from the payload are left
// in place, and stock is not re-validated or adjusted. Intentional: the
// endpoint corrects clerical fields after the sale, it does not re-run it.
func (s *OrderService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:                req.OrderID,
		CashierID:         req.CashierID,
		ShopID:            req.ShopID,
		TotalSellingPrice: decimalToNumeric(req.TotalSellingPrice),
		TotalActualPrice:  decimalToNumeric(req.TotalActualPrice),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	for i, d := range req.Details {
		if err := upsertDetail(ctx, store, order.ID, d); err != nil {
			return nil, fmt.Errorf("order_details[%d]: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &order, nil
}

func upsertDetail(ctx context.Context, store OrderStore, orderID int64, d OrderDetailRequest) error {
	if d.ID > 0 {
		_, err := store.GetOrderDetail(ctx, d.ID)
		if err == nil {
			_, err = store.UpdateOrderDetail(ctx, database.UpdateOrderDetailParams{
				ID:                 d.ID,
				ItemID:             d.ItemID,
				Type:               d.Type,
				NeededAmount:       decimalToNumeric(d.NeededAmount),
				NumOfItems:         decimalToNumeric(d.NumOfItems),
				TotalPricePerUnits: decimalToNumeric(d.TotalPricePerUnits),
			})
			if err != nil {
				return fmt.Errorf("update detail: %w", err)
			}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get detail: %w", err)
		}
		// unknown id, insert as a new row
	}

	_, err := store.CreateOrderDetail(ctx, database.CreateOrderDetailParams{
		OrderID:            orderID,
		ItemID:             d.ItemID,
		Type:               d.Type,
		NeededAmount:       decimalToNumeric(d.NeededAmount),
		NumOfItems:         decimalToNumeric(d.NumOfItems),
		TotalPricePerUnits: decimalToNumeric(d.TotalPricePerUnits),
	})
	if err != nil {
		return fmt.Errorf("create detail: %w", err)
	}
	return nil
}

// DeleteOrder removes the order's details and then the order itself in one
// transaction, so no orphaned detail rows survive a partial failure.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := store.DeleteOrderDetailsByOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete order details: %w", err)
	}

	if _, err := store.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
