package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listOrders = `
SELECT o.id, o.cashier_id, o.shop_id, o.total_selling_price,
       o.total_actual_price, o.created_at, o.updated_at,
       u.name AS cashier_name, s.name AS shop_name
FROM orders o
JOIN users u ON u.id = o.cashier_id
JOIN shops s ON s.id = o.shop_id
WHERE ($1::bigint IS NULL OR o.cashier_id = $1)
  AND ($2::bigint IS NULL OR o.shop_id = $2)
  AND ($3::timestamptz IS NULL OR o.created_at >= $3)
  AND ($4::timestamptz IS NULL OR o.created_at < $4)
  AND ($5::timestamptz IS NULL OR o.created_at >= $5)
  AND ($6::timestamptz IS NULL OR o.created_at < $6)
  AND ($7::timestamptz IS NULL OR o.created_at >= $7)
  AND ($8::timestamptz IS NULL OR o.created_at < $8)
ORDER BY o.id
LIMIT $9 OFFSET $10
`

// ListOrdersParams carries the exact filters plus up to three independent
// created_at ranges (date, week, month). Ranges are additive: when more
// than one is set the clauses are AND-combined.
type ListOrdersParams struct {
	CashierID pgtype.Int8
	ShopID    pgtype.Int8
	DateFrom  pgtype.Timestamptz
	DateTo    pgtype.Timestamptz
	WeekFrom  pgtype.Timestamptz
	WeekTo    pgtype.Timestamptz
	MonthFrom pgtype.Timestamptz
	MonthTo   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

type ListOrdersRow struct {
	Order
	CashierName string
	ShopName    string
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]ListOrdersRow, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.CashierID, arg.ShopID,
		arg.DateFrom, arg.DateTo,
		arg.WeekFrom, arg.WeekTo,
		arg.MonthFrom, arg.MonthTo,
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []ListOrdersRow
	for rows.Next() {
		var r ListOrdersRow
		if err := rows.Scan(
			&r.ID, &r.CashierID, &r.ShopID, &r.TotalSellingPrice,
			&r.TotalActualPrice, &r.CreatedAt, &r.UpdatedAt,
			&r.CashierName, &r.ShopName,
		); err != nil {
			return nil, err
		}
		orders = append(orders, r)
	}
	return orders, rows.Err()
}

const countOrders = `
SELECT count(*)
FROM orders o
WHERE ($1::bigint IS NULL OR o.cashier_id = $1)
  AND ($2::bigint IS NULL OR o.shop_id = $2)
  AND ($3::timestamptz IS NULL OR o.created_at >= $3)
  AND ($4::timestamptz IS NULL OR o.created_at < $4)
  AND ($5::timestamptz IS NULL OR o.created_at >= $5)
  AND ($6::timestamptz IS NULL OR o.created_at < $6)
  AND ($7::timestamptz IS NULL OR o.created_at >= $7)
  AND ($8::timestamptz IS NULL OR o.created_at < $8)
`

type CountOrdersParams struct {
	CashierID pgtype.Int8
	ShopID    pgtype.Int8
	DateFrom  pgtype.Timestamptz
	DateTo    pgtype.Timestamptz
	WeekFrom  pgtype.Timestamptz
	WeekTo    pgtype.Timestamptz
	MonthFrom pgtype.Timestamptz
	MonthTo   pgtype.Timestamptz
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrders,
		arg.CashierID, arg.ShopID,
		arg.DateFrom, arg.DateTo,
		arg.WeekFrom, arg.WeekTo,
		arg.MonthFrom, arg.MonthTo)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listAllOrders = `
SELECT o.id, o.cashier_id, o.shop_id, o.total_selling_price,
       o.total_actual_price, o.created_at, o.updated_at,
       s.name AS shop_name
FROM orders o
JOIN shops s ON s.id = o.shop_id
WHERE ($1::bigint IS NULL OR o.cashier_id = $1)
  AND ($2::bigint IS NULL OR o.shop_id = $2)
ORDER BY o.id
`

type ListAllOrdersParams struct {
	CashierID pgtype.Int8
	ShopID    pgtype.Int8
}

type ListAllOrdersRow struct {
	Order
	ShopName string
}

func (q *Queries) ListAllOrders(ctx context.Context, arg ListAllOrdersParams) ([]ListAllOrdersRow, error) {
	rows, err := q.db.Query(ctx, listAllOrders, arg.CashierID, arg.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []ListAllOrdersRow
	for rows.Next() {
		var r ListAllOrdersRow
		if err := rows.Scan(
			&r.ID, &r.CashierID, &r.ShopID, &r.TotalSellingPrice,
			&r.TotalActualPrice, &r.CreatedAt, &r.UpdatedAt,
			&r.ShopName,
		); err != nil {
			return nil, err
		}
		orders = append(orders, r)
	}
	return orders, rows.Err()
}

const getOrder = `
SELECT o.id, o.cashier_id, o.shop_id, o.total_selling_price,
       o.total_actual_price, o.created_at, o.updated_at,
       u.name AS cashier_name, s.name AS shop_name
FROM orders o
JOIN users u ON u.id = o.cashier_id
JOIN shops s ON s.id = o.shop_id
WHERE o.id = $1
`

type GetOrderRow struct {
	Order
	CashierName string
	ShopName    string
}

func (q *Queries) GetOrder(ctx context.Context, id int64) (GetOrderRow, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var r GetOrderRow
	err := row.Scan(
		&r.ID, &r.CashierID, &r.ShopID, &r.TotalSellingPrice,
		&r.TotalActualPrice, &r.CreatedAt, &r.UpdatedAt,
		&r.CashierName, &r.ShopName,
	)
	return r, err
}

const createOrder = `
INSERT INTO orders (cashier_id, shop_id, total_selling_price, total_actual_price)
VALUES ($1, $2, $3, $4)
RETURNING id, cashier_id, shop_id, total_selling_price, total_actual_price,
          created_at, updated_at
`

type CreateOrderParams struct {
	CashierID         int64
	ShopID            int64
	TotalSellingPrice pgtype.Numeric
	TotalActualPrice  pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CashierID, arg.ShopID, arg.TotalSellingPrice, arg.TotalActualPrice)
	return scanOrder(row)
}

const updateOrder = `
UPDATE orders
SET cashier_id = $2,
    shop_id = $3,
    total_selling_price = $4,
    total_actual_price = $5,
    updated_at = now()
WHERE id = $1
RETURNING id, cashier_id, shop_id, total_selling_price, total_actual_price,
          created_at, updated_at
`

type UpdateOrderParams struct {
	ID                int64
	CashierID         int64
	ShopID            int64
	TotalSellingPrice pgtype.Numeric
	TotalActualPrice  pgtype.Numeric
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID, arg.CashierID, arg.ShopID, arg.TotalSellingPrice, arg.TotalActualPrice)
	return scanOrder(row)
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteOrder(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRow(ctx, deleteOrder, id)
	var deleted int64
	err := row.Scan(&deleted)
	return deleted, err
}

const listOrderDetailsByOrder = `
SELECT d.id, d.order_id, d.item_id, d.type, d.needed_amount,
       d.num_of_items, d.total_price_per_units, d.created_at, d.updated_at,
       i.id, i.item_id, i.name, i.type, i.num_of_items,
       i.selling_price_per_unit, i.actual_price_per_unit, i.shop_id,
       i.created_at, i.updated_at
FROM order_details d
JOIN items i ON i.id = d.item_id
WHERE d.order_id = $1
ORDER BY d.id
`

type ListOrderDetailsByOrderRow struct {
	OrderDetail OrderDetail
	Item        Item
}

func (q *Queries) ListOrderDetailsByOrder(ctx context.Context, orderID int64) ([]ListOrderDetailsByOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrderDetailsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []ListOrderDetailsByOrderRow
	for rows.Next() {
		var r ListOrderDetailsByOrderRow
		if err := rows.Scan(
			&r.OrderDetail.ID, &r.OrderDetail.OrderID, &r.OrderDetail.ItemID,
			&r.OrderDetail.Type, &r.OrderDetail.NeededAmount,
			&r.OrderDetail.NumOfItems, &r.OrderDetail.TotalPricePerUnits,
			&r.OrderDetail.CreatedAt, &r.OrderDetail.UpdatedAt,
			&r.Item.ID, &r.Item.ItemID, &r.Item.Name, &r.Item.Type,
			&r.Item.NumOfItems, &r.Item.SellingPricePerUnit,
			&r.Item.ActualPricePerUnit, &r.Item.ShopID,
			&r.Item.CreatedAt, &r.Item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		details = append(details, r)
	}
	return details, rows.Err()
}

const listOrderDetailsByOrderIDs = `
SELECT d.id, d.order_id, d.item_id, d.type, d.needed_amount,
       d.num_of_items, d.total_price_per_units, d.created_at, d.updated_at,
       i.id, i.item_id, i.name, i.type, i.num_of_items,
       i.selling_price_per_unit, i.actual_price_per_unit, i.shop_id,
       i.created_at, i.updated_at
FROM order_details d
JOIN items i ON i.id = d.item_id
WHERE d.order_id = ANY($1)
ORDER BY d.id
`

// ListOrderDetailsByOrderIDs loads the details for a whole page of orders
// in one round trip.
func (q *Queries) ListOrderDetailsByOrderIDs(ctx context.Context, orderIDs []int64) ([]ListOrderDetailsByOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrderDetailsByOrderIDs, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []ListOrderDetailsByOrderRow
	for rows.Next() {
		var r ListOrderDetailsByOrderRow
		if err := rows.Scan(
			&r.OrderDetail.ID, &r.OrderDetail.OrderID, &r.OrderDetail.ItemID,
			&r.OrderDetail.Type, &r.OrderDetail.NeededAmount,
			&r.OrderDetail.NumOfItems, &r.OrderDetail.TotalPricePerUnits,
			&r.OrderDetail.CreatedAt, &r.OrderDetail.UpdatedAt,
			&r.Item.ID, &r.Item.ItemID, &r.Item.Name, &r.Item.Type,
			&r.Item.NumOfItems, &r.Item.SellingPricePerUnit,
			&r.Item.ActualPricePerUnit, &r.Item.ShopID,
			&r.Item.CreatedAt, &r.Item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		details = append(details, r)
	}
	return details, rows.Err()
}

const getOrderDetail = `
SELECT id, order_id, item_id, type, needed_amount, num_of_items,
       total_price_per_units, created_at, updated_at
FROM order_details
WHERE id = $1
`

func (q *Queries) GetOrderDetail(ctx context.Context, id int64) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, getOrderDetail, id)
	return scanOrderDetail(row)
}

const createOrderDetail = `
INSERT INTO order_details (order_id, item_id, type, needed_amount,
                           num_of_items, total_price_per_units)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, item_id, type, needed_amount, num_of_items,
          total_price_per_units, created_at, updated_at
`

type CreateOrderDetailParams struct {
	OrderID            int64
	ItemID             int64
	Type               string
	NeededAmount       pgtype.Numeric
	NumOfItems         pgtype.Numeric
	TotalPricePerUnits pgtype.Numeric
}

func (q *Queries) CreateOrderDetail(ctx context.Context, arg CreateOrderDetailParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, createOrderDetail,
		arg.OrderID, arg.ItemID, arg.Type, arg.NeededAmount,
		arg.NumOfItems, arg.TotalPricePerUnits)
	return scanOrderDetail(row)
}

const updateOrderDetail = `
UPDATE order_details
SET item_id = $2,
    type = $3,
    needed_amount = $4,
    num_of_items = $5,
    total_price_per_units = $6,
    updated_at = now()
WHERE id = $1
RETURNING id, order_id, item_id, type, needed_amount, num_of_items,
          total_price_per_units, created_at, updated_at
`

type UpdateOrderDetailParams struct {
	ID                 int64
	ItemID             int64
	Type               string
	NeededAmount       pgtype.Numeric
	NumOfItems         pgtype.Numeric
	TotalPricePerUnits pgtype.Numeric
}

func (q *Queries) UpdateOrderDetail(ctx context.Context, arg UpdateOrderDetailParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, updateOrderDetail,
		arg.ID, arg.ItemID, arg.Type, arg.NeededAmount,
		arg.NumOfItems, arg.TotalPricePerUnits)
	return scanOrderDetail(row)
}

const deleteOrderDetailsByOrder = `
DELETE FROM order_details
WHERE order_id = $1
`

func (q *Queries) DeleteOrderDetailsByOrder(ctx context.Context, orderID int64) error {
	_, err := q.db.Exec(ctx, deleteOrderDetailsByOrder, orderID)
	return err
}

// --- scan helpers ---

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CashierID, &o.ShopID, &o.TotalSellingPrice,
		&o.TotalActualPrice, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderDetail(row rowScanner) (OrderDetail, error) {
	var d OrderDetail
	err := row.Scan(
		&d.ID, &d.OrderID, &d.ItemID, &d.Type, &d.NeededAmount,
		&d.NumOfItems, &d.TotalPricePerUnits, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}
