package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listItems = `
SELECT i.id, i.item_id, i.name, i.type, i.num_of_items,
       i.selling_price_per_unit, i.actual_price_per_unit, i.shop_id,
       i.created_at, i.updated_at, s.name AS shop_name
FROM items i
JOIN shops s ON s.id = i.shop_id
WHERE ($1::text = '' OR i.name ILIKE '%' || $1 || '%')
  AND ($2::text = '' OR i.type ILIKE '%' || $2 || '%')
  AND ($3::bigint IS NULL OR i.item_id = $3)
  AND ($4::bigint IS NULL OR i.shop_id = $4)
ORDER BY i.item_id
LIMIT $5 OFFSET $6
`

type ListItemsParams struct {
	Name   string
	Type   string
	ItemID pgtype.Int8
	ShopID pgtype.Int8
	Limit  int32
	Offset int32
}

type ListItemsRow struct {
	Item
	ShopName string
}

func (q *Queries) ListItems(ctx context.Context, arg ListItemsParams) ([]ListItemsRow, error) {
	rows, err := q.db.Query(ctx, listItems,
		arg.Name, arg.Type, arg.ItemID, arg.ShopID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListItemsRow
	for rows.Next() {
		var r ListItemsRow
		if err := rows.Scan(
			&r.ID, &r.ItemID, &r.Name, &r.Type, &r.NumOfItems,
			&r.SellingPricePerUnit, &r.ActualPricePerUnit, &r.ShopID,
			&r.CreatedAt, &r.UpdatedAt, &r.ShopName,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countItems = `
SELECT count(*)
FROM items i
WHERE ($1::text = '' OR i.name ILIKE '%' || $1 || '%')
  AND ($2::text = '' OR i.type ILIKE '%' || $2 || '%')
  AND ($3::bigint IS NULL OR i.item_id = $3)
  AND ($4::bigint IS NULL OR i.shop_id = $4)
`

type CountItemsParams struct {
	Name   string
	Type   string
	ItemID pgtype.Int8
	ShopID pgtype.Int8
}

func (q *Queries) CountItems(ctx context.Context, arg CountItemsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countItems, arg.Name, arg.Type, arg.ItemID, arg.ShopID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const searchItems = `
SELECT id, item_id, name, type, num_of_items,
       selling_price_per_unit, actual_price_per_unit, shop_id,
       created_at, updated_at
FROM items
WHERE ($1::bigint IS NULL OR shop_id = $1)
  AND ($2::bigint IS NULL OR item_id = $2)
  AND ($3::text = '' OR name ILIKE '%' || $3 || '%')
ORDER BY name ASC
LIMIT $4
`

type SearchItemsParams struct {
	ShopID pgtype.Int8
	ItemID pgtype.Int8
	Name   string
	Limit  int32
}

func (q *Queries) SearchItems(ctx context.Context, arg SearchItemsParams) ([]Item, error) {
	rows, err := q.db.Query(ctx, searchItems, arg.ShopID, arg.ItemID, arg.Name, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

const listAllItems = `
SELECT id, item_id, name, type, num_of_items,
       selling_price_per_unit, actual_price_per_unit, shop_id,
       created_at, updated_at
FROM items
WHERE ($1::text = '' OR name = $1)
  AND ($2::bigint IS NULL OR item_id = $2)
  AND ($3::text = '' OR type = $3)
  AND ($4::bigint IS NULL OR shop_id = $4)
ORDER BY item_id
`

type ListAllItemsParams struct {
	Name   string
	ItemID pgtype.Int8
	Type   string
	ShopID pgtype.Int8
}

func (q *Queries) ListAllItems(ctx context.Context, arg ListAllItemsParams) ([]Item, error) {
	rows, err := q.db.Query(ctx, listAllItems, arg.Name, arg.ItemID, arg.Type, arg.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

const getItem = `
SELECT id, item_id, name, type, num_of_items,
       selling_price_per_unit, actual_price_per_unit, shop_id,
       created_at, updated_at
FROM items
WHERE id = $1
`

func (q *Queries) GetItem(ctx context.Context, id int64) (Item, error) {
	row := q.db.QueryRow(ctx, getItem, id)
	return scanItem(row)
}

// getItemForUpdate locks the row so concurrent order transactions serialize
// their stock read-modify-write and cannot both see stale stock.
const getItemForUpdate = `
SELECT id, item_id, name, type, num_of_items,
       selling_price_per_unit, actual_price_per_unit, shop_id,
       created_at, updated_at
FROM items
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := q.db.QueryRow(ctx, getItemForUpdate, id)
	return scanItem(row)
}

const createItem = `
INSERT INTO items (item_id, name, type, num_of_items,
                   selling_price_per_unit, actual_price_per_unit, shop_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, item_id, name, type, num_of_items,
          selling_price_per_unit, actual_price_per_unit, shop_id,
          created_at, updated_at
`

type CreateItemParams struct {
	ItemID              int64
	Name                string
	Type                string
	NumOfItems          pgtype.Numeric
	SellingPricePerUnit pgtype.Numeric
	ActualPricePerUnit  pgtype.Numeric
	ShopID              int64
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (Item, error) {
	row := q.db.QueryRow(ctx, createItem,
		arg.ItemID, arg.Name, arg.Type, arg.NumOfItems,
		arg.SellingPricePerUnit, arg.ActualPricePerUnit, arg.ShopID)
	return scanItem(row)
}

const updateItem = `
UPDATE items
SET item_id = $2,
    name = $3,
    type = $4,
    num_of_items = $5,
    selling_price_per_unit = $6,
    actual_price_per_unit = $7,
    shop_id = $8,
    updated_at = now()
WHERE id = $1
RETURNING id, item_id, name, type, num_of_items,
          selling_price_per_unit, actual_price_per_unit, shop_id,
          created_at, updated_at
`

type UpdateItemParams struct {
	ID                  int64
	ItemID              int64
	Name                string
	Type                string
	NumOfItems          pgtype.Numeric
	SellingPricePerUnit pgtype.Numeric
	ActualPricePerUnit  pgtype.Numeric
	ShopID              int64
}

func (q *Queries) UpdateItem(ctx context.Context, arg UpdateItemParams) (Item, error) {
	row := q.db.QueryRow(ctx, updateItem,
		arg.ID, arg.ItemID, arg.Name, arg.Type, arg.NumOfItems,
		arg.SellingPricePerUnit, arg.ActualPricePerUnit, arg.ShopID)
	return scanItem(row)
}

const updateItemStock = `
UPDATE items
SET num_of_items = $2,
    updated_at = now()
WHERE id = $1
RETURNING id
`

type UpdateItemStockParams struct {
	ID         int64
	NumOfItems pgtype.Numeric
}

func (q *Queries) UpdateItemStock(ctx context.Context, arg UpdateItemStockParams) (int64, error) {
	row := q.db.QueryRow(ctx, updateItemStock, arg.ID, arg.NumOfItems)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const deleteItem = `
DELETE FROM items
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteItem(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRow(ctx, deleteItem, id)
	var deleted int64
	err := row.Scan(&deleted)
	return deleted, err
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (Item, error) {
	var i Item
	err := row.Scan(
		&i.ID, &i.ItemID, &i.Name, &i.Type, &i.NumOfItems,
		&i.SellingPricePerUnit, &i.ActualPricePerUnit, &i.ShopID,
		&i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

func scanItems(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]Item, error) {
	var items []Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
