package database

import "context"

const shopExists = `
SELECT EXISTS (SELECT 1 FROM shops WHERE id = $1)
`

func (q *Queries) ShopExists(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRow(ctx, shopExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const getShop = `
SELECT id, name, address, created_at
FROM shops
WHERE id = $1
`

func (q *Queries) GetShop(ctx context.Context, id int64) (Shop, error) {
	row := q.db.QueryRow(ctx, getShop, id)
	var s Shop
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.CreatedAt)
	return s, err
}
