package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Shop is a physical store location. Shops are bootstrapped by cmd/seed;
// the API only references them.
type Shop struct {
	ID        int64
	Name      string
	Address   pgtype.Text
	CreatedAt time.Time
}

// User is a cashier or admin account belonging to a shop.
type User struct {
	ID             int64
	Name           string
	Email          string
	HashedPassword string
	Role           string
	ShopID         int64
	CreatedAt      time.Time
}

// Item is a sellable product with tracked stock (num_of_items).
type Item struct {
	ID                  int64
	ItemID              int64
	Name                string
	Type                string
	NumOfItems          pgtype.Numeric
	SellingPricePerUnit pgtype.Numeric
	ActualPricePerUnit  pgtype.Numeric
	ShopID              int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Order is a sale transaction grouping one or more order details.
type Order struct {
	ID                int64
	CashierID         int64
	ShopID            int64
	TotalSellingPrice pgtype.Numeric
	TotalActualPrice  pgtype.Numeric
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderDetail is one line of an Order, referencing an Item and a unit type.
type OrderDetail struct {
	ID                 int64
	OrderID            int64
	ItemID             int64
	Type               string
	NeededAmount       pgtype.Numeric
	NumOfItems         pgtype.Numeric
	TotalPricePerUnits pgtype.Numeric
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
