package enum

// Unit types for an order detail line (CHECK constrained in DB).
// Label set carried over from the shop's paper ledger: QTY for countable
// pieces, G/L/ML for weight and volume, Kalang for bundled goods.
const (
	UnitTypeQty    = "QTY"
	UnitTypeGram   = "G"
	UnitTypeKalang = "Kalang"
	UnitTypeLiter  = "L"
	UnitTypeMl     = "ML"
)

// User roles (CHECK constrained in DB).
const (
	UserRoleAdmin   = "ADMIN"
	UserRoleCashier = "CASHIER"
)

// IsValidUnitType reports whether s is one of the order detail unit types.
func IsValidUnitType(s string) bool {
	switch s {
	case UnitTypeQty, UnitTypeGram, UnitTypeKalang, UnitTypeLiter, UnitTypeMl:
		return true
	}
	return false
}
