package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item representa un ítem del catálogo que el ledger referencia por ID.
type Item struct {
	ID        string
	SKU       string
	Name      string
	UnitCost  decimal.Decimal
	CreatedAt time.Time
}
