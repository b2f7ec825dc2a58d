package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord representa la cantidad disponible de un ítem en una ubicación.
// (ItemID, LocationID) es único; la fila nunca se elimina aunque llegue a 0.
type StockRecord struct {
	ID         string
	ItemID     string
	LocationID string
	Quantity   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Solo se cargan en consultas de listado (GetStocks).
	Item     *Item
	Location *Location
}

// Value devuelve la valorización del stock al costo unitario del ítem (cero sin ítem cargado).
func (s *StockRecord) Value() decimal.Decimal {
	if s.Item == nil {
		return decimal.Zero
	}
	return s.Item.UnitCost.Mul(decimal.NewFromInt(s.Quantity))
}
