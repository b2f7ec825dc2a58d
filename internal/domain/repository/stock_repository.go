package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockFilter filtros opcionales para listar registros de stock (vacío = todos).
type StockFilter struct {
	ItemID     string
	LocationID string
}

// StockRepository define el puerto para consultar/actualizar stock por ítem+ubicación.
// Los métodos ForUpdate bloquean la fila hasta el fin de la transacción.
type StockRepository interface {
	// GetOrCreateForUpdate es idempotente: crea la fila con cantidad 0 si no existe.
	GetOrCreateForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error)
	// FindForUpdate devuelve nil si no hay registro.
	FindForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error)
	Find(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error)
	// UpdateQuantity falla con domain.ErrInvalidState si quantity < 0.
	UpdateQuantity(ctx context.Context, stockID string, quantity int64) error
	// List ordena por nombre de ítem y luego nombre de ubicación, con ambos adjuntos.
	List(ctx context.Context, filter StockFilter) ([]*entity.StockRecord, error)
}
