package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// BatchRepository define el puerto de persistencia para lotes de un registro de stock.
type BatchRepository interface {
	// Create asigna ID y Seq; falla con domain.ErrInvalidState si Quantity <= 0.
	Create(ctx context.Context, batch *entity.Batch) error
	// ListByStock devuelve los lotes en orden FEFO (ver inventory.LessFEFO).
	ListByStock(ctx context.Context, stockID string) ([]*entity.Batch, error)
	// Decrement falla con domain.ErrInvalidState si amount excede el remanente.
	Decrement(ctx context.Context, batchID string, amount int64) error
	DeleteIfEmpty(ctx context.Context, batchID string) error
}
