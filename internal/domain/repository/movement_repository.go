package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementFilter filtros del log de movimientos. LocationID coincide con origen o destino.
type MovementFilter struct {
	ItemID        string
	LocationID    string
	Kind          entity.MovementKind
	TransactionID string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// MovementRepository define el puerto del log de movimientos. Solo anexa: no hay update ni delete.
type MovementRepository interface {
	Append(ctx context.Context, movement *entity.Movement) (string, error)
	Query(ctx context.Context, filter MovementFilter) ([]*entity.Movement, error)
}
