package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Commit si fn devuelve nil, Rollback en cualquier otro caso (error, panic o fallo de infraestructura).
// Los conflictos de concurrencia (lock timeout, deadlock, serialización) se devuelven como domain.ErrConflict.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		stockRepo repository.StockRepository,
		batchRepo repository.BatchRepository,
	) error) error
}

// Recorder recibe métricas de las operaciones del ledger.
type Recorder interface {
	ObserveOperation(operation string, err error, elapsed time.Duration)
	IncConflictRetry(operation string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, error, time.Duration) {}
func (noopRecorder) IncConflictRetry(string)                       {}
