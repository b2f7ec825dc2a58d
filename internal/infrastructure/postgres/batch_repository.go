package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo lotes de un registro de stock sobre PostgreSQL.
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create inserta el lote; seq lo asigna la secuencia de la tabla.
func (r *BatchRepo) Create(ctx context.Context, batch *entity.Batch) error {
	if batch.Quantity <= 0 {
		return fmt.Errorf("%w: lote con cantidad %d", domain.ErrInvalidState, batch.Quantity)
	}
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO batches (id, stock_record_id, batch_number, expires_at, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING seq, created_at`,
		batch.ID, batch.StockRecordID, batch.BatchNumber, batch.ExpiresAt, batch.Quantity, nullTime(batch.CreatedAt),
	).Scan(&batch.Seq, &batch.CreatedAt)
	if err != nil {
		return mapError("create batch", err)
	}
	return nil
}

// ListByStock bloquea y devuelve los lotes en orden FEFO: vencimiento ascendente, sin vencimiento al final,
// empate por orden de inserción.
func (r *BatchRepo) ListByStock(ctx context.Context, stockID string) ([]*entity.Batch, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, seq, stock_record_id, batch_number, expires_at, quantity, created_at
		FROM batches
		WHERE stock_record_id = $1
		ORDER BY expires_at ASC NULLS LAST, seq ASC
		FOR UPDATE`, stockID)
	if err != nil {
		return nil, mapError("list batches", err)
	}
	defer rows.Close()
	var list []*entity.Batch
	for rows.Next() {
		var b entity.Batch
		if err := rows.Scan(&b.ID, &b.Seq, &b.StockRecordID, &b.BatchNumber, &b.ExpiresAt, &b.Quantity, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

// Decrement resta amount solo si el remanente alcanza.
func (r *BatchRepo) Decrement(ctx context.Context, batchID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: descuento %d en lote %s", domain.ErrInvalidState, amount, batchID)
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE batches SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`, batchID, amount)
	if err != nil {
		return mapError("decrement batch", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lote %s sin remanente suficiente para %d", domain.ErrInvalidState, batchID, amount)
	}
	return nil
}

// DeleteIfEmpty borra el lote si quedó en 0.
func (r *BatchRepo) DeleteIfEmpty(ctx context.Context, batchID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM batches WHERE id = $1 AND quantity = 0`, batchID); err != nil {
		return mapError("delete batch", err)
	}
	return nil
}
