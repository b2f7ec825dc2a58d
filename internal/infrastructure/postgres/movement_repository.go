package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo log de movimientos sobre PostgreSQL. Solo INSERT y SELECT.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, seq, transaction_id, item_id, from_location_id, to_location_id,
	batch_id, batch_number, kind, quantity, reason, actor, created_at`

// Append persiste un movimiento y devuelve su ID.
func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) (string, error) {
	if m.Quantity <= 0 {
		return "", fmt.Errorf("%w: movimiento con cantidad %d", domain.ErrInvalidState, m.Quantity)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO movements (id, transaction_id, item_id, from_location_id, to_location_id,
			batch_id, batch_number, kind, quantity, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
		RETURNING seq, created_at`,
		m.ID, m.TransactionID, m.ItemID, m.FromLocationID, m.ToLocationID,
		m.BatchID, m.BatchNumber, string(m.Kind), m.Quantity, m.Reason, m.Actor, nullTime(m.CreatedAt),
	).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		return "", mapError("append movement", err)
	}
	return m.ID, nil
}

// Query lista movimientos filtrados, más recientes primero.
func (r *MovementRepo) Query(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1 = 1`
	var args []any
	pos := 1
	for _, id := range []string{f.ItemID, f.LocationID, f.TransactionID} {
		if id != "" && !validID(id) {
			return []*entity.Movement{}, nil
		}
	}
	if f.ItemID != "" {
		query += fmt.Sprintf(" AND item_id = $%d", pos)
		args = append(args, f.ItemID)
		pos++
	}
	if f.LocationID != "" {
		query += fmt.Sprintf(" AND (from_location_id = $%d OR to_location_id = $%d)", pos, pos)
		args = append(args, f.LocationID)
		pos++
	}
	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", pos)
		args = append(args, string(f.Kind))
		pos++
	}
	if f.TransactionID != "" {
		query += fmt.Sprintf(" AND transaction_id = $%d", pos)
		args = append(args, f.TransactionID)
		pos++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *f.From)
		pos++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *f.To)
		pos++
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", pos)
		args = append(args, f.Limit)
		pos++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", pos)
		args = append(args, f.Offset)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("query movements", err)
	}
	defer rows.Close()
	list := make([]*entity.Movement, 0)
	for rows.Next() {
		var m entity.Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.Seq, &m.TransactionID, &m.ItemID, &m.FromLocationID, &m.ToLocationID,
			&m.BatchID, &m.BatchNumber, &kind, &m.Quantity, &m.Reason, &m.Actor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Kind = entity.MovementKind(kind)
		list = append(list, &m)
	}
	return list, rows.Err()
}

// nullTime traduce el zero value a NULL para que la BD asigne now().
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
