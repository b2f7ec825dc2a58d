package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `id, item_id, location_id, quantity, created_at, updated_at`

// GetOrCreateForUpdate inserta la fila con cantidad 0 si falta y luego la bloquea.
// ON CONFLICT DO NOTHING hace que dos transacciones concurrentes terminen sobre la misma fila.
func (r *StockRepo) GetOrCreateForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_records (id, item_id, location_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, 0, now(), now())
		ON CONFLICT (item_id, location_id) DO NOTHING`,
		uuid.New().String(), itemID, locationID,
	)
	if err != nil {
		return nil, mapError("create stock record", err)
	}
	s, err := r.get(ctx, itemID, locationID, true)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: stock %s/%s no visible tras insertar", domain.ErrConflict, itemID, locationID)
	}
	return s, nil
}

// FindForUpdate obtiene el stock y bloquea la fila (SELECT FOR UPDATE). nil si no existe.
func (r *StockRepo) FindForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	return r.get(ctx, itemID, locationID, true)
}

// Find obtiene el stock sin bloquear. nil si no existe.
func (r *StockRepo) Find(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	return r.get(ctx, itemID, locationID, false)
}

func (r *StockRepo) get(ctx context.Context, itemID, locationID string, forUpdate bool) (*entity.StockRecord, error) {
	if !validID(itemID) || !validID(locationID) {
		return nil, nil
	}
	query := `SELECT ` + stockColumns + ` FROM stock_records WHERE item_id = $1 AND location_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var s entity.StockRecord
	err := r.q.QueryRow(ctx, query, itemID, locationID).Scan(
		&s.ID, &s.ItemID, &s.LocationID, &s.Quantity, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("get stock", err)
	}
	return &s, nil
}

// UpdateQuantity fija la cantidad agregada; el CHECK (quantity >= 0) de la tabla respalda la validación.
func (r *StockRepo) UpdateQuantity(ctx context.Context, stockID string, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cantidad negativa (%d) en stock %s", domain.ErrInvalidState, quantity, stockID)
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE stock_records SET quantity = $2, updated_at = now() WHERE id = $1`, stockID, quantity)
	if err != nil {
		return mapError("update stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock %s", domain.ErrNotFound, stockID)
	}
	return nil
}

// List devuelve el stock con ítem y ubicación adjuntos, ordenado por nombre de ítem y de ubicación.
func (r *StockRepo) List(ctx context.Context, filter repository.StockFilter) ([]*entity.StockRecord, error) {
	query := `
		SELECT s.id, s.item_id, s.location_id, s.quantity, s.created_at, s.updated_at,
		       i.sku, i.name, i.unit_cost, i.created_at, l.name, l.created_at
		FROM stock_records s
		JOIN items i ON i.id = s.item_id
		JOIN locations l ON l.id = s.location_id
		WHERE 1 = 1`
	var args []any
	pos := 1
	if filter.ItemID != "" {
		if !validID(filter.ItemID) {
			return []*entity.StockRecord{}, nil
		}
		query += fmt.Sprintf(" AND s.item_id = $%d", pos)
		args = append(args, filter.ItemID)
		pos++
	}
	if filter.LocationID != "" {
		if !validID(filter.LocationID) {
			return []*entity.StockRecord{}, nil
		}
		query += fmt.Sprintf(" AND s.location_id = $%d", pos)
		args = append(args, filter.LocationID)
	}
	query += " ORDER BY i.name, l.name, s.id"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list stock", err)
	}
	defer rows.Close()
	list := make([]*entity.StockRecord, 0)
	for rows.Next() {
		var s entity.StockRecord
		var it entity.Item
		var loc entity.Location
		if err := rows.Scan(&s.ID, &s.ItemID, &s.LocationID, &s.Quantity, &s.CreatedAt, &s.UpdatedAt,
			&it.SKU, &it.Name, &it.UnitCost, &it.CreatedAt, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		it.ID = s.ItemID
		loc.ID = s.LocationID
		s.Item = &it
		s.Location = &loc
		list = append(list, &s)
	}
	return list, rows.Err()
}
