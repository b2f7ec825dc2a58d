package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

// LocationRepo implementación del puerto LocationRepository sobre PostgreSQL.
type LocationRepo struct {
	pool *pgxpool.Pool
}

// NewLocationRepository construye el adaptador de persistencia para ubicaciones.
func NewLocationRepository(pool *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{pool: pool}
}

// Create persiste una nueva ubicación.
func (r *LocationRepo) Create(ctx context.Context, location *entity.Location) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)`,
		location.ID, location.Name, location.CreatedAt,
	)
	if err != nil {
		return mapError("insert location", err)
	}
	return nil
}

// GetByID obtiene una ubicación por ID.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	if !validID(id) {
		return nil, nil
	}
	var l entity.Location
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

// List lista ubicaciones por nombre con paginación.
func (r *LocationRepo) List(ctx context.Context, limit, offset int) ([]*entity.Location, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM locations ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.Location, 0)
	for rows.Next() {
		var l entity.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
