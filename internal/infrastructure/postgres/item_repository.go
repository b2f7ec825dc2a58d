package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implementación del puerto ItemRepository sobre PostgreSQL.
type ItemRepo struct {
	pool *pgxpool.Pool
}

// NewItemRepository construye el adaptador de persistencia para ítems.
func NewItemRepository(pool *pgxpool.Pool) *ItemRepo {
	return &ItemRepo{pool: pool}
}

// Create persiste un ítem. SKU duplicado -> domain.ErrDuplicate.
func (r *ItemRepo) Create(ctx context.Context, item *entity.Item) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO items (id, sku, name, unit_cost, created_at) VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.SKU, item.Name, item.UnitCost, item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, item.SKU)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetByID obtiene un ítem por ID.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*entity.Item, error) {
	if !validID(id) {
		return nil, nil
	}
	var it entity.Item
	err := r.pool.QueryRow(ctx,
		`SELECT id, sku, name, unit_cost, created_at FROM items WHERE id = $1`, id,
	).Scan(&it.ID, &it.SKU, &it.Name, &it.UnitCost, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// List lista ítems por nombre con paginación.
func (r *ItemRepo) List(ctx context.Context, limit, offset int) ([]*entity.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sku, name, unit_cost, created_at FROM items ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.Item, 0)
	for rows.Next() {
		var it entity.Item
		if err := rows.Scan(&it.ID, &it.SKU, &it.Name, &it.UnitCost, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}
