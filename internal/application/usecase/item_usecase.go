package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// ItemUseCase catálogo mínimo de ítems. El stock se maneja solo vía el ledger.
type ItemUseCase struct {
	repo repository.ItemRepository
}

// NewItemUseCase construye el caso de uso.
func NewItemUseCase(repo repository.ItemRepository) *ItemUseCase {
	return &ItemUseCase{repo: repo}
}

// Create crea un ítem. UnitCost no puede ser negativo.
func (uc *ItemUseCase) Create(ctx context.Context, in dto.CreateItemRequest) (*dto.ItemResponse, error) {
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if sku == "" || name == "" {
		return nil, fmt.Errorf("%w: sku y name son requeridos", domain.ErrInvalidArgument)
	}
	if in.UnitCost.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: unit_cost negativo", domain.ErrInvalidArgument)
	}
	item := &entity.Item{
		ID:        uuid.New().String(),
		SKU:       sku,
		Name:      name,
		UnitCost:  in.UnitCost,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

// GetByID obtiene un ítem por ID (nil si no existe).
func (uc *ItemUseCase) GetByID(ctx context.Context, id string) (*dto.ItemResponse, error) {
	item, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

// List lista ítems ordenados por nombre.
func (uc *ItemUseCase) List(ctx context.Context, page dto.PageRequest) (*dto.ItemListResponse, error) {
	page.Normalize(20, 100)
	list, err := uc.repo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ItemResponse, 0, len(list))
	for _, it := range list {
		items = append(items, *toItemResponse(it))
	}
	return &dto.ItemListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Count: len(items)},
	}, nil
}

func toItemResponse(it *entity.Item) *dto.ItemResponse {
	if it == nil {
		return nil
	}
	return &dto.ItemResponse{
		ID:        it.ID,
		SKU:       it.SKU,
		Name:      it.Name,
		UnitCost:  it.UnitCost,
		CreatedAt: it.CreatedAt,
	}
}
