package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.StockRepository    = (*StockRepo)(nil)
	_ repository.BatchRepository    = (*BatchRepo)(nil)
	_ repository.MovementRepository = (*MovementRepo)(nil)
	_ repository.ItemRepository     = (*ItemRepo)(nil)
	_ repository.LocationRepository = (*LocationRepo)(nil)
)

// StockRepo registros de stock en memoria.
type StockRepo struct {
	s  *Store
	tx bool
}

// GetOrCreateForUpdate crea la fila con cantidad 0 si no existe. El slot ya serializa el acceso.
func (r *StockRepo) GetOrCreateForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	k := stockKey{itemID: itemID, locationID: locationID}
	if id, ok := r.s.stockKeys[k]; ok {
		rec := r.s.stocks[id]
		return &rec, nil
	}
	now := time.Now().UTC()
	rec := entity.StockRecord{
		ID:         uuid.New().String(),
		ItemID:     itemID,
		LocationID: locationID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.s.stocks[rec.ID] = rec
	r.s.stockKeys[k] = rec.ID
	return &rec, nil
}

// FindForUpdate devuelve nil si no existe.
func (r *StockRepo) FindForUpdate(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	return r.Find(ctx, itemID, locationID)
}

// Find devuelve nil si no existe.
func (r *StockRepo) Find(ctx context.Context, itemID, locationID string) (*entity.StockRecord, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.s.stockKeys[stockKey{itemID: itemID, locationID: locationID}]
	if !ok {
		return nil, nil
	}
	rec := r.s.stocks[id]
	return &rec, nil
}

// UpdateQuantity nunca deja una cantidad negativa.
func (r *StockRepo) UpdateQuantity(ctx context.Context, stockID string, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cantidad negativa (%d) en stock %s", domain.ErrInvalidState, quantity, stockID)
	}
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	rec, ok := r.s.stocks[stockID]
	if !ok {
		return fmt.Errorf("%w: stock %s", domain.ErrNotFound, stockID)
	}
	rec.Quantity = quantity
	rec.UpdatedAt = time.Now().UTC()
	r.s.stocks[stockID] = rec
	return nil
}

// List filtra y ordena por nombre de ítem y de ubicación (collation sin distinción de mayúsculas).
func (r *StockRepo) List(ctx context.Context, filter repository.StockFilter) ([]*entity.StockRecord, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	list := make([]*entity.StockRecord, 0)
	for _, rec := range r.s.stocks {
		if filter.ItemID != "" && rec.ItemID != filter.ItemID {
			continue
		}
		if filter.LocationID != "" && rec.LocationID != filter.LocationID {
			continue
		}
		rec := rec
		if it, ok := r.s.items[rec.ItemID]; ok {
			rec.Item = &it
		}
		if loc, ok := r.s.locations[rec.LocationID]; ok {
			rec.Location = &loc
		}
		list = append(list, &rec)
	}
	name := func(it *entity.Item) string {
		if it == nil {
			return ""
		}
		return it.Name
	}
	locName := func(l *entity.Location) string {
		if l == nil {
			return ""
		}
		return l.Name
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if c := r.s.collator.CompareString(name(a.Item), name(b.Item)); c != 0 {
			return c < 0
		}
		if c := r.s.collator.CompareString(locName(a.Location), locName(b.Location)); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return list, nil
}

// BatchRepo lotes en memoria.
type BatchRepo struct {
	s  *Store
	tx bool
}

// Create asigna ID y secuencia de inserción.
func (r *BatchRepo) Create(ctx context.Context, batch *entity.Batch) error {
	if batch.Quantity <= 0 {
		return fmt.Errorf("%w: lote con cantidad %d", domain.ErrInvalidState, batch.Quantity)
	}
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.stocks[batch.StockRecordID]; !ok {
		return fmt.Errorf("%w: stock %s", domain.ErrNotFound, batch.StockRecordID)
	}
	r.s.batchSeq++
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	batch.Seq = r.s.batchSeq
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	r.s.batches[batch.ID] = *batch
	return nil
}

// ListByStock devuelve copias en orden FEFO.
func (r *BatchRepo) ListByStock(ctx context.Context, stockID string) ([]*entity.Batch, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	var list []*entity.Batch
	for _, b := range r.s.batches {
		if b.StockRecordID == stockID {
			b := b
			list = append(list, &b)
		}
	}
	inventory.SortFEFO(list)
	return list, nil
}

// Decrement resta amount del remanente; no permite quedar en negativo.
func (r *BatchRepo) Decrement(ctx context.Context, batchID string, amount int64) error {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	b, ok := r.s.batches[batchID]
	if !ok {
		return fmt.Errorf("%w: lote %s", domain.ErrNotFound, batchID)
	}
	if amount <= 0 || amount > b.Quantity {
		return fmt.Errorf("%w: lote %s tiene %d, se pidió descontar %d", domain.ErrInvalidState, batchID, b.Quantity, amount)
	}
	b.Quantity -= amount
	r.s.batches[batchID] = b
	return nil
}

// DeleteIfEmpty borra el lote solo si su remanente es exactamente 0.
func (r *BatchRepo) DeleteIfEmpty(ctx context.Context, batchID string) error {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	if b, ok := r.s.batches[batchID]; ok && b.Quantity == 0 {
		delete(r.s.batches, batchID)
	}
	return nil
}

// MovementRepo log de movimientos en memoria (solo anexa).
type MovementRepo struct {
	s  *Store
	tx bool
}

// Append guarda una copia del movimiento y devuelve su ID.
func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) (string, error) {
	if m.Quantity <= 0 {
		return "", fmt.Errorf("%w: movimiento con cantidad %d", domain.ErrInvalidState, m.Quantity)
	}
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return "", err
	}
	defer release()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.s.movSeq++
	m.Seq = r.s.movSeq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.movements = append(r.s.movements, *m)
	return m.ID, nil
}

// Query filtra y ordena por fecha de creación descendente (secuencia como desempate).
func (r *MovementRepo) Query(ctx context.Context, filter repository.MovementFilter) ([]*entity.Movement, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	var list []*entity.Movement
	for _, m := range r.s.movements {
		if !matchMovement(m, filter) {
			continue
		}
		m := m
		list = append(list, &m)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Seq > list[j].Seq
	})
	return page(list, filter.Limit, filter.Offset), nil
}

func matchMovement(m entity.Movement, f repository.MovementFilter) bool {
	if f.ItemID != "" && m.ItemID != f.ItemID {
		return false
	}
	if f.LocationID != "" {
		from := m.FromLocationID != nil && *m.FromLocationID == f.LocationID
		to := m.ToLocationID != nil && *m.ToLocationID == f.LocationID
		if !from && !to {
			return false
		}
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.TransactionID != "" && m.TransactionID != f.TransactionID {
		return false
	}
	if f.From != nil && m.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// ItemRepo catálogo de ítems en memoria.
type ItemRepo struct {
	s  *Store
	tx bool
}

// Create falla con domain.ErrDuplicate si el SKU ya existe.
func (r *ItemRepo) Create(ctx context.Context, item *entity.Item) error {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	for _, it := range r.s.items {
		if it.SKU == item.SKU {
			return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, item.SKU)
		}
	}
	r.s.items[item.ID] = *item
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*entity.Item, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	it, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

// List ordena por nombre.
func (r *ItemRepo) List(ctx context.Context, limit, offset int) ([]*entity.Item, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	list := make([]*entity.Item, 0, len(r.s.items))
	for _, it := range r.s.items {
		it := it
		list = append(list, &it)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := r.s.collator.CompareString(list[i].Name, list[j].Name); c != 0 {
			return c < 0
		}
		return list[i].ID < list[j].ID
	})
	return page(list, limit, offset), nil
}

// LocationRepo directorio de ubicaciones en memoria.
type LocationRepo struct {
	s  *Store
	tx bool
}

// Create guarda la ubicación; el nombre no se exige único.
func (r *LocationRepo) Create(ctx context.Context, location *entity.Location) error {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return err
	}
	defer release()

	r.s.locations[location.ID] = *location
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	l, ok := r.s.locations[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// List ordena por nombre.
func (r *LocationRepo) List(ctx context.Context, limit, offset int) ([]*entity.Location, error) {
	release, err := lock(ctx, r.s, r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	list := make([]*entity.Location, 0, len(r.s.locations))
	for _, l := range r.s.locations {
		l := l
		list = append(list, &l)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := r.s.collator.CompareString(list[i].Name, list[j].Name); c != 0 {
			return c < 0
		}
		return list[i].ID < list[j].ID
	})
	return page(list, limit, offset), nil
}
