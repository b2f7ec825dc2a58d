// Package memory implementa los puertos del ledger en memoria (tests y STORE_DRIVER=memory).
//
// Las unidades de trabajo se serializan detrás de un único slot; Run toma una copia
// del estado antes de ejecutar y la restaura si la función falla, así una operación
// fallida no deja efectos parciales. Adquirir el slot respeta el mismo lock timeout
// que PostgreSQL y, al vencer, devuelve domain.ErrConflict.
package memory

import (
	"context"
	"fmt"
	"maps"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

type stockKey struct {
	itemID     string
	locationID string
}

// Store estado completo del ledger en memoria.
type Store struct {
	slot        chan struct{}
	lockTimeout time.Duration
	collator    *collate.Collator

	items     map[string]entity.Item
	locations map[string]entity.Location
	stocks    map[string]entity.StockRecord
	stockKeys map[stockKey]string
	batches   map[string]entity.Batch
	movements []entity.Movement
	batchSeq  int64
	movSeq    int64
}

// New crea un store vacío. lockTimeout <= 0 espera indefinidamente (solo limitado por ctx).
func New(lockTimeout time.Duration) *Store {
	return &Store{
		slot:        make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		collator:    collate.New(language.Und, collate.IgnoreCase),
		items:       make(map[string]entity.Item),
		locations:   make(map[string]entity.Location),
		stocks:      make(map[string]entity.StockRecord),
		stockKeys:   make(map[stockKey]string),
		batches:     make(map[string]entity.Batch),
	}
}

// acquire toma el slot exclusivo o falla con ErrConflict al vencer el timeout.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s.slot <- struct{}{}:
		return func() { <-s.slot }, nil
	case <-timeout:
		return nil, fmt.Errorf("%w: lock timeout tras %s", domain.ErrConflict, s.lockTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrConflict, ctx.Err())
	}
}

// Run ejecuta fn con repos atados a la unidad de trabajo; restaura el estado si fn falla o entra en pánico.
func (s *Store) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	stockRepo repository.StockRepository,
	batchRepo repository.BatchRepository,
) error) (err error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(&MovementRepo{s: s, tx: true}, &StockRepo{s: s, tx: true}, &BatchRepo{s: s, tx: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

// Repositorios fuera de transacción: cada llamada toma el slot por su cuenta.

// Stocks repo de stock para lecturas.
func (s *Store) Stocks() *StockRepo { return &StockRepo{s: s} }

// Batches repo de lotes.
func (s *Store) Batches() *BatchRepo { return &BatchRepo{s: s} }

// Movements repo del log de movimientos.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// Items catálogo de ítems.
func (s *Store) Items() *ItemRepo { return &ItemRepo{s: s} }

// Locations directorio de ubicaciones.
func (s *Store) Locations() *LocationRepo { return &LocationRepo{s: s} }

type snapshot struct {
	items     map[string]entity.Item
	locations map[string]entity.Location
	stocks    map[string]entity.StockRecord
	stockKeys map[stockKey]string
	batches   map[string]entity.Batch
	movements int
	batchSeq  int64
	movSeq    int64
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		items:     maps.Clone(s.items),
		locations: maps.Clone(s.locations),
		stocks:    maps.Clone(s.stocks),
		stockKeys: maps.Clone(s.stockKeys),
		batches:   maps.Clone(s.batches),
		movements: len(s.movements),
		batchSeq:  s.batchSeq,
		movSeq:    s.movSeq,
	}
}

func (s *Store) restore(snap snapshot) {
	s.items = snap.items
	s.locations = snap.locations
	s.stocks = snap.stocks
	s.stockKeys = snap.stockKeys
	s.batches = snap.batches
	s.movements = s.movements[:snap.movements]
	s.batchSeq = snap.batchSeq
	s.movSeq = snap.movSeq
}

// lock toma el slot solo si el repo no está dentro de Run.
func lock(ctx context.Context, s *Store, tx bool) (func(), error) {
	if tx {
		return func() {}, nil
	}
	return s.acquire(ctx)
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
