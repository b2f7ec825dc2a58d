package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func seed(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Items().Create(ctx, &entity.Item{ID: "it-b", SKU: "B", Name: "beta"}))
	require.NoError(t, s.Items().Create(ctx, &entity.Item{ID: "it-a", SKU: "A", Name: "Alfa"}))
	require.NoError(t, s.Locations().Create(ctx, &entity.Location{ID: "loc-1", Name: "Zona"}))
	require.NoError(t, s.Locations().Create(ctx, &entity.Location{ID: "loc-2", Name: "almacén"}))
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestRun_RollbackRestauraEstado(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Run(ctx, func(movs repository.MovementRepository, stocks repository.StockRepository, batches repository.BatchRepository) error {
		rec, err := stocks.GetOrCreateForUpdate(ctx, "it-a", "loc-1")
		require.NoError(t, err)
		require.NoError(t, batches.Create(ctx, &entity.Batch{StockRecordID: rec.ID, Quantity: 5}))
		require.NoError(t, stocks.UpdateQuantity(ctx, rec.ID, 5))
		_, err = movs.Append(ctx, &entity.Movement{ItemID: "it-a", Kind: entity.MovementReceive, Quantity: 5})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.Stocks().Find(ctx, "it-a", "loc-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	movs, err := s.Movements().Query(ctx, repository.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestRun_PanicHaceRollback(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.Run(ctx, func(_ repository.MovementRepository, stocks repository.StockRepository, _ repository.BatchRepository) error {
			_, _ = stocks.GetOrCreateForUpdate(ctx, "it-a", "loc-1")
			panic("fallo")
		})
	})

	rec, err := s.Stocks().Find(ctx, "it-a", "loc-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRun_LockTimeoutDevuelveConflicto(t *testing.T) {
	s := memory.New(20 * time.Millisecond)
	ctx := context.Background()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.Run(ctx, func(repository.MovementRepository, repository.StockRepository, repository.BatchRepository) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := s.Run(ctx, func(repository.MovementRepository, repository.StockRepository, repository.BatchRepository) error {
		return nil
	})
	close(done)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, domain.IsRetryable(err))
}

func TestStockRepo_UpdateQuantityNegativa(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	rec, err := s.Stocks().GetOrCreateForUpdate(ctx, "it-a", "loc-1")
	require.NoError(t, err)

	err = s.Stocks().UpdateQuantity(ctx, rec.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStockRepo_GetOrCreateEsIdempotente(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	a, err := s.Stocks().GetOrCreateForUpdate(ctx, "it-a", "loc-1")
	require.NoError(t, err)
	b, err := s.Stocks().GetOrCreateForUpdate(ctx, "it-a", "loc-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, int64(0), b.Quantity)
}

func TestStockRepo_ListOrdenaPorNombreDeItemYUbicacion(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	seed(t, s)
	for _, k := range [][2]string{{"it-b", "loc-1"}, {"it-a", "loc-1"}, {"it-a", "loc-2"}} {
		_, err := s.Stocks().GetOrCreateForUpdate(ctx, k[0], k[1])
		require.NoError(t, err)
	}

	list, err := s.Stocks().List(ctx, repository.StockFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	// "Alfa" < "beta" sin distinguir mayúsculas; "almacén" < "Zona".
	assert.Equal(t, [2]string{"it-a", "loc-2"}, [2]string{list[0].ItemID, list[0].LocationID})
	assert.Equal(t, [2]string{"it-a", "loc-1"}, [2]string{list[1].ItemID, list[1].LocationID})
	assert.Equal(t, "it-b", list[2].ItemID)
	require.NotNil(t, list[0].Item)
	assert.Equal(t, "Alfa", list[0].Item.Name)

	filtered, err := s.Stocks().List(ctx, repository.StockFilter{LocationID: "loc-2"})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestBatchRepo_DecrementYDeleteIfEmpty(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	rec, err := s.Stocks().GetOrCreateForUpdate(ctx, "it-a", "loc-1")
	require.NoError(t, err)
	b := &entity.Batch{StockRecordID: rec.ID, Quantity: 4}
	require.NoError(t, s.Batches().Create(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, int64(1), b.Seq)

	assert.ErrorIs(t, s.Batches().Decrement(ctx, b.ID, 5), domain.ErrInvalidState)
	require.NoError(t, s.Batches().Decrement(ctx, b.ID, 3))
	require.NoError(t, s.Batches().DeleteIfEmpty(ctx, b.ID))

	list, err := s.Batches().ListByStock(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].Quantity)

	require.NoError(t, s.Batches().Decrement(ctx, b.ID, 1))
	require.NoError(t, s.Batches().DeleteIfEmpty(ctx, b.ID))
	list, err = s.Batches().ListByStock(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBatchRepo_CreateRechazaCantidadNoPositiva(t *testing.T) {
	s := memory.New(time.Second)
	err := s.Batches().Create(context.Background(), &entity.Batch{StockRecordID: "x", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMovementRepo_QueryFiltrosYOrden(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	loc1, loc2 := "loc-1", "loc-2"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	movs := []*entity.Movement{
		{TransactionID: "tx1", ItemID: "it-a", ToLocationID: &loc1, Kind: entity.MovementReceive, Quantity: 5, CreatedAt: base},
		{TransactionID: "tx2", ItemID: "it-a", FromLocationID: &loc1, ToLocationID: &loc2, Kind: entity.MovementTransfer, Quantity: 2, CreatedAt: base.Add(time.Hour)},
		{TransactionID: "tx3", ItemID: "it-b", ToLocationID: &loc2, Kind: entity.MovementReceive, Quantity: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, m := range movs {
		_, err := s.Movements().Append(ctx, m)
		require.NoError(t, err)
	}

	all, err := s.Movements().Query(ctx, repository.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "tx3", all[0].TransactionID)
	assert.Equal(t, "tx1", all[2].TransactionID)

	byLoc, err := s.Movements().Query(ctx, repository.MovementFilter{LocationID: "loc-2"})
	require.NoError(t, err)
	assert.Len(t, byLoc, 2)

	byKind, err := s.Movements().Query(ctx, repository.MovementFilter{ItemID: "it-a", Kind: entity.MovementReceive})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "tx1", byKind[0].TransactionID)

	from := base.Add(30 * time.Minute)
	ranged, err := s.Movements().Query(ctx, repository.MovementFilter{From: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "tx3", ranged[0].TransactionID)

	paged, err := s.Movements().Query(ctx, repository.MovementFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestItemRepo_SKUDuplicado(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	require.NoError(t, s.Items().Create(ctx, &entity.Item{ID: "1", SKU: "X", Name: "x"}))
	err := s.Items().Create(ctx, &entity.Item{ID: "2", SKU: "X", Name: "y"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	missing, err := s.Items().GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
