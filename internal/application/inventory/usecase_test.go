package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const (
	itemID = "item-1"
	locA   = "loc-a"
	locB   = "loc-b"
)

var day0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu      sync.Mutex
	ops     map[string]int
	retries map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ops: map[string]int{}, retries: map[string]int{}}
}

func (r *fakeRecorder) ObserveOperation(op string, _ error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op]++
}

func (r *fakeRecorder) IncConflictRetry(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[op]++
}

func newLedger(t *testing.T, opts ...inventory.Option) (*inventory.LedgerUseCase, *memory.Store) {
	t.Helper()
	store := memory.New(5 * time.Second)
	opts = append([]inventory.Option{inventory.WithClock(func() time.Time { return day0 })}, opts...)
	uc := inventory.NewLedgerUseCase(store, store.Stocks(), store.Movements(),
		inventory.LedgerConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, opts...)
	return uc, store
}

func ptr[T any](v T) *T { return &v }

func quantity(t *testing.T, store *memory.Store, loc string) int64 {
	t.Helper()
	rec, err := store.Stocks().Find(context.Background(), itemID, loc)
	require.NoError(t, err)
	if rec == nil {
		return 0
	}
	return rec.Quantity
}

func batches(t *testing.T, store *memory.Store, loc string) []*entity.Batch {
	t.Helper()
	rec, err := store.Stocks().Find(context.Background(), itemID, loc)
	require.NoError(t, err)
	if rec == nil {
		return nil
	}
	list, err := store.Batches().ListByStock(context.Background(), rec.ID)
	require.NoError(t, err)
	return list
}

func movements(t *testing.T, store *memory.Store) []*entity.Movement {
	t.Helper()
	list, err := store.Movements().Query(context.Background(), repository.MovementFilter{})
	require.NoError(t, err)
	return list
}

// assertReconciled verifica que los lotes sumen la cantidad agregada y que el log reproduzca el stock.
func assertReconciled(t *testing.T, store *memory.Store, locs ...string) {
	t.Helper()
	replayed := map[string]int64{}
	for _, m := range movements(t, store) {
		switch m.Kind {
		case entity.MovementReceive:
			replayed[*m.ToLocationID] += m.Quantity
		case entity.MovementIssue:
			replayed[*m.FromLocationID] -= m.Quantity
		case entity.MovementAdjust:
			if m.FromLocationID != nil {
				replayed[*m.FromLocationID] -= m.Quantity
			} else {
				replayed[*m.ToLocationID] += m.Quantity
			}
		}
	}
	for _, loc := range locs {
		var sum int64
		for _, b := range batches(t, store, loc) {
			assert.Positive(t, b.Quantity)
			sum += b.Quantity
		}
		q := quantity(t, store, loc)
		assert.Equal(t, q, sum, "lotes vs stock en %s", loc)
		assert.Equal(t, q, replayed[loc], "replay vs stock en %s", loc)
	}
}

func receive(t *testing.T, uc *inventory.LedgerUseCase, loc string, qty int64, number string, expires *time.Time) {
	t.Helper()
	in := inventory.ReceiveInput{ItemID: itemID, LocationID: loc, Quantity: qty, ExpiresAt: expires}
	if number != "" {
		in.BatchNumber = ptr(number)
	}
	require.NoError(t, uc.Receive(context.Background(), in))
}

// ── Receive ──────────────────────────────────────────────────────────────────

func TestReceive_CreaStockLoteYMovimiento(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 10, "L1", ptr(day0.AddDate(0, 0, 30)))

	assert.Equal(t, int64(10), quantity(t, store, locA))
	bs := batches(t, store, locA)
	require.Len(t, bs, 1)
	assert.Equal(t, "L1", *bs[0].BatchNumber)

	movs := movements(t, store)
	require.Len(t, movs, 1)
	m := movs[0]
	assert.Equal(t, entity.MovementReceive, m.Kind)
	assert.Equal(t, int64(10), m.Quantity)
	assert.Nil(t, m.FromLocationID)
	assert.Equal(t, locA, *m.ToLocationID)
	assert.Equal(t, bs[0].ID, *m.BatchID)
	assert.Equal(t, "system", m.Actor)
	assert.Equal(t, day0, m.CreatedAt)
	assert.NotEmpty(t, m.TransactionID)
}

func TestReceive_ArgumentosInvalidos(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()

	cases := []inventory.ReceiveInput{
		{ItemID: itemID, LocationID: locA, Quantity: 0},
		{ItemID: itemID, LocationID: locA, Quantity: -3},
		{ItemID: "", LocationID: locA, Quantity: 1},
		{ItemID: itemID, LocationID: "", Quantity: 1},
	}
	for _, in := range cases {
		assert.ErrorIs(t, uc.Receive(ctx, in), domain.ErrInvalidArgument)
	}
	assert.Empty(t, movements(t, store))
}

// ── Issue ────────────────────────────────────────────────────────────────────

func TestIssue_ConsumeLotesEnOrdenFEFO(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 10, "D30", ptr(day0.AddDate(0, 0, 30)))
	receive(t, uc, locA, 5, "D5", ptr(day0.AddDate(0, 0, 5)))

	err := uc.Issue(context.Background(), inventory.IssueInput{
		ItemID: itemID, LocationID: locA, Quantity: 12, Actor: "ana", Reason: "venta",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), quantity(t, store, locA))
	bs := batches(t, store, locA)
	require.Len(t, bs, 1)
	assert.Equal(t, "D30", *bs[0].BatchNumber)
	assert.Equal(t, int64(3), bs[0].Quantity)

	issues, err := store.Movements().Query(context.Background(), repository.MovementFilter{Kind: entity.MovementIssue})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	got := map[string]int64{}
	for _, m := range issues {
		got[*m.BatchNumber] = m.Quantity
		assert.Equal(t, "ana", m.Actor)
		assert.Equal(t, "venta", m.Reason)
		assert.Equal(t, locA, *m.FromLocationID)
		assert.Equal(t, issues[0].TransactionID, m.TransactionID)
	}
	assert.Equal(t, map[string]int64{"D5": 5, "D30": 7}, got)
	assertReconciled(t, store, locA)
}

func TestIssue_LoteSinVencimientoSeConsumeAlFinal(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 4, "SIN", nil)
	receive(t, uc, locA, 4, "CON", ptr(day0.AddDate(1, 0, 0)))

	require.NoError(t, uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 4}))

	bs := batches(t, store, locA)
	require.Len(t, bs, 1)
	assert.Equal(t, "SIN", *bs[0].BatchNumber)
}

func TestIssue_StockInsuficienteNoModificaNada(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 10, "", nil)
	receive(t, uc, locA, 5, "", nil)
	before := len(movements(t, store))

	err := uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 20})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(15), ise.Available)
	assert.Equal(t, int64(20), ise.Requested)

	assert.Equal(t, int64(15), quantity(t, store, locA))
	assert.Len(t, batches(t, store, locA), 2)
	assert.Len(t, movements(t, store), before)
}

func TestIssue_SinRegistroDeStock(t *testing.T) {
	uc, _ := newLedger(t)
	err := uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssue_AgotaExactamenteYBorraLotes(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 3, "", nil)
	receive(t, uc, locA, 2, "", nil)

	require.NoError(t, uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 5}))
	assert.Equal(t, int64(0), quantity(t, store, locA))
	assert.Empty(t, batches(t, store, locA))

	err := uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestIssue_InconsistenciaEntreLotesYStock(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()
	receive(t, uc, locA, 5, "", nil)
	bs := batches(t, store, locA)
	require.Len(t, bs, 1)
	// Se rompe el cuadre por fuera del motor.
	require.NoError(t, store.Batches().Decrement(ctx, bs[0].ID, 2))

	err := uc.Issue(ctx, inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 5})
	require.ErrorIs(t, err, domain.ErrInconsistency)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, int64(5), quantity(t, store, locA))
	assert.Len(t, movements(t, store), 1)
}

func TestIssue_ConcurrenteNuncaDejaNegativo(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 100, "", nil)

	const workers = 30
	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := uc.Issue(context.Background(), inventory.IssueInput{ItemID: itemID, LocationID: locA, Quantity: 5})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), ok.Load())
	assert.Equal(t, int32(10), insufficient.Load())
	assert.Equal(t, int64(0), quantity(t, store, locA))
	assertReconciled(t, store, locA)
}

// ── Transfer ─────────────────────────────────────────────────────────────────

func TestTransfer_MueveStockYRegistraResumen(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 10, "L1", ptr(day0.AddDate(0, 0, 10)))

	err := uc.Transfer(context.Background(), inventory.TransferInput{
		ItemID: itemID, FromLocationID: locA, ToLocationID: locB, Quantity: 4, Actor: "bob",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(6), quantity(t, store, locA))
	assert.Equal(t, int64(4), quantity(t, store, locB))
	dst := batches(t, store, locB)
	require.Len(t, dst, 1)
	assert.Nil(t, dst[0].BatchNumber)
	assert.Nil(t, dst[0].ExpiresAt)

	all := movements(t, store)
	txID := all[0].TransactionID
	tx, err := store.Movements().Query(context.Background(), repository.MovementFilter{TransactionID: txID})
	require.NoError(t, err)
	kinds := map[entity.MovementKind]*entity.Movement{}
	for _, m := range tx {
		kinds[m.Kind] = m
		assert.Equal(t, "bob", m.Actor)
	}
	require.Len(t, kinds, 3)
	assert.Equal(t, "Transfer out", kinds[entity.MovementIssue].Reason)
	assert.Equal(t, locB, *kinds[entity.MovementReceive].ToLocationID)
	summary := kinds[entity.MovementTransfer]
	assert.Equal(t, locA, *summary.FromLocationID)
	assert.Equal(t, locB, *summary.ToLocationID)
	assert.Equal(t, int64(4), summary.Quantity)
	assert.Nil(t, summary.BatchID)

	assertReconciled(t, store, locA, locB)
}

func TestTransfer_Errores(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()
	receive(t, uc, locA, 3, "", nil)

	err := uc.Transfer(ctx, inventory.TransferInput{ItemID: itemID, FromLocationID: locA, ToLocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = uc.Transfer(ctx, inventory.TransferInput{ItemID: itemID, FromLocationID: locB, ToLocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = uc.Transfer(ctx, inventory.TransferInput{ItemID: itemID, FromLocationID: locA, ToLocationID: locB, Quantity: 4})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// El destino creado dentro de la transacción fallida tampoco queda.
	rec, err := store.Stocks().Find(ctx, itemID, locB)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, int64(3), quantity(t, store, locA))
}

func TestTransfer_CruzadosConcurrentesConservanElTotal(t *testing.T) {
	uc, store := newLedger(t)
	receive(t, uc, locA, 50, "", nil)
	receive(t, uc, locB, 50, "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := locA, locB
			if i%2 == 1 {
				from, to = locB, locA
			}
			_ = uc.Transfer(context.Background(), inventory.TransferInput{
				ItemID: itemID, FromLocationID: from, ToLocationID: to, Quantity: 3,
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(100), quantity(t, store, locA)+quantity(t, store, locB))
	assertReconciled(t, store, locA, locB)
}

// ── Adjust ───────────────────────────────────────────────────────────────────

func TestAdjust_DeltaCeroNoEscribe(t *testing.T) {
	uc, store := newLedger(t)
	require.NoError(t, uc.Adjust(context.Background(), inventory.AdjustInput{ItemID: itemID, LocationID: locA, Delta: 0}))
	assert.Empty(t, movements(t, store))
}

func TestAdjust_PositivoYNegativo(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()
	receive(t, uc, locA, 5, "L1", ptr(day0.AddDate(0, 0, 3)))

	require.NoError(t, uc.Adjust(ctx, inventory.AdjustInput{ItemID: itemID, LocationID: locA, Delta: 4, Reason: "conteo"}))
	assert.Equal(t, int64(9), quantity(t, store, locA))

	require.NoError(t, uc.Adjust(ctx, inventory.AdjustInput{ItemID: itemID, LocationID: locA, Delta: -6, Reason: "merma"}))
	assert.Equal(t, int64(3), quantity(t, store, locA))

	adjusts, err := store.Movements().Query(ctx, repository.MovementFilter{Kind: entity.MovementAdjust})
	require.NoError(t, err)
	require.Len(t, adjusts, 2)
	for _, m := range adjusts {
		assert.Nil(t, m.BatchID)
		switch m.Reason {
		case "conteo":
			assert.Equal(t, int64(4), m.Quantity)
			assert.Equal(t, locA, *m.ToLocationID)
			assert.Nil(t, m.FromLocationID)
		case "merma":
			assert.Equal(t, int64(6), m.Quantity)
			assert.Equal(t, locA, *m.FromLocationID)
			assert.Nil(t, m.ToLocationID)
		default:
			t.Fatalf("reason inesperado %q", m.Reason)
		}
	}
	assertReconciled(t, store, locA)
}

func TestAdjust_NegativoSinStock(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()

	err := uc.Adjust(ctx, inventory.AdjustInput{ItemID: itemID, LocationID: locA, Delta: -1})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	receive(t, uc, locA, 2, "", nil)
	err = uc.Adjust(ctx, inventory.AdjustInput{ItemID: itemID, LocationID: locA, Delta: -3})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(2), quantity(t, store, locA))
}

// ── Consultas ────────────────────────────────────────────────────────────────

func TestGetStocks_Filtros(t *testing.T) {
	uc, _ := newLedger(t)
	receive(t, uc, locA, 1, "", nil)
	receive(t, uc, locB, 2, "", nil)

	all, err := uc.GetStocks(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyB, err := uc.GetStocks(context.Background(), itemID, locB)
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, int64(2), onlyB[0].Quantity)
}

func TestListMovements_TipoInvalidoYTope(t *testing.T) {
	uc, _ := newLedger(t)
	_, err := uc.ListMovements(context.Background(), repository.MovementFilter{Kind: "VENTA"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	for i := 0; i < 3; i++ {
		receive(t, uc, locA, 1, "", nil)
	}
	list, err := uc.ListMovements(context.Background(), repository.MovementFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// ── Reintentos ───────────────────────────────────────────────────────────────

type flakyRunner struct {
	inner    inventory.TxRunner
	failures int
	err      error
	calls    int
}

func (f *flakyRunner) Run(ctx context.Context, fn func(repository.MovementRepository, repository.StockRepository, repository.BatchRepository) error) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.inner.Run(ctx, fn)
}

func TestRetry_ConflictoSeReintenta(t *testing.T) {
	store := memory.New(time.Second)
	rec := newFakeRecorder()
	runner := &flakyRunner{inner: store, failures: 2, err: domain.ErrConflict}
	uc := inventory.NewLedgerUseCase(runner, store.Stocks(), store.Movements(),
		inventory.LedgerConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, inventory.WithRecorder(rec))

	err := uc.Receive(context.Background(), inventory.ReceiveInput{ItemID: itemID, LocationID: locA, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 2, rec.retries[inventory.OpReceive])
	assert.Equal(t, 1, rec.ops[inventory.OpReceive])
}

func TestRetry_AgotaReintentosDevuelveConflicto(t *testing.T) {
	store := memory.New(time.Second)
	runner := &flakyRunner{inner: store, failures: 10, err: domain.ErrConflict}
	uc := inventory.NewLedgerUseCase(runner, store.Stocks(), store.Movements(),
		inventory.LedgerConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	err := uc.Receive(context.Background(), inventory.ReceiveInput{ItemID: itemID, LocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, runner.calls)
}

func TestRetry_ErrorNoReintentableNoSeRepite(t *testing.T) {
	store := memory.New(time.Second)
	runner := &flakyRunner{inner: store, failures: 1, err: errors.New("db caída")}
	uc := inventory.NewLedgerUseCase(runner, store.Stocks(), store.Movements(),
		inventory.LedgerConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	err := uc.Receive(context.Background(), inventory.ReceiveInput{ItemID: itemID, LocationID: locA, Quantity: 1})
	assert.EqualError(t, err, "db caída")
	assert.Equal(t, 1, runner.calls)
}

// ── RegisterMovementUseCase ──────────────────────────────────────────────────

func TestRegisterMovement_ValidaCatalogo(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()
	require.NoError(t, store.Items().Create(ctx, &entity.Item{ID: itemID, SKU: "SKU-1", Name: "Leche"}))
	require.NoError(t, store.Locations().Create(ctx, &entity.Location{ID: locA, Name: "Bodega A"}))
	reg := inventory.NewRegisterMovementUseCase(uc, store.Items(), store.Locations())

	err := reg.ReceiveFromRequest(ctx, "ana", dto.ReceiveRequest{ItemID: "otro", LocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = reg.ReceiveFromRequest(ctx, "ana", dto.ReceiveRequest{ItemID: itemID, LocationID: locB, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = reg.TransferFromRequest(ctx, "ana", dto.TransferRequest{ItemID: itemID, FromLocationID: locA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, reg.ReceiveFromRequest(ctx, "ana", dto.ReceiveRequest{ItemID: itemID, LocationID: locA, Quantity: 7}))
	require.NoError(t, reg.IssueFromRequest(ctx, "", dto.IssueRequest{ItemID: itemID, LocationID: locA, Quantity: 2}))
	require.NoError(t, reg.AdjustFromRequest(ctx, "ana", dto.AdjustRequest{ItemID: itemID, LocationID: locA, Delta: -1}))
	assert.Equal(t, int64(4), quantity(t, store, locA))
}
