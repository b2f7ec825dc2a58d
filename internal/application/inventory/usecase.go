package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Nombres de operación usados en métricas y spans.
const (
	OpReceive  = "receive"
	OpIssue    = "issue"
	OpTransfer = "transfer"
	OpAdjust   = "adjust"
)

const (
	defaultActor       = "system"
	transferOutReason  = "Transfer out"
	defaultMovementCap = 50
	maxMovementCap     = 500
)

// LedgerConfig parámetros del motor.
type LedgerConfig struct {
	MaxRetries int           // reintentos ante domain.ErrConflict (0 = ninguno)
	RetryDelay time.Duration // espera antes del primer reintento; se duplica en cada uno
}

// LedgerUseCase motor del ledger de stock: Receive, Issue (FEFO), Transfer, Adjust y consultas.
// Cada operación de escritura es una única transacción (TxRunner); un error implica cero efectos.
type LedgerUseCase struct {
	txRunner  TxRunner
	stockRepo repository.StockRepository
	movRepo   repository.MovementRepository
	cfg       LedgerConfig
	metrics   Recorder
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configura dependencias opcionales del motor.
type Option func(*LedgerUseCase)

// WithRecorder registra métricas de cada operación.
func WithRecorder(r Recorder) Option {
	return func(uc *LedgerUseCase) {
		if r != nil {
			uc.metrics = r
		}
	}
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(uc *LedgerUseCase) { uc.now = now }
}

// NewLedgerUseCase construye el motor. stockRepo y movRepo se usan para lecturas fuera de transacción.
func NewLedgerUseCase(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	movRepo repository.MovementRepository,
	cfg LedgerConfig,
	opts ...Option,
) *LedgerUseCase {
	uc := &LedgerUseCase{
		txRunner:  txRunner,
		stockRepo: stockRepo,
		movRepo:   movRepo,
		cfg:       cfg,
		metrics:   noopRecorder{},
		tracer:    otel.Tracer("github.com/jhoicas/stock-ledger/internal/application/inventory"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ReceiveInput entrada de Receive. BatchNumber y ExpiresAt son opcionales.
type ReceiveInput struct {
	ItemID      string
	LocationID  string
	Quantity    int64
	BatchNumber *string
	ExpiresAt   *time.Time
	Actor       string
}

// IssueInput entrada de Issue.
type IssueInput struct {
	ItemID     string
	LocationID string
	Quantity   int64
	Actor      string
	Reason     string
}

// TransferInput entrada de Transfer.
type TransferInput struct {
	ItemID         string
	FromLocationID string
	ToLocationID   string
	Quantity       int64
	Actor          string
}

// AdjustInput entrada de Adjust. Delta positivo suma, negativo resta.
type AdjustInput struct {
	ItemID     string
	LocationID string
	Delta      int64
	Actor      string
	Reason     string
}

// Receive crea un lote nuevo con la cantidad recibida y suma al stock (creándolo si no existe).
func (uc *LedgerUseCase) Receive(ctx context.Context, in ReceiveInput) error {
	if in.ItemID == "" || in.LocationID == "" {
		return fmt.Errorf("%w: item y ubicación son obligatorios", domain.ErrInvalidArgument)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidArgument)
	}
	return uc.execute(ctx, OpReceive, in.Actor, in.ItemID, func(ctx context.Context, u *unitOfWork) error {
		stock, err := u.stocks.GetOrCreateForUpdate(ctx, in.ItemID, in.LocationID)
		if err != nil {
			return err
		}
		return u.receive(ctx, stock, in.Quantity, in.BatchNumber, in.ExpiresAt, "")
	})
}

// Issue descuenta stock consumiendo lotes en orden FEFO; un movimiento ISSUE por lote tocado.
func (uc *LedgerUseCase) Issue(ctx context.Context, in IssueInput) error {
	if in.ItemID == "" || in.LocationID == "" {
		return fmt.Errorf("%w: item y ubicación son obligatorios", domain.ErrInvalidArgument)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidArgument)
	}
	return uc.execute(ctx, OpIssue, in.Actor, in.ItemID, func(ctx context.Context, u *unitOfWork) error {
		stock, err := u.stocks.FindForUpdate(ctx, in.ItemID, in.LocationID)
		if err != nil {
			return err
		}
		if stock == nil {
			return fmt.Errorf("%w: no hay stock de %s en %s", domain.ErrNotFound, in.ItemID, in.LocationID)
		}
		return u.issue(ctx, stock, in.Quantity, in.Reason)
	})
}

// Transfer compone Issue en origen + Receive en destino (lote nuevo, sin número ni vencimiento)
// y un movimiento TRANSFER de resumen, todo en la misma transacción.
func (uc *LedgerUseCase) Transfer(ctx context.Context, in TransferInput) error {
	if in.ItemID == "" || in.FromLocationID == "" || in.ToLocationID == "" {
		return fmt.Errorf("%w: item, origen y destino son obligatorios", domain.ErrInvalidArgument)
	}
	if in.FromLocationID == in.ToLocationID {
		return fmt.Errorf("%w: origen y destino deben ser distintos", domain.ErrInvalidArgument)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidArgument)
	}
	return uc.execute(ctx, OpTransfer, in.Actor, in.ItemID, func(ctx context.Context, u *unitOfWork) error {
		src, dst, err := u.lockTransferPair(ctx, in.ItemID, in.FromLocationID, in.ToLocationID)
		if err != nil {
			return err
		}
		if err := u.issue(ctx, src, in.Quantity, transferOutReason); err != nil {
			return err
		}
		if err := u.receive(ctx, dst, in.Quantity, nil, nil, ""); err != nil {
			return err
		}
		from, to := in.FromLocationID, in.ToLocationID
		return u.append(ctx, &entity.Movement{
			ItemID:         in.ItemID,
			FromLocationID: &from,
			ToLocationID:   &to,
			Kind:           entity.MovementTransfer,
			Quantity:       in.Quantity,
		})
	})
}

// Adjust aplica una corrección directa. Delta 0 no escribe nada y no es error.
func (uc *LedgerUseCase) Adjust(ctx context.Context, in AdjustInput) error {
	if in.ItemID == "" || in.LocationID == "" {
		return fmt.Errorf("%w: item y ubicación son obligatorios", domain.ErrInvalidArgument)
	}
	if in.Delta == 0 {
		return nil
	}
	if in.Delta == math.MinInt64 {
		return fmt.Errorf("%w: delta fuera de rango", domain.ErrInvalidArgument)
	}
	return uc.execute(ctx, OpAdjust, in.Actor, in.ItemID, func(ctx context.Context, u *unitOfWork) error {
		var stock *entity.StockRecord
		var err error
		if in.Delta < 0 {
			// Una resta nunca crea el registro: sin fila no hay nada que restar.
			stock, err = u.stocks.FindForUpdate(ctx, in.ItemID, in.LocationID)
			if err == nil && stock == nil {
				return &domain.InsufficientStockError{
					ItemID: in.ItemID, LocationID: in.LocationID, Available: 0, Requested: -in.Delta,
				}
			}
		} else {
			stock, err = u.stocks.GetOrCreateForUpdate(ctx, in.ItemID, in.LocationID)
		}
		if err != nil {
			return err
		}
		return u.adjust(ctx, stock, in.Delta, in.Reason)
	})
}

// GetStocks lista registros de stock (filtros opcionales) ordenados por ítem y ubicación.
func (uc *LedgerUseCase) GetStocks(ctx context.Context, itemID, locationID string) ([]*entity.StockRecord, error) {
	return uc.stockRepo.List(ctx, repository.StockFilter{ItemID: itemID, LocationID: locationID})
}

// ListMovements consulta el log de movimientos, más recientes primero.
func (uc *LedgerUseCase) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]*entity.Movement, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidArgument, filter.Kind)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultMovementCap
	}
	if filter.Limit > maxMovementCap {
		filter.Limit = maxMovementCap
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.movRepo.Query(ctx, filter)
}

// execute abre la transacción, reintenta conflictos y registra métricas/traza.
func (uc *LedgerUseCase) execute(
	ctx context.Context,
	op, actor, itemID string,
	fn func(ctx context.Context, u *unitOfWork) error,
) error {
	if actor == "" {
		actor = defaultActor
	}
	ctx, span := uc.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.item_id", itemID),
		attribute.String("ledger.actor", actor),
	))
	defer span.End()

	start := time.Now()
	err := uc.withRetry(ctx, op, func() error {
		return uc.txRunner.Run(ctx, func(
			movRepo repository.MovementRepository,
			stockRepo repository.StockRepository,
			batchRepo repository.BatchRepository,
		) error {
			u := &unitOfWork{
				movs:    movRepo,
				stocks:  stockRepo,
				batches: batchRepo,
				txID:    uuid.New().String(),
				now:     uc.now().UTC(),
				actor:   actor,
			}
			return fn(ctx, u)
		})
	})
	uc.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// withRetry repite fn mientras devuelva un error reintentable, con espera exponencial.
func (uc *LedgerUseCase) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := uc.cfg.MaxRetries + 1
	delay := uc.cfg.RetryDelay
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		uc.metrics.IncConflictRetry(op)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// unitOfWork agrupa los repos de una transacción y los datos comunes de sus movimientos.
type unitOfWork struct {
	movs    repository.MovementRepository
	stocks  repository.StockRepository
	batches repository.BatchRepository
	txID    string
	now     time.Time
	actor   string
}

// lockTransferPair bloquea origen y destino en orden ascendente de ubicación para evitar
// interbloqueos entre traslados cruzados (A→B y B→A).
func (u *unitOfWork) lockTransferPair(ctx context.Context, itemID, from, to string) (src, dst *entity.StockRecord, err error) {
	lockSrc := func() error {
		src, err = u.stocks.FindForUpdate(ctx, itemID, from)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("%w: no hay stock de %s en %s", domain.ErrNotFound, itemID, from)
		}
		return nil
	}
	lockDst := func() error {
		dst, err = u.stocks.GetOrCreateForUpdate(ctx, itemID, to)
		return err
	}
	first, second := lockSrc, lockDst
	if to < from {
		first, second = lockDst, lockSrc
	}
	if err := first(); err != nil {
		return nil, nil, err
	}
	if err := second(); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

func (u *unitOfWork) receive(ctx context.Context, stock *entity.StockRecord, qty int64, batchNumber *string, expiresAt *time.Time, reason string) error {
	if stock.Quantity > math.MaxInt64-qty {
		return fmt.Errorf("%w: la cantidad excede el máximo representable", domain.ErrInvalidArgument)
	}
	batch := &entity.Batch{
		StockRecordID: stock.ID,
		BatchNumber:   batchNumber,
		ExpiresAt:     expiresAt,
		Quantity:      qty,
		CreatedAt:     u.now,
	}
	if err := u.batches.Create(ctx, batch); err != nil {
		return err
	}
	stock.Quantity += qty
	if err := u.stocks.UpdateQuantity(ctx, stock.ID, stock.Quantity); err != nil {
		return err
	}
	to := stock.LocationID
	batchID := batch.ID
	return u.append(ctx, &entity.Movement{
		ItemID:       stock.ItemID,
		ToLocationID: &to,
		BatchID:      &batchID,
		BatchNumber:  batchNumber,
		Kind:         entity.MovementReceive,
		Quantity:     qty,
		Reason:       reason,
	})
}

func (u *unitOfWork) issue(ctx context.Context, stock *entity.StockRecord, qty int64, reason string) error {
	if stock.Quantity < qty {
		return &domain.InsufficientStockError{
			ItemID: stock.ItemID, LocationID: stock.LocationID, Available: stock.Quantity, Requested: qty,
		}
	}
	allocs, err := u.allocate(ctx, stock, qty)
	if err != nil {
		return err
	}
	from := stock.LocationID
	for _, a := range allocs {
		batchID := a.Batch.ID
		if err := u.append(ctx, &entity.Movement{
			ItemID:         stock.ItemID,
			FromLocationID: &from,
			BatchID:        &batchID,
			BatchNumber:    a.Batch.BatchNumber,
			Kind:           entity.MovementIssue,
			Quantity:       a.Quantity,
			Reason:         reason,
		}); err != nil {
			return err
		}
	}
	stock.Quantity -= qty
	return u.stocks.UpdateQuantity(ctx, stock.ID, stock.Quantity)
}

func (u *unitOfWork) adjust(ctx context.Context, stock *entity.StockRecord, delta int64, reason string) error {
	mov := &entity.Movement{
		ItemID: stock.ItemID,
		Kind:   entity.MovementAdjust,
		Reason: reason,
	}
	loc := stock.LocationID
	if delta < 0 {
		qty := -delta
		if stock.Quantity < qty {
			return &domain.InsufficientStockError{
				ItemID: stock.ItemID, LocationID: stock.LocationID, Available: stock.Quantity, Requested: qty,
			}
		}
		// El detalle por lote se mantiene cuadrado, pero el movimiento no referencia lotes.
		if _, err := u.allocate(ctx, stock, qty); err != nil {
			return err
		}
		stock.Quantity -= qty
		mov.FromLocationID = &loc
		mov.Quantity = qty
	} else {
		if stock.Quantity > math.MaxInt64-delta {
			return fmt.Errorf("%w: la cantidad excede el máximo representable", domain.ErrInvalidArgument)
		}
		if err := u.batches.Create(ctx, &entity.Batch{
			StockRecordID: stock.ID,
			Quantity:      delta,
			CreatedAt:     u.now,
		}); err != nil {
			return err
		}
		stock.Quantity += delta
		mov.ToLocationID = &loc
		mov.Quantity = delta
	}
	if err := u.stocks.UpdateQuantity(ctx, stock.ID, stock.Quantity); err != nil {
		return err
	}
	return u.append(ctx, mov)
}

// allocate consume qty de los lotes en orden FEFO y borra los que quedan en 0.
// Si los lotes no alcanzan, el stock agregado y su detalle no cuadran: ErrInconsistency.
func (u *unitOfWork) allocate(ctx context.Context, stock *entity.StockRecord, qty int64) ([]inventory.Allocation, error) {
	batches, err := u.batches.ListByStock(ctx, stock.ID)
	if err != nil {
		return nil, err
	}
	allocs, missing := inventory.AllocateFEFO(batches, qty)
	if missing > 0 {
		return nil, &domain.InconsistencyError{
			StockRecordID: stock.ID, Quantity: stock.Quantity, Missing: missing,
		}
	}
	for _, a := range allocs {
		if err := u.batches.Decrement(ctx, a.Batch.ID, a.Quantity); err != nil {
			return nil, err
		}
	}
	for _, a := range allocs {
		if a.Batch.Quantity == a.Quantity {
			if err := u.batches.DeleteIfEmpty(ctx, a.Batch.ID); err != nil {
				return nil, err
			}
		}
	}
	return allocs, nil
}

func (u *unitOfWork) append(ctx context.Context, m *entity.Movement) error {
	m.TransactionID = u.txID
	m.Actor = u.actor
	m.CreatedAt = u.now
	_, err := u.movs.Append(ctx, m)
	return err
}
