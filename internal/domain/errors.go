package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio del ledger (sin dependencias externas).
var (
	ErrInvalidArgument   = errors.New("argumento inválido")
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrConflict          = errors.New("modificación concurrente, reintentar")
	ErrInvalidState      = errors.New("estado inválido")
	// ErrInconsistency indica que la suma de lotes no cuadra con la cantidad agregada.
	// Es un defecto de datos: nunca se reintenta.
	ErrInconsistency = errors.New("inconsistencia entre lotes y stock")
)

// InsufficientStockError detalla el faltante de una salida o ajuste negativo.
type InsufficientStockError struct {
	ItemID     string
	LocationID string
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s en %s: disponible %d, solicitado %d",
		e.ItemID, e.LocationID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InconsistencyError detalla la diferencia detectada al recorrer lotes en orden FEFO.
type InconsistencyError struct {
	StockRecordID string
	Quantity      int64
	Missing       int64
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistencia en stock %s: cantidad %d, faltan %d unidades en lotes",
		e.StockRecordID, e.Quantity, e.Missing)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistency
}

// IsRetryable indica si la operación completa puede reintentarse desde cero.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
