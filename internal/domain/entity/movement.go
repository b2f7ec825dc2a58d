package entity

import "time"

// MovementKind tipo de movimiento del ledger.
type MovementKind string

// Tipos de movimiento de inventario.
const (
	MovementReceive  MovementKind = "RECEIVE"  // entrada con lote nuevo
	MovementIssue    MovementKind = "ISSUE"    // salida por lote (FEFO)
	MovementTransfer MovementKind = "TRANSFER" // resumen de traslado origen→destino
	MovementAdjust   MovementKind = "ADJUST"   // corrección directa
)

// Valid indica si el tipo es uno de los conocidos.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementReceive, MovementIssue, MovementTransfer, MovementAdjust:
		return true
	}
	return false
}

// Movement es una entrada inmutable del log de movimientos.
// Quantity siempre es positiva: la dirección la dan Kind y From/To.
type Movement struct {
	ID             string
	Seq            int64
	TransactionID  string // agrupa los movimientos de una misma operación
	ItemID         string
	FromLocationID *string
	ToLocationID   *string
	BatchID        *string
	BatchNumber    *string // copia del número de lote; el lote puede borrarse después
	Kind           MovementKind
	Quantity       int64
	Reason         string
	Actor          string
	CreatedAt      time.Time
}
