package entity

import "time"

// Batch representa un lote recibido dentro de un registro de stock.
// Seq es el orden de inserción y desempata el orden FEFO.
type Batch struct {
	ID            string
	Seq           int64
	StockRecordID string
	BatchNumber   *string
	ExpiresAt     *time.Time
	Quantity      int64 // cantidad remanente
	CreatedAt     time.Time
}
