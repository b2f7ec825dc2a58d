package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveRequest body para POST /api/inventory/receive.
type ReceiveRequest struct {
	ItemID      string     `json:"item_id" validate:"required"`
	LocationID  string     `json:"location_id" validate:"required"`
	Quantity    int64      `json:"quantity" validate:"gt=0"`
	BatchNumber *string    `json:"batch_number,omitempty" validate:"omitempty,max=100"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// IssueRequest body para POST /api/inventory/issue.
type IssueRequest struct {
	ItemID     string `json:"item_id" validate:"required"`
	LocationID string `json:"location_id" validate:"required"`
	Quantity   int64  `json:"quantity" validate:"gt=0"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

// TransferRequest body para POST /api/inventory/transfer.
type TransferRequest struct {
	ItemID         string `json:"item_id" validate:"required"`
	FromLocationID string `json:"from_location_id" validate:"required"`
	ToLocationID   string `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       int64  `json:"quantity" validate:"gt=0"`
}

// AdjustRequest body para POST /api/inventory/adjust. Delta puede ser negativo.
type AdjustRequest struct {
	ItemID     string `json:"item_id" validate:"required"`
	LocationID string `json:"location_id" validate:"required"`
	Delta      int64  `json:"delta"`
	Reason     string `json:"reason" validate:"max=500"`
}

// StockResponse registro de stock con ítem y ubicación adjuntos.
type StockResponse struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"item_id"`
	ItemSKU      string          `json:"item_sku,omitempty"`
	ItemName     string          `json:"item_name,omitempty"`
	LocationID   string          `json:"location_id"`
	LocationName string          `json:"location_name,omitempty"`
	Quantity     int64           `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Value        decimal.Decimal `json:"value"` // Quantity * UnitCost
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockListResponse listado de stock.
type StockListResponse struct {
	Items      []StockResponse `json:"items"`
	Total      int             `json:"total"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// MovementResponse entrada del log de movimientos.
type MovementResponse struct {
	ID             string    `json:"id"`
	TransactionID  string    `json:"transaction_id"`
	ItemID         string    `json:"item_id"`
	FromLocationID *string   `json:"from_location_id,omitempty"`
	ToLocationID   *string   `json:"to_location_id,omitempty"`
	BatchID        *string   `json:"batch_id,omitempty"`
	BatchNumber    *string   `json:"batch_number,omitempty"`
	Type           string    `json:"type"`
	Quantity       int64     `json:"quantity"`
	Reason         string    `json:"reason,omitempty"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

// MovementListResponse lista paginada de movimientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
