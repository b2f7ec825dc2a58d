package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// InventoryHandler maneja las operaciones del ledger y sus consultas.
type InventoryHandler struct {
	register *inventory.RegisterMovementUseCase
	ledger   *inventory.LedgerUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(register *inventory.RegisterMovementUseCase, ledger *inventory.LedgerUseCase) *InventoryHandler {
	return &InventoryHandler{register: register, ledger: ledger}
}

// Receive godoc
// @Summary      Registrar recepción
// @Description  Crea un lote nuevo con la cantidad recibida y suma al stock de la ubicación.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string              false  "Actor del movimiento (default system)"
// @Param        body     body    dto.ReceiveRequest  true   "item_id, location_id, quantity, batch_number, expires_at"
// @Success      201  {object}  map[string]string
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/receive [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if err := h.register.ReceiveFromRequest(c.UserContext(), actor(c), in); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "recepción registrada"})
}

// Issue godoc
// @Summary      Registrar salida (FEFO)
// @Description  Descuenta stock consumiendo lotes por vencimiento más próximo; un movimiento ISSUE por lote.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string            false  "Actor del movimiento (default system)"
// @Param        body     body    dto.IssueRequest  true   "item_id, location_id, quantity, reason"
// @Success      201  {object}  map[string]string
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/inventory/issue [post]
func (h *InventoryHandler) Issue(c *fiber.Ctx) error {
	var in dto.IssueRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if err := h.register.IssueFromRequest(c.UserContext(), actor(c), in); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "salida registrada"})
}

// Transfer godoc
// @Summary      Trasladar stock entre ubicaciones
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string               false  "Actor del movimiento (default system)"
// @Param        body     body    dto.TransferRequest  true   "item_id, from_location_id, to_location_id, quantity"
// @Success      201  {object}  map[string]string
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/transfer [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if err := h.register.TransferFromRequest(c.UserContext(), actor(c), in); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "traslado registrado"})
}

// Adjust godoc
// @Summary      Ajustar stock
// @Description  Corrección directa; delta positivo suma, negativo resta. delta 0 no registra nada.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string             false  "Actor del movimiento (default system)"
// @Param        body     body    dto.AdjustRequest  true   "item_id, location_id, delta, reason"
// @Success      201  {object}  map[string]string
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/adjust [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if err := h.register.AdjustFromRequest(c.UserContext(), actor(c), in); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "ajuste registrado"})
}

// GetStocks godoc
// @Summary      Consultar stock
// @Description  Lista registros de stock con ítem, ubicación y valorización (cantidad × costo unitario).
// @Tags         inventory
// @Produce      json
// @Param        item_id      query  string  false  "Filtrar por ítem"
// @Param        location_id  query  string  false  "Filtrar por ubicación"
// @Success      200  {object}  dto.StockListResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/inventory/stocks [get]
func (h *InventoryHandler) GetStocks(c *fiber.Ctx) error {
	list, err := h.ledger.GetStocks(c.UserContext(), c.Query("item_id"), c.Query("location_id"))
	if err != nil {
		return writeError(c, err)
	}
	out := dto.StockListResponse{Items: make([]dto.StockResponse, 0, len(list)), TotalValue: decimal.Zero}
	for _, s := range list {
		r := toStockResponse(s)
		out.TotalValue = out.TotalValue.Add(r.Value)
		out.Items = append(out.Items, r)
	}
	out.Total = len(out.Items)
	return c.JSON(out)
}

// ListMovements godoc
// @Summary      Consultar movimientos
// @Description  Log de movimientos, más recientes primero. location_id coincide con origen o destino.
// @Tags         inventory
// @Produce      json
// @Param        item_id         query  string  false  "Filtrar por ítem"
// @Param        location_id     query  string  false  "Filtrar por ubicación (origen o destino)"
// @Param        type            query  string  false  "RECEIVE | ISSUE | TRANSFER | ADJUST"
// @Param        transaction_id  query  string  false  "Movimientos de una misma operación"
// @Param        from            query  string  false  "Desde (RFC3339)"
// @Param        to              query  string  false  "Hasta (RFC3339)"
// @Param        limit           query  int     false  "Máximo de resultados (default 50, máx 500)"
// @Param        offset          query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 0), Offset: c.QueryInt("offset", 0)}
	page.Normalize(50, 500)
	filter := repository.MovementFilter{
		ItemID:        c.Query("item_id"),
		LocationID:    c.Query("location_id"),
		Kind:          entity.MovementKind(c.Query("type")),
		TransactionID: c.Query("transaction_id"),
		Limit:         page.Limit,
		Offset:        page.Offset,
	}
	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		return writeError(c, err)
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return writeError(c, err)
	}

	list, err := h.ledger.ListMovements(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		items = append(items, toMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Count: len(items)},
	})
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s debe ser RFC3339", domain.ErrInvalidArgument, key)
	}
	return &t, nil
}

func toStockResponse(s *entity.StockRecord) dto.StockResponse {
	r := dto.StockResponse{
		ID:         s.ID,
		ItemID:     s.ItemID,
		LocationID: s.LocationID,
		Quantity:   s.Quantity,
		UnitCost:   decimal.Zero,
		Value:      s.Value(),
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Item != nil {
		r.ItemSKU = s.Item.SKU
		r.ItemName = s.Item.Name
		r.UnitCost = s.Item.UnitCost
	}
	if s.Location != nil {
		r.LocationName = s.Location.Name
	}
	return r
}

func toMovementResponse(m *entity.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		ItemID:         m.ItemID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		BatchID:        m.BatchID,
		BatchNumber:    m.BatchNumber,
		Type:           string(m.Kind),
		Quantity:       m.Quantity,
		Reason:         m.Reason,
		Actor:          m.Actor,
		CreatedAt:      m.CreatedAt,
	}
}
