package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger           *inventory.LedgerUseCase
	RegisterMovement *inventory.RegisterMovementUseCase
	LocationUC       *usecase.LocationUseCase
	ItemUC           *usecase.ItemUseCase
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Ledger: operaciones de escritura y consultas
	invGroup := api.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.RegisterMovement, deps.Ledger)
	invGroup.Post("/receive", inventoryHandler.Receive)
	invGroup.Post("/issue", inventoryHandler.Issue)
	invGroup.Post("/transfer", inventoryHandler.Transfer)
	invGroup.Post("/adjust", inventoryHandler.Adjust)
	invGroup.Get("/stocks", inventoryHandler.GetStocks)
	invGroup.Get("/movements", inventoryHandler.ListMovements)

	// Catálogo de referencia
	locations := api.Group("/locations")
	locationHandler := NewLocationHandler(deps.LocationUC)
	locations.Post("/", locationHandler.Create)
	locations.Get("/", locationHandler.List)
	locations.Get("/:id", locationHandler.GetByID)

	items := api.Group("/items")
	itemHandler := NewItemHandler(deps.ItemUC)
	items.Post("/", itemHandler.Create)
	items.Get("/", itemHandler.List)
	items.Get("/:id", itemHandler.GetByID)
}
