package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	_ "github.com/jhoicas/stock-ledger/docs"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	"github.com/jhoicas/stock-ledger/pkg/metrics"
	"github.com/jhoicas/stock-ledger/pkg/tracing"
)

// @title        Stock Ledger API
// @version      1.0
// @description  Ledger de inventario por lotes: recepciones, salidas FEFO, traslados y ajustes.
// @BasePath     /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	tp, err := tracing.Initialize(ctx, tracing.Config{
		ServiceName:  cfg.App.Name,
		Environment:  cfg.App.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar tracing")
	}

	var (
		txRunner     inventory.TxRunner
		stockRepo    repository.StockRepository
		movRepo      repository.MovementRepository
		itemRepo     repository.ItemRepository
		locationRepo repository.LocationRepository
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.New(cfg.Ledger.LockTimeout)
		txRunner, stockRepo, movRepo = store, store.Stocks(), store.Movements()
		itemRepo, locationRepo = store.Items(), store.Locations()
		log.Warn().Msg("STORE_DRIVER=memory: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner = postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout)
		stockRepo = postgres.NewStockRepository(pool)
		movRepo = postgres.NewMovementRepository(pool)
		itemRepo = postgres.NewItemRepository(pool)
		locationRepo = postgres.NewLocationRepository(pool)
	}

	m := metrics.New("stock_ledger")
	ledger := inventory.NewLedgerUseCase(txRunner, stockRepo, movRepo,
		inventory.LedgerConfig{MaxRetries: cfg.Ledger.MaxRetries, RetryDelay: cfg.Ledger.RetryDelay},
		inventory.WithRecorder(m),
	)
	registerMovementUC := inventory.NewRegisterMovementUseCase(ledger, itemRepo, locationRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))
	app.Use(m.Middleware())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Stock Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "store": cfg.Store.Driver})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:           ledger,
		RegisterMovement: registerMovementUC,
		LocationUC:       usecase.NewLocationUseCase(locationRepo),
		ItemUC:           usecase.NewItemUseCase(itemRepo),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de tracing")
	}

	log.Info().Msg("aplicación detenida")
}
