// seed carga un catálogo inicial desde CSV: ítems, ubicaciones y stock de apertura.
//
// Uso: go run ./cmd/seed [-latin1] catalogo.csv
//
// Formato de filas:
//
//	item,SKU,Nombre,costo_unitario
//	location,Nombre
//	stock,SKU,Ubicación,cantidad
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/seed"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	latin1 := flag.Bool("latin1", false, "el CSV viene en ISO-8859-1")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed"})

	path := "catalogo.csv"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Str("archivo", path).Msg("abrir catálogo")
	}
	defer f.Close()

	cat, err := seed.ParseCatalog(f, *latin1)
	if err != nil {
		log.Fatal().Err(err).Str("archivo", path).Msg("catálogo inválido")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	ledger := inventory.NewLedgerUseCase(
		postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout),
		postgres.NewStockRepository(pool),
		postgres.NewMovementRepository(pool),
		inventory.LedgerConfig{MaxRetries: cfg.Ledger.MaxRetries, RetryDelay: cfg.Ledger.RetryDelay},
	)
	res, err := seed.Load(ctx,
		usecase.NewItemUseCase(postgres.NewItemRepository(pool)),
		usecase.NewLocationUseCase(postgres.NewLocationRepository(pool)),
		ledger, cat)
	if err != nil {
		log.Error().Err(err).
			Int("items", res.Items).Int("ubicaciones", res.Locations).Int("recepciones", res.Receipts).
			Msg("carga interrumpida")
		os.Exit(1)
	}
	log.Info().
		Int("items", res.Items).Int("ubicaciones", res.Locations).Int("recepciones", res.Receipts).
		Msg("catálogo cargado")
}
