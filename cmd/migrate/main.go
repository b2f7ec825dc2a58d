// migrate aplica las migraciones SQL embebidas en internal/infrastructure/postgres/migrations.
//
// Uso: go run ./cmd/migrate
// Lee la conexión de DATABASE_URL o DB_HOST/DB_PORT/... igual que cmd/api.
package main

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Strs("aplicadas", applied).Msg("migración fallida")
	}
	if len(applied) == 0 {
		log.Info().Msg("sin migraciones pendientes")
		return
	}
	log.Info().Strs("aplicadas", applied).Msg("migraciones aplicadas")
}
