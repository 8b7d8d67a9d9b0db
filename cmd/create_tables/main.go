// Command create_tables drops and recreates every warehouse table, staging
// tables included. It reads the same configuration as cmd/etl.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"sparkify/internal/config"
	"sparkify/internal/logging"
	"sparkify/internal/schema"
	"sparkify/internal/storage"

	_ "sparkify/internal/storage/all"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logging())
	log := logging.Logger()

	ctx := context.Background()
	wh, err := storage.Open(ctx, storage.Config{Kind: cfg.Database.Kind, DSN: cfg.Database.DSN})
	if err != nil {
		log.Error().Err(err).Str("kind", cfg.Database.Kind).Msg("connect to warehouse")
		os.Exit(1)
	}

	err = resetSchema(ctx, wh, log)
	if cerr := wh.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close warehouse")
	}
	if err != nil {
		log.Error().Err(err).Msg("create tables")
		os.Exit(1)
	}
}

// resetSchema runs every DROP TABLE IF EXISTS, then every CREATE TABLE, for
// the warehouse's dialect. The first failing statement stops it.
func resetSchema(ctx context.Context, wh storage.Warehouse, log zerolog.Logger) error {
	cat, err := schema.For(wh.Dialect())
	if err != nil {
		return err
	}
	for _, q := range cat.Drop {
		if _, err := wh.Exec(ctx, q); err != nil {
			return fmt.Errorf("drop: %w", err)
		}
	}
	for _, q := range cat.Create {
		if _, err := wh.Exec(ctx, q); err != nil {
			return fmt.Errorf("create: %w", err)
		}
	}
	log.Info().
		Str("dialect", cat.Dialect).
		Int("dropped", len(cat.Drop)).
		Int("created", len(cat.Create)).
		Msg("tables recreated")
	return nil
}
