package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain/model"
	pg "rankblaze-entitlements/internal/infra/db/postgres"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/usecase"
)

// One-time import of historical entitlement exports. Safe to re-run: a grant
// never shortens an entitlement that already expires later.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	input := flag.String("in", "legacy.json", "JSON array of legacy records")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	f, err := os.Open(*input)
	if err != nil {
		logger.Fatal().Err(err).Msg("open input")
	}
	defer f.Close()
	var recs []model.LegacyRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		logger.Fatal().Err(err).Msg("decode input")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	rep, err := usecase.NewImportUseCase(pg.NewEntitlementRepo(pool), logger).Import(ctx, recs, time.Now())
	if err != nil {
		logger.Fatal().Err(err).Interface("partial", rep).Msg("import failed")
	}
	out, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(out))
}
