package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain/model"
	pg "rankblaze-entitlements/internal/infra/db/postgres"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/security"
	"rankblaze-entitlements/internal/usecase"
)

// catalogFile is the YAML layout of a tool catalog seed.
type catalogFile struct {
	Tools []struct {
		ID           string   `yaml:"id"`
		Name         string   `yaml:"name"`
		PriceMinor   int64    `yaml:"price_minor"`
		ValidityDays int      `yaml:"validity_days"`
		Active       *bool    `yaml:"active"`
		Token        string   `yaml:"token"`
		Tokens       []string `yaml:"tokens"`
		LoginID      string   `yaml:"login_id"`
		Password     string   `yaml:"password"`
	} `yaml:"tools"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	catalogPath := flag.String("catalog", "tools.yaml", "tool catalog to upsert")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	raw, err := os.ReadFile(*catalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read catalog")
	}
	var cat catalogFile
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		logger.Fatal().Err(err).Msg("parse catalog")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	box, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	catalogUC := usecase.NewCatalogUseCase(pg.NewToolRepo(pool, box), logger)

	for _, t := range cat.Tools {
		var payload model.TokenPayload
		switch {
		case t.Token != "":
			payload = model.SingleToken{Token: t.Token}
		case len(t.Tokens) > 0:
			payload = model.TokenPool{Tokens: t.Tokens}
		case t.LoginID != "":
			payload = model.Credentials{ID: t.LoginID, Password: t.Password}
		}
		active := t.Active == nil || *t.Active
		saved, err := catalogUC.UpsertTool(ctx, usecase.ToolInput{
			ID:           t.ID,
			Name:         t.Name,
			PriceMinor:   t.PriceMinor,
			ValidityDays: t.ValidityDays,
			Active:       active,
			Payload:      payload,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("tool_id", t.ID).Msg("upsert tool")
		}
		kind := "none"
		if saved.Payload != nil {
			kind = string(saved.Payload.Kind())
		}
		fmt.Printf("seeded: %s (%s, price=%d, days=%d, access=%s)\n", saved.ID, saved.Name, saved.PriceMinor, saved.ValidityDays, kind)
	}
	fmt.Printf("%d tools seeded.\n", len(cat.Tools))
}
