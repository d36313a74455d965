package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/infra/api"
	"rankblaze-entitlements/internal/infra/api/apiv1"
	"rankblaze-entitlements/internal/infra/i18n"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
	"rankblaze-entitlements/internal/infra/sched"
	"rankblaze-entitlements/internal/infra/worker"
	"rankblaze-entitlements/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: .env file, in-memory store and noop gateway when unconfigured")
	flag.Parse()

	if *devMode {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("dotenv: %v", err)
		}
	}
	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting entitlements service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Infrastructure ----
	st, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("stores")
	}
	defer closeStores()

	gateway, err := openGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	notifiers, alerts, closeNotify, err := openNotifiers(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifiers")
	}
	defer closeNotify()

	bundle, err := i18n.NewBundle(i18n.LocalesFS, cfg.I18n.Lang, "en", "hi")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(usecase.ReconcileDeps{
		Orders:       st.orders,
		Entitlements: st.entitlements,
		Records:      st.records,
		Outbox:       st.outbox,
		Tools:        st.tools,
		TM:           st.tm,
		Gateway:      gateway,
		Locker:       st.locker,
		Alerts:       alerts,
	}, cfg.ValidityWindow(), cfg.Reconcile.LockTTL, logger)
	checkoutUC := usecase.NewCheckoutUseCase(st.orders, st.tools, gateway, logger)
	accessUC := usecase.NewAccessUseCase(st.entitlements, st.records, st.tools, logger)
	catalogUC := usecase.NewCatalogUseCase(st.tools, logger)
	statsUC := usecase.NewStatsUseCase(st.records, logger)
	outboxUC := usecase.NewOutboxUseCase(st.outbox, st.tm, notifiers, alerts, cfg.Outbox.MaxAttempts, logger)

	// ---- Background workers ----
	// The pool outlives ctx so queued callbacks finish after the listener stops.
	pool := worker.NewPool(cfg.Reconcile.Workers, logger)
	pool.Start(context.Background())

	var wg sync.WaitGroup
	runBG := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("worker", name).Msg("background worker stopped")
			}
		}()
	}
	runBG("payment_reconciler", sched.NewPaymentReconciler(reconcileUC, st.orders,
		cfg.Reconcile.PollInterval, cfg.Reconcile.StaleAfter, cfg.Reconcile.GiveUpAfter, logger).Run)
	runBG("outbox_relay", sched.NewOutboxRelay(cfg.Outbox.Interval, cfg.Outbox.BatchSize, outboxUC, logger).Run)
	if st.poolStats != nil {
		runBG("db_stats", st.poolStats)
	}

	// ---- HTTP ----
	userSecret := cfg.Users.JWTSecret
	if userSecret == "" && cfg.Runtime.Dev {
		userSecret = devUserSecret
		logger.Warn().Msg("USER_JWT_SECRET not set, using the dev user secret")
	}
	auth := api.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.Secure, cfg.Admin.Domain, cfg.Admin.SessionTTL).
		WithUserSecret(userSecret)
	srv := apiv1.NewServer(apiv1.Deps{
		Reconcile: reconcileUC,
		Checkout:  checkoutUC,
		Access:    accessUC,
		Catalog:   catalogUC,
		Stats:     statsUC,
		Gateway:   gateway,
		Limiter:   st.limiter,
		Pool:      pool,
		Auth:      auth,
		I18n:      bundle,
	}, apiv1.Options{PollLimit: cfg.Reconcile.PollLimit, WebhookTimeout: cfg.HTTP.WebhookTimeout}, logger)
	router := api.NewRouter(logger, cfg.HTTP.RequestTimeout, func(r chi.Router) { apiv1.RegisterAPIV1(r, srv) })

	if err := api.NewServer(cfg.HTTP.Port, router, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server")
		stop()
	}

	// ---- Graceful shutdown ----
	logger.Info().Msg("shutdown requested")
	wg.Wait()
	done := make(chan struct{})
	go func() { pool.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(cfg.HTTP.WebhookTimeout):
		logger.Warn().Msg("worker pool did not drain in time")
	}
	logger.Info().Msg("bye")
}
