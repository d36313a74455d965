package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/adapters/notify"
	"rankblaze-entitlements/internal/infra/adapters/payment"
	"rankblaze-entitlements/internal/infra/db/memory"
	pg "rankblaze-entitlements/internal/infra/db/postgres"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
	red "rankblaze-entitlements/internal/infra/redis"
	"rankblaze-entitlements/internal/infra/security"
)

const (
	devEncryptionKey = "0123456789abcdef0123456789abcdef"
	devUserSecret    = "dev-user-secret"
)

type stores struct {
	orders       repository.OrderRepository
	entitlements repository.EntitlementRepository
	records      repository.PaymentRecordRepository
	outbox       repository.OutboxRepository
	tools        repository.ToolRepository
	tm           repository.TransactionManager
	locker       adapter.Locker
	limiter      adapter.RateLimiter
	poolStats    func(context.Context) error
}

// openStores connects Postgres and Redis. In dev mode a missing URL falls
// back to the in-memory store or the in-process locker.
func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	st := &stores{}

	encKey := cfg.Security.EncryptionKey
	if encKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("ENCRYPTION_KEY not set; using dev key (INSECURE)")
		encKey = devEncryptionKey
	}
	box, err := security.NewEncryptionService(encKey)
	if err != nil {
		return nil, closeAll, fmt.Errorf("encryption: %w", err)
	}

	var cache *red.Client
	if cfg.Redis.URL != "" {
		cache, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, closeAll, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = cache.Close() })
		st.locker = red.NewLocker(cache)
		st.limiter = red.NewRateLimiter(cache)
	} else {
		logger.Warn().Msg("redis not configured; using in-process locks")
		st.locker = memory.NewLocker()
		st.limiter = memory.NewRateLimiter()
	}

	if cfg.Database.URL == "" {
		logger.Warn().Msg("database not configured; using in-memory store")
		mem := memory.NewStore()
		st.orders, st.entitlements, st.records = mem.Orders(), mem.Entitlements(), mem.PaymentRecords()
		st.outbox, st.tools, st.tm = mem.Outbox(), mem.Tools(), mem
		return st, closeAll, nil
	}

	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			return nil, closeAll, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, closeAll, fmt.Errorf("postgres: %w", err)
	}
	closers = append(closers, pool.Close)

	st.orders = pg.NewOrderRepo(pool)
	st.entitlements = pg.NewEntitlementRepo(pool)
	st.records = pg.NewPaymentRecordRepo(pool)
	st.outbox = pg.NewOutboxRepo(pool)
	st.tm = pg.NewTxManager(pool)
	st.tools = pg.NewToolRepo(pool, box)
	if cache != nil {
		st.tools = pg.NewToolRepoCacheDecorator(st.tools, cache, box, logger)
	}
	st.poolStats = func(ctx context.Context) error {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
	}
	return st, closeAll, nil
}

func openGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	switch cfg.Gateway.Provider {
	case "noop":
		if !cfg.Runtime.Dev {
			return nil, fmt.Errorf("noop gateway is only allowed in dev mode")
		}
		logger.Warn().Msg("payment gateway: noop")
		return payment.NewNoopPaymentGateway(), nil
	case "phonepe":
		if cfg.Runtime.Dev && cfg.Gateway.MerchantID == "" {
			logger.Warn().Msg("phonepe credentials missing; payment gateway: noop")
			return payment.NewNoopPaymentGateway(), nil
		}
		gw, err := payment.NewPhonePeGateway(cfg.Gateway)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("base_url", cfg.Gateway.BaseURL).
			Str("merchant_id", logging.Redact(cfg.Gateway.MerchantID, cfg.Runtime.Dev)).
			Msg("payment gateway: phonepe")
		return gw, nil
	}
	return nil, fmt.Errorf("unknown gateway provider %q", cfg.Gateway.Provider)
}

// openNotifiers builds the outbox sinks and the operator alert fan-out. The
// log notifier is always present so every event leaves a trace.
func openNotifiers(cfg *config.Config, logger *zerolog.Logger) ([]adapter.Notifier, adapter.AlertSink, func(), error) {
	logSink := notify.NewLogNotifier(logger)
	notifiers := []adapter.Notifier{logSink}
	alerts := notify.FanoutAlert{logSink}
	closeFn := func() {}

	if len(cfg.Notify.Kafka.Brokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.Notify.Kafka)
		if err != nil {
			return nil, nil, closeFn, fmt.Errorf("kafka: %w", err)
		}
		notifiers = append(notifiers, kp)
		closeFn = func() { _ = kp.Close() }
		logger.Info().Strs("brokers", cfg.Notify.Kafka.Brokers).Str("topic", cfg.Notify.Kafka.Topic).Msg("kafka sink enabled")
	}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramAlerter(cfg.Notify.Telegram)
		if err != nil {
			return nil, nil, closeFn, fmt.Errorf("telegram: %w", err)
		}
		notifiers = append(notifiers, tg)
		alerts = append(alerts, tg)
		logger.Info().Int("chats", len(cfg.Notify.Telegram.AdminChatIDs)).Msg("telegram sink enabled")
	}
	return notifiers, alerts, closeFn, nil
}
