package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SpotLedger/internal/asset"
	"SpotLedger/internal/broadcast"
	"SpotLedger/internal/core"
	"SpotLedger/internal/event"
	fpmath "SpotLedger/internal/math"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/persistence"
	"SpotLedger/internal/query"
	"SpotLedger/internal/server"
)

// Config holds all application configuration, loaded from environment
// variables. Postgres and NATS are optional: leaving the DSN or URL
// empty runs the service purely in memory.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresURL   string
	MigrationsDir string

	NATSURL string

	PersistChanSize     int
	BroadcastChanSize   int
	PersistBatchSize    int
	PersistFlushTimeout time.Duration

	CustodyAccount string
	FeeAccount     string
	FeePercent     int

	SeedDemo bool
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:            envOrDefault("SPOT_HTTP_ADDR", ":8080"),
		MetricsAddr:         envOrDefault("SPOT_METRICS_ADDR", ":9091"),
		PostgresURL:         os.Getenv("SPOT_POSTGRES_DSN"),
		MigrationsDir:       envOrDefault("SPOT_MIGRATIONS_DIR", "migrations"),
		NATSURL:             os.Getenv("SPOT_NATS_URL"),
		PersistChanSize:     envIntOrDefault("SPOT_PERSIST_CHAN_SIZE", 1024),
		BroadcastChanSize:   envIntOrDefault("SPOT_BROADCAST_CHAN_SIZE", 2048),
		PersistBatchSize:    envIntOrDefault("SPOT_PERSIST_BATCH_SIZE", 50),
		PersistFlushTimeout: 10 * time.Millisecond,
		CustodyAccount:      envOrDefault("SPOT_CUSTODY_ACCOUNT", "exchange"),
		FeeAccount:          envOrDefault("SPOT_FEE_ACCOUNT", "fees"),
		FeePercent:          envIntOrDefault("SPOT_FEE_PERCENT", 10),
		SeedDemo:            os.Getenv("SPOT_SEED_DEMO") == "1",
	}
}

func main() {
	logger := observability.NewLogger("main")
	logger.Info().Msg("SpotLedger starting")

	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	errChan := make(chan error, 8)

	// --- Postgres connection (optional) ---
	// The durable log is read before the in-memory log exists: a restarted
	// process continues sequences and order ids where the previous run
	// stopped, so new events never collide with rows already written.
	var db *sql.DB
	nextSequence := int64(0)
	firstOrderID := int64(1)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres ping")
		}
		logger.Info().Msg("postgres connected")

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}

		history, err := persistence.LoadEvents(ctx, db)
		if err != nil {
			logger.Fatal().Err(err).Msg("load durable event log")
		}
		if n := len(history); n > 0 {
			nextSequence = history[n-1].Sequence + 1
		}
		for _, env := range history {
			if rec, ok := env.Record.(event.Order); ok && rec.ID >= firstOrderID {
				firstOrderID = rec.ID + 1
			}
		}
		logger.Info().
			Int("events", len(history)).
			Int64("next_sequence", nextSequence).
			Int64("first_order_id", firstOrderID).
			Msg("durable event log loaded")
	} else {
		logger.Warn().Msg("SPOT_POSTGRES_DSN not set, event log is in-memory only")
	}

	// --- Event log + settlement engine ---
	eventLog := event.NewLogAt(nextSequence)
	exchange := core.NewExchange(core.Config{
		CustodyAccount: cfg.CustodyAccount,
		FeeAccount:     cfg.FeeAccount,
		FeePercent:     int64(cfg.FeePercent),
		FirstOrderID:   firstOrderID,
	}, eventLog, observability.NewLogger("engine"), metrics)

	token1 := asset.NewToken("Dapp Token", "DAPP", 1_000_000, "deployer")
	token2 := asset.NewToken("Mock Dai", "mDAI", 1_000_000, "deployer")
	if err := exchange.RegisterAsset(token1); err != nil {
		logger.Fatal().Err(err).Msg("register DAPP")
	}
	if err := exchange.RegisterAsset(token2); err != nil {
		logger.Fatal().Err(err).Msg("register mDAI")
	}

	// --- Postgres persistence worker ---
	if db != nil {
		worker := persistence.NewWorker(
			db,
			eventLog.Subscribe(cfg.PersistChanSize),
			cfg.PersistBatchSize,
			cfg.PersistFlushTimeout,
			observability.NewLogger("persistence"),
			metrics,
		)
		go func() {
			errChan <- worker.Run(ctx)
		}()
	}

	// --- NATS broadcast (optional) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		js, err := jetstream.New(nc)
		if err != nil {
			logger.Fatal().Err(err).Msg("jetstream init")
		}
		if err := broadcast.EnsureOutboundStream(ctx, js, logger); err != nil {
			logger.Fatal().Err(err).Msg("ensure outbound stream")
		}

		publisher := broadcast.NewPublisher(
			js,
			eventLog.Watch(cfg.BroadcastChanSize),
			observability.NewLogger("broadcast"),
			metrics,
		)
		go func() {
			errChan <- publisher.Run(ctx)
		}()
		logger.Info().Msg("nats connected")
	}

	// --- Demo seeding ---
	if cfg.SeedDemo {
		if err := seedDemo(exchange, token1, token2); err != nil {
			logger.Fatal().Err(err).Msg("seed demo data")
		}
		logger.Info().Msg("demo data seeded")
	}

	// --- HTTP API ---
	queryService := query.NewService(eventLog, metrics)
	apiServer := server.New(exchange, queryService, healthChecker, observability.NewLogger("http"))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiServer.Router(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// --- Prometheus metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	logger.Info().
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Int("fee_percent", cfg.FeePercent).
		Msg("SpotLedger ready")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("component failed, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown")
	}

	logger.Info().Msg("SpotLedger shutdown complete")
}

// seedDemo funds two demo accounts, deposits custody balances and rests
// a few orders so the read models have content out of the box.
func seedDemo(exchange *core.Exchange, token1, token2 *asset.Token) error {
	custody := exchange.CustodyAccount()

	if err := token1.Transfer("deployer", "alice", fpmath.Units(10_000)); err != nil {
		return fmt.Errorf("fund alice: %w", err)
	}
	if err := token2.Transfer("deployer", "bob", fpmath.Units(10_000)); err != nil {
		return fmt.Errorf("fund bob: %w", err)
	}

	if err := token1.Approve("alice", custody, fpmath.Units(1_000)); err != nil {
		return fmt.Errorf("approve alice: %w", err)
	}
	if err := exchange.Deposit("DAPP", "alice", fpmath.Units(1_000)); err != nil {
		return fmt.Errorf("deposit alice: %w", err)
	}

	if err := token2.Approve("bob", custody, fpmath.Units(1_000)); err != nil {
		return fmt.Errorf("approve bob: %w", err)
	}
	if err := exchange.Deposit("mDAI", "bob", fpmath.Units(1_000)); err != nil {
		return fmt.Errorf("deposit bob: %w", err)
	}

	// A resting ask and a resting bid, plus one fill for the tape.
	if _, err := exchange.MakeOrder("alice", "mDAI", fpmath.Units(100), "DAPP", fpmath.Units(100)); err != nil {
		return fmt.Errorf("seed ask: %w", err)
	}
	if _, err := exchange.MakeOrder("bob", "DAPP", fpmath.Units(50), "mDAI", fpmath.Units(45)); err != nil {
		return fmt.Errorf("seed bid: %w", err)
	}
	if o, err := exchange.MakeOrder("alice", "mDAI", fpmath.Units(10), "DAPP", fpmath.Units(10)); err != nil {
		return fmt.Errorf("seed third order: %w", err)
	} else if err := exchange.FillOrder(o.ID, "bob"); err != nil {
		return fmt.Errorf("seed fill: %w", err)
	}

	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}
