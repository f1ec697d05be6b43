package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/OneMiay/CustodialWallet/internal/config"
	"github.com/OneMiay/CustodialWallet/internal/httpapi"
	"github.com/OneMiay/CustodialWallet/internal/ledger"
	"github.com/OneMiay/CustodialWallet/internal/logging"
	"github.com/OneMiay/CustodialWallet/internal/metrics"
	"github.com/OneMiay/CustodialWallet/internal/store"
	"github.com/OneMiay/CustodialWallet/internal/store/memstore"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", os.Getenv("WALLET_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[startup] load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Development)
	if err != nil {
		log.Fatalf("[startup] build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting wallet server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("store", cfg.Store),
		zap.Bool("migrate", cfg.DB.Migrate),
	)

	registry := prometheus.NewRegistry()
	collector := metrics.New("wallet")
	if err := collector.Register(registry); err != nil {
		logger.Fatal("register metrics", zap.Error(err))
	}

	// Startup context
	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	var accounts store.AccountStore
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, state will not survive a restart")
		accounts = memstore.New()

	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
		if err != nil {
			logger.Fatal("parse dsn", zap.Error(err))
		}
		poolCfg.MaxConns = int32(cfg.DB.MaxConns)
		poolCfg.MinConns = 1
		poolCfg.HealthCheckPeriod = 10 * time.Second
		poolCfg.MaxConnLifetime = 30 * time.Minute
		poolCfg.MaxConnIdleTime = 5 * time.Minute

		pool, err := pgxpool.NewWithConfig(startCtx, poolCfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(startCtx); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}

		if cfg.DB.Migrate {
			logger.Info("running migrations")
			if err := store.Migrate(startCtx, pool); err != nil {
				logger.Fatal("migrations", zap.Error(err))
			}
		}

		accounts = store.NewBreakerStore(store.NewPostgres(pool), logger)
	}

	svc := ledger.New(accounts, logger, collector, cfg.MaxRetries)
	h := httpapi.NewHandlers(svc)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.Router(h, registry, cfg.HTTP.MaxInflight),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("ready",
		zap.Duration("startup", time.Since(start).Truncate(time.Millisecond)),
		zap.String("addr", cfg.HTTP.Addr),
	)

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
