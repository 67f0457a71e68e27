package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/refractlabs/refract-core/internal/adapter/httpapi"
	journaladapter "github.com/refractlabs/refract-core/internal/adapter/journal"
	"github.com/refractlabs/refract-core/internal/audit"
	"github.com/refractlabs/refract-core/internal/config"
	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/metrics"
	"github.com/refractlabs/refract-core/internal/usecase/admin"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/reflection"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
	"github.com/refractlabs/refract-core/internal/usecase/seeder"
	"github.com/refractlabs/refract-core/internal/usecase/stats"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
	"github.com/refractlabs/refract-core/internal/usecase/trigger"
)

func main() {
	configPath := flag.String("config", "refract.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	owner, err := cfg.GenesisOwner()
	if err != nil {
		logger.Fatal("bad genesis owner", zap.Error(err))
	}
	pool, err := cfg.GenesisPool()
	if err != nil {
		logger.Fatal("bad genesis pool", zap.Error(err))
	}
	supply, err := cfg.GenesisSupply()
	if err != nil {
		logger.Fatal("bad genesis supply", zap.Error(err))
	}
	policy, err := cfg.TaxPolicy()
	if err != nil {
		logger.Fatal("bad tax policy", zap.Error(err))
	}
	triggerParams, err := cfg.TriggerParams()
	if err != nil {
		logger.Fatal("bad trigger parameters", zap.Error(err))
	}

	// 1. Journal
	jnl, closeJournal, err := buildJournal(cfg, logger)
	if err != nil {
		logger.Fatal("journal setup failed", zap.Error(err))
	}

	// 2. Metrics
	var promReg *prometheus.Registry
	var recorder *metrics.Recorder
	if !cfg.Metrics.Disabled {
		promReg = prometheus.NewRegistry()
		recorder = metrics.New(promReg)
	}

	// 3. Ledger core
	bk := book.New()
	reg := registry.New()
	refl := reflection.New(bk, reg, !cfg.Reflection.Disabled)
	trig := trigger.New(triggerParams)
	ledger := transfer.NewService(transfer.Params{
		Book:        bk,
		Registry:    reg,
		Reflections: refl,
		Triggers:    trig,
		Journal:     jnl,
		Logger:      logger,
		Metrics:     recorder,
		Pool:        pool,
	})
	auth := domain.NewSingleOwner(owner)
	adminSvc := admin.NewService(ledger, auth)
	statsSvc := stats.NewService(ledger)

	// 4. Genesis
	ctx := context.Background()
	sd := seeder.NewSystemSeeder(ledger, logger)
	if err := sd.Seed(ctx, seeder.GenesisSpec{
		Owner:         owner,
		Supply:        supply,
		Policy:        policy,
		TriggerMode:   cfg.TriggerMode(),
		TriggerParams: triggerParams,
	}); err != nil {
		logger.Fatal("genesis seeding failed", zap.Error(err))
	}

	// 5. Conservation auditor
	var auditor *audit.Auditor
	if !cfg.Audit.Disabled {
		auditor = audit.New(ledger, logger, recorder, cfg.Audit.Schedule)
		if err := auditor.Register(); err != nil {
			logger.Fatal("auditor setup failed", zap.Error(err))
		}
		auditor.Start()
		auditor.RunOnce()
	}

	// 6. HTTP server
	router := mux.NewRouter()
	api := httpapi.NewServer(logger, ledger, adminSvc, statsSvc, jnl)
	api.RegisterRoutes(router, cfg.Server.AuthToken, owner)
	if promReg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	waitForShutdown(srv, logger)

	if auditor != nil {
		auditor.Stop()
	}
	if err := closeJournal(); err != nil {
		logger.Error("journal close failed", zap.Error(err))
	}
}

// buildLogger assembles the zap logger from the log config section.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// buildJournal opens the configured journal backend.
func buildJournal(cfg *config.Config, logger *zap.Logger) (domain.Journal, func() error, error) {
	switch cfg.Journal.Driver {
	case "memory":
		return journaladapter.NewMemory(0), func() error { return nil }, nil
	case "sqlite":
		store, err := journaladapter.OpenSQL(journaladapter.DriverSQLite, cfg.Journal.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "postgres":
		store, err := journaladapter.OpenSQL(journaladapter.DriverPostgres, cfg.Journal.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and drains the HTTP server.
func waitForShutdown(srv *http.Server, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("http server stopped")
}
