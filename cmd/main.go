package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/http/api"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/http/swagger"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/repository"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	app "github.com/gaeliam100/unravel-sql-game-back/internal/app"
	"github.com/gaeliam100/unravel-sql-game-back/internal/config"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/ranking"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	opts := serviceOptions(cfg, store, log)
	if cfg.SandboxDatabaseURL != "" {
		exec, err := sandbox.OpenSQLExecutor(cfg.SandboxDatabaseURL, cfg.SandboxTimeout())
		if err != nil {
			return fmt.Errorf("open sandbox database: %w", err)
		}
		defer func() { _ = exec.Close() }()
		opts = append(opts, app.WithSandbox(exec, cfg.SandboxMaxRows))
	} else {
		log.Warn(ctx, "sandbox_database_url not set; data exercises are disabled")
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore selects the run/player/session store by driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL, repository.WithMaxConns(cfg.DBMaxConns))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return pg, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func serviceOptions(cfg *config.Config, store repository.Store, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRankingOptions(
			ranking.WithLevelTop(cfg.LevelTopN),
			ranking.WithGlobalTop(cfg.GlobalTopN),
			ranking.WithLevelsPerDifficulty(cfg.LevelsPerDifficulty),
		),
		app.WithAuthOptions(
			auth.WithTokenTTL(cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()),
			auth.WithBcryptCost(cfg.BcryptCost),
		),
	}
}

// newHandler registers docs and API routes and applies the CORS policy.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	router := mux.NewRouter()
	swagger.Register(ctx, router)

	apiServer := api.NewServer(svc, svc,
		api.WithAllowedOrigins(cfg.AllowedOrigins()...),
		api.WithRequestTimeout(cfg.RequestTimeout()),
		api.WithSecureCookies(cfg.CookieSecure),
		api.WithLogger(logger.Named("api")),
	)
	apiServer.Register(ctx, router)
	return apiServer.Handler(router)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause since start
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
