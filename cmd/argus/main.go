// Argus - campus entity resolution and predictive monitoring.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/campusguard/argus/internal/alerting"
	"github.com/campusguard/argus/internal/alertstore"
	"github.com/campusguard/argus/internal/api"
	"github.com/campusguard/argus/internal/bus"
	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/forecast"
	"github.com/campusguard/argus/internal/metrics"
	"github.com/campusguard/argus/internal/predict"
	"github.com/campusguard/argus/internal/repository"
	"github.com/campusguard/argus/internal/resolver"
	"github.com/campusguard/argus/internal/timeline"
	"github.com/campusguard/argus/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("ARGUS_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting argus",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()
	if os.Getenv("ARGUS_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnv(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"alert_store", cfg.AlertStore.Type,
		"eventbus", cfg.EventBus.Type,
		"forecast_remote", cfg.Forecast.Remote,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	alertStore, err := alertstore.New(cfg.AlertStore)
	if err != nil {
		slog.Error("failed to initialize alert store", "error", err)
		os.Exit(1)
	}
	defer alertStore.Close()
	slog.Info("alert store initialized", "type", cfg.AlertStore.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	collector := metrics.NewCollector()

	res := resolver.New(repo, collector)
	timelines := timeline.NewBuilder(repo, cfg.Timeline, collector)

	monitor, err := predict.NewMonitor(timelines, collector)
	if err != nil {
		slog.Error("failed to initialize predictive monitor", "error", err)
		os.Exit(1)
	}
	slog.Info("predictive monitor initialized", "rules_count", monitor.RulesCount())

	var forecaster domain.Forecaster = &forecast.FallbackForecaster{}
	if cfg.Forecast.Remote {
		forecaster = forecast.NewBusForecaster(busImpl, cfg.Forecast.Timeout, forecaster)
	}
	forecasts := forecast.NewService(timelines, forecaster, collector)

	alerts := alerting.NewGenerator(repo, alertStore, busImpl, cfg.Alerting, collector)

	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("ARGUS_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, res, collector)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Store:      repo,
		AlertStore: alertStore,
		Bus:        busImpl,
		Resolver:   res,
		Timelines:  timelines,
		Monitor:    monitor,
		Forecasts:  forecasts,
		Alerts:     alerts,
		Metrics:    collector,
		Version:    Version,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("argus is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("argus shutdown complete")
}

// applyEnv overrides configuration from ARGUS_* environment variables.
func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("ARGUS_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("ARGUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid ARGUS_PORT", "value", v)
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ARGUS_REDIS_ADDR"); v != "" {
		cfg.AlertStore.RedisAddr = v
	}
	if v := os.Getenv("ARGUS_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                  ARGUS                    |")
	fmt.Println("  |   Campus Entity Resolution & Monitoring   |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /profiles                              - List profiles")
	fmt.Println("    GET  /profiles/search?q=                    - Search profiles")
	fmt.Println("    POST /resolve                               - Fuzzy identity resolution")
	fmt.Println("    GET  /resolve?card_id=&device_hash=&face_id= - Exact resolution")
	fmt.Println("    GET  /entities/{id}/timeline                - Activity timeline")
	fmt.Println("    GET  /entities/{id}/predictions/next-location")
	fmt.Println("    GET  /entities/{id}/anomalies               - Behavioral anomalies")
	fmt.Println("    GET  /entities/{id}/inferences              - Missing data inference")
	fmt.Println("    POST /entities/{id}/forecast                - Occupancy forecast")
	fmt.Println("    GET  /alerts                                - Inactivity alerts")
	fmt.Println("    PUT  /alerts/{id}?status=                   - Update alert status")
	fmt.Println("    GET  /metrics                               - Prometheus metrics")
	fmt.Println("    GET  /health                                - Health check")
	fmt.Println()
}
