package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shopfloor/floorstate/internal/kafka"
	"github.com/shopfloor/floorstate/internal/postgres"
	redisstore "github.com/shopfloor/floorstate/internal/redis"
	"github.com/shopfloor/floorstate/pkg/telemetry"
	"github.com/shopfloor/floorstate/services/monitor"
	"github.com/shopfloor/floorstate/services/monitor/config"
	"github.com/shopfloor/floorstate/services/monitor/handler"
	"github.com/shopfloor/floorstate/services/monitor/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitor refresh loops and the read API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "8080", "HTTP server port")
	serveCmd.Flags().String("metrics-addr", ":9095", "Prometheus metrics server address")
	serveCmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address (host:port)")
	serveCmd.Flags().String("kafka-brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	serveCmd.Flags().String("shift-start-cron", "0 6 * * *", "cron expression for the production day boundary")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("http_port", serveCmd.Flags(), "http-port")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("postgres_dsn", serveCmd.Flags(), "postgres-dsn")
	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("shift_start_cron", serveCmd.Flags(), "shift-start-cron")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("postgres_dsn", "POSTGRES_DSN")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	viper.SetDefault("batch_window", 720*time.Hour)
	viper.SetDefault("fetch_attempts", 3)
	viper.SetDefault("stages_interval", 5*time.Second)
	viper.SetDefault("machines_interval", 10*time.Second)
	viper.SetDefault("bottlenecks_interval", 30*time.Second)
	viper.SetDefault("cache_enabled", true)
	viper.SetDefault("alerts_enabled", true)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	instanceID := uuid.New().String()[:8]
	logger := buildLogger(cfg.LogLevel, "monitor").
		With(slog.String("instance_id", instanceID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "floorstate-monitor", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	repo := postgres.NewFactRepository(pool)

	opts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithViews(viewsFromConfig(cfg)),
	}
	if cfg.FetchAttempts > 0 {
		opts = append(opts, monitor.WithFetchAttempts(cfg.FetchAttempts))
	}

	if cfg.ShiftStartCron != "" {
		sched, err := cron.ParseStandard(cfg.ShiftStartCron)
		if err != nil {
			return fmt.Errorf("parse shift_start_cron: %w", err)
		}
		opts = append(opts, monitor.WithShiftSchedule(sched))
	}

	if cfg.CacheEnabled {
		redisClient := redisstore.NewClient(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		opts = append(opts, monitor.WithSnapshotCache(redisstore.NewSnapshotCache(redisClient)))
	}

	if cfg.AlertsEnabled {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer := kafka.NewProducer(brokers)
		defer func() { _ = producer.Close() }()
		opts = append(opts, monitor.WithAlerts(monitor.NewAlertPublisher(producer, logger)))
	}

	mon := monitor.NewMonitor(repo, cfg.Engine(), opts...)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	handler.NewREST(mon, logger).Routes(r)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── signal handling ───────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// ── Prometheus metrics ────────────────────────────────────────────────────
	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	monDone := make(chan struct{})
	go func() {
		logger.Info("monitor starting")
		mon.Run(runCtx)
		close(monDone)
	}()

	go func() {
		logger.Info("monitor HTTP starting", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down...")
	runCancel()
	<-monDone

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("stopped")
	return nil
}

// viewsFromConfig builds the view set with configured intervals, clamped to
// the supported 3s..30s refresh range.
func viewsFromConfig(cfg config.Config) []monitor.View {
	views := monitor.DefaultViews()
	intervals := map[string]time.Duration{
		monitor.ViewStages:      cfg.StagesInterval,
		monitor.ViewMachines:    cfg.MachinesInterval,
		monitor.ViewBottlenecks: cfg.BottlenecksInterval,
	}
	for i, v := range views {
		if d := intervals[v.Name]; d > 0 {
			views[i].Interval = clampInterval(d)
		}
		if cfg.BatchWindow > 0 {
			views[i].Window = cfg.BatchWindow
		}
	}
	return views
}

func clampInterval(d time.Duration) time.Duration {
	const (
		minInterval = 3 * time.Second
		maxInterval = 30 * time.Second
	)
	if d < minInterval {
		return minInterval
	}
	if d > maxInterval {
		return maxInterval
	}
	return d
}
