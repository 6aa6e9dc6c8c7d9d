package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/google"
	"slotbook/internal/logging"
	"slotbook/internal/metrics"
	"slotbook/internal/notify"
	"slotbook/internal/repository"
	"slotbook/internal/service"
	"slotbook/internal/tracing"
	"slotbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	metrics.Register()

	db, err := database.Open(cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	catalog := service.NewCatalogService(db, logging.Component(logger, "catalog"))
	if err := syncCatalog(ctx, cfg, catalog, logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	guards := initGuards(redisClient, logger)

	eventBus := events.NewEventBus(logging.Component(logger, "events"))
	dispatcher, closeNotifiers := initNotifications(cfg, db, logger)
	dispatcher.Subscribe(eventBus)
	defer closeNotifiers()

	var wg sync.WaitGroup
	var sheetsWorker domain.SyncWorker
	if sheets := initGoogleSheets(ctx, cfg, logger); sheets != nil {
		w := worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicyFromConfig(cfg.Worker), logging.Component(logger, "sheets-worker")).
			WithPolling(time.Duration(cfg.Worker.PollIntervalSeconds)*time.Second, cfg.Worker.BatchSize)
		sheetsWorker = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	booking := service.NewBookingService(db, guards, eventBus, sheetsWorker, service.BookingOptions{
		RateLimitAttempts: cfg.Booking.RateLimitAttempts,
		RateLimitWindow:   time.Duration(cfg.Booking.RateLimitWindowSeconds) * time.Second,
		SlotGuardTTL:      time.Duration(cfg.Booking.SlotGuardTTLSeconds) * time.Second,
	}, logging.Component(logger, "booking"))

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			backups.Start(ctx)
		}()
	}

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Booking:   booking,
		Schedules: service.NewScheduleService(db, logging.Component(logger, "schedule")),
		Catalog:   catalog,
		Health:    db,
	}, api.NewSessionVerifier(cfg.API.Session), logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, booking, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	err = startServers(ctx, grpcServer, httpServer, cfg, logger)

	stop()
	wg.Wait()
	dispatcher.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

func syncCatalog(ctx context.Context, cfg *config.Config, catalog *service.CatalogService, logger *zerolog.Logger) error {
	entries, err := service.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("catalog_path", cfg.CatalogPath).Msg("catalog file not found, keeping stored companies")
			return nil
		}
		logger.Error().Err(err).Str("catalog_path", cfg.CatalogPath).Msg("load catalog")
		return err
	}

	if err := catalog.Sync(ctx, entries); err != nil {
		logger.Error().Err(err).Msg("sync catalog")
		return err
	}
	logger.Info().Int("companies", len(entries.Companies)).Msg("catalog synced")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initGuards prefers Redis so guards span instances, with the in-process store as fallback.
func initGuards(client *redis.Client, logger *zerolog.Logger) domain.GuardRepository {
	memory := repository.NewMemoryGuardRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverGuardRepository(
		repository.NewRedisGuardRepository(client),
		memory,
		logging.Component(logger, "guards"),
	)
}

func initNotifications(cfg *config.Config, db *database.DB, logger *zerolog.Logger) (*notify.Dispatcher, func()) {
	n := cfg.Notifications
	timeout := time.Duration(n.TimeoutSeconds) * time.Second
	var notifiers []notify.Notifier
	var closers []io.Closer

	if n.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(n.Webhook.URL, n.Webhook.Secret, timeout))
	}

	if n.Telegram.BotToken != "" {
		bot, err := notify.NewTelegramBot(n.Telegram)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram notifications")
		} else {
			notifiers = append(notifiers, notify.NewTelegramNotifier(bot))
		}
	}

	if len(n.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(n.Kafka))
		notifiers = append(notifiers, kn)
		closers = append(closers, kn)
	}

	names := make([]string, 0, len(notifiers))
	for _, nt := range notifiers {
		names = append(names, nt.Name())
	}
	logger.Info().Strs("channels", names).Msg("notifications configured")

	dispatcher := notify.NewDispatcher(db, timeout, logging.Component(logger, "notify"), notifiers...)
	return dispatcher, func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("close notifier")
			}
		}
	}
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.SpreadsheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Str("sheet", cfg.Google.SheetName).Msg("google sheets connected")
	return sheets
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("slotbook started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("slotbook stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
