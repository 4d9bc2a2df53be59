package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	httpapi "github.com/i474232898/eojeboda/internal/api/http"
	"github.com/i474232898/eojeboda/internal/config"
	"github.com/i474232898/eojeboda/internal/geo"
	"github.com/i474232898/eojeboda/internal/notify"
	"github.com/i474232898/eojeboda/internal/observability"
	"github.com/i474232898/eojeboda/internal/scheduler"
	"github.com/i474232898/eojeboda/internal/store"
	"github.com/i474232898/eojeboda/internal/weather"
	"github.com/i474232898/eojeboda/internal/weather/providers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Open-Meteo needs no key; KMA and WeatherAPI are fallbacks when configured.
	provs := []weather.Provider{providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoBaseURL)}
	var lifeIndex httpapi.LifeIndexSource
	if cfg.KMAAPIKey != "" {
		life := providers.NewKMALifeIndex(httpClient, cfg.KMAAPIKey, cfg.KMALifeBaseURL)
		lifeIndex = life
		provs = append(provs, providers.NewKMAProvider(httpClient, cfg.KMAAPIKey, cfg.KMABaseURL, life))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.WeatherAPIURL))
	}

	opts := []weather.Option{
		weather.WithCacheTTL(cfg.CacheTTL),
		weather.WithLogger(logger),
		weather.WithMetrics(metrics),
	}
	if cfg.ConditionTableFile != "" {
		table, err := weather.LoadConditionTable(cfg.ConditionTableFile)
		if err != nil {
			return err
		}
		logger.Info("condition table override loaded", "provider", table.Provider, "file", cfg.ConditionTableFile)
		opts = append(opts, weather.WithConditionTable(table))
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	service := weather.NewService(memStore, provs, opts...)

	repo, err := notify.OpenSQLite(ctx, cfg.SubscriberDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	var publisher notify.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaPushTopic, logger)
		logger.Info("publishing reminders to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaPushTopic)
	} else {
		publisher = notify.NewLogPublisher(logger)
		logger.Warn("KAFKA_BROKERS not set; reminders are only logged")
	}
	defer publisher.Close()

	dispatcher := notify.NewDispatcher(repo, service, publisher,
		notify.WithWindow(cfg.ReminderWindow),
		notify.WithBatchSize(cfg.PushBatchSize),
		notify.WithLogger(logger),
		notify.WithMetrics(metrics),
	)
	reminders := notify.NewService(repo, dispatcher, logger)

	var geocoder geo.Geocoder
	if g, err := geo.NewGoogleGeocoder(cfg.GeocoderAPIKey); err == nil {
		geocoder = geo.NewCachedGeocoder(g)
	}
	locations := geo.ResolveLocations(ctx, cfg.Locations, geocoder, logger)

	// Scheduler that keeps configured locations warm and sends reminders.
	sched := scheduler.New(scheduler.Config{
		FetchInterval:    cfg.FetchInterval,
		ReminderInterval: cfg.ReminderInterval,
	}, locations, service, reminders, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.Deps{
		Weather:    service,
		Notify:     reminders,
		LifeIndex:  lifeIndex,
		Logger:     logger,
		RequestLog: true,
	})

	go func() {
		logger.Info("http server listening", "port", cfg.Port, "providers", len(provs), "locations", len(locations))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	return nil
}
