package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for ssl:// brokers in scratch containers

	mqttlocation "github.com/geotrack/geotrack/internal/adapter/driven/location/mqtt"
	staticlocation "github.com/geotrack/geotrack/internal/adapter/driven/location/static"
	"github.com/geotrack/geotrack/internal/adapter/driven/platform"
	sqliteadapter "github.com/geotrack/geotrack/internal/adapter/driven/sqlite"
	httphandler "github.com/geotrack/geotrack/internal/adapter/driving/http"
	"github.com/geotrack/geotrack/internal/application"
	"github.com/geotrack/geotrack/internal/config"
	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
	"github.com/geotrack/geotrack/internal/metrics"
)

// liveBuffer is the per-subscriber backlog of the live reading channel.
const liveBuffer = 16

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	// 1. Load configuration.
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"config_file", cfg.ConfigFile,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"location_source", cfg.Location.Source,
		"metrics", cfg.Metrics.Enabled,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "version", version)

	// 5. Wire stores.
	readingStore := sqliteadapter.NewReadingRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	settingsStore := sqliteadapter.NewSettingsRepo(db)

	// 6. Ensure the API token exists.
	token, err := credentialStore.GetOrCreateToken(ctx)
	if err != nil {
		return err
	}
	if cfg.PrintToken {
		_, err := fmt.Fprintln(stdout, token)
		return err
	}
	logger.Info("api token ready, run with --print-token to show it")

	// 7. Apply the configured schedule seed, if any.
	settingsSvc := application.NewSettingsService(settingsStore, logger)
	if err := seedSchedule(ctx, settingsSvc, cfg.Schedule); err != nil {
		return err
	}

	// 8. Platform telemetry and device identity.
	probe := platform.New(cfg.StoragePath, cfg.DeviceID, logger)
	deviceID, err := probe.DeviceID(ctx)
	if err != nil {
		return err
	}
	telemetrySvc := application.NewTelemetryService(application.TelemetrySources{
		Battery: probe,
		Network: probe,
		Storage: probe,
		Host:    probe,
	}, 0, logger)

	recorder := metrics.New(cfg.Metrics.Enabled)

	// 9. Live reading channel, seeded with the last stored reading.
	live := application.NewLiveReadings(liveBuffer)
	defer live.Close()
	if last, err := readingStore.Latest(ctx); err != nil {
		logger.Warn("could not load last reading", "error", err)
	} else if last != nil {
		live.Publish(*last)
	}
	recorder.GaugeFunc("live_subscribers", "Active live reading subscribers.", func() float64 {
		return float64(live.Subscribers())
	})
	if logger.Enabled(ctx, slog.LevelDebug) {
		go observeLive(live, logger)
	}

	// 10. Start sampling.
	source, err := newLocationSource(cfg.Location, logger)
	if err != nil {
		return err
	}
	samplingSvc := application.NewSamplingService(
		source,
		readingStore,
		settingsSvc,
		live,
		deviceID,
		logger,
		application.WithSamplingMetrics(recorder),
	)
	if err := samplingSvc.Start(ctx); err != nil {
		return fmt.Errorf("start sampling: %w", err)
	}

	// 11. Start the HTTP API.
	apiHandler := httphandler.NewHandler(readingStore, telemetrySvc, logger)
	server := httphandler.NewServer(
		cfg.ListenAddr,
		httphandler.NewServeMux(apiHandler, credentialStore, recorder),
		cfg.ShutdownGrace,
		logger,
	)
	if err := server.Start(); err != nil {
		samplingSvc.Stop()
		return err
	}

	logger.Info("geotrack started",
		"listen_addr", server.Addr(),
		"local_addr", cfg.LocalAddr(),
		"device_id", deviceID,
	)

	// 12. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 13. Stop sampling and HTTP independently.
	samplingSvc.Stop()
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete", "stats", samplingSvc.Stats())
	return nil
}

// newLogger builds the slog logger selected by config.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// seedSchedule writes configured schedule fields over the stored schedule.
func seedSchedule(ctx context.Context, svc *application.SettingsService, seed config.ScheduleSeed) error {
	current, err := svc.Schedule(ctx)
	if err != nil {
		slog.Warn("stored schedule invalid, seeding over defaults", "error", err)
	}

	next, changed, err := seed.Apply(current)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return svc.Save(ctx, next)
}

// newLocationSource builds the configured location source.
func newLocationSource(cfg config.LocationConfig, logger *slog.Logger) (driven.LocationSource, error) {
	switch cfg.Source {
	case config.SourceStatic:
		return staticlocation.New(cfg.Static.Latitude, cfg.Static.Longitude), nil
	case config.SourceMQTT:
		return mqttlocation.New(mqttlocation.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, logger), nil
	default:
		return nil, fmt.Errorf("location source %q: %w", cfg.Source, model.ErrConfig)
	}
}

// observeLive logs every saved reading until the live channel closes.
func observeLive(live *application.LiveReadings, logger *slog.Logger) {
	readings, cancel := live.Subscribe()
	defer cancel()

	for r := range readings {
		logger.Debug("last data saved",
			"id", r.ID,
			"latitude", r.Latitude,
			"longitude", r.Longitude,
			"captured_at", r.CapturedAt().Format("2006-01-02 15:04:05"),
		)
	}
}
