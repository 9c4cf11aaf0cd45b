package commands

import (
	"context"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/internal/telemetry"
	"github.com/catalogfs/commitcoord/pkg/config"
	"github.com/catalogfs/commitcoord/pkg/coordinator"
	"github.com/catalogfs/commitcoord/pkg/metrics"
	"github.com/catalogfs/commitcoord/pkg/metrics/prometheus"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

// InitTelemetry initializes OpenTelemetry tracing from configuration and
// returns its shutdown func.
func InitTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fccoordctl",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     1.0,
	}
	return telemetry.Init(ctx, telemetryCfg)
}

// InitMetrics constructs a metrics.Metrics backed by the default
// Prometheus registry when enabled, or nil otherwise.
func InitMetrics(cfg *config.Config) metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return prometheus.New(promclient.DefaultRegisterer)
}

// BuildCoordinator loads cfg's backend and assembles a ready-to-use
// Coordinator, wiring metrics if enabled.
func BuildCoordinator(ctx context.Context, cfg *config.Config) (*coordinator.Coordinator, error) {
	driver, err := config.BuildDriver(ctx, cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("build storage backend: %w", err)
	}
	logger.Debug("storage backend ready", logger.KeyBackend, cfg.Backend.Type)

	return coordinator.New(coordinator.Options{
		Driver:                   driver,
		MaxSave:                  cfg.MaxSave,
		MaxArchiveSize:           cfg.MaxArchiveSize,
		ArchiveBatchCleanMaxSize: cfg.ArchiveBatchCleanMaxSize,
		TTLPreCommit:             cfg.TTLPreCommit,
		CleanTTL:                 cfg.CleanTTL,
		Metrics:                  InitMetrics(cfg),
	}), nil
}

// LoadConfig loads the configuration for a command invocation, honoring
// the --config flag set on the root command.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}
