package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/id-gotta-bike/gottabike-bot/internal/boot"
	"github.com/id-gotta-bike/gottabike-bot/internal/config"
	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
	"github.com/id-gotta-bike/gottabike-bot/internal/tracing"
)

// ConfigPath is the TOML file to load; empty falls back to CONFIG_PATH.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		boot.ProvideRuntimeConfig,
		provideLogger,
		provideTracing,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

// LoadConfig loads the config file named by path or CONFIG_PATH.
func LoadConfig(path ConfigPath) (config.Config, error) {
	cfgPath := string(path)
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideConfig(path ConfigPath) (config.Config, error) {
	return LoadConfig(path)
}

func provideLogger(rc *boot.RuntimeConfig) *slog.Logger {
	logger.Init(rc.LogLevel, rc.LogFormat)
	return logger.L
}

func provideTracing(lc fx.Lifecycle, log *slog.Logger, rc *boot.RuntimeConfig) (*tracing.Provider, error) {
	provider, err := tracing.NewProvider(rc.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	log.Info("tracing configured", slog.String("exporter", rc.Tracing.Exporter), slog.Bool("enabled", provider.Enabled()))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
