// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultEnvironment        = "dev"
	DefaultLookupTimeout      = "10s"
	DefaultGuildPostTimeout   = "30s"
	DefaultCheckTimeout       = "10s"
	DefaultInteractionTimeout = "14m"
	DefaultWelcomeMessage     = "Welcome to the server!"
	DefaultGuildSyncSchedule  = "@every 12h"
	DefaultGuildSyncWorkers   = 4
	DefaultGuildSyncRate      = 2.0
	DefaultTracingExporter    = "none"
	DefaultTracingService     = "gottabike-bot"
	DefaultTracingSampleRate  = 1.0
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Discord      DiscordConfig      `toml:"discord"`
	Registration RegistrationConfig `toml:"registration"`
	Tracing      TracingConfig      `toml:"tracing"`
	GuildSync    GuildSyncConfig    `toml:"guild_sync"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the status server listen address and the deployment
// environment name shown by the bot.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	Environment string `toml:"environment"`
}

// DiscordConfig holds the bot token and command settings.
type DiscordConfig struct {
	Token string `toml:"token"`
	// CommandGuildID limits command registration to one guild.
	CommandGuildID     string `toml:"command_guild_id"`
	WelcomeMessage     string `toml:"welcome_message"`
	HelpURL            string `toml:"help_url"`
	SourceURL          string `toml:"source_url"`
	ContactURL         string `toml:"contact_url"`
	InteractionTimeout string `toml:"interaction_timeout"`
}

// RegistrationConfig holds the registration service endpoint, key and
// per-operation timeouts. An empty magic_link_timeout means no deadline.
type RegistrationConfig struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	LookupTimeout    string `toml:"lookup_timeout"`
	MagicLinkTimeout string `toml:"magic_link_timeout"`
	GuildPostTimeout string `toml:"guild_post_timeout"`
	CheckTimeout     string `toml:"check_timeout"`
}

// TracingConfig selects the span exporter (none, stdout, otlp).
type TracingConfig struct {
	Exporter    string  `toml:"exporter"`
	Endpoint    string  `toml:"endpoint"`
	ServiceName string  `toml:"service_name"`
	SampleRate  float64 `toml:"sample_rate"`
}

// GuildSyncConfig holds the periodic guild refresh schedule.
type GuildSyncConfig struct {
	Schedule      string  `toml:"schedule"`
	Concurrency   int     `toml:"concurrency"`
	RatePerSecond float64 `toml:"rate_per_second"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:        DefaultHTTPAddr,
			Environment: DefaultEnvironment,
		},
		Discord: DiscordConfig{
			WelcomeMessage:     DefaultWelcomeMessage,
			InteractionTimeout: DefaultInteractionTimeout,
		},
		Registration: RegistrationConfig{
			LookupTimeout:    DefaultLookupTimeout,
			GuildPostTimeout: DefaultGuildPostTimeout,
			CheckTimeout:     DefaultCheckTimeout,
		},
		Tracing: TracingConfig{
			Exporter:    DefaultTracingExporter,
			ServiceName: DefaultTracingService,
			SampleRate:  DefaultTracingSampleRate,
		},
		GuildSync: GuildSyncConfig{
			Schedule:      DefaultGuildSyncSchedule,
			Concurrency:   DefaultGuildSyncWorkers,
			RatePerSecond: DefaultGuildSyncRate,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
