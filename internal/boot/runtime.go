// Package boot provides runtime configuration and dependency wiring for the bot.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/id-gotta-bike/gottabike-bot/internal/config"
	"github.com/id-gotta-bike/gottabike-bot/internal/discord"
	"github.com/id-gotta-bike/gottabike-bot/internal/guildsync"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/tracing"
)

// Errors reported when a required setting is missing.
var (
	ErrMissingAPIURL = errors.New("registration base url is required (API_URL)")
	ErrMissingToken  = errors.New("discord bot token is required (DISCORD_BOT_TOKEN)")
)

// RuntimeConfig holds parsed runtime settings for every component.
// Values may be overridden by environment variables (e.g. API_URL, DISCORD_BOT_TOKEN).
type RuntimeConfig struct {
	LogLevel     string
	LogFormat    string
	ServerAddr   string
	Environment  string
	Registration registration.Config
	Discord      discord.Config
	GuildSync    guildsync.Config
	Tracing      tracing.Config
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	applyEnv(&cfg)

	reg, err := registrationConfig(cfg.Registration)
	if err != nil {
		return nil, err
	}
	interaction, err := parseDuration("discord.interaction_timeout", cfg.Discord.InteractionTimeout)
	if err != nil {
		return nil, err
	}

	return &RuntimeConfig{
		LogLevel:     cfg.Log.Level,
		LogFormat:    cfg.Log.Format,
		ServerAddr:   cfg.Server.Addr,
		Environment:  cfg.Server.Environment,
		Registration: reg,
		Discord: discord.Config{
			Token:              cfg.Discord.Token,
			CommandGuildID:     cfg.Discord.CommandGuildID,
			WelcomeMessage:     cfg.Discord.WelcomeMessage,
			HelpURL:            cfg.Discord.HelpURL,
			SourceURL:          cfg.Discord.SourceURL,
			ContactURL:         cfg.Discord.ContactURL,
			Environment:        cfg.Server.Environment,
			InteractionTimeout: interaction,
		},
		GuildSync: guildsync.Config{
			Schedule:      cfg.GuildSync.Schedule,
			Concurrency:   cfg.GuildSync.Concurrency,
			RatePerSecond: cfg.GuildSync.RatePerSecond,
		},
		Tracing: tracing.Config{
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRate:  cfg.Tracing.SampleRate,
		},
	}, nil
}

// RequireRegistration checks the settings every registration call needs.
func (r *RuntimeConfig) RequireRegistration() error {
	if strings.TrimSpace(r.Registration.BaseURL) == "" {
		return ErrMissingAPIURL
	}
	return nil
}

// RequireBot checks the settings the gateway bot needs.
func (r *RuntimeConfig) RequireBot() error {
	if err := r.RequireRegistration(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Discord.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

func applyEnv(cfg *config.Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"API_URL", &cfg.Registration.BaseURL},
		{"API_KEY", &cfg.Registration.APIKey},
		{"DISCORD_BOT_TOKEN", &cfg.Discord.Token},
		{"HTTP_ADDR", &cfg.Server.Addr},
		{"ENVIRONMENT", &cfg.Server.Environment},
		{"LOG_LEVEL", &cfg.Log.Level},
	}
	for _, o := range overrides {
		if value := os.Getenv(o.env); value != "" {
			*o.target = value
		}
	}
}

func registrationConfig(cfg config.RegistrationConfig) (registration.Config, error) {
	out := registration.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
	}
	var err error
	if out.LookupTimeout, err = parseDuration("registration.lookup_timeout", cfg.LookupTimeout); err != nil {
		return out, err
	}
	if out.MagicLinkTimeout, err = parseDuration("registration.magic_link_timeout", cfg.MagicLinkTimeout); err != nil {
		return out, err
	}
	if out.GuildPostTimeout, err = parseDuration("registration.guild_post_timeout", cfg.GuildPostTimeout); err != nil {
		return out, err
	}
	if out.CheckTimeout, err = parseDuration("registration.check_timeout", cfg.CheckTimeout); err != nil {
		return out, err
	}
	return out, nil
}

// parseDuration reads a duration setting; empty means zero.
func parseDuration(key, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", key, value)
	}
	return d, nil
}
