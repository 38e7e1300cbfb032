package discord

import "time"

// Defaults for Config.
const (
	DefaultWelcomeMessage     = "Welcome to the server!"
	DefaultHelpURL            = "https://app-dev.gotta.bike/discord/discord_help/"
	DefaultSourceURL          = "https://github.com/id-gotta-bike/discord-gotta-bike"
	DefaultInteractionTimeout = 14 * time.Minute
)

// Config holds bot settings.
type Config struct {
	Token string
	// CommandGuildID registers commands on one guild only, for development.
	CommandGuildID     string
	WelcomeMessage     string
	HelpURL            string
	SourceURL          string
	ContactURL         string
	Environment        string
	InteractionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HelpURL == "" {
		c.HelpURL = DefaultHelpURL
	}
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.InteractionTimeout <= 0 {
		c.InteractionTimeout = DefaultInteractionTimeout
	}
	return c
}
