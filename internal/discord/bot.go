package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/id-gotta-bike/gottabike-bot/internal/guildsync"
	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
)

// ErrMissingToken is returned by NewBot without a bot token.
var ErrMissingToken = errors.New("discord bot token is required")

// Bot owns the gateway session and routes its events to a Handler.
type Bot struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session
	handler *Handler

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	removers []func()
}

// NewBot creates the session; it does not connect.
func NewBot(log *slog.Logger, cfg Config, handler *Handler) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	session.StateEnabled = true
	return &Bot{
		cfg:     cfg,
		logger:  log.With(slog.String("component", "discord_bot")),
		session: session,
		handler: handler,
	}, nil
}

// Start registers event handlers and opens the gateway connection. ctx bounds
// the handlers, not the connection.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	b.removers = append(b.removers,
		b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			b.handler.OnReady(r)
			b.registerCommands(s, r)
		}),
		b.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
			b.handler.OnGuildCreate(b.ctx, s.State, g.Guild)
		}),
		b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
			b.handler.OnMemberJoin(s, m.Member)
		}),
		b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			b.handler.OnInteraction(b.ctx, s, s.State, i)
		}),
	)

	b.logger.Info("connecting to discord", logger.Secret("token", b.cfg.Token))
	if err := b.session.Open(); err != nil {
		b.cancel()
		b.cancel = nil
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection and cancels in-flight handlers.
func (b *Bot) Stop(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.logger.Info("disconnecting from discord")
	return b.session.Close()
}

func (b *Bot) registerCommands(s *discordgo.Session, r *discordgo.Ready) {
	appID := ""
	if r.Application != nil {
		appID = r.Application.ID
	}
	if appID == "" && r.User != nil {
		appID = r.User.ID
	}
	cmds, err := s.ApplicationCommandBulkOverwrite(appID, b.cfg.CommandGuildID, Commands())
	if err != nil {
		b.logger.Error("sync commands failed", slog.Any("error", err))
		return
	}
	b.logger.Info("commands synced", slog.Int("count", len(cmds)), slog.String("guild_id", b.cfg.CommandGuildID))
}

// Guilds returns snapshots of the available guilds in the gateway cache.
func (b *Bot) Guilds() []*discordgo.Guild {
	state := b.session.State
	state.RLock()
	defer state.RUnlock()
	out := make([]*discordgo.Guild, 0, len(state.Guilds))
	for _, g := range state.Guilds {
		if g != nil && !g.Unavailable {
			out = append(out, guildsync.Snapshot(g))
		}
	}
	return out
}

// OwnerName resolves the guild owner's username from the cache.
func (b *Bot) OwnerName(g *discordgo.Guild) string {
	return ownerName(b.session.State, g)
}
