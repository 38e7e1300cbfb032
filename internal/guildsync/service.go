package guildsync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

// Defaults for Config.
const (
	DefaultSchedule    = "@every 12h"
	DefaultConcurrency = 4
	DefaultRate        = 2.0
)

// Config controls the periodic refresh.
type Config struct {
	// Schedule is a cron expression or descriptor; empty disables the refresh.
	Schedule    string
	Concurrency int
	// RatePerSecond caps guild posts across a batch.
	RatePerSecond float64
}

// Poster posts guild updates; *registration.Client satisfies it.
type Poster interface {
	PostGuildUpdate(ctx context.Context, update registration.GuildUpdate) registration.GuildUpdateResult
}

// GuildSource lists the guilds the bot is in. Guilds returns snapshots
// detached from the gateway cache.
type GuildSource interface {
	Guilds() []*discordgo.Guild
	OwnerName(g *discordgo.Guild) string
}

// Summary counts the outcomes of a SyncAll batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Service builds and posts guild updates.
type Service struct {
	poster      Poster
	logger      *slog.Logger
	limiter     *rate.Limiter
	concurrency int
}

// NewService creates a service. Zero config values take the defaults.
func NewService(log *slog.Logger, cfg Config, poster Poster) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRate
	}
	return &Service{
		poster:      poster,
		logger:      log.With(slog.String("service", "guildsync")),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		concurrency: cfg.Concurrency,
	}
}

// Join reports a newly joined guild.
func (s *Service) Join(ctx context.Context, g *discordgo.Guild, ownerName string) registration.GuildUpdateResult {
	return s.post(ctx, g, registration.GuildJoin, ownerName)
}

// SyncAll posts an UPDATE for every guild in source. A failed guild is
// logged and counted; it never stops the batch.
func (s *Service) SyncAll(ctx context.Context, source GuildSource) Summary {
	guilds := source.Guilds()
	var ok, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, guild := range guilds {
		if guild == nil {
			continue
		}
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				s.logger.Warn("guild update skipped", slog.String("guild_id", guild.ID), slog.Any("error", err))
				failed.Add(1)
				return nil
			}
			res := s.post(gctx, guild, registration.GuildUpdateStatusUpdate, source.OwnerName(guild))
			if res.OK() {
				ok.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Total: int(ok.Load() + failed.Load()), Succeeded: int(ok.Load()), Failed: int(failed.Load())}
	s.logger.Info("guild sync finished",
		slog.Int("total", sum.Total),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
	)
	return sum
}

func (s *Service) post(ctx context.Context, g *discordgo.Guild, status registration.GuildUpdateStatus, ownerName string) registration.GuildUpdateResult {
	log := s.logger.With(slog.String("guild_id", g.ID), slog.String("status", string(status)))
	res := s.poster.PostGuildUpdate(logger.WithContext(ctx, log), BuildUpdate(g, status, ownerName))
	if !res.OK() {
		log.Error("guild update failed",
			slog.Int("status_code", res.StatusCode),
			slog.String("status_message", res.StatusMessage),
			slog.Any("error", res.Cause),
		)
		return res
	}
	created, clubCreated := false, false
	if res.Response != nil {
		created, clubCreated = res.Response.GuildCreated, res.Response.ClubCreated
	}
	log.Info("guild update posted",
		slog.String("guild_name", g.Name),
		slog.Bool("guild_created", created),
		slog.Bool("club_created", clubCreated),
	)
	return res
}
