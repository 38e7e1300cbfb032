package modules

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/id-gotta-bike/gottabike-bot/internal/boot"
	"github.com/id-gotta-bike/gottabike-bot/internal/discord"
	"github.com/id-gotta-bike/gottabike-bot/internal/guildsync"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

var GuildSyncModule = fx.Module(
	"guildsync",
	fx.Provide(
		provideGuildSyncService,
		provideGuildSyncScheduler,
	),
	fx.Invoke(startGuildSync),
)

func provideGuildSyncService(log *slog.Logger, rc *boot.RuntimeConfig, client *registration.Client) *guildsync.Service {
	return guildsync.NewService(log, rc.GuildSync, client)
}

func provideGuildSyncScheduler(log *slog.Logger, rc *boot.RuntimeConfig, service *guildsync.Service, bot *discord.Bot) (*guildsync.Scheduler, error) {
	s := guildsync.NewScheduler(log, rc.GuildSync, service, bot)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func startGuildSync(lc fx.Lifecycle, scheduler *guildsync.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
