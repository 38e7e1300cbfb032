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

var DiscordModule = fx.Module(
	"discord",
	fx.Provide(
		provideDiscordHandler,
		provideBot,
	),
	fx.Invoke(startBot),
)

func provideDiscordHandler(log *slog.Logger, rc *boot.RuntimeConfig, client *registration.Client, guilds *guildsync.Service) *discord.Handler {
	return discord.NewHandler(log, rc.Discord, client, guilds)
}

func provideBot(log *slog.Logger, rc *boot.RuntimeConfig, h *discord.Handler) (*discord.Bot, error) {
	if err := rc.RequireBot(); err != nil {
		return nil, err
	}
	return discord.NewBot(log, rc.Discord, h)
}

func startBot(lc fx.Lifecycle, bot *discord.Bot) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bot.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return bot.Stop(ctx)
		},
	})
}
