package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/id-gotta-bike/gottabike-bot/internal/boot"
	"github.com/id-gotta-bike/gottabike-bot/internal/handlers"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/server"
	"github.com/id-gotta-bike/gottabike-bot/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		annotateHandler(handlers.NewPingHandler),
		annotateHandler(provideStatusHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

// annotateHandler wraps a handler provider function with fx.Annotate
// to register it as a server.Handler with the correct group tag
func annotateHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideStatusHandler(log *slog.Logger, client *registration.Client, rc *boot.RuntimeConfig) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, client, rc.Environment)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	logger.Info("starting gottabike bot", slog.String("version", version.GetInfo()))

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
