package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/id-gotta-bike/gottabike-bot/internal/boot"
	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/tracing"
)

var RegistrationModule = fx.Module(
	"registration",
	fx.Provide(provideRegistrationClient),
)

func provideRegistrationClient(log *slog.Logger, rc *boot.RuntimeConfig, tp *tracing.Provider) (*registration.Client, error) {
	if err := rc.RequireRegistration(); err != nil {
		return nil, err
	}
	log.Info("registration client configured",
		slog.String("base_url", rc.Registration.BaseURL),
		logger.Secret("api_key", rc.Registration.APIKey),
	)
	return registration.NewClient(log, rc.Registration, registration.WithTracer(tp.Tracer())), nil
}
