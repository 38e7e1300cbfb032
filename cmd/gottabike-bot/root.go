package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/id-gotta-bike/gottabike-bot/cmd/gottabike-bot/modules"
	"github.com/id-gotta-bike/gottabike-bot/internal/boot"
	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/version"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gottabike-bot",
		Short:         "Gotta.Bike Discord bot",
		Long:          `Runs the Gotta.Bike Discord bot and offers one-off registration service commands.`,
		Version:       version.GetInfo(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default: $CONFIG_PATH or config.toml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newLookupCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve slash commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				fx.Supply(modules.ConfigPath(opts.configPath)),
				modules.InfraModule,
				modules.RegistrationModule,
				modules.GuildSyncModule,
				modules.DiscordModule,
				modules.ServerModule,
				fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gottabike-bot %s\n", version.GetInfo())
		},
	}
}

// newClient builds a registration client for one-off commands.
func newClient(opts *rootOptions) (*registration.Client, *boot.RuntimeConfig, error) {
	cfg, err := modules.LoadConfig(modules.ConfigPath(opts.configPath))
	if err != nil {
		return nil, nil, err
	}
	rc, err := boot.ProvideRuntimeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := rc.RequireRegistration(); err != nil {
		return nil, nil, err
	}
	logger.Init(rc.LogLevel, rc.LogFormat)
	return registration.NewClient(logger.L, rc.Registration), rc, nil
}
