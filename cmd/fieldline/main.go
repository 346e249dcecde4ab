package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/fieldline/fieldline/cmd/fieldline/modules"
	dbembed "github.com/fieldline/fieldline/db"
	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/logger"
	"github.com/fieldline/fieldline/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fieldline",
		Short:         "Unified SMS and email inbox for field service teams",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (defaults to $CONFIG_PATH or ./config.toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the inbox API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app := newApp(configPath)
				if err := app.Err(); err != nil {
					return err
				}
				app.Run()
				return nil
			},
		},
		&cobra.Command{
			Use:       "migrate [up|down|version|force N]",
			Short:     "Apply or roll back the database schema",
			Args:      cobra.RangeArgs(1, 2),
			ValidArgs: []string{"up", "down", "version", "force"},
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := modules.LoadConfig(configPath)
				if err != nil {
					return err
				}
				logger.Init(cfg.Log.Level, cfg.Log.Format)
				return db.RunMigrate(logger.L, cfg.Postgres, dbembed.MigrationsFS(), args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("Fieldline %s\n", version.GetInfo())
			},
		},
	)
	return root
}

func newApp(configPath string) *fx.App {
	return fx.New(
		modules.InfraModule(configPath),
		modules.DomainModule,
		modules.InboxModule,
		modules.HandlersModule,
		modules.ServerModule,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}
