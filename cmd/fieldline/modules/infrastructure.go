package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/fieldline/fieldline/internal/boot"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/db"
	dbsqlc "github.com/fieldline/fieldline/internal/db/sqlc"
	"github.com/fieldline/fieldline/internal/logger"
)

// InfraModule provides config, logging and the database.
func InfraModule(configPath string) fx.Option {
	return fx.Module(
		"infra",
		fx.Provide(
			func() (config.Config, error) { return LoadConfig(configPath) },
			provideLogger,
			provideDBConn,
			provideDBQueries,
			boot.ProvideRuntimeConfig,
		),
	)
}

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

// LoadConfig reads path, or CONFIG_PATH when path is empty.
func LoadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}
