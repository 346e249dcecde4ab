package modules

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/fieldline/fieldline/internal/boot"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/organizations"
	"github.com/fieldline/fieldline/internal/realtime"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/session"
	"github.com/fieldline/fieldline/internal/smartreply"
	"github.com/fieldline/fieldline/internal/visibility"
)

// InboxModule wires the change feed and per-user sessions.
var InboxModule = fx.Module(
	"inbox",
	fx.Provide(
		realtime.NewHub,
		provideChangeFeed,
		provideSessionManager,
	),
	fx.Invoke(startChangeFeed, startSessionManager),
)

func provideChangeFeed(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, hub *realtime.Hub) *realtime.PGFeed {
	return realtime.NewPGFeed(log, pool, cfg.Realtime.Channel, hub)
}

type sessionParams struct {
	fx.In

	Logger        *slog.Logger
	Config        config.Config
	RuntimeConfig *boot.RuntimeConfig
	Aggregator    *inbox.Aggregator
	Stores        conversation.Stores
	Dispatcher    *send.Dispatcher
	Assistant     smartreply.Assistant
	Assignments   visibility.AssignmentSource
	Organizations *organizations.Service
	Hub           *realtime.Hub
}

func provideSessionManager(p sessionParams) *session.Manager {
	return session.NewManager(p.Logger, session.Deps{
		Lister:       p.Aggregator,
		Stores:       p.Stores,
		Dispatcher:   p.Dispatcher,
		Assistant:    p.Assistant,
		Assignments:  p.Assignments,
		Businesses:   p.Organizations,
		Limits:       p.Dispatcher,
		Hub:          p.Hub,
		ChangeBuffer: p.Config.Realtime.BufferSize,
	}, p.RuntimeConfig.SessionIdle)
}

func startChangeFeed(lc fx.Lifecycle, feed *realtime.PGFeed) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			feed.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return feed.Stop(ctx)
		},
	})
}

func startSessionManager(lc fx.Lifecycle, manager *session.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop(ctx)
		},
	})
}
