package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/fieldline/fieldline/docs"
	"github.com/fieldline/fieldline/internal/accounts"
	"github.com/fieldline/fieldline/internal/boot"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/handlers"
	"github.com/fieldline/fieldline/internal/ingest"
	"github.com/fieldline/fieldline/internal/server"
	"github.com/fieldline/fieldline/internal/session"
)

var HandlersModule = fx.Module(
	"handlers",
	fx.Provide(
		annotateHandler(provideAuthHandler),
		annotateHandler(provideInboxHandler),
		annotateHandler(provideEventsHandler),
		annotateHandler(provideWebhookHandler),

		annotateHandler(handlers.NewPingHandler),
		annotateHandler(provideSwaggerHandler),
	),
)

// annotateHandler registers a provider's result as a server.Handler in the
// server_handlers group.
func annotateHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideAuthHandler(log *slog.Logger, accountService *accounts.Service, rc *boot.RuntimeConfig) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, accountService, rc.JwtSecret, rc.JwtExpiresIn)
}

func provideInboxHandler(log *slog.Logger, accountService *accounts.Service, manager *session.Manager, cfg config.Config) *handlers.InboxHandler {
	return handlers.NewInboxHandler(log, accountService, manager, cfg.Inbox.PageSize)
}

func provideEventsHandler(log *slog.Logger, accountService *accounts.Service, manager *session.Manager, rc *boot.RuntimeConfig) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, accountService, manager, rc.AllowedOrigins)
}

func provideWebhookHandler(log *slog.Logger, ingestService *ingest.Service, rc *boot.RuntimeConfig) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, ingestService, rc.WebhookSecret)
}

func provideSwaggerHandler(log *slog.Logger) *handlers.SwaggerHandler {
	return handlers.NewSwaggerHandler(log, docs.SwaggerJSON())
}
