package modules

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/fieldline/fieldline/internal/accounts"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/ingest"
	"github.com/fieldline/fieldline/internal/organizations"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/smartreply"
	"github.com/fieldline/fieldline/internal/visibility"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		accounts.NewService,
		organizations.NewService,
		provideSMSStore,
		provideEmailStore,
		provideStores,
		providePolicy,
		inbox.NewAggregator,
		fx.Annotate(visibility.NewJobAssignments, fx.As(new(visibility.AssignmentSource))),
		provideSMSProvider,
		provideMailer,
		provideDispatcher,
		provideAssistant,
		provideIngest,
	),
)

// ---------------------------------------------------------------------------
// conversation stores
// ---------------------------------------------------------------------------

func provideSMSStore(log *slog.Logger, pool *pgxpool.Pool) *conversation.SMSStore {
	return conversation.NewSMSStore(log, pool)
}

func provideEmailStore(log *slog.Logger, pool *pgxpool.Pool) *conversation.EmailStore {
	return conversation.NewEmailStore(log, pool)
}

func provideStores(sms *conversation.SMSStore, email *conversation.EmailStore) conversation.Stores {
	return conversation.Stores{SMS: sms, Email: email}
}

func providePolicy(cfg config.Config) visibility.Policy {
	return visibility.Policy{
		RestrictedRoles:   cfg.Inbox.RestrictedRoles,
		ViewAllPermission: cfg.Inbox.ViewAllPermission,
	}
}

// ---------------------------------------------------------------------------
// outbound
// ---------------------------------------------------------------------------

func provideSMSProvider(log *slog.Logger, cfg config.Config) (send.SMSProvider, error) {
	if strings.TrimSpace(cfg.SMS.BaseURL) == "" {
		log.Warn("sms provider not configured; outbound texts are disabled")
		return send.DisabledSMSProvider{}, nil
	}
	p, err := send.NewHTTPSMSProvider(cfg.SMS.BaseURL, cfg.SMS.APIKey, time.Duration(cfg.SMS.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("sms provider: %w", err)
	}
	return p, nil
}

func provideMailer(log *slog.Logger, cfg config.Config) (send.Mailer, error) {
	if strings.TrimSpace(cfg.Email.Host) == "" {
		log.Warn("smtp relay not configured; outbound email is disabled")
		return send.DisabledMailer{}, nil
	}
	m, err := send.NewSMTPMailer(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("smtp mailer: %w", err)
	}
	return m, nil
}

func provideDispatcher(log *slog.Logger, cfg config.Config, stores conversation.Stores, orgs *organizations.Service, sms send.SMSProvider, mailer send.Mailer) *send.Dispatcher {
	sender := send.Sender{Address: cfg.Email.FromAddress, Name: cfg.Email.FromName}
	return send.NewDispatcher(log, stores, orgs, sms, mailer, sender, send.NewLimiter(cfg.Inbox.SendPerMinute))
}

// ---------------------------------------------------------------------------
// smart replies and inbound
// ---------------------------------------------------------------------------

func provideAssistant(log *slog.Logger, cfg config.Config) (smartreply.Assistant, error) {
	if !cfg.AI.Enabled() {
		log.Info("smart replies disabled")
		return smartreply.Disabled{}, nil
	}
	client, err := smartreply.NewClient(log, cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.HistoryLimit, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("smart reply client: %w", err)
	}
	return client, nil
}

func provideIngest(log *slog.Logger, stores conversation.Stores, orgs *organizations.Service, assistant smartreply.Assistant, sms *conversation.SMSStore) *ingest.Service {
	return ingest.NewService(log, stores, orgs, assistant, sms)
}
