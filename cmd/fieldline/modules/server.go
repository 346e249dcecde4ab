package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.uber.org/fx"

	"github.com/fieldline/fieldline/internal/accounts"
	"github.com/fieldline/fieldline/internal/boot"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/organizations"
	"github.com/fieldline/fieldline/internal/server"
	"github.com/fieldline/fieldline/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServer,
	),
	fx.Invoke(startServer),
)

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.RuntimeConfig.JwtSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountService *accounts.Service, orgService *organizations.Service) {
	fmt.Printf("Starting Fieldline %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ensureAdminUser(ctx, logger, accountService, orgService, cfg.Admin); err != nil {
				return err
			}
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

// AdminBootstrap is what ensureAdminUser needs from the account and
// organization services.
type AdminBootstrap interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, req accounts.CreateAccountRequest) (accounts.Account, error)
}

// OrganizationBootstrap creates the first organization.
type OrganizationBootstrap interface {
	Create(ctx context.Context, name, businessName, inboundEmail string) (organizations.Organization, error)
	SetPhoneNumber(ctx context.Context, organizationID, number string, primary bool) error
}

// ensureAdminUser creates the first organization and its admin when no
// account exists yet.
func ensureAdminUser(ctx context.Context, log *slog.Logger, accountService AdminBootstrap, orgService OrganizationBootstrap, admin config.AdminConfig) error {
	count, err := accountService.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := strings.TrimSpace(admin.Username)
	password := strings.TrimSpace(admin.Password)
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password required in config.toml")
	}
	if password == "change-your-password-here" {
		log.Warn("admin password uses default placeholder; please update config.toml")
	}
	orgName := strings.TrimSpace(admin.Organization)
	if orgName == "" {
		return fmt.Errorf("admin organization required in config.toml")
	}

	org, err := orgService.Create(ctx, orgName, admin.BusinessName, admin.InboundEmail)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	if raw := strings.TrimSpace(admin.PhoneNumber); raw != "" {
		number := conversation.NormalizePhone(raw)
		if number == "" {
			return fmt.Errorf("admin phone_number %q is not a phone number", raw)
		}
		if err := orgService.SetPhoneNumber(ctx, org.ID, number, true); err != nil {
			return fmt.Errorf("set phone number: %w", err)
		}
	}

	_, err = accountService.Create(ctx, accounts.CreateAccountRequest{
		OrganizationID: org.ID,
		Username:       username,
		Password:       password,
		Email:          strings.TrimSpace(admin.Email),
		Role:           accounts.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	log.Info("Admin user created", slog.String("username", username), slog.String("organization_id", org.ID))
	return nil
}
