// Package boot turns loaded configuration into runtime settings.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal/config"
)

// RuntimeConfig holds parsed runtime settings (JWT, listen address, webhook secret).
// Values may be overridden by environment variables (HTTP_ADDR, JWT_SECRET, WEBHOOK_SECRET).
type RuntimeConfig struct {
	JwtSecret      string
	JwtExpiresIn   time.Duration
	ServerAddr     string
	WebhookSecret  string
	AllowedOrigins []string
	SessionIdle    time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	ret := &RuntimeConfig{
		JwtSecret:      cfg.Auth.JWTSecret,
		ServerAddr:     cfg.Server.Addr,
		WebhookSecret:  cfg.Webhook.Secret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SessionIdle:    cfg.Inbox.SessionIdleTimeout(),
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	if value := os.Getenv("JWT_SECRET"); value != "" {
		ret.JwtSecret = value
	}
	if value := os.Getenv("WEBHOOK_SECRET"); value != "" {
		ret.WebhookSecret = value
	}

	if strings.TrimSpace(ret.JwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	jwtExpiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}
	if jwtExpiresIn <= 0 {
		return nil, errors.New("jwt expires in must be positive")
	}
	ret.JwtExpiresIn = jwtExpiresIn
	return ret, nil
}
