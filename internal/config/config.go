// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "fieldline"
	DefaultPGSSLMode         = "disable"
	DefaultRealtimeChannel   = "fieldline_changes"
	DefaultRealtimeBuffer    = 256
	DefaultSMTPPort          = 587
	DefaultAIBaseURL         = "https://api.openai.com/v1"
	DefaultAIModel           = "gpt-4o-mini"
	DefaultAIHistory         = 10
	DefaultPageSize          = 50
	DefaultSessionIdle       = "30m"
	DefaultSendPerMinute     = 30
	DefaultRestrictedRole    = "technician"
	DefaultViewAllPermission = "view_all_messages"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Realtime RealtimeConfig `toml:"realtime"`
	SMS      SMSConfig      `toml:"sms"`
	Email    EmailConfig    `toml:"email"`
	AI       AIConfig       `toml:"ai"`
	Inbox    InboxConfig    `toml:"inbox"`
	Webhook  WebhookConfig  `toml:"webhook"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address and the origins allowed
// to open inbox websockets.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AdminConfig holds the bootstrap organization and admin account created on
// an empty database. PhoneNumber and InboundEmail become the organization's
// business identities when set.
type AdminConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	Email        string `toml:"email"`
	Organization string `toml:"organization"`
	BusinessName string `toml:"business_name"`
	PhoneNumber  string `toml:"phone_number"`
	InboundEmail string `toml:"inbound_email"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RealtimeConfig configures the Postgres LISTEN/NOTIFY change feed.
type RealtimeConfig struct {
	Channel    string `toml:"channel"`
	BufferSize int    `toml:"buffer_size"`
}

// SMSConfig points at the HTTP messaging provider used to deliver texts.
type SMSConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EmailConfig holds the SMTP relay and the implicit service sender.
type EmailConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	FromAddress string `toml:"from_address"`
	FromName    string `toml:"from_name"`
	TLS         string `toml:"tls"`
}

// AIConfig configures the OpenAI-compatible completion endpoint used for smart replies.
type AIConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	HistoryLimit   int    `toml:"history_limit"`
}

// Enabled reports whether smart replies can be generated.
func (c AIConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.Model != ""
}

// InboxConfig tunes per-user inbox sessions.
type InboxConfig struct {
	PageSize          int      `toml:"page_size"`
	SessionIdle       string   `toml:"session_idle"`
	SendPerMinute     int      `toml:"send_per_minute"`
	RestrictedRoles   []string `toml:"restricted_roles"`
	ViewAllPermission string   `toml:"view_all_permission"`
}

// SessionIdleTimeout parses SessionIdle, falling back to the default on bad input.
func (c InboxConfig) SessionIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionIdle)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSessionIdle)
	}
	return d
}

// WebhookConfig holds the shared secret inbound provider webhooks must present.
type WebhookConfig struct {
	Secret string `toml:"secret"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username:     "admin",
			Password:     "change-your-password-here",
			Email:        "you@example.com",
			Organization: "My Company",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Realtime: RealtimeConfig{
			Channel:    DefaultRealtimeChannel,
			BufferSize: DefaultRealtimeBuffer,
		},
		SMS: SMSConfig{
			TimeoutSeconds: 15,
		},
		Email: EmailConfig{
			Port: DefaultSMTPPort,
			TLS:  "mandatory",
		},
		AI: AIConfig{
			BaseURL:        DefaultAIBaseURL,
			Model:          DefaultAIModel,
			TimeoutSeconds: 30,
			HistoryLimit:   DefaultAIHistory,
		},
		Inbox: InboxConfig{
			PageSize:          DefaultPageSize,
			SessionIdle:       DefaultSessionIdle,
			SendPerMinute:     DefaultSendPerMinute,
			RestrictedRoles:   []string{DefaultRestrictedRole},
			ViewAllPermission: DefaultViewAllPermission,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
