// Package accounts provides staff accounts and credential checks.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

// Errors returned by account operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrNotFound           = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already exists")
)

// Service provides account management backed by the users table.
type Service struct {
	queries *sqlc.Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries *sqlc.Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "accounts")),
	}
}

// Get returns an account by user id.
func (s *Service) Get(ctx context.Context, userID string) (Account, error) {
	if s.queries == nil {
		return Account{}, errors.New("account queries not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Account{}, err
	}
	row, err := s.queries.GetUserByID(ctx, pgID)
	if err != nil {
		if db.IsNotFound(err) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return toAccount(row), nil
}

// Login authenticates by username and password.
func (s *Service) Login(ctx context.Context, username, password string) (Account, error) {
	if s.queries == nil {
		return Account{}, errors.New("account queries not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidCredentials
	}
	row, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if db.IsNotFound(err) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if !row.IsActive {
		return Account{}, ErrInactiveAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if err := s.queries.UpdateUserLastLogin(ctx, row.ID); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	}
	return toAccount(row), nil
}

// Create adds an active account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, req CreateAccountRequest) (Account, error) {
	if s.queries == nil {
		return Account{}, errors.New("account queries not configured")
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return Account{}, errors.New("username is required")
	}
	if strings.TrimSpace(req.Password) == "" {
		return Account{}, errors.New("password is required")
	}
	orgID, err := db.ParseUUID(req.OrganizationID)
	if err != nil {
		return Account{}, fmt.Errorf("organization id: %w", err)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = RoleOffice
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	permissions := req.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	row, err := s.queries.CreateUser(ctx, sqlc.CreateUserParams{
		OrganizationID: orgID,
		Username:       username,
		Email:          db.Text(strings.TrimSpace(req.Email)),
		PasswordHash:   string(hashed),
		DisplayName:    db.Text(displayName),
		Role:           role,
		Permissions:    permissions,
		IsActive:       true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrUsernameTaken
		}
		return Account{}, err
	}
	return toAccount(row), nil
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.queries == nil {
		return 0, errors.New("account queries not configured")
	}
	return s.queries.CountUsers(ctx)
}

func toAccount(row sqlc.User) Account {
	perms := row.Permissions
	if perms == nil {
		perms = []string{}
	}
	return Account{
		ID:             db.UUIDToString(row.ID),
		OrganizationID: db.UUIDToString(row.OrganizationID),
		Username:       row.Username,
		Email:          db.TextToString(row.Email),
		DisplayName:    db.TextToString(row.DisplayName),
		Role:           row.Role,
		Permissions:    perms,
		IsActive:       row.IsActive,
		CreatedAt:      db.TimeFromPg(row.CreatedAt),
		LastLoginAt:    db.TimeFromPg(row.LastLoginAt),
	}
}
