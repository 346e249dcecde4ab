package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/accounts"
	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/session"
	"github.com/fieldline/fieldline/internal/visibility"
)

// AccountDirectory loads the account behind a token.
type AccountDirectory interface {
	Get(ctx context.Context, userID string) (accounts.Account, error)
}

// SessionOpener hands out per-user inbox sessions.
type SessionOpener interface {
	Open(ctx context.Context, viewer visibility.Viewer) (*session.Session, error)
	Close(userID string)
}

// sessions resolves the caller's inbox session, opening it on first use.
// The account is read on every request: a deactivated user loses the
// session and a changed role or organization reopens it.
type sessions struct {
	accounts AccountDirectory
	manager  SessionOpener
}

func (r sessions) resolve(c echo.Context) (*session.Session, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if r.manager == nil || r.accounts == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "inbox sessions not configured")
	}
	account, err := r.accounts.Get(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			r.manager.Close(userID)
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "account not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !account.IsActive {
		r.manager.Close(userID)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "user is inactive")
	}
	s, err := r.manager.Open(c.Request().Context(), account.Viewer())
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return s, nil
}

// refParam reads :channel and :id.
func refParam(c echo.Context) (conversation.Ref, error) {
	ch, err := conversation.ParseChannel(strings.TrimSpace(c.Param("channel")))
	if err != nil {
		return conversation.Ref{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return conversation.Ref{}, echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}
	return conversation.Ref{Channel: ch, ID: id}, nil
}

func parseIntOr(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
