package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/session"
	"github.com/fieldline/fieldline/internal/smartreply"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// httpError maps domain errors to API statuses.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrUnknownChannel),
		errors.Is(err, conversation.ErrInvalidID),
		errors.Is(err, session.ErrInvalidRef),
		errors.Is(err, send.ErrEmptyBody):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrUnsupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoActiveConversation):
		status = http.StatusConflict
	case errors.Is(err, send.ErrNoPrimaryNumber), errors.Is(err, send.ErrNoSender):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, send.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, send.ErrSendFailed):
		status = http.StatusBadGateway
	case errors.Is(err, smartreply.ErrDisabled), errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, smartreply.ErrNoMessages):
		status = http.StatusUnprocessableEntity
	}
	return echo.NewHTTPError(status, err.Error())
}
