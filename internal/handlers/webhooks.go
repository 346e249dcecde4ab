package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/ingest"
)

const (
	webhookSecretHeader = "X-Webhook-Secret"
	maxEmailBytes       = 25 << 20
)

// Ingestor records inbound provider deliveries.
type Ingestor interface {
	ReceiveSMS(ctx context.Context, in ingest.InboundSMS) (conversation.Message, error)
	ReceiveEmail(ctx context.Context, in ingest.InboundEmail) (conversation.Message, error)
}

// WebhookHandler accepts inbound SMS and email from providers. Requests
// authenticate with a shared secret instead of a user token.
type WebhookHandler struct {
	ingest Ingestor
	secret string
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, ingestor Ingestor, secret string) *WebhookHandler {
	return &WebhookHandler{
		ingest: ingestor,
		secret: strings.TrimSpace(secret),
		logger: log.With(slog.String("handler", "webhooks")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	group := e.Group("/webhooks", h.requireSecret)
	group.POST("/sms", h.SMS)
	group.POST("/email", h.Email)
}

func (h *WebhookHandler) requireSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.secret == "" {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "webhooks not configured")
		}
		got := c.Request().Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
		}
		return next(c)
	}
}

// WebhookResponse acknowledges a stored message.
type WebhookResponse struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// SMS godoc
// @Summary Inbound SMS
// @Tags webhooks
// @Param X-Webhook-Secret header string true "Shared secret"
// @Param payload body ingest.InboundSMS true "Inbound text"
// @Success 201 {object} WebhookResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/sms [post]
func (h *WebhookHandler) SMS(c echo.Context) error {
	var req ingest.InboundSMS
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.ingest.ReceiveSMS(c.Request().Context(), req)
	if err != nil {
		return h.ingestError(err)
	}
	return c.JSON(http.StatusCreated, WebhookResponse{MessageID: msg.ID, ConversationID: msg.ConversationID})
}

// Email godoc
// @Summary Inbound email
// @Description Accepts a raw RFC 5322 message as the body, or in the body-mime form field
// @Tags webhooks
// @Param X-Webhook-Secret header string true "Shared secret"
// @Success 201 {object} WebhookResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/email [post]
func (h *WebhookHandler) Email(c echo.Context) error {
	var src io.Reader
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		raw := c.FormValue("body-mime")
		if raw == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "body-mime is required")
		}
		src = strings.NewReader(raw)
	} else {
		src = io.LimitReader(c.Request().Body, maxEmailBytes)
	}

	parsed, err := ingest.ParseEmail(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.ingest.ReceiveEmail(c.Request().Context(), parsed)
	if err != nil {
		return h.ingestError(err)
	}
	return c.JSON(http.StatusCreated, WebhookResponse{MessageID: msg.ID, ConversationID: msg.ConversationID})
}

func (h *WebhookHandler) ingestError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrUnknownRecipient):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	h.logger.Error("ingest failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
}
