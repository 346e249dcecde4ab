package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/session"
	"github.com/fieldline/fieldline/internal/smartreply"
)

// InboxHandler drives the caller's inbox session.
type InboxHandler struct {
	sessions sessions
	pageSize int
	logger   *slog.Logger
}

func NewInboxHandler(log *slog.Logger, accounts AccountDirectory, manager SessionOpener, pageSize int) *InboxHandler {
	if pageSize <= 0 {
		pageSize = inbox.DefaultLimit
	}
	return &InboxHandler{
		sessions: sessions{accounts: accounts, manager: manager},
		pageSize: pageSize,
		logger:   log.With(slog.String("handler", "inbox")),
	}
}

func (h *InboxHandler) Register(e *echo.Echo) {
	group := e.Group("/inbox")
	group.GET("", h.State)
	group.GET("/conversations", h.List)
	group.GET("/counts", h.Counts)
	group.POST("/conversations/:channel/:id/select", h.Select)
	group.POST("/conversations/:channel/:id/archive", h.Archive)
	group.POST("/conversations/:channel/:id/star", h.Star)
	group.DELETE("/active", h.Deselect)
	group.GET("/active/messages", h.ActiveMessages)
	group.PUT("/draft", h.SetDraft)
	group.POST("/send", h.Send)
	group.POST("/smart-replies", h.SmartReplies)
	group.POST("/intent", h.ClassifyIntent)
	group.DELETE("/session", h.CloseSession)
}

// ConversationListResponse is the body of GET /inbox/conversations.
type ConversationListResponse struct {
	Items         []conversation.Conversation     `json:"items"`
	ChannelErrors map[conversation.Channel]string `json:"channel_errors,omitempty"`
}

// ActiveThreadResponse is the open thread.
type ActiveThreadResponse struct {
	Active   *conversation.Ref      `json:"active,omitempty"`
	State    session.State          `json:"state"`
	Messages []conversation.Message `json:"messages"`
}

// FlagRequest sets a boolean conversation flag.
type FlagRequest struct {
	Value bool `json:"value"`
}

// DraftRequest replaces the reply draft.
type DraftRequest struct {
	Text string `json:"text"`
}

// SmartReplyRequest asks for suggestions on the open thread.
type SmartReplyRequest struct {
	Tone string `json:"tone"`
}

// SmartReplyResponse wraps the ranked suggestions.
type SmartReplyResponse struct {
	Items []smartreply.Suggestion `json:"items"`
}

// IntentRequest is text to classify.
type IntentRequest struct {
	Text string `json:"text"`
}

// State godoc
// @Summary Inbox state
// @Description Snapshot of the caller's inbox session
// @Tags inbox
// @Success 200 {object} session.Snapshot
// @Failure 401 {object} ErrorResponse
// @Router /inbox [get]
func (h *InboxHandler) State(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// List godoc
// @Summary List conversations
// @Description Unified SMS and email conversations visible to the caller, newest first
// @Tags inbox
// @Param category query string false "all, unread, sms, email, starred or archived"
// @Param q query string false "Search by name, contact, subject or preview"
// @Param limit query int false "Max items" default(50)
// @Success 200 {object} ConversationListResponse
// @Failure 502 {object} ErrorResponse
// @Router /inbox/conversations [get]
func (h *InboxHandler) List(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	q := inbox.Query{
		Category: conversation.ParseCategory(c.QueryParam("category")),
		Search:   strings.TrimSpace(c.QueryParam("q")),
		Limit:    parseIntOr(c.QueryParam("limit"), h.pageSize),
	}
	if err := s.Refresh(c.Request().Context(), q); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "could not load conversations")
	}
	snap := s.Snapshot()
	return c.JSON(http.StatusOK, ConversationListResponse{
		Items:         snap.Conversations,
		ChannelErrors: snap.ChannelErrors,
	})
}

// Counts godoc
// @Summary Badge counts
// @Description Totals, unread and needs-reply counts per channel
// @Tags inbox
// @Success 200 {object} inbox.Counts
// @Failure 502 {object} ErrorResponse
// @Router /inbox/counts [get]
func (h *InboxHandler) Counts(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	counts, err := s.RefreshCounts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "could not load counts")
	}
	return c.JSON(http.StatusOK, counts)
}

// Select godoc
// @Summary Open a conversation
// @Description Loads the thread and marks the conversation read
// @Tags inbox
// @Param channel path string true "sms or email"
// @Param id path string true "Conversation ID"
// @Success 200 {object} ActiveThreadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /inbox/conversations/{channel}/{id}/select [post]
func (h *InboxHandler) Select(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	ref, err := refParam(c)
	if err != nil {
		return err
	}
	if err := s.Select(c.Request().Context(), ref); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, threadResponse(s.Snapshot()))
}

// Deselect godoc
// @Summary Close the open conversation
// @Tags inbox
// @Success 204 "No Content"
// @Router /inbox/active [delete]
func (h *InboxHandler) Deselect(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	s.Deselect()
	return c.NoContent(http.StatusNoContent)
}

// ActiveMessages godoc
// @Summary Messages of the open conversation
// @Tags inbox
// @Success 200 {object} ActiveThreadResponse
// @Router /inbox/active/messages [get]
func (h *InboxHandler) ActiveMessages(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, threadResponse(s.Snapshot()))
}

func threadResponse(snap session.Snapshot) ActiveThreadResponse {
	return ActiveThreadResponse{Active: snap.Active, State: snap.State, Messages: snap.Messages}
}

// Archive godoc
// @Summary Archive or unarchive a conversation
// @Tags inbox
// @Param channel path string true "sms or email"
// @Param id path string true "Conversation ID"
// @Param payload body FlagRequest true "Archived flag"
// @Success 200 {object} conversation.Conversation
// @Failure 404 {object} ErrorResponse
// @Router /inbox/conversations/{channel}/{id}/archive [post]
func (h *InboxHandler) Archive(c echo.Context) error {
	return h.flag(c, (*session.Session).Archive)
}

// Star godoc
// @Summary Star or unstar a conversation
// @Description Only email conversations can be starred
// @Tags inbox
// @Param channel path string true "sms or email"
// @Param id path string true "Conversation ID"
// @Param payload body FlagRequest true "Starred flag"
// @Success 200 {object} conversation.Conversation
// @Failure 422 {object} ErrorResponse
// @Router /inbox/conversations/{channel}/{id}/star [post]
func (h *InboxHandler) Star(c echo.Context) error {
	return h.flag(c, (*session.Session).Star)
}

type flagFunc func(*session.Session, context.Context, conversation.Ref, bool) (conversation.Conversation, error)

func (h *InboxHandler) flag(c echo.Context, fn flagFunc) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	ref, err := refParam(c)
	if err != nil {
		return err
	}
	var req FlagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conv, err := fn(s, c.Request().Context(), ref, req.Value)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// SetDraft godoc
// @Summary Save the reply draft
// @Tags inbox
// @Param payload body DraftRequest true "Draft"
// @Success 204 "No Content"
// @Router /inbox/draft [put]
func (h *InboxHandler) SetDraft(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	var req DraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.SetDraft(req.Text)
	return c.NoContent(http.StatusNoContent)
}

// Send godoc
// @Summary Send a reply
// @Description Sends on the open conversation's channel; an empty body sends the draft
// @Tags inbox
// @Param payload body session.SendInput true "Reply"
// @Success 201 {object} send.Result
// @Success 202 {object} ErrorResponse "Delivered but not yet recorded"
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /inbox/send [post]
func (h *InboxHandler) Send(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	var req session.SendInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.Send(c.Request().Context(), req)
	if errors.Is(err, send.ErrNotRecorded) {
		return c.JSON(http.StatusAccepted, ErrorResponse{Message: "message sent, but it is not shown yet"})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// SmartReplies godoc
// @Summary Suggest replies
// @Tags inbox
// @Param payload body SmartReplyRequest false "Tone"
// @Success 200 {object} SmartReplyResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /inbox/smart-replies [post]
func (h *InboxHandler) SmartReplies(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	var req SmartReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := s.GenerateReplies(c.Request().Context(), smartreply.ParseTone(req.Tone))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []smartreply.Suggestion{}
	}
	return c.JSON(http.StatusOK, SmartReplyResponse{Items: items})
}

// ClassifyIntent godoc
// @Summary Classify message intent
// @Tags inbox
// @Param payload body IntentRequest true "Text"
// @Success 200 {object} smartreply.Intent
// @Failure 503 {object} ErrorResponse
// @Router /inbox/intent [post]
func (h *InboxHandler) ClassifyIntent(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	var req IntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	intent, err := s.ClassifyIntent(c.Request().Context(), req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, intent)
}

// CloseSession godoc
// @Summary End the inbox session
// @Description Stops realtime sync and closes event streams
// @Tags inbox
// @Success 204 "No Content"
// @Router /inbox/session [delete]
func (h *InboxHandler) CloseSession(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	h.sessions.manager.Close(userID)
	return c.NoContent(http.StatusNoContent)
}
