package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/fieldline/fieldline/internal/session"
)

const (
	heartbeatInterval = 20 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

// EventsHandler streams session events over SSE and websocket.
type EventsHandler struct {
	sessions       sessions
	allowedOrigins []string
	logger         *slog.Logger
}

func NewEventsHandler(log *slog.Logger, accounts AccountDirectory, manager SessionOpener, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		sessions:       sessions{accounts: accounts, manager: manager},
		allowedOrigins: allowedOrigins,
		logger:         log.With(slog.String("handler", "events")),
	}
}

func (h *EventsHandler) Register(e *echo.Echo) {
	e.GET("/inbox/events", h.Stream)
	e.GET("/inbox/ws", h.Socket)
}

func writeSSEData(writer *bufio.Writer, flusher http.Flusher, payload string) error {
	if _, err := writer.WriteString(fmt.Sprintf("data: %s\n\n", payload)); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEJSON(writer *bufio.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writeSSEData(writer, flusher, string(data))
}

func snapshotEvent(s *session.Session) session.Event {
	snap := s.Snapshot()
	return session.Event{Type: session.EventSnapshot, Snapshot: &snap}
}

// Stream godoc
// @Summary Inbox event stream
// @Description Server-sent events: an initial snapshot, then snapshot, notice and inbound events
// @Tags inbox
// @Produce text/event-stream
// @Success 200 {object} session.Event
// @Failure 401 {object} ErrorResponse
// @Router /inbox/events [get]
func (h *EventsHandler) Stream(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	writer := bufio.NewWriter(c.Response().Writer)

	events, cancel := s.Subscribe()
	defer cancel()

	if err := writeSSEJSON(writer, flusher, snapshotEvent(s)); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ping"}); err != nil {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSEJSON(writer, flusher, ev); err != nil {
				return nil
			}
		}
	}
}

// Socket godoc
// @Summary Inbox websocket
// @Description Same events as /inbox/events over a websocket; pass the token as ?token=
// @Tags inbox
// @Success 101 "Switching Protocols"
// @Failure 401 {object} ErrorResponse
// @Router /inbox/ws [get]
func (h *EventsHandler) Socket(c echo.Context) error {
	s, err := h.sessions.resolve(c)
	if err != nil {
		return err
	}
	conn, err := websocket.Accept(c.Response().Writer, c.Request(), &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.Any("error", err))
		return nil
	}
	defer conn.CloseNow()

	events, cancel := s.Subscribe()
	defer cancel()

	// Clients never send; CloseRead handles control frames and ends ctx on close.
	ctx := conn.CloseRead(c.Request().Context())

	if err := h.writeEvent(ctx, conn, snapshotEvent(s)); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			pingCtx, done := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			done()
			if err != nil {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return nil
			}
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				return nil
			}
		}
	}
}

func (h *EventsHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev session.Event) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
