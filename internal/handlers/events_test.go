package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fieldline/fieldline/docs"
	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/session"
)

type testFlusher struct{ flushes int }

func (f *testFlusher) Flush() { f.flushes++ }

func TestWriteSSEJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	flusher := &testFlusher{}

	if err := writeSSEJSON(writer, flusher, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("writeSSEJSON: %v", err)
	}
	if got := buf.String(); got != "data: {\"type\":\"ping\"}\n\n" {
		t.Fatalf("frame = %q", got)
	}
	if flusher.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flusher.flushes)
	}
}

func newEventsServer(t *testing.T) (*harness, *httptest.Server) {
	t.Helper()
	h := newHarness(t, assistant{})
	NewEventsHandler(slog.New(slog.DiscardHandler), accountBook{
		"u-owner": {ID: "u-owner", OrganizationID: "org-1", Role: "owner", IsActive: true},
	}, h.manager, []string{"*"}).Register(h.e)
	srv := httptest.NewServer(h.e)
	t.Cleanup(srv.Close)
	return h, srv
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := auth.GenerateToken(userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func readSSEEvent(t *testing.T, r *bufio.Reader) session.Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event stream: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var ev session.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		return ev
	}
}

func TestStreamSendsSnapshotThenEvents(t *testing.T) {
	h, srv := newEventsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/inbox/events?token="+tokenFor(t, "u-owner"), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /inbox/events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	first := readSSEEvent(t, r)
	if first.Type != session.EventSnapshot || first.Snapshot == nil {
		t.Fatalf("first event = %+v, want snapshot", first)
	}
	if n := len(first.Snapshot.Conversations); n != 3 {
		t.Fatalf("snapshot conversations = %d, want 3", n)
	}

	s, ok := h.manager.Get("u-owner")
	if !ok {
		t.Fatalf("stream did not open a session")
	}
	s.SetDraft("hello")

	next := readSSEEvent(t, r)
	if next.Type != session.EventSnapshot || next.Snapshot == nil || next.Snapshot.Draft != "hello" {
		t.Fatalf("next event = %+v, want snapshot with draft", next)
	}
}

func TestStreamRejectsMissingToken(t *testing.T) {
	_, srv := newEventsServer(t)
	resp, err := http.Get(srv.URL + "/inbox/events")
	if err != nil {
		t.Fatalf("GET /inbox/events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSocketStreamsUntilSessionCloses(t *testing.T) {
	h, srv := newEventsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/inbox/ws?token=" + tokenFor(t, "u-owner")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var ev session.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if ev.Type != session.EventSnapshot || ev.Snapshot == nil || ev.Snapshot.State != session.StateIdle {
		t.Fatalf("first event = %+v, want idle snapshot", ev)
	}

	h.manager.Close("u-owner")

	for {
		err = wsjson.Read(ctx, conn, &ev)
		if err != nil {
			break
		}
	}
	var closeErr websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close frame, got %v", err)
	}
	if closeErr.Code != websocket.StatusNormalClosure {
		t.Fatalf("close code = %v", closeErr.Code)
	}
}

func TestPingAndMissingSwagger(t *testing.T) {
	h := newHarness(t, assistant{})
	NewPingHandler().Register(h.e)
	NewSwaggerHandler(slog.New(slog.DiscardHandler), nil).Register(h.e)

	// The harness only skips /auth/login, so these carry a token.
	rec := h.do(t, http.MethodGet, "/ping", "u-owner", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ping status = %d", rec.Code)
	}
	if got := decode[PingResponse](t, rec).Status; got != "ok" {
		t.Fatalf("ping status field = %q", got)
	}

	if rec := h.do(t, http.MethodGet, "/api/swagger.json", "u-owner", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing document status = %d, want 404", rec.Code)
	}
}

func TestSwaggerServesEmbeddedDocument(t *testing.T) {
	h := newHarness(t, assistant{})
	NewSwaggerHandler(slog.New(slog.DiscardHandler), docs.SwaggerJSON()).Register(h.e)

	rec := h.do(t, http.MethodGet, "/api/swagger.json", "u-owner", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Info.Title != "Fieldline Inbox API" {
		t.Fatalf("title = %q", doc.Info.Title)
	}
	for _, path := range []string{"/inbox/conversations", "/inbox/send", "/inbox/events", "/webhooks/sms"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("document missing path %s", path)
		}
	}
}
