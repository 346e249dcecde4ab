// Package session keeps one user's live inbox: the conversation list, the
// open thread, the reply draft and smart-reply suggestions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/realtime"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/smartreply"
	"github.com/fieldline/fieldline/internal/visibility"
)

var (
	ErrNoActiveConversation = errors.New("no conversation selected")
	ErrInvalidRef           = errors.New("invalid conversation reference")
	ErrClosed               = errors.New("session closed")
)

// State is the lifecycle of the open thread.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message such as a toast.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventNotice   EventType = "notice"
	EventInbound  EventType = "inbound"
)

// Event is pushed to subscribers. Exactly one payload field is set.
type Event struct {
	Type     EventType             `json:"type"`
	Snapshot *Snapshot             `json:"snapshot,omitempty"`
	Notice   *Notice               `json:"notice,omitempty"`
	Message  *conversation.Message `json:"message,omitempty"`
}

// Snapshot is a copy of the session's UI state.
type Snapshot struct {
	Query         inbox.Query                     `json:"query"`
	Conversations []conversation.Conversation     `json:"conversations"`
	ChannelErrors map[conversation.Channel]string `json:"channel_errors,omitempty"`
	Counts        inbox.Counts                    `json:"counts"`
	Active        *conversation.Ref               `json:"active,omitempty"`
	State         State                           `json:"state"`
	Messages      []conversation.Message          `json:"messages"`
	Draft         string                          `json:"draft"`
	Suggestions   []smartreply.Suggestion         `json:"suggestions"`
	Generating    bool                            `json:"generating"`
}

// SendInput is a reply from the open thread. An empty Body sends the draft.
type SendInput struct {
	Body    string         `json:"body"`
	Subject string         `json:"subject,omitempty"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

// Lister is the conversation aggregator.
type Lister interface {
	List(ctx context.Context, viewer visibility.Viewer, assigned visibility.Assignment, q inbox.Query) (inbox.Result, error)
	Counts(ctx context.Context, viewer visibility.Viewer, assigned visibility.Assignment) (inbox.Counts, error)
	Policy() visibility.Policy
}

// Dispatcher sends replies.
type Dispatcher interface {
	Send(ctx context.Context, req send.Request) (send.Result, error)
}

// BusinessDirectory names the organization replies are written for.
type BusinessDirectory interface {
	BusinessName(ctx context.Context, organizationID string) (string, error)
}

// Deps are the collaborators shared by every session.
// LimitPruner drops per-user send rate state nobody needs anymore.
type LimitPruner interface {
	PruneLimits(now time.Time) int
}

type Deps struct {
	Lister      Lister
	Stores      conversation.Stores
	Dispatcher  Dispatcher
	Assistant   smartreply.Assistant
	Assignments visibility.AssignmentSource
	Businesses  BusinessDirectory
	// Limits is pruned on every idle sweep when set.
	Limits LimitPruner
	// Hub feeds realtime changes; nil disables live sync.
	Hub          *realtime.Hub
	ChangeBuffer int
}
