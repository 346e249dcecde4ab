// Package conversationtest provides an in-memory ChannelStore for tests.
package conversationtest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/conversation"
)

// Store is a goroutine-safe in-memory conversation.ChannelStore.
type Store struct {
	mu       sync.Mutex
	channel  conversation.Channel
	convs    []conversation.Conversation
	messages map[string][]conversation.Message

	// ListErr, SummariesErr, MessagesErr, MarkReadErr force failures when set.
	ListErr      error
	SummariesErr error
	MessagesErr  error
	MarkReadErr  error
	RecordErr    error

	// MessagesHook runs before ListMessages returns, outside the lock.
	MessagesHook func(conversationID string)
	// GetHook runs before GetConversation returns, outside the lock.
	GetHook func(id string)

	calls map[string]int
}

func New(ch conversation.Channel) *Store {
	return &Store{
		channel:  ch,
		messages: make(map[string][]conversation.Message),
		calls:    make(map[string]int),
	}
}

// Add inserts or replaces conversations, filling channel details.
func (s *Store) Add(convs ...conversation.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range convs {
		c.Channel = s.channel
		if c.Channel == conversation.ChannelSMS && c.SMS == nil {
			c.SMS = &conversation.SMSDetails{BusinessNumber: "+15559990000", Status: "active"}
		}
		if c.Channel == conversation.ChannelEmail && c.Email == nil {
			c.Email = &conversation.EmailDetails{BusinessAddress: "office@acme.test"}
		}
		if i := s.index(c.ID); i >= 0 {
			s.convs[i] = c
		} else {
			s.convs = append(s.convs, c)
		}
	}
}

// AddMessages appends messages to a thread.
func (s *Store) AddMessages(conversationID string, msgs ...conversation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		m.Channel = s.channel
		m.ConversationID = conversationID
		s.messages[conversationID] = append(s.messages[conversationID], m)
	}
}

// Calls returns how often op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Conversation returns the stored row for id.
func (s *Store) Conversation(id string) (conversation.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.convs[i], true
	}
	return conversation.Conversation{}, false
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.convs, func(c conversation.Conversation) bool { return c.ID == id })
}

func (s *Store) inScope(c conversation.Conversation, scope conversation.Scope) bool {
	if scope.OrganizationID != "" && c.OrganizationID != "" && c.OrganizationID != scope.OrganizationID {
		return false
	}
	return scope.UserID == "" || c.UserID == scope.UserID
}

func (s *Store) Channel() conversation.Channel { return s.channel }

func (s *Store) ListConversations(_ context.Context, f conversation.Filter) ([]conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["list"]++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := []conversation.Conversation{}
	for _, c := range s.convs {
		if !s.inScope(c, f.Scope) {
			continue
		}
		if f.Archived != nil && c.IsArchived != *f.Archived {
			continue
		}
		if f.UnreadOnly && c.UnreadCount == 0 {
			continue
		}
		if f.StarredOnly && !c.IsStarred {
			continue
		}
		if f.ClientIDs != nil && (c.ClientID == "" || !slices.Contains(f.ClientIDs, c.ClientID)) {
			continue
		}
		if q := strings.ToLower(f.Search); q != "" &&
			!strings.Contains(strings.ToLower(c.ContactName+" "+c.ContactIdentifier+" "+c.Subject()+" "+c.LastMessagePreview), q) {
			continue
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b conversation.Conversation) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Summaries(_ context.Context, scope conversation.Scope) ([]conversation.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["summaries"]++
	if s.SummariesErr != nil {
		return nil, s.SummariesErr
	}
	out := []conversation.Summary{}
	for _, c := range s.convs {
		if c.IsArchived || !s.inScope(c, scope) {
			continue
		}
		out = append(out, conversation.Summary{ID: c.ID, ClientID: c.ClientID, UnreadCount: c.UnreadCount})
	}
	return out, nil
}

func (s *Store) GetConversation(_ context.Context, scope conversation.Scope, id string) (conversation.Conversation, error) {
	s.mu.Lock()
	s.calls["get"]++
	hook := s.GetHook
	i := s.index(id)
	var conv conversation.Conversation
	found := i >= 0 && s.inScope(s.convs[i], scope)
	if found {
		conv = s.convs[i]
	}
	s.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if !found {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return conv, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]conversation.Message, error) {
	s.mu.Lock()
	s.calls["messages"]++
	err := s.MessagesErr
	msgs := slices.Clone(s.messages[conversationID])
	hook := s.MessagesHook
	s.mu.Unlock()
	if hook != nil {
		hook(conversationID)
	}
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	return msgs, nil
}

func (s *Store) MarkRead(_ context.Context, id string) (conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["mark_read"]++
	if s.MarkReadErr != nil {
		return conversation.Conversation{}, s.MarkReadErr
	}
	i := s.index(id)
	if i < 0 {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	s.convs[i].UnreadCount = 0
	return s.convs[i], nil
}

func (s *Store) SetArchived(_ context.Context, id string, archived bool) (conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["archive"]++
	i := s.index(id)
	if i < 0 {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	s.convs[i].IsArchived = archived
	return s.convs[i], nil
}

func (s *Store) SetStarred(_ context.Context, id string, starred bool) (conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == conversation.ChannelSMS {
		return conversation.Conversation{}, fmt.Errorf("%w: star on sms", conversation.ErrUnsupported)
	}
	s.calls["star"]++
	i := s.index(id)
	if i < 0 {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	s.convs[i].IsStarred = starred
	return s.convs[i], nil
}

func (s *Store) RecordInbound(ctx context.Context, rec conversation.Record) (conversation.Conversation, conversation.Message, error) {
	return s.record(conversation.DirectionInbound, rec)
}

func (s *Store) RecordOutbound(ctx context.Context, rec conversation.Record) (conversation.Conversation, conversation.Message, error) {
	return s.record(conversation.DirectionOutbound, rec)
}

func (s *Store) record(dir conversation.Direction, rec conversation.Record) (conversation.Conversation, conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["record_"+string(dir)]++
	if s.RecordErr != nil {
		return conversation.Conversation{}, conversation.Message{}, s.RecordErr
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	i := slices.IndexFunc(s.convs, func(c conversation.Conversation) bool {
		return c.ContactIdentifier == rec.Contact && c.OrganizationID == rec.OrganizationID
	})
	if i < 0 {
		c := conversation.Conversation{
			ID:                uuid.NewString(),
			Channel:           s.channel,
			ContactIdentifier: rec.Contact,
			OrganizationID:    rec.OrganizationID,
			UserID:            rec.UserID,
		}
		if s.channel == conversation.ChannelSMS {
			c.SMS = &conversation.SMSDetails{BusinessNumber: rec.BusinessIdentity, Status: "active"}
		} else {
			c.Email = &conversation.EmailDetails{BusinessAddress: rec.BusinessIdentity, Subject: rec.Subject}
		}
		s.convs = append(s.convs, c)
		i = len(s.convs) - 1
	}
	c := &s.convs[i]
	c.LastMessageAt = at
	c.LastMessagePreview = conversation.Preview(rec.Body, rec.HTMLBody)
	if dir == conversation.DirectionInbound {
		c.UnreadCount++
	}
	msg := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: c.ID,
		OrganizationID: rec.OrganizationID,
		Channel:        s.channel,
		Direction:      dir,
		Body:           rec.Body,
		Subject:        rec.Subject,
		HTMLBody:       rec.HTMLBody,
		Status:         rec.Status,
		Metadata:       rec.Metadata,
		CreatedAt:      at,
	}
	s.messages[c.ID] = append(s.messages[c.ID], msg)
	return *c, msg, nil
}
