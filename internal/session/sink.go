package session

import (
	"context"
	"log/slog"
	"slices"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
)

// The methods below implement realtime.Sink. They run on the listener
// goroutine.

// AppendMessage adds msg to the open thread unless its id is already there.
func (s *Session) AppendMessage(msg conversation.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, msg.ID)
	if s.closed || !s.activeVisible || s.active != msg.ConversationRef() {
		return false
	}
	if slices.ContainsFunc(s.messages, func(m conversation.Message) bool { return m.ID == msg.ID }) {
		return false
	}
	s.messages = mergeMessages(s.messages, []conversation.Message{msg})
	if idx := s.indexLocked(msg.ConversationRef()); idx >= 0 {
		conv := &s.conversations[idx]
		if msg.CreatedAt.After(conv.LastMessageAt) {
			conv.LastMessageAt = msg.CreatedAt
			conv.LastMessagePreview = conversation.Preview(msg.Body, msg.HTMLBody)
			inbox.SortByRecency(s.conversations)
		}
	}
	s.publishSnapshotLocked()
	return true
}

// PatchMessage replaces a message of the open thread, for example after a
// delivery status or intent update.
func (s *Session) PatchMessage(msg conversation.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, msg.ID)
	if s.closed || !s.activeVisible || s.active != msg.ConversationRef() {
		return false
	}
	idx := slices.IndexFunc(s.messages, func(m conversation.Message) bool { return m.ID == msg.ID })
	if idx < 0 {
		return false
	}
	s.messages[idx] = msg
	s.publishSnapshotLocked()
	return true
}

// ReloadActive re-reads the open thread and merges it with what is shown.
// A failure keeps the current messages.
func (s *Session) ReloadActive(ctx context.Context) {
	s.mu.Lock()
	ref := s.active
	visible := s.activeVisible
	gen := s.threadGen
	s.mu.Unlock()
	if ref.IsZero() || !visible {
		return
	}
	store, err := s.deps.Stores.For(ref.Channel)
	if err != nil {
		return
	}
	msgs, err := store.ListMessages(ctx, ref.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.threadGen || s.closed {
		return
	}
	if err != nil {
		s.logger.Warn("reload thread failed", slog.String("conversation", ref.String()), slog.Any("error", err))
		s.noticeLocked(NoticeWarning, "Some new messages may not be shown yet.")
		return
	}
	s.messages = mergeMessages(msgs, s.messages)
	s.publishSnapshotLocked()
}

// RefreshList re-runs the current query.
func (s *Session) RefreshList(ctx context.Context) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	_ = s.Refresh(ctx, q)
}

// NotifyInbound announces msg when its conversation is visible to the
// viewer. Conversations missing from the list are not announced.
func (s *Session) NotifyInbound(_ context.Context, msg conversation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.indexLocked(msg.ConversationRef()) < 0 && s.deps.Lister.Policy().Restricted(s.viewer) {
		return
	}
	m := msg
	s.publishLocked(Event{Type: EventInbound, Message: &m})
}

// Resync reloads assignments, the list and the open thread after changes
// may have been missed.
func (s *Session) Resync(ctx context.Context) {
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("resync assignments failed", slog.Any("error", err))
	}
	s.RefreshList(ctx)
	s.ReloadActive(ctx)
}
