package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/realtime"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/smartreply"
	"github.com/fieldline/fieldline/internal/visibility"
)

const subscriberBuffer = 32

type pendingEcho struct {
	ref    conversation.Ref
	sentAt time.Time
}

// Session is the live inbox of one user. All methods are safe for
// concurrent use; responses that arrive after a newer request of the same
// kind are dropped.
type Session struct {
	deps     Deps
	viewer   visibility.Viewer
	logger   *slog.Logger
	listener *realtime.Listener
	cell     *realtime.ActiveCell
	lastSeen atomic.Int64

	mu            sync.Mutex
	closed        bool
	assigned      visibility.Assignment
	query         inbox.Query
	conversations []conversation.Conversation
	channelErrors map[conversation.Channel]string
	counts        inbox.Counts
	active        conversation.Ref
	// activeVisible is set once active passed the visibility check.
	// Realtime rows for active are dropped until then.
	activeVisible bool
	state         State
	messages      []conversation.Message
	draft         string
	suggestions   []smartreply.Suggestion
	generating    int
	pending       map[string]pendingEcho

	listGen   uint64
	countsGen uint64
	threadGen uint64

	subs   map[int]chan Event
	nextID int
}

// New creates a session for viewer and starts its realtime listener.
// Call Reload and Refresh to populate it.
func New(log *slog.Logger, deps Deps, viewer visibility.Viewer) *Session {
	if log == nil {
		log = slog.Default()
	}
	if deps.Assistant == nil {
		deps.Assistant = smartreply.Disabled{}
	}
	hub := deps.Hub
	if hub == nil {
		hub = realtime.NewHub()
	}
	s := &Session{
		deps:    deps,
		viewer:  viewer,
		logger:  log.With(slog.String("service", "session"), slog.String("user_id", viewer.UserID)),
		state:   StateIdle,
		query:   inbox.Query{Category: conversation.CategoryAll},
		pending: map[string]pendingEcho{},
		subs:    map[int]chan Event{},
	}
	s.listener = realtime.NewListener(log, hub, viewer.OrganizationID, s, deps.ChangeBuffer)
	s.cell = s.listener.Cell()
	s.touch()
	return s
}

func (s *Session) Viewer() visibility.Viewer { return s.viewer }

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Reload re-reads the clients a restricted viewer is assigned to.
func (s *Session) Reload(ctx context.Context) error {
	var assigned visibility.Assignment
	if s.deps.Lister.Policy().Restricted(s.viewer) {
		if s.deps.Assignments == nil {
			return errors.New("assignment source is not configured")
		}
		var err error
		assigned, err = s.deps.Assignments.AssignedClients(ctx, s.viewer.UserID)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
	}
	s.mu.Lock()
	s.assigned = assigned
	s.mu.Unlock()
	return nil
}

// ReloadAssignments is Reload for a running session. When the assignment
// set changed, an open thread the viewer may no longer see is closed and
// the list is refreshed.
func (s *Session) ReloadAssignments(ctx context.Context) error {
	if !s.deps.Lister.Policy().Restricted(s.viewer) {
		return nil
	}
	s.mu.Lock()
	before := s.assigned
	s.mu.Unlock()
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	changed := !maps.Equal(before, s.assigned)
	active := s.active
	s.mu.Unlock()
	if !changed {
		return nil
	}
	if !active.IsZero() {
		if store, err := s.deps.Stores.For(active.Channel); err == nil {
			if _, err := s.resolve(ctx, store, active); errors.Is(err, conversation.ErrNotFound) {
				s.mu.Lock()
				stillActive := s.active == active
				s.mu.Unlock()
				if stillActive {
					s.Deselect()
				}
			}
		}
	}
	s.RefreshList(ctx)
	return nil
}

// Refresh reloads the conversation list for q. On failure the previous
// list is kept and an error notice is emitted.
func (s *Session) Refresh(ctx context.Context, q inbox.Query) error {
	s.touch()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.listGen++
	gen := s.listGen
	s.query = q
	assigned := s.assigned
	s.mu.Unlock()

	res, err := s.deps.Lister.List(ctx, s.viewer, assigned, q)

	s.mu.Lock()
	if gen != s.listGen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.noticeLocked(NoticeError, "Could not load conversations.")
		s.mu.Unlock()
		s.logger.Warn("refresh conversations failed", slog.Any("error", err))
		return err
	}
	s.conversations = res.Conversations
	s.channelErrors = res.ChannelErrors
	for ch := range res.ChannelErrors {
		s.noticeLocked(NoticeWarning, fmt.Sprintf("%s conversations are unavailable right now.", strings.ToUpper(string(ch))))
	}
	s.publishSnapshotLocked()
	s.mu.Unlock()

	s.refreshCounts(ctx)
	return nil
}

// RefreshCounts reloads badge counts. A failure keeps the previous counts
// and emits a warning notice.
func (s *Session) RefreshCounts(ctx context.Context) (inbox.Counts, error) {
	s.mu.Lock()
	s.countsGen++
	gen := s.countsGen
	assigned := s.assigned
	s.mu.Unlock()

	counts, err := s.deps.Lister.Counts(ctx, s.viewer, assigned)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return counts, ErrClosed
	}
	if err != nil {
		s.logger.Warn("refresh counts failed", slog.Any("error", err))
		s.noticeLocked(NoticeWarning, "Unread counts may be out of date.")
		return s.counts, err
	}
	if gen != s.countsGen {
		return s.counts, nil
	}
	s.counts = counts
	s.publishSnapshotLocked()
	return counts, nil
}

func (s *Session) refreshCounts(ctx context.Context) {
	_, _ = s.RefreshCounts(ctx)
}

// Select opens a conversation: the thread is cleared, the active cell is
// set before any I/O and the local unread count is zeroed at once. The
// read state is persisted after the thread loads.
func (s *Session) Select(ctx context.Context, ref conversation.Ref) error {
	s.touch()
	if ref.IsZero() {
		return ErrInvalidRef
	}
	store, err := s.deps.Stores.For(ref.Channel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.threadGen++
	gen := s.threadGen
	if s.active != ref {
		s.draft = ""
		for id, p := range s.pending {
			if p.ref != ref {
				delete(s.pending, id)
			}
		}
	}
	s.active = ref
	s.activeVisible = false
	s.cell.Set(ref)
	s.messages = nil
	s.suggestions = nil
	s.state = StateLoading
	s.zeroUnreadLocked(ref)
	s.publishSnapshotLocked()
	s.mu.Unlock()

	msgs, err := s.loadThread(ctx, store, ref, gen)

	s.mu.Lock()
	if gen != s.threadGen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.messages = nil
		s.state = StateError
		s.noticeLocked(NoticeError, "Could not load messages.")
		s.publishSnapshotLocked()
		s.active = conversation.Ref{}
		s.activeVisible = false
		s.cell.Clear()
		s.state = StateIdle
		s.publishSnapshotLocked()
		s.mu.Unlock()
		s.logger.Warn("load thread failed", slog.String("conversation", ref.String()), slog.Any("error", err))
		return err
	}
	// Messages appended by realtime while loading are kept.
	s.messages = mergeMessages(msgs, s.messages)
	s.state = StateReady
	s.publishSnapshotLocked()
	s.mu.Unlock()

	conv, err := store.MarkRead(ctx, ref.ID)
	if err != nil {
		s.logger.Warn("mark read failed", slog.String("conversation", ref.String()), slog.Any("error", err))
		s.notice(NoticeWarning, "Could not mark the conversation as read.")
	} else {
		s.mu.Lock()
		s.patchConversationLocked(conv)
		s.publishSnapshotLocked()
		s.mu.Unlock()
	}
	s.refreshCounts(ctx)
	return nil
}

func (s *Session) loadThread(ctx context.Context, store conversation.ChannelStore, ref conversation.Ref, gen uint64) ([]conversation.Message, error) {
	if _, err := s.resolve(ctx, store, ref); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if gen == s.threadGen {
		s.activeVisible = true
	}
	s.mu.Unlock()
	return store.ListMessages(ctx, ref.ID)
}

// Deselect closes the open thread.
func (s *Session) Deselect() {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadGen++
	s.active = conversation.Ref{}
	s.activeVisible = false
	s.cell.Clear()
	s.messages = nil
	s.suggestions = nil
	s.draft = ""
	s.state = StateIdle
	s.publishSnapshotLocked()
}

// Archive sets the archived flag and patches the list from the result.
func (s *Session) Archive(ctx context.Context, ref conversation.Ref, archived bool) (conversation.Conversation, error) {
	return s.mutate(ctx, ref, "archive", func(store conversation.ChannelStore) (conversation.Conversation, error) {
		return store.SetArchived(ctx, ref.ID, archived)
	})
}

// Star sets the starred flag. SMS conversations return ErrUnsupported.
func (s *Session) Star(ctx context.Context, ref conversation.Ref, starred bool) (conversation.Conversation, error) {
	return s.mutate(ctx, ref, "star", func(store conversation.ChannelStore) (conversation.Conversation, error) {
		return store.SetStarred(ctx, ref.ID, starred)
	})
}

func (s *Session) mutate(ctx context.Context, ref conversation.Ref, op string, fn func(conversation.ChannelStore) (conversation.Conversation, error)) (conversation.Conversation, error) {
	s.touch()
	if ref.IsZero() {
		return conversation.Conversation{}, ErrInvalidRef
	}
	store, err := s.deps.Stores.For(ref.Channel)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if err := s.authorize(ctx, store, ref); err != nil {
		return conversation.Conversation{}, err
	}
	conv, err := fn(store)
	if err != nil {
		s.logger.Warn("conversation update failed", slog.String("op", op), slog.String("conversation", ref.String()), slog.Any("error", err))
		s.notice(NoticeError, fmt.Sprintf("Could not %s the conversation.", op))
		return conversation.Conversation{}, err
	}
	s.mu.Lock()
	s.patchConversationLocked(conv)
	s.publishSnapshotLocked()
	s.mu.Unlock()
	s.refreshCounts(ctx)
	return conv, nil
}

// authorize checks that ref is visible to the viewer, using the loaded list
// first and the store otherwise.
func (s *Session) authorize(ctx context.Context, store conversation.ChannelStore, ref conversation.Ref) error {
	_, err := s.resolve(ctx, store, ref)
	return err
}

func (s *Session) resolve(ctx context.Context, store conversation.ChannelStore, ref conversation.Ref) (conversation.Conversation, error) {
	s.mu.Lock()
	assigned := s.assigned
	idx := s.indexLocked(ref)
	var conv conversation.Conversation
	if idx >= 0 {
		conv = s.conversations[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		var err error
		conv, err = store.GetConversation(ctx, s.viewer.Scope(), ref.ID)
		if err != nil {
			return conversation.Conversation{}, err
		}
	}
	if !s.deps.Lister.Policy().Allows(s.viewer, assigned, conv.ClientID) {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return conv, nil
}

// SetDraft replaces the reply draft and publishes it to other streams of
// the same user.
func (s *Session) SetDraft(text string) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
	s.publishSnapshotLocked()
}

// Send replies in the open conversation. On success the draft is cleared,
// the sent message is shown at once and the list is refreshed. On failure
// the draft is kept.
func (s *Session) Send(ctx context.Context, in SendInput) (send.Result, error) {
	s.touch()
	if s.deps.Dispatcher == nil {
		return send.Result{}, errors.New("sending is not configured")
	}
	s.mu.Lock()
	ref := s.active
	body := in.Body
	if strings.TrimSpace(body) == "" {
		body = s.draft
	}
	s.mu.Unlock()
	if ref.IsZero() {
		return send.Result{}, ErrNoActiveConversation
	}
	store, err := s.deps.Stores.For(ref.Channel)
	if err != nil {
		return send.Result{}, err
	}
	conv, err := s.resolve(ctx, store, ref)
	if err != nil {
		return send.Result{}, err
	}

	res, err := s.deps.Dispatcher.Send(ctx, send.Request{
		Conversation: conv,
		Body:         body,
		Subject:      in.Subject,
		SenderUserID: s.viewer.UserID,
		Metadata:     in.Meta,
	})
	if errors.Is(err, send.ErrNotRecorded) {
		// Delivered: drop the draft so it is not sent twice, and refresh
		// once the echo timeout passes in case the row shows up late.
		s.logger.Warn("sent message not recorded", slog.String("conversation", ref.String()), slog.Any("error", err))
		s.mu.Lock()
		s.draft = ""
		s.pending["unrecorded-"+uuid.NewString()] = pendingEcho{ref: ref, sentAt: time.Now()}
		s.noticeLocked(NoticeWarning, "Message sent, but it is not shown yet.")
		s.publishSnapshotLocked()
		s.mu.Unlock()
		return send.Result{}, err
	}
	if err != nil {
		s.logger.Warn("send failed", slog.String("conversation", ref.String()), slog.Any("error", err))
		s.notice(NoticeError, sendFailureText(err))
		return send.Result{}, err
	}

	s.mu.Lock()
	s.draft = ""
	if res.Message.ID != "" {
		s.pending[res.Message.ID] = pendingEcho{ref: ref, sentAt: time.Now()}
	}
	if s.active == ref {
		s.messages = mergeMessages(s.messages, []conversation.Message{res.Message})
	}
	s.patchConversationLocked(res.Conversation)
	s.publishSnapshotLocked()
	query := s.query
	s.mu.Unlock()

	_ = s.Refresh(ctx, query)
	return res, nil
}

func sendFailureText(err error) string {
	switch {
	case errors.Is(err, send.ErrNoPrimaryNumber):
		return "No primary phone number is configured for your organization."
	case errors.Is(err, send.ErrRateLimited):
		return "You are sending too fast. Try again in a moment."
	case errors.Is(err, send.ErrEmptyBody):
		return "Message is empty."
	}
	return "Message could not be sent. Your draft was kept."
}

// GenerateReplies asks for suggestions on the open thread. A result that
// arrives after the thread changed is dropped; otherwise the latest result
// replaces the suggestions.
func (s *Session) GenerateReplies(ctx context.Context, tone smartreply.Tone) ([]smartreply.Suggestion, error) {
	s.touch()
	s.mu.Lock()
	ref := s.active
	msgs := slices.Clone(s.messages)
	idx := s.indexLocked(ref)
	var conv conversation.Conversation
	if idx >= 0 {
		conv = s.conversations[idx]
	}
	if !ref.IsZero() {
		s.generating++
		s.publishSnapshotLocked()
	}
	s.mu.Unlock()
	if ref.IsZero() {
		return nil, ErrNoActiveConversation
	}

	business := ""
	if s.deps.Businesses != nil {
		if name, err := s.deps.Businesses.BusinessName(ctx, s.viewer.OrganizationID); err == nil {
			business = name
		}
	}
	out, err := s.deps.Assistant.Suggest(ctx, smartreply.SuggestRequest{
		Messages:     msgs,
		Channel:      ref.Channel,
		ClientName:   conv.ContactName,
		BusinessName: business,
		Tone:         tone,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating--
	if s.active != ref {
		s.publishSnapshotLocked()
		return out, err
	}
	if err != nil {
		s.suggestions = nil
		s.noticeLocked(NoticeError, "Could not generate reply suggestions.")
		s.publishSnapshotLocked()
		s.logger.Warn("generate replies failed", slog.Any("error", err))
		return nil, err
	}
	s.suggestions = out
	s.publishSnapshotLocked()
	return out, nil
}

// ClassifyIntent labels text, typically the latest inbound message.
func (s *Session) ClassifyIntent(ctx context.Context, text string) (smartreply.Intent, error) {
	s.touch()
	intent, err := s.deps.Assistant.ClassifyIntent(ctx, text)
	if err != nil {
		s.notice(NoticeWarning, "Could not classify the message.")
		return smartreply.Intent{}, err
	}
	return intent, nil
}

// HandleChange applies a realtime change as if it came from the feed.
func (s *Session) HandleChange(ctx context.Context, change realtime.Change) {
	s.listener.Handle(ctx, change)
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams events until cancel is called or the session closes.
// Slow subscribers miss events rather than block the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers reports how many event streams are attached.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close stops realtime sync and ends every subscription. The active cell
// is cleared together with the listener.
func (s *Session) Close() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.active = conversation.Ref{}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// ReconcileEchoes refreshes when a sent message was not seen on the
// realtime feed within timeout, then forgets it.
func (s *Session) ReconcileEchoes(ctx context.Context, now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	expired := 0
	reloadActive := false
	for id, p := range s.pending {
		if now.Sub(p.sentAt) < timeout {
			continue
		}
		expired++
		if p.ref == s.active {
			reloadActive = true
		}
		delete(s.pending, id)
	}
	query := s.query
	s.mu.Unlock()
	if expired == 0 {
		return 0
	}
	s.logger.Info("realtime echo missing, refreshing", slog.Int("messages", expired))
	if reloadActive {
		s.ReloadActive(ctx)
	}
	_ = s.Refresh(ctx, query)
	return expired
}

// PendingEchoes reports how many sent messages await their realtime echo.
func (s *Session) PendingEchoes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) indexLocked(ref conversation.Ref) int {
	if ref.IsZero() {
		return -1
	}
	return slices.IndexFunc(s.conversations, func(c conversation.Conversation) bool { return c.Ref() == ref })
}

// zeroUnreadLocked clears the local unread count of ref and lowers the
// badge counts to match.
func (s *Session) zeroUnreadLocked(ref conversation.Ref) {
	idx := s.indexLocked(ref)
	if idx < 0 {
		return
	}
	conv := &s.conversations[idx]
	unread := conv.UnreadCount
	if unread <= 0 {
		return
	}
	conv.UnreadCount = 0
	if conv.IsArchived {
		return
	}
	cc := &s.counts.SMS
	if ref.Channel == conversation.ChannelEmail {
		cc = &s.counts.Email
	}
	cc.Unread = max(cc.Unread-1, 0)
	cc.UnreadMessages = max(cc.UnreadMessages-unread, 0)
	s.counts.Unread = max(s.counts.Unread-1, 0)
	s.counts.NeedsReply = max(s.counts.NeedsReply-1, 0)
}

// patchConversationLocked replaces one list entry with a mutation result.
func (s *Session) patchConversationLocked(conv conversation.Conversation) {
	idx := s.indexLocked(conv.Ref())
	if idx < 0 {
		return
	}
	if conv.ContactName == "" {
		conv.ContactName = s.conversations[idx].ContactName
	}
	if s.active == conv.Ref() {
		conv.UnreadCount = 0
	}
	s.conversations[idx] = conv
	inbox.SortByRecency(s.conversations)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Query:         s.query,
		Conversations: slices.Clone(s.conversations),
		Counts:        s.counts,
		State:         s.state,
		Messages:      slices.Clone(s.messages),
		Draft:         s.draft,
		Suggestions:   slices.Clone(s.suggestions),
		Generating:    s.generating > 0,
	}
	if snap.Conversations == nil {
		snap.Conversations = []conversation.Conversation{}
	}
	if snap.Messages == nil {
		snap.Messages = []conversation.Message{}
	}
	if snap.Suggestions == nil {
		snap.Suggestions = []smartreply.Suggestion{}
	}
	if len(s.channelErrors) > 0 {
		snap.ChannelErrors = make(map[conversation.Channel]string, len(s.channelErrors))
		for k, v := range s.channelErrors {
			snap.ChannelErrors[k] = v
		}
	}
	if !s.active.IsZero() {
		ref := s.active
		snap.Active = &ref
	}
	return snap
}

func (s *Session) publishSnapshotLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	s.publishLocked(Event{Type: EventSnapshot, Snapshot: &snap})
}

func (s *Session) notice(level NoticeLevel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeLocked(level, text)
}

func (s *Session) noticeLocked(level NoticeLevel, text string) {
	s.publishLocked(Event{Type: EventNotice, Notice: &Notice{Level: level, Message: text, At: time.Now()}})
}

func (s *Session) publishLocked(ev Event) {
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("subscriber full, event dropped", slog.String("type", string(ev.Type)))
		}
	}
}

// mergeMessages returns base plus any extra message whose id is not in
// base, ordered by creation time.
func mergeMessages(base, extra []conversation.Message) []conversation.Message {
	out := slices.Clone(base)
	for _, m := range extra {
		if !slices.ContainsFunc(out, func(x conversation.Message) bool { return x.ID == m.ID }) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b conversation.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
