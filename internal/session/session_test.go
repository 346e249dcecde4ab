package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"


	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/conversation/conversationtest"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/realtime"
	"github.com/fieldline/fieldline/internal/send"
	"github.com/fieldline/fieldline/internal/smartreply"
	"github.com/fieldline/fieldline/internal/visibility"
)

var (
	policy = visibility.Policy{RestrictedRoles: []string{"technician"}, ViewAllPermission: "view_all_messages"}
	owner  = visibility.Viewer{UserID: "u-owner", OrganizationID: "org-1", Role: "owner"}
	tech   = visibility.Viewer{UserID: "u-tech", OrganizationID: "org-1", Role: "technician"}
	base   = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	refS1 = conversation.Ref{Channel: conversation.ChannelSMS, ID: "s1"}
	refS2 = conversation.Ref{Channel: conversation.ChannelSMS, ID: "s2"}
	refE1 = conversation.Ref{Channel: conversation.ChannelEmail, ID: "e1"}
)

type staticAssignments struct {
	ids []string
	err error
}

func (a staticAssignments) AssignedClients(context.Context, string) (visibility.Assignment, error) {
	if a.err != nil {
		return nil, a.err
	}
	return visibility.NewAssignment(a.ids...), nil
}

type mutableAssignments struct {
	mu  sync.Mutex
	ids []string
}

func (a *mutableAssignments) set(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = ids
}

func (a *mutableAssignments) AssignedClients(context.Context, string) (visibility.Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return visibility.NewAssignment(a.ids...), nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	reqs  []send.Request
	err   error
	store *conversationtest.Store
}

func (d *fakeDispatcher) Send(ctx context.Context, req send.Request) (send.Result, error) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return send.Result{}, err
	}
	conv, msg, err := d.store.RecordOutbound(ctx, conversation.Record{
		OrganizationID:   req.Conversation.OrganizationID,
		Contact:          req.Conversation.ContactIdentifier,
		BusinessIdentity: req.Conversation.BusinessIdentity(),
		Body:             req.Body,
	})
	return send.Result{Conversation: conv, Message: msg}, err
}

type fakeAssistant struct {
	out  []smartreply.Suggestion
	err  error
	hook func()
}

func (a *fakeAssistant) Suggest(context.Context, smartreply.SuggestRequest) ([]smartreply.Suggestion, error) {
	if a.hook != nil {
		a.hook()
	}
	return a.out, a.err
}

func (a *fakeAssistant) ClassifyIntent(context.Context, string) (smartreply.Intent, error) {
	return smartreply.Intent{Intent: smartreply.IntentScheduling, Confidence: 0.9}, a.err
}

type fixture struct {
	sms, email *conversationtest.Store
	deps       Deps
}

func newFixture() *fixture {
	sms := conversationtest.New(conversation.ChannelSMS)
	email := conversationtest.New(conversation.ChannelEmail)
	sms.Add(
		conversation.Conversation{ID: "s1", OrganizationID: "org-1", ClientID: "client-john", ContactName: "John Smith", ContactIdentifier: "+15550001111", LastMessageAt: base.Add(time.Hour), UnreadCount: 1},
		conversation.Conversation{ID: "s2", OrganizationID: "org-1", ClientID: "client-ann", ContactName: "Ann Lee", ContactIdentifier: "+15550002222", LastMessageAt: base},
	)
	sms.AddMessages("s1", conversation.Message{ID: "m1", OrganizationID: "org-1", Direction: conversation.DirectionInbound, Body: "Can you come Tuesday?", CreatedAt: base.Add(time.Hour)})
	sms.AddMessages("s2", conversation.Message{ID: "m2", OrganizationID: "org-1", Direction: conversation.DirectionInbound, Body: "Thanks!", CreatedAt: base})
	email.Add(conversation.Conversation{ID: "e1", OrganizationID: "org-1", ClientID: "client-jane", ContactName: "Jane Doe", ContactIdentifier: "jane@example.com", LastMessageAt: base.Add(30 * time.Minute)})
	email.AddMessages("e1", conversation.Message{ID: "m3", OrganizationID: "org-1", Direction: conversation.DirectionInbound, Body: "Invoice question", CreatedAt: base})

	stores := conversation.Stores{SMS: sms, Email: email}
	return &fixture{
		sms:   sms,
		email: email,
		deps: Deps{
			Lister:      inbox.NewAggregator(nil, stores, policy),
			Stores:      stores,
			Dispatcher:  &fakeDispatcher{store: sms},
			Assistant:   &fakeAssistant{},
			Assignments: staticAssignments{ids: []string{"client-john"}},
		},
	}
}

func (f *fixture) open(t *testing.T, viewer visibility.Viewer) *Session {
	t.Helper()
	s := New(nil, f.deps, viewer)
	t.Cleanup(s.Close)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := s.Refresh(context.Background(), inbox.Query{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return s
}

func mustSelect(t *testing.T, s *Session, ref conversation.Ref) {
	t.Helper()
	if err := s.Select(context.Background(), ref); err != nil {
		t.Fatalf("Select(%v): %v", ref, err)
	}
}

func expectMessages(t *testing.T, msgs []conversation.Message, want ...string) {
	t.Helper()
	if got := messageIDs(msgs); !slices.Equal(got, want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func notices(events []Event, level NoticeLevel) int {
	n := 0
	for _, ev := range events {
		if ev.Type == EventNotice && ev.Notice.Level == level {
			n++
		}
	}
	return n
}

func messageIDs(msgs []conversation.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func unreadOf(snap Snapshot, ref conversation.Ref) int {
	for _, c := range snap.Conversations {
		if c.Ref() == ref {
			return c.UnreadCount
		}
	}
	return -1
}

func TestRefreshSortsAndCounts(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)

	snap := s.Snapshot()
	if len(snap.Conversations) != 3 {
		t.Fatalf("conversations = %d, want 3", len(snap.Conversations))
	}
	if snap.Conversations[0].ID != "s1" || snap.Conversations[1].ID != "e1" {
		t.Fatalf("order = %s, %s", snap.Conversations[0].ID, snap.Conversations[1].ID)
	}
	if snap.Counts.NeedsReply != 1 || snap.State != StateIdle {
		t.Fatalf("needs reply = %d state = %q", snap.Counts.NeedsReply, snap.State)
	}
}

func TestTechnicianWithoutAssignmentsSeesNothing(t *testing.T) {
	f := newFixture()
	f.deps.Assignments = staticAssignments{}
	s := f.open(t, tech)

	snap := s.Snapshot()
	if len(snap.Conversations) != 0 || snap.Counts.Total != 0 || snap.Counts.NeedsReply != 0 {
		t.Fatalf("unassigned technician snapshot = %d conversations, counts %+v", len(snap.Conversations), snap.Counts)
	}
}

func TestTechnicianCannotOpenUnassigned(t *testing.T) {
	f := newFixture()
	s := f.open(t, tech)

	if n := len(s.Snapshot().Conversations); n != 1 {
		t.Fatalf("conversations = %d, want 1", n)
	}
	if err := s.Select(context.Background(), refS2); !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("Select unassigned = %v, want ErrNotFound", err)
	}
	if s.Snapshot().Active != nil {
		t.Fatalf("unassigned conversation became active")
	}
	if n := f.sms.Calls("messages"); n != 0 {
		t.Fatalf("messages loaded %d times", n)
	}
}

func TestRealtimeInsertForUnauthorizedSelectIsNotShown(t *testing.T) {
	f := newFixture()
	s := f.open(t, tech)
	events, cancel := s.Subscribe()
	defer cancel()

	private := conversation.Message{ID: "m-private", ConversationID: "s2", Channel: conversation.ChannelSMS, Direction: conversation.DirectionInbound, Body: "gate code is 4412", CreatedAt: base.Add(time.Hour)}
	var appended, patched bool
	f.sms.GetHook = func(id string) {
		if id == "s2" {
			appended = s.AppendMessage(private)
			patched = s.PatchMessage(private)
		}
	}

	if err := s.Select(context.Background(), refS2); !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("Select unassigned = %v, want ErrNotFound", err)
	}
	if appended || patched {
		t.Fatalf("realtime row accepted before authorization: appended=%v patched=%v", appended, patched)
	}
	for _, ev := range drain(events) {
		if ev.Snapshot != nil && slices.Contains(messageIDs(ev.Snapshot.Messages), "m-private") {
			t.Fatalf("private message published in %q snapshot", ev.Snapshot.State)
		}
	}
	if n := len(s.Snapshot().Messages); n != 0 {
		t.Fatalf("thread holds %d messages", n)
	}
}

func TestReloadAssignmentsDropsRevokedThread(t *testing.T) {
	f := newFixture()
	current := &mutableAssignments{ids: []string{"client-john"}}
	f.deps.Assignments = current
	s := f.open(t, tech)
	ctx := context.Background()
	mustSelect(t, s, refS1)
	if n := len(s.Snapshot().Conversations); n != 1 {
		t.Fatalf("conversations = %d, want 1", n)
	}

	if err := s.ReloadAssignments(ctx); err != nil {
		t.Fatalf("ReloadAssignments: %v", err)
	}
	if s.Snapshot().Active == nil {
		t.Fatalf("unchanged assignment dropped the active thread")
	}

	current.set()
	if err := s.ReloadAssignments(ctx); err != nil {
		t.Fatalf("ReloadAssignments: %v", err)
	}
	snap := s.Snapshot()
	if snap.Active != nil || len(snap.Messages) != 0 || len(snap.Conversations) != 0 {
		t.Fatalf("revoked assignment still visible: active=%v messages=%d conversations=%d",
			snap.Active, len(snap.Messages), len(snap.Conversations))
	}
}

func TestSelectZerosUnreadBeforeLoading(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	if n := s.Snapshot().Counts.NeedsReply; n != 1 {
		t.Fatalf("needs reply = %d, want 1", n)
	}

	var during Snapshot
	var activeDuring bool
	f.sms.MessagesHook = func(string) {
		during = s.Snapshot()
		activeDuring = s.cell.Is(refS1)
	}
	mustSelect(t, s, refS1)

	if !activeDuring {
		t.Fatalf("active cell not set while loading")
	}
	if during.State != StateLoading || unreadOf(during, refS1) != 0 || during.Counts.NeedsReply != 0 {
		t.Fatalf("while loading: state=%q unread=%d needs_reply=%d", during.State, unreadOf(during, refS1), during.Counts.NeedsReply)
	}

	snap := s.Snapshot()
	if snap.State != StateReady || snap.Counts.NeedsReply != 0 {
		t.Fatalf("after load: state=%q needs_reply=%d", snap.State, snap.Counts.NeedsReply)
	}
	expectMessages(t, snap.Messages, "m1")
	if n := f.sms.Calls("mark_read"); n != 1 {
		t.Fatalf("mark_read calls = %d", n)
	}
	if stored, _ := f.sms.Conversation("s1"); stored.UnreadCount != 0 {
		t.Fatalf("stored unread = %d", stored.UnreadCount)
	}
}

func TestSelectABALoadsIndependently(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)

	mustSelect(t, s, refS1)
	expectMessages(t, s.Snapshot().Messages, "m1")
	mustSelect(t, s, refE1)
	expectMessages(t, s.Snapshot().Messages, "m3")
	mustSelect(t, s, refS1)
	expectMessages(t, s.Snapshot().Messages, "m1")

	if n := f.sms.Calls("messages"); n != 2 {
		t.Fatalf("sms message loads = %d, want 2", n)
	}
	if n := f.email.Calls("messages"); n != 1 {
		t.Fatalf("email message loads = %d, want 1", n)
	}
}

func TestStaleThreadResponseIsDropped(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()

	var once sync.Once
	f.sms.MessagesHook = func(id string) {
		if id != "s1" {
			return
		}
		once.Do(func() {
			if err := s.Select(ctx, refS2); err != nil {
				t.Errorf("nested Select: %v", err)
			}
		})
	}
	mustSelect(t, s, refS1)

	snap := s.Snapshot()
	if snap.Active == nil || *snap.Active != refS2 {
		t.Fatalf("active = %v, want %v", snap.Active, refS2)
	}
	expectMessages(t, snap.Messages, "m2")
	if !s.cell.Is(refS2) {
		t.Fatalf("active cell not on the newer selection")
	}
}

func TestSelectFailureClearsThread(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	events, cancel := s.Subscribe()
	defer cancel()

	f.sms.MessagesErr = errors.New("db down")
	if err := s.Select(context.Background(), refS1); err == nil {
		t.Fatalf("expected Select to fail")
	}

	snap := s.Snapshot()
	if snap.State != StateIdle || snap.Active != nil || len(snap.Messages) != 0 {
		t.Fatalf("after failure: state=%q active=%v messages=%d", snap.State, snap.Active, len(snap.Messages))
	}
	if s.cell.Is(refS1) {
		t.Fatalf("active cell kept after failure")
	}
	if n := f.sms.Calls("mark_read"); n != 0 {
		t.Fatalf("mark_read calls = %d", n)
	}

	var states []State
	evs := drain(events)
	for _, ev := range evs {
		if ev.Type == EventSnapshot {
			states = append(states, ev.Snapshot.State)
		}
	}
	if want := []State{StateLoading, StateError, StateIdle}; !slices.Equal(states, want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	if n := notices(evs, NoticeError); n != 1 {
		t.Fatalf("error notices = %d, want 1", n)
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	events, cancel := s.Subscribe()
	defer cancel()

	f.sms.ListErr = errors.New("timeout")
	f.email.ListErr = errors.New("timeout")
	if err := s.Refresh(context.Background(), inbox.Query{}); !errors.Is(err, inbox.ErrAllChannelsFailed) {
		t.Fatalf("Refresh = %v, want ErrAllChannelsFailed", err)
	}
	if n := len(s.Snapshot().Conversations); n != 3 {
		t.Fatalf("conversations = %d, want previous 3", n)
	}
	if n := notices(drain(events), NoticeError); n != 1 {
		t.Fatalf("error notices = %d, want 1", n)
	}
}

func TestCountsFailureOnlyWarns(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	events, cancel := s.Subscribe()
	defer cancel()

	f.email.SummariesErr = errors.New("timeout")
	if err := s.Refresh(context.Background(), inbox.Query{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	evs := drain(events)
	if notices(evs, NoticeWarning) != 1 || notices(evs, NoticeError) != 0 {
		t.Fatalf("warnings = %d errors = %d", notices(evs, NoticeWarning), notices(evs, NoticeError))
	}
	if n := s.Snapshot().Counts.NeedsReply; n != 1 {
		t.Fatalf("needs reply = %d, want 1", n)
	}
}

func TestDuplicateRealtimeInsertIsNoop(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)

	row, err := json.Marshal(map[string]any{
		"id": "m1", "conversation_id": "s1", "organization_id": "org-1",
		"direction": "inbound", "content": "Can you come Tuesday?", "created_at": base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	s.HandleChange(ctx, realtime.Change{Table: realtime.TableSMSMessages, Type: realtime.ChangeInsert, New: row})
	expectMessages(t, s.Snapshot().Messages, "m1")

	fresh := conversation.Message{ID: "m9", ConversationID: "s1", Channel: conversation.ChannelSMS, Direction: conversation.DirectionInbound, Body: "Also Wednesday works", CreatedAt: base.Add(2 * time.Hour)}
	if !s.AppendMessage(fresh) {
		t.Fatalf("new message not appended")
	}
	if s.AppendMessage(fresh) {
		t.Fatalf("duplicate message appended")
	}
	snap := s.Snapshot()
	expectMessages(t, snap.Messages, "m1", "m9")
	if got := snap.Conversations[0].LastMessagePreview; got != "Also Wednesday works" {
		t.Fatalf("preview = %q", got)
	}
}

func TestRealtimeForOtherConversationRefreshesList(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)
	before := f.sms.Calls("list")

	row, _ := json.Marshal(map[string]any{
		"id": "m7", "conversation_id": "s2", "organization_id": "org-1",
		"direction": "inbound", "content": "hi", "created_at": base.Add(3 * time.Hour),
	})
	s.HandleChange(ctx, realtime.Change{Table: realtime.TableSMSMessages, Type: realtime.ChangeInsert, New: row})

	if n := f.sms.Calls("list"); n != before+1 {
		t.Fatalf("list calls = %d, want %d", n, before+1)
	}
	expectMessages(t, s.Snapshot().Messages, "m1")
}

func TestNotifyInboundRespectsVisibility(t *testing.T) {
	f := newFixture()
	s := f.open(t, tech)
	events, cancel := s.Subscribe()
	defer cancel()

	s.NotifyInbound(context.Background(), conversation.Message{ID: "x", ConversationID: "s2", Channel: conversation.ChannelSMS})
	s.NotifyInbound(context.Background(), conversation.Message{ID: "y", ConversationID: "s1", Channel: conversation.ChannelSMS})

	var got []string
	for _, ev := range drain(events) {
		if ev.Type == EventInbound {
			got = append(got, ev.Message.ID)
		}
	}
	if !slices.Equal(got, []string{"y"}) {
		t.Fatalf("inbound notices = %v, want [y]", got)
	}
}

func TestSendClearsDraftAndTracksEcho(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)

	s.SetDraft("See you Tuesday at 9")
	listBefore := f.sms.Calls("list")
	res, err := s.Send(ctx, SendInput{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Message.Body != "See you Tuesday at 9" {
		t.Fatalf("sent body = %q", res.Message.Body)
	}

	snap := s.Snapshot()
	if snap.Draft != "" {
		t.Fatalf("draft not cleared: %q", snap.Draft)
	}
	expectMessages(t, snap.Messages, "m1", res.Message.ID)
	if n := f.sms.Calls("list"); n != listBefore+1 {
		t.Fatalf("list calls = %d, want %d", n, listBefore+1)
	}
	if n := s.PendingEchoes(); n != 1 {
		t.Fatalf("pending echoes = %d, want 1", n)
	}

	if s.AppendMessage(res.Message) {
		t.Fatalf("echo of own message appended twice")
	}
	if n := s.PendingEchoes(); n != 0 {
		t.Fatalf("pending echoes = %d after echo", n)
	}
}

func TestSendFailurePreservesDraft(t *testing.T) {
	f := newFixture()
	f.deps.Dispatcher = &fakeDispatcher{err: &send.Error{Channel: conversation.ChannelSMS, Err: errors.New("carrier rejected")}}
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)
	events, cancel := s.Subscribe()
	defer cancel()

	s.SetDraft("On my way")
	if _, err := s.Send(ctx, SendInput{}); !errors.Is(err, send.ErrSendFailed) {
		t.Fatalf("Send = %v, want ErrSendFailed", err)
	}
	if d := s.Snapshot().Draft; d != "On my way" {
		t.Fatalf("draft = %q", d)
	}
	expectMessages(t, s.Snapshot().Messages, "m1")
	if n := notices(drain(events), NoticeError); n != 1 {
		t.Fatalf("error notices = %d, want 1", n)
	}
}

func TestSendDeliveredButNotRecordedDropsDraft(t *testing.T) {
	f := newFixture()
	f.deps.Dispatcher = &fakeDispatcher{err: fmt.Errorf("%w: connection reset", send.ErrNotRecorded)}
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)
	events, cancel := s.Subscribe()
	defer cancel()

	s.SetDraft("On my way")
	if _, err := s.Send(ctx, SendInput{}); !errors.Is(err, send.ErrNotRecorded) {
		t.Fatalf("Send = %v, want ErrNotRecorded", err)
	}
	if d := s.Snapshot().Draft; d != "" {
		t.Fatalf("draft kept after delivery: %q", d)
	}
	got := drain(events)
	if notices(got, NoticeWarning) != 1 || notices(got, NoticeError) != 0 {
		t.Fatalf("warnings = %d errors = %d", notices(got, NoticeWarning), notices(got, NoticeError))
	}
	if n := s.PendingEchoes(); n != 1 {
		t.Fatalf("pending echoes = %d, want 1", n)
	}
}

type noNumber struct{}

func (noNumber) PrimaryNumber(context.Context, string) (string, error) { return "", nil }

type countingSMS struct{ calls int }

func (c *countingSMS) SendSMS(context.Context, send.SMS) (string, error) {
	c.calls++
	return "ext-1", nil
}

func TestSendWithoutPrimaryNumberNeverCallsProvider(t *testing.T) {
	f := newFixture()
	provider := &countingSMS{}
	f.deps.Dispatcher = send.NewDispatcher(nil, f.deps.Stores, noNumber{}, provider, send.DisabledMailer{}, send.Sender{}, nil)
	s := f.open(t, owner)
	mustSelect(t, s, refS1)

	s.SetDraft("hello")
	if _, err := s.Send(context.Background(), SendInput{}); !errors.Is(err, send.ErrNoPrimaryNumber) {
		t.Fatalf("Send = %v, want ErrNoPrimaryNumber", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times", provider.calls)
	}
	if d := s.Snapshot().Draft; d != "hello" {
		t.Fatalf("draft = %q", d)
	}
}

func TestSendRequiresActiveConversation(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	if _, err := s.Send(context.Background(), SendInput{Body: "hi"}); !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("Send = %v, want ErrNoActiveConversation", err)
	}
}

func TestReconcileEchoesRefreshesOverdue(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()
	mustSelect(t, s, refS1)
	if _, err := s.Send(ctx, SendInput{Body: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := s.PendingEchoes(); n != 1 {
		t.Fatalf("pending echoes = %d, want 1", n)
	}

	if n := s.ReconcileEchoes(ctx, time.Now(), time.Minute); n != 0 {
		t.Fatalf("reconciled %d before timeout", n)
	}
	listBefore := f.sms.Calls("list")
	messagesBefore := f.sms.Calls("messages")
	if n := s.ReconcileEchoes(ctx, time.Now().Add(2*time.Minute), time.Minute); n != 1 {
		t.Fatalf("reconciled %d after timeout, want 1", n)
	}
	if n := s.PendingEchoes(); n != 0 {
		t.Fatalf("pending echoes = %d after reconcile", n)
	}
	if f.sms.Calls("list") != listBefore+1 || f.sms.Calls("messages") != messagesBefore+1 {
		t.Fatalf("reconcile did not reload list and thread")
	}
}

func TestArchiveAndStar(t *testing.T) {
	f := newFixture()
	s := f.open(t, owner)
	ctx := context.Background()

	conv, err := s.Archive(ctx, refE1, true)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !conv.IsArchived {
		t.Fatalf("archive flag not returned")
	}
	for _, c := range s.Snapshot().Conversations {
		if c.ID == "e1" && (!c.IsArchived || c.ContactName != "Jane Doe") {
			t.Fatalf("list row after archive = %+v", c)
		}
	}

	if _, err := s.Star(ctx, refS1, true); !errors.Is(err, conversation.ErrUnsupported) {
		t.Fatalf("Star sms = %v, want ErrUnsupported", err)
	}

	conv, err = s.Star(ctx, refE1, true)
	if err != nil {
		t.Fatalf("Star email: %v", err)
	}
	if !conv.IsStarred {
		t.Fatalf("star flag not returned")
	}
}

func TestGenerateReplies(t *testing.T) {
	f := newFixture()
	assistant := &fakeAssistant{out: []smartreply.Suggestion{{ID: "a", Text: "Tuesday works", Confidence: 0.9}}}
	f.deps.Assistant = assistant
	s := f.open(t, owner)
	ctx := context.Background()

	if _, err := s.GenerateReplies(ctx, smartreply.ToneFriendly); !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("GenerateReplies without thread = %v", err)
	}

	mustSelect(t, s, refS1)
	out, err := s.GenerateReplies(ctx, smartreply.ToneFriendly)
	if err != nil {
		t.Fatalf("GenerateReplies: %v", err)
	}
	snap := s.Snapshot()
	if len(out) != 1 || len(snap.Suggestions) != 1 || snap.Generating {
		t.Fatalf("out = %d suggestions = %d generating = %v", len(out), len(snap.Suggestions), snap.Generating)
	}

	assistant.err = errors.New("model unavailable")
	if _, err := s.GenerateReplies(ctx, smartreply.ToneFriendly); err == nil {
		t.Fatalf("expected assistant error")
	}
	if n := len(s.Snapshot().Suggestions); n != 0 {
		t.Fatalf("suggestions kept after failure: %d", n)
	}
}

func TestGenerateRepliesDropsResultForOtherThread(t *testing.T) {
	f := newFixture()
	assistant := &fakeAssistant{out: []smartreply.Suggestion{{ID: "a", Text: "ok"}}}
	f.deps.Assistant = assistant
	s := f.open(t, owner)
	mustSelect(t, s, refS1)

	assistant.hook = func() { s.Deselect() }
	if _, err := s.GenerateReplies(context.Background(), smartreply.ToneBrief); err != nil {
		t.Fatalf("GenerateReplies: %v", err)
	}
	if n := len(s.Snapshot().Suggestions); n != 0 {
		t.Fatalf("suggestions for a deselected thread: %d", n)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	f := newFixture()
	s := New(nil, f.deps, owner)
	events, _ := s.Subscribe()
	s.Close()
	if _, ok := <-events; ok {
		t.Fatalf("subscription still open after close")
	}
	if err := s.Refresh(context.Background(), inbox.Query{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Refresh after close = %v, want ErrClosed", err)
	}
}
