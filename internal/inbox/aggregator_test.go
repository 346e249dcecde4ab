package inbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"


	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/conversation/conversationtest"
	"github.com/fieldline/fieldline/internal/visibility"
)

var (
	policy = visibility.Policy{RestrictedRoles: []string{"technician"}, ViewAllPermission: "view_all_messages"}
	owner  = visibility.Viewer{UserID: "u-owner", OrganizationID: "org-1", Role: "owner"}
	tech   = visibility.Viewer{UserID: "u-tech", OrganizationID: "org-1", Role: "technician"}
	base   = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func fixture() (*Aggregator, *conversationtest.Store, *conversationtest.Store) {
	sms := conversationtest.New(conversation.ChannelSMS)
	email := conversationtest.New(conversation.ChannelEmail)
	sms.Add(
		conversation.Conversation{ID: "s1", OrganizationID: "org-1", ClientID: "client-john", ContactName: "John Smith", ContactIdentifier: "+15550001111", LastMessageAt: base.Add(1 * time.Hour), UnreadCount: 1},
		conversation.Conversation{ID: "s2", OrganizationID: "org-1", ContactIdentifier: "+15550002222", LastMessageAt: base.Add(3 * time.Hour)},
	)
	email.Add(
		conversation.Conversation{ID: "e1", OrganizationID: "org-1", ClientID: "client-jane", ContactName: "Jane Doe", ContactIdentifier: "jane@example.com", LastMessageAt: base.Add(2 * time.Hour), IsStarred: true},
		conversation.Conversation{ID: "e2", OrganizationID: "org-1", ClientID: "client-john", ContactIdentifier: "john.smith@example.com", LastMessageAt: base, IsArchived: true},
	)
	agg := NewAggregator(nil, conversation.Stores{SMS: sms, Email: email}, policy)
	return agg, sms, email
}

func ids(convs []conversation.Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func assertIDs(t *testing.T, got []conversation.Conversation, want ...string) {
	t.Helper()
	if ids := ids(got); !slices.Equal(ids, want) {
		t.Fatalf("conversations = %v, want %v", ids, want)
	}
}

func TestListMergesByRecency(t *testing.T) {
	agg, sms, _ := fixture()
	res, err := agg.List(context.Background(), owner, nil, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertIDs(t, res.Conversations, "s2", "e1", "s1")
	if len(res.ChannelErrors) != 0 {
		t.Fatalf("channel errors = %v", res.ChannelErrors)
	}

	sms.Add(conversation.Conversation{ID: "s3", OrganizationID: "org-1", LastMessageAt: base.Add(10 * time.Hour)})
	res, err = agg.List(context.Background(), owner, nil, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Conversations[0].ID != "s3" {
		t.Fatalf("newest = %q, want s3", res.Conversations[0].ID)
	}
}

func TestListTiesKeepFetchOrder(t *testing.T) {
	sms := conversationtest.New(conversation.ChannelSMS)
	email := conversationtest.New(conversation.ChannelEmail)
	sms.Add(conversation.Conversation{ID: "s", LastMessageAt: base})
	email.Add(conversation.Conversation{ID: "e", LastMessageAt: base})
	agg := NewAggregator(nil, conversation.Stores{SMS: sms, Email: email}, policy)

	res, err := agg.List(context.Background(), owner, nil, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertIDs(t, res.Conversations, "s", "e")
}

func TestListCategoryRouting(t *testing.T) {
	tests := []struct {
		category  conversation.Category
		want      []string
		smsCalls  int
		mailCalls int
	}{
		{conversation.CategorySMS, []string{"s2", "s1"}, 1, 0},
		{conversation.CategoryEmail, []string{"e1"}, 0, 1},
		{conversation.CategoryStarred, []string{"e1"}, 0, 1},
		{conversation.CategoryNeedsReply, []string{"s1"}, 1, 1},
		{conversation.CategoryUnread, []string{"s1"}, 1, 1},
		{conversation.CategoryArchived, []string{"e2"}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			agg, sms, email := fixture()
			res, err := agg.List(context.Background(), owner, nil, Query{Category: tt.category})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			assertIDs(t, res.Conversations, tt.want...)
			if got := sms.Calls("list"); got != tt.smsCalls {
				t.Errorf("sms list calls = %d, want %d", got, tt.smsCalls)
			}
			if got := email.Calls("list"); got != tt.mailCalls {
				t.Errorf("email list calls = %d, want %d", got, tt.mailCalls)
			}
		})
	}
}

func TestListSearchAcrossChannels(t *testing.T) {
	agg, _, _ := fixture()
	res, err := agg.List(context.Background(), owner, nil, Query{Search: "John"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Conversations) != 1 {
		t.Fatalf("matches = %v, want one", ids(res.Conversations))
	}
	if c := res.Conversations[0]; c.ContactName != "John Smith" || c.Channel != conversation.ChannelSMS {
		t.Fatalf("unexpected match %+v", c)
	}
}

func TestListPartialFailure(t *testing.T) {
	agg, _, email := fixture()
	email.ListErr = errors.New("email backend down")

	res, err := agg.List(context.Background(), owner, nil, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertIDs(t, res.Conversations, "s2", "s1")
	if msg := res.ChannelErrors[conversation.ChannelEmail]; !strings.Contains(msg, "email backend down") {
		t.Fatalf("email channel error = %q", msg)
	}
}

func TestListFailsWhenEveryChannelFails(t *testing.T) {
	agg, sms, email := fixture()
	sms.ListErr = errors.New("sms down")
	email.ListErr = errors.New("email down")

	if _, err := agg.List(context.Background(), owner, nil, Query{}); !errors.Is(err, ErrAllChannelsFailed) {
		t.Fatalf("expected ErrAllChannelsFailed, got %v", err)
	}

	// A single-channel category fails when its only channel fails.
	email.ListErr = nil
	if _, err := agg.List(context.Background(), owner, nil, Query{Category: conversation.CategorySMS}); !errors.Is(err, ErrAllChannelsFailed) {
		t.Fatalf("expected ErrAllChannelsFailed for sms category, got %v", err)
	}
}

func TestListLimit(t *testing.T) {
	agg, _, _ := fixture()
	res, err := agg.List(context.Background(), owner, nil, Query{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Conversations) != 2 {
		t.Fatalf("conversations = %d, want 2", len(res.Conversations))
	}
	if normalizeLimit(0) != DefaultLimit || normalizeLimit(10_000) != MaxLimit {
		t.Fatalf("normalizeLimit bounds = %d/%d", normalizeLimit(0), normalizeLimit(10_000))
	}
}

func TestRestrictedViewerWithoutAssignmentsSeesNothing(t *testing.T) {
	agg, sms, _ := fixture()
	res, err := agg.List(context.Background(), tech, nil, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Conversations) != 0 {
		t.Fatalf("unassigned technician sees %v", ids(res.Conversations))
	}
	if n := sms.Calls("list"); n != 0 {
		t.Fatalf("store queried %d times for an empty assignment", n)
	}

	counts, err := agg.Counts(context.Background(), tech, visibility.NewAssignment())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts != (Counts{}) {
		t.Fatalf("counts = %+v, want zero", counts)
	}
}

func TestRestrictedViewerSeesAssignedClients(t *testing.T) {
	agg, _, _ := fixture()
	res, err := agg.List(context.Background(), tech, visibility.NewAssignment("client-jane"), Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertIDs(t, res.Conversations, "e1")
}

func TestRestrictedListIsNotCrowdedOutByNewerRows(t *testing.T) {
	sms := conversationtest.New(conversation.ChannelSMS)
	email := conversationtest.New(conversation.ChannelEmail)
	sms.Add(conversation.Conversation{ID: "assigned", OrganizationID: "org-1", ClientID: "client-a", LastMessageAt: base, UnreadCount: 2})
	for i := range 60 {
		sms.Add(conversation.Conversation{
			ID:             fmt.Sprintf("other-%d", i),
			OrganizationID: "org-1",
			ClientID:       "client-b",
			LastMessageAt:  base.Add(time.Duration(i+1) * time.Minute),
		})
	}
	agg := NewAggregator(nil, conversation.Stores{SMS: sms, Email: email}, policy)
	assigned := visibility.NewAssignment("client-a")

	res, err := agg.List(context.Background(), tech, assigned, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertIDs(t, res.Conversations, "assigned")

	counts, err := agg.Counts(context.Background(), tech, assigned)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Total != len(res.Conversations) || counts.Unread != 1 {
		t.Fatalf("counts = %+v, want total %d unread 1", counts, len(res.Conversations))
	}
}

func TestCounts(t *testing.T) {
	agg, sms, _ := fixture()
	sms.Add(conversation.Conversation{ID: "s1", OrganizationID: "org-1", ClientID: "client-john", LastMessageAt: base, UnreadCount: 3})

	counts, err := agg.Counts(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if want := (ChannelCount{Total: 2, Unread: 1, UnreadMessages: 3}); counts.SMS != want {
		t.Fatalf("sms counts = %+v, want %+v", counts.SMS, want)
	}
	if want := (ChannelCount{Total: 1}); counts.Email != want {
		t.Fatalf("email counts = %+v, want %+v", counts.Email, want)
	}
	if counts.Total != 3 || counts.Unread != 1 || counts.NeedsReply != 1 {
		t.Fatalf("totals = %+v", counts)
	}
}

func TestCountsFailOnAnyChannel(t *testing.T) {
	agg, _, email := fixture()
	email.SummariesErr = errors.New("timeout")
	if _, err := agg.Counts(context.Background(), owner, nil); err == nil {
		t.Fatalf("expected error when a channel fails")
	}
}

func TestCountsFrom(t *testing.T) {
	t.Parallel()

	convs := []conversation.Conversation{
		{ID: "a", Channel: conversation.ChannelSMS, UnreadCount: 1},
		{ID: "b", Channel: conversation.ChannelEmail},
		{ID: "c", Channel: conversation.ChannelEmail, UnreadCount: 2, IsArchived: true},
	}
	if c := CountsFrom(convs); c.NeedsReply != 1 || c.Total != 2 {
		t.Fatalf("CountsFrom = %+v", c)
	}

	convs[0].UnreadCount = 0
	if n := CountsFrom(convs).NeedsReply; n != 0 {
		t.Fatalf("needs reply = %d after read", n)
	}
}

func TestSearchFields(t *testing.T) {
	t.Parallel()

	convs := []conversation.Conversation{
		{ID: "1", ContactName: "Ann"},
		{ID: "2", ContactIdentifier: "+1555ANN"},
		{ID: "3", Channel: conversation.ChannelEmail, Email: &conversation.EmailDetails{Subject: "Annual service"}},
		{ID: "4", LastMessagePreview: "see you, annie"},
		{ID: "5", ContactName: "Bob"},
	}
	assertIDs(t, Search(convs, "ann"), "1", "2", "3", "4")
	if n := len(Search(convs, "  ")); n != 5 {
		t.Fatalf("blank search kept %d, want 5", n)
	}
}
