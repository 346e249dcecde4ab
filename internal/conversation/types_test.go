package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldline/fieldline/internal/db/sqlc"
)

func pgUUID(s string) pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.MustParse(s), Valid: true}
}

func TestParseChannel(t *testing.T) {
	t.Parallel()

	ch, err := ParseChannel(" SMS ")
	if err != nil || ch != ChannelSMS {
		t.Fatalf("ParseChannel(SMS) = %q, %v", ch, err)
	}
	if _, err := ParseChannel("fax"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]Category{
		"needs_reply": CategoryNeedsReply,
		"Starred":     CategoryStarred,
		"":            CategoryAll,
		"spam":        CategoryAll,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromSMSRowBuildsTaggedUnion(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := sqlc.SmsConversation{
		ID:                 pgUUID("11111111-1111-1111-1111-111111111111"),
		OrganizationID:     pgUUID("22222222-2222-2222-2222-222222222222"),
		ClientID:           pgUUID("33333333-3333-3333-3333-333333333333"),
		ClientPhone:        "+15550001111",
		PhoneNumber:        "+15559990000",
		Status:             "archived",
		LastMessageAt:      pgtype.Timestamptz{Time: at, Valid: true},
		LastMessagePreview: pgtype.Text{String: "On my way", Valid: true},
		UnreadCount:        2,
	}
	conv := FromSMSRow(row, "John Smith")

	if conv.Channel != ChannelSMS || conv.DisplayName() != "John Smith" {
		t.Fatalf("unexpected channel/name %q/%q", conv.Channel, conv.DisplayName())
	}
	if conv.ClientID != "33333333-3333-3333-3333-333333333333" || conv.UserID != "" {
		t.Fatalf("unexpected client/user %q/%q", conv.ClientID, conv.UserID)
	}
	if !conv.IsArchived || conv.IsStarred || !conv.NeedsReply() {
		t.Fatalf("unexpected flags archived=%v starred=%v needs_reply=%v", conv.IsArchived, conv.IsStarred, conv.NeedsReply())
	}
	if conv.SMS == nil || conv.Email != nil {
		t.Fatalf("expected sms details only")
	}
	if got := conv.BusinessIdentity(); got != "+15559990000" {
		t.Fatalf("business identity = %q", got)
	}
	if ref := conv.Ref(); ref != (Ref{Channel: ChannelSMS, ID: "11111111-1111-1111-1111-111111111111"}) {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestFromEmailRowBuildsTaggedUnion(t *testing.T) {
	t.Parallel()

	row := sqlc.EmailConversation{
		ID:           pgUUID("44444444-4444-4444-4444-444444444444"),
		ClientEmail:  "jane@example.com",
		EmailAddress: "office@acme.test",
		Subject:      "Quote for deck",
		IsStarred:    true,
	}
	conv := FromEmailRow(row, "")

	if conv.Channel != ChannelEmail || conv.DisplayName() != "jane@example.com" {
		t.Fatalf("unexpected channel/name %q/%q", conv.Channel, conv.DisplayName())
	}
	if conv.Subject() != "Quote for deck" {
		t.Fatalf("subject = %q", conv.Subject())
	}
	if !conv.IsStarred || conv.NeedsReply() {
		t.Fatalf("unexpected flags starred=%v needs_reply=%v", conv.IsStarred, conv.NeedsReply())
	}
	if conv.Email == nil || conv.SMS != nil {
		t.Fatalf("expected email details only")
	}
	if conv.Email.AssignedTo != "" {
		t.Fatalf("assigned to = %q", conv.Email.AssignedTo)
	}
}

func TestFromEmailMessageRowSanitizes(t *testing.T) {
	t.Parallel()

	row := sqlc.EmailMessage{
		ID:       pgUUID("55555555-5555-5555-5555-555555555555"),
		HtmlBody: pgtype.Text{String: `<p onclick="x()">Hello <b>there</b></p><script>alert(1)</script>`, Valid: true},
		Metadata: []byte(`{"type":"invoice_paid"}`),
	}
	msg := FromEmailMessageRow(row)

	if strings.Contains(msg.HTMLBody, "script") || strings.Contains(msg.HTMLBody, "onclick") {
		t.Fatalf("unsafe html kept: %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLBody, "<b>there</b>") {
		t.Fatalf("safe markup dropped: %q", msg.HTMLBody)
	}
	if msg.Body != "Hello there" {
		t.Fatalf("body = %q", msg.Body)
	}
	if got := msg.NotificationType(); got != NotificationInvoicePaid {
		t.Fatalf("notification type = %q", got)
	}
}

func TestNotificationTypeIgnoresOtherValues(t *testing.T) {
	t.Parallel()

	if got := (Message{}).NotificationType(); got != "" {
		t.Fatalf("empty metadata type = %q", got)
	}
	if got := (Message{Metadata: map[string]any{"type": "reminder"}}).NotificationType(); got != "" {
		t.Fatalf("unknown type = %q", got)
	}
	if got := (Message{Metadata: map[string]any{"type": "estimate_sent"}}).NotificationType(); got != NotificationEstimateSent {
		t.Fatalf("estimate_sent type = %q", got)
	}
}

func TestConversationJSONIncludesNeedsReply(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Conversation{ID: "c1", Channel: ChannelSMS, UnreadCount: 1, SMS: &SMSDetails{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["needs_reply"] != true || decoded["channel"] != "sms" {
		t.Fatalf("unexpected json %s", raw)
	}
}

func TestSMSStarIsUnsupportedWithoutIO(t *testing.T) {
	t.Parallel()

	store := NewSMSStore(nil, nil)
	if _, err := store.SetStarred(context.Background(), "11111111-1111-1111-1111-111111111111", true); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestStoresFor(t *testing.T) {
	t.Parallel()

	sms := NewSMSStore(nil, nil)
	stores := Stores{SMS: sms}

	got, err := stores.For(ChannelSMS)
	if err != nil {
		t.Fatalf("For(sms): %v", err)
	}
	if got != ChannelStore(sms) {
		t.Fatalf("For(sms) returned a different store")
	}
	if _, err := stores.For(ChannelEmail); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel for missing store, got %v", err)
	}
}

func TestInvalidIDIsRejectedBeforeQuery(t *testing.T) {
	t.Parallel()

	store := NewEmailStore(nil, nil)
	if _, err := store.MarkRead(context.Background(), "nope"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestSearchTextEscapesWildcards(t *testing.T) {
	t.Parallel()

	if searchText("   ").Valid {
		t.Fatalf("blank search should be NULL")
	}
	if got := searchText("50%_off").String; got != `50\%\_off` {
		t.Fatalf("searchText = %q", got)
	}
}

func TestClientIDsKeepsRestrictionForMalformedInput(t *testing.T) {
	t.Parallel()

	if clientIDs(nil) != nil {
		t.Fatalf("nil filter should not restrict")
	}
	got := clientIDs([]string{"garbage"})
	if got == nil || len(got) != 0 {
		t.Fatalf("malformed ids should restrict to nothing, got %#v", got)
	}
	if got := clientIDs([]string{"33333333-3333-3333-3333-333333333333", "x"}); len(got) != 1 || !got[0].Valid {
		t.Fatalf("clientIDs = %#v", got)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	tests := map[int]int{0: 50, 10: 10, 5000: 200}
	for in, want := range tests {
		if got := clampLimit(in); int(got) != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
