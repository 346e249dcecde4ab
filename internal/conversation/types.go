// Package conversation defines the unified SMS/email conversation model and
// the per-channel Postgres stores behind it.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("conversation not found")
	ErrUnsupported    = errors.New("operation not supported for channel")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidID      = errors.New("invalid conversation id")
)

// Channel is the transport a conversation lives on. It never changes after creation.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Channels lists every supported channel in fetch order.
var Channels = []Channel{ChannelSMS, ChannelEmail}

func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelSMS:
		return ChannelSMS, nil
	case ChannelEmail:
		return ChannelEmail, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, raw)
	}
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Category is an inbox view selector.
type Category string

const (
	CategoryAll        Category = "all"
	CategorySMS        Category = "sms"
	CategoryEmail      Category = "email"
	CategoryNeedsReply Category = "needs_reply"
	CategoryUnread     Category = "unread"
	CategoryStarred    Category = "starred"
	CategoryArchived   Category = "archived"
)

// ParseCategory maps raw input to a Category; unknown or empty values mean CategoryAll.
func ParseCategory(raw string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategorySMS, CategoryEmail, CategoryNeedsReply, CategoryUnread, CategoryStarred, CategoryArchived:
		return c
	default:
		return CategoryAll
	}
}

// Ref addresses a conversation. IDs are only unique within a channel.
type Ref struct {
	Channel Channel `json:"channel"`
	ID      string  `json:"id"`
}

func (r Ref) IsZero() bool { return r.ID == "" }

func (r Ref) String() string { return string(r.Channel) + ":" + r.ID }

// SMSDetails carries fields only SMS conversations have.
type SMSDetails struct {
	BusinessNumber string `json:"business_number"`
	Status         string `json:"status"`
}

// EmailDetails carries fields only email conversations have.
type EmailDetails struct {
	Subject         string `json:"subject"`
	BusinessAddress string `json:"business_address"`
	AssignedTo      string `json:"assigned_to,omitempty"`
}

// Conversation is the channel-independent view of a thread. Exactly one of
// SMS or Email is set, matching Channel.
type Conversation struct {
	ID                 string        `json:"id"`
	Channel            Channel       `json:"channel"`
	ContactIdentifier  string        `json:"contact_identifier"`
	ContactName        string        `json:"contact_name,omitempty"`
	ClientID           string        `json:"client_id,omitempty"`
	OrganizationID     string        `json:"organization_id"`
	UserID             string        `json:"user_id,omitempty"`
	LastMessageAt      time.Time     `json:"last_message_at"`
	LastMessagePreview string        `json:"last_message_preview"`
	UnreadCount        int           `json:"unread_count"`
	IsArchived         bool          `json:"is_archived"`
	IsStarred          bool          `json:"is_starred"`
	SMS                *SMSDetails   `json:"sms,omitempty"`
	Email              *EmailDetails `json:"email,omitempty"`
}

func (c Conversation) Ref() Ref { return Ref{Channel: c.Channel, ID: c.ID} }

// NeedsReply reports whether the conversation has unread inbound traffic.
func (c Conversation) NeedsReply() bool { return c.UnreadCount > 0 }

// DisplayName prefers the linked client's name over the raw identifier.
func (c Conversation) DisplayName() string {
	if c.ContactName != "" {
		return c.ContactName
	}
	return c.ContactIdentifier
}

// Subject returns the email subject, or "" for SMS.
func (c Conversation) Subject() string {
	if c.Email != nil {
		return c.Email.Subject
	}
	return ""
}

// BusinessIdentity is the organization-side address: the SMS number or the mailbox.
func (c Conversation) BusinessIdentity() string {
	switch {
	case c.SMS != nil:
		return c.SMS.BusinessNumber
	case c.Email != nil:
		return c.Email.BusinessAddress
	}
	return ""
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	type alias Conversation
	return json.Marshal(struct {
		alias
		NeedsReply bool `json:"needs_reply"`
	}{alias: alias(c), NeedsReply: c.NeedsReply()})
}

// Message is the channel-independent view of one message in a thread.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Channel        Channel        `json:"channel"`
	Direction      Direction      `json:"direction"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	Body           string         `json:"body"`
	Subject        string         `json:"subject,omitempty"`
	HTMLBody       string         `json:"html_body,omitempty"`
	Status         string         `json:"status"`
	IsRead         bool           `json:"is_read,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ConversationRef addresses the thread this message belongs to.
func (m Message) ConversationRef() Ref {
	return Ref{Channel: m.Channel, ID: m.ConversationID}
}

// Notification types carried in metadata.type by document lifecycle messages.
const (
	NotificationEstimateSent     = "estimate_sent"
	NotificationEstimateApproved = "estimate_approved"
	NotificationEstimateDeclined = "estimate_declined"
	NotificationInvoiceSent      = "invoice_sent"
	NotificationInvoicePaid      = "invoice_paid"
)

// NotificationType returns metadata.type when it names a document lifecycle
// event (estimate_* or invoice_*), else "".
func (m Message) NotificationType() string {
	if m.Metadata == nil {
		return ""
	}
	t, _ := m.Metadata["type"].(string)
	if strings.HasPrefix(t, "estimate_") || strings.HasPrefix(t, "invoice_") {
		return t
	}
	return ""
}

// Scope restricts store reads. Empty fields do not filter.
type Scope struct {
	OrganizationID string
	UserID         string
}

// Filter selects conversations for a list read.
type Filter struct {
	Scope
	Archived    *bool
	UnreadOnly  bool
	StarredOnly bool
	Search      string
	Limit       int
	// ClientIDs restricts rows to these clients when non-nil. An empty
	// non-nil slice matches nothing.
	ClientIDs []string
}

// Summary is the lightweight row used for counts.
type Summary struct {
	ID          string
	ClientID    string
	UnreadCount int
}

// Record describes one message to persist together with its conversation upsert.
type Record struct {
	OrganizationID   string
	UserID           string
	Contact          string
	BusinessIdentity string
	Subject          string
	Body             string
	HTMLBody         string
	Status           string
	ExternalID       string
	Metadata         map[string]any
	At               time.Time
}
