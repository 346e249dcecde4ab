// Package realtime carries row changes from Postgres to inbox sessions.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldline/fieldline/internal/conversation"
)

// ChangeType is the row operation a Change describes.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
	// ChangeResync tells subscribers that events may have been missed.
	ChangeResync ChangeType = "resync"
)

const (
	TableSMSConversations   = "sms_conversations"
	TableSMSMessages        = "sms_messages"
	TableEmailConversations = "email_conversations"
	TableEmailMessages      = "email_messages"
)

// MessageTable returns the message table for a channel.
func MessageTable(ch conversation.Channel) string {
	if ch == conversation.ChannelEmail {
		return TableEmailMessages
	}
	return TableSMSMessages
}

// TableChannel maps a table name to its channel and whether it holds messages.
func TableChannel(table string) (conversation.Channel, bool, error) {
	switch table {
	case TableSMSMessages:
		return conversation.ChannelSMS, true, nil
	case TableSMSConversations:
		return conversation.ChannelSMS, false, nil
	case TableEmailMessages:
		return conversation.ChannelEmail, true, nil
	case TableEmailConversations:
		return conversation.ChannelEmail, false, nil
	}
	return "", false, fmt.Errorf("unknown table %q", table)
}

// Change is one row change as emitted by the notify trigger.
type Change struct {
	Table     string          `json:"table"`
	Type      ChangeType      `json:"type"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Row returns the post-image, or the pre-image for deletes.
func (c Change) Row() json.RawMessage {
	if c.Type == ChangeDelete || len(c.New) == 0 || string(c.New) == "null" {
		return c.Old
	}
	return c.New
}

// ParseChange decodes a notification payload.
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		return Change{}, errors.New("decode change: missing table")
	}
	switch c.Type {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return Change{}, fmt.Errorf("decode change: unknown type %q", c.Type)
	}
	return c, nil
}
