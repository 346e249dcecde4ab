package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change payloads carry rows as to_jsonb output: column names as keys,
// uuids as strings, timestamps in ISO 8601.

type smsMessageJSON struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	OrganizationID string          `json:"organization_id"`
	Direction      string          `json:"direction"`
	FromNumber     string          `json:"from_number"`
	ToNumber       string          `json:"to_number"`
	Content        string          `json:"content"`
	Status         string          `json:"status"`
	AiIntent       *string         `json:"ai_intent"`
	AiConfidence   *float64        `json:"ai_confidence"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}

type emailMessageJSON struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	OrganizationID string          `json:"organization_id"`
	Direction      string          `json:"direction"`
	FromEmail      string          `json:"from_email"`
	ToEmail        string          `json:"to_email"`
	Subject        string          `json:"subject"`
	Body           string          `json:"body"`
	HTMLBody       *string         `json:"html_body"`
	Status         string          `json:"status"`
	IsRead         bool            `json:"is_read"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}

type conversationJSON struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ClientID       string `json:"client_id"`
	UnreadCount    int    `json:"unread_count"`
}

// DecodeMessageRow maps a message row from a change payload into a Message.
func DecodeMessageRow(ch Channel, raw json.RawMessage) (Message, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Message{}, fmt.Errorf("decode %s message: empty row", ch)
	}
	switch ch {
	case ChannelSMS:
		var row smsMessageJSON
		if err := json.Unmarshal(raw, &row); err != nil {
			return Message{}, fmt.Errorf("decode sms message: %w", err)
		}
		msg := Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			OrganizationID: row.OrganizationID,
			Channel:        ChannelSMS,
			Direction:      Direction(row.Direction),
			From:           row.FromNumber,
			To:             row.ToNumber,
			Body:           row.Content,
			Status:         row.Status,
			Confidence:     row.AiConfidence,
			Metadata:       decodeMetadata(row.Metadata),
			CreatedAt:      row.CreatedAt,
		}
		if row.AiIntent != nil {
			msg.Intent = *row.AiIntent
		}
		return msg, nil
	case ChannelEmail:
		var row emailMessageJSON
		if err := json.Unmarshal(raw, &row); err != nil {
			return Message{}, fmt.Errorf("decode email message: %w", err)
		}
		var htmlBody string
		if row.HTMLBody != nil {
			htmlBody = SanitizeHTML(*row.HTMLBody)
		}
		body := row.Body
		if body == "" && htmlBody != "" {
			body = PlainText(htmlBody)
		}
		return Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			OrganizationID: row.OrganizationID,
			Channel:        ChannelEmail,
			Direction:      Direction(row.Direction),
			From:           row.FromEmail,
			To:             row.ToEmail,
			Body:           body,
			Subject:        row.Subject,
			HTMLBody:       htmlBody,
			Status:         row.Status,
			IsRead:         row.IsRead,
			Metadata:       decodeMetadata(row.Metadata),
			CreatedAt:      row.CreatedAt,
		}, nil
	}
	return Message{}, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

// RowHeader holds the columns every conversation row shares.
type RowHeader struct {
	ID             string
	OrganizationID string
	ClientID       string
	UnreadCount    int
}

// DecodeConversationRow reads the shared columns of a conversation row.
func DecodeConversationRow(raw json.RawMessage) (RowHeader, error) {
	var row conversationJSON
	if err := json.Unmarshal(raw, &row); err != nil {
		return RowHeader{}, fmt.Errorf("decode conversation row: %w", err)
	}
	return RowHeader(row), nil
}
