// Package ingest records messages delivered by the SMS provider and the
// inbound mail relay.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/smartreply"
)

var (
	ErrUnknownRecipient = errors.New("no organization owns the recipient")
	ErrInvalidPayload   = errors.New("invalid inbound payload")
)

// Directory maps business identities to organizations.
type Directory interface {
	ByPhoneNumber(ctx context.Context, number string) (string, error)
	ByInboundEmail(ctx context.Context, address string) (string, error)
}

// IntentClassifier labels inbound text.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, text string) (smartreply.Intent, error)
}

// IntentStore persists an intent label on a message.
type IntentStore interface {
	SetIntent(ctx context.Context, messageID, intent string, confidence float64) error
}

// InboundSMS is the provider's webhook payload.
type InboundSMS struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
}

type Service struct {
	stores     conversation.Stores
	directory  Directory
	classifier IntentClassifier
	intents    IntentStore
	timeout    time.Duration
	logger     *slog.Logger
}

// NewService builds the ingest service. classifier and intents may be nil,
// in which case inbound SMS is stored without an intent label.
func NewService(log *slog.Logger, stores conversation.Stores, directory Directory, classifier IntentClassifier, intents IntentStore) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		stores:     stores,
		directory:  directory,
		classifier: classifier,
		intents:    intents,
		timeout:    15 * time.Second,
		logger:     log.With(slog.String("service", "ingest")),
	}
}

// ReceiveSMS stores an inbound text under the organization owning the
// business number it was sent to.
func (s *Service) ReceiveSMS(ctx context.Context, in InboundSMS) (conversation.Message, error) {
	from := conversation.NormalizePhone(in.From)
	to := conversation.NormalizePhone(in.To)
	if from == "" || to == "" {
		return conversation.Message{}, fmt.Errorf("%w: from and to must be phone numbers", ErrInvalidPayload)
	}
	if strings.TrimSpace(in.Text) == "" {
		return conversation.Message{}, fmt.Errorf("%w: empty text", ErrInvalidPayload)
	}
	orgID, err := s.directory.ByPhoneNumber(ctx, to)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("%w: %s: %w", ErrUnknownRecipient, to, err)
	}
	store, err := s.stores.For(conversation.ChannelSMS)
	if err != nil {
		return conversation.Message{}, err
	}
	_, msg, err := store.RecordInbound(ctx, conversation.Record{
		OrganizationID:   orgID,
		Contact:          from,
		BusinessIdentity: to,
		Body:             in.Text,
		Status:           "received",
		ExternalID:       in.ID,
		At:               in.ReceivedAt,
	})
	if err != nil {
		return conversation.Message{}, fmt.Errorf("record inbound sms: %w", err)
	}
	s.logger.Info("inbound sms recorded", slog.String("organization_id", orgID), slog.String("message_id", msg.ID))
	s.classify(ctx, &msg)
	return msg, nil
}

// classify labels an inbound SMS. Failures leave the message unlabeled.
func (s *Service) classify(ctx context.Context, msg *conversation.Message) {
	if s.classifier == nil || s.intents == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.classifier.ClassifyIntent(ctx, msg.Body)
	if err != nil {
		if !errors.Is(err, smartreply.ErrDisabled) {
			s.logger.Warn("classify inbound sms failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
		return
	}
	if err := s.intents.SetIntent(ctx, msg.ID, intent.Intent, intent.Confidence); err != nil {
		s.logger.Warn("store intent failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		return
	}
	msg.Intent = intent.Intent
	confidence := intent.Confidence
	msg.Confidence = &confidence
}

// ReceiveEmail stores a parsed inbound email under the first recipient
// mailbox that belongs to an organization.
func (s *Service) ReceiveEmail(ctx context.Context, in InboundEmail) (conversation.Message, error) {
	if in.From == "" {
		return conversation.Message{}, fmt.Errorf("%w: missing sender", ErrInvalidPayload)
	}
	var orgID, mailbox string
	for _, rcpt := range in.To {
		id, err := s.directory.ByInboundEmail(ctx, rcpt)
		if err == nil {
			orgID, mailbox = id, rcpt
			break
		}
	}
	if orgID == "" {
		return conversation.Message{}, fmt.Errorf("%w: %s", ErrUnknownRecipient, strings.Join(in.To, ", "))
	}

	text := in.Text
	if text == "" {
		text = conversation.PlainText(in.HTML)
	}
	html := ""
	if in.HTML != "" {
		html = conversation.SanitizeHTML(in.HTML)
	}
	if strings.TrimSpace(text) == "" && html == "" {
		return conversation.Message{}, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	meta := map[string]any{}
	if in.FromName != "" {
		meta["from_name"] = in.FromName
	}
	if len(in.InReplyTo) > 0 {
		meta["in_reply_to"] = in.InReplyTo
	}
	if len(in.Attachments) > 0 {
		meta["attachments"] = in.Attachments
	}
	if !in.Date.IsZero() {
		meta["sent_at"] = in.Date.UTC().Format(time.RFC3339)
	}

	store, err := s.stores.For(conversation.ChannelEmail)
	if err != nil {
		return conversation.Message{}, err
	}
	_, msg, err := store.RecordInbound(ctx, conversation.Record{
		OrganizationID:   orgID,
		Contact:          in.From,
		BusinessIdentity: mailbox,
		Subject:          strings.TrimSpace(in.Subject),
		Body:             text,
		HTMLBody:         html,
		Status:           "received",
		ExternalID:       in.MessageID,
		Metadata:         meta,
	})
	if err != nil {
		return conversation.Message{}, fmt.Errorf("record inbound email: %w", err)
	}
	s.logger.Info("inbound email recorded", slog.String("organization_id", orgID), slog.String("message_id", msg.ID))
	return msg, nil
}
