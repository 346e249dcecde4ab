// Package send routes outbound replies to the SMS provider or the mail relay
// and records them in the conversation thread.
package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal/conversation"
)

var (
	ErrNoPrimaryNumber = errors.New("no primary phone number configured for organization")
	ErrRateLimited     = errors.New("send rate limit exceeded")
	ErrSendFailed      = errors.New("send failed")
	ErrEmptyBody       = errors.New("message body is empty")
	ErrNoSender        = errors.New("no email sender configured")
	// ErrNotRecorded means the provider accepted the message but it could
	// not be stored. Sending again would deliver it twice.
	ErrNotRecorded = errors.New("message sent but not recorded")
)

// Error is a delivery failure for one channel. It matches ErrSendFailed.
type Error struct {
	Channel conversation.Channel
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to send %s message: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrSendFailed }

// Request is one outbound reply.
type Request struct {
	Conversation conversation.Conversation
	Body         string
	Subject      string
	SenderUserID string
	Metadata     map[string]any
}

// Result is the persisted outbound message and its updated conversation.
type Result struct {
	Conversation conversation.Conversation `json:"conversation"`
	Message      conversation.Message      `json:"message"`
}

// PhoneDirectory resolves an organization's primary sending number.
// It returns "" with a nil error when none is configured.
type PhoneDirectory interface {
	PrimaryNumber(ctx context.Context, organizationID string) (string, error)
}

// Sender is the service identity email goes out as.
type Sender struct {
	Address string
	Name    string
}

// Dispatcher sends replies on the conversation's own channel.
type Dispatcher struct {
	stores  conversation.Stores
	phones  PhoneDirectory
	sms     SMSProvider
	mailer  Mailer
	sender  Sender
	limiter *Limiter
	logger  *slog.Logger
}

func NewDispatcher(log *slog.Logger, stores conversation.Stores, phones PhoneDirectory, sms SMSProvider, mailer Mailer, sender Sender, limiter *Limiter) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		stores:  stores,
		phones:  phones,
		sms:     sms,
		mailer:  mailer,
		sender:  sender,
		limiter: limiter,
		logger:  log.With(slog.String("service", "send")),
	}
}

// Send delivers req and records it. Preconditions are checked before any
// provider call; delivery failures match ErrSendFailed.
func (d *Dispatcher) Send(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Body) == "" {
		return Result{}, ErrEmptyBody
	}
	switch req.Conversation.Channel {
	case conversation.ChannelSMS:
		return d.sendSMS(ctx, req)
	case conversation.ChannelEmail:
		return d.sendEmail(ctx, req)
	}
	return Result{}, fmt.Errorf("%w: %q", conversation.ErrUnknownChannel, req.Conversation.Channel)
}

func (d *Dispatcher) allow(userID string) error {
	if d.limiter != nil && !d.limiter.Allow(userID) {
		return ErrRateLimited
	}
	return nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, req Request) (Result, error) {
	conv := req.Conversation
	from, err := d.phones.PrimaryNumber(ctx, conv.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve primary number: %w", err)
	}
	if from == "" {
		return Result{}, ErrNoPrimaryNumber
	}
	if err := d.allow(req.SenderUserID); err != nil {
		return Result{}, err
	}
	store, err := d.stores.For(conversation.ChannelSMS)
	if err != nil {
		return Result{}, err
	}

	externalID, err := d.sms.SendSMS(ctx, SMS{From: from, To: conv.ContactIdentifier, Text: req.Body})
	if err != nil {
		return Result{}, &Error{Channel: conversation.ChannelSMS, Err: err}
	}

	business := conv.BusinessIdentity()
	if business == "" {
		business = from
	}
	meta := withSender(req.Metadata, req.SenderUserID)
	meta["from_number"] = from
	return d.record(ctx, store, conversation.Record{
		OrganizationID:   conv.OrganizationID,
		UserID:           conv.UserID,
		Contact:          conv.ContactIdentifier,
		BusinessIdentity: business,
		Body:             req.Body,
		ExternalID:       externalID,
		Metadata:         meta,
	})
}

func (d *Dispatcher) sendEmail(ctx context.Context, req Request) (Result, error) {
	conv := req.Conversation
	if d.sender.Address == "" {
		return Result{}, ErrNoSender
	}
	if err := d.allow(req.SenderUserID); err != nil {
		return Result{}, err
	}
	store, err := d.stores.For(conversation.ChannelEmail)
	if err != nil {
		return Result{}, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = ReplySubject(conv.Subject())
	}
	htmlBody, err := RenderMarkdown(req.Body)
	if err != nil {
		return Result{}, fmt.Errorf("render email body: %w", err)
	}
	messageID, err := d.mailer.SendEmail(ctx, Email{
		FromAddress: d.sender.Address,
		FromName:    d.sender.Name,
		ReplyTo:     conv.BusinessIdentity(),
		To:          conv.ContactIdentifier,
		Subject:     subject,
		Text:        req.Body,
		HTML:        htmlBody,
	})
	if err != nil {
		return Result{}, &Error{Channel: conversation.ChannelEmail, Err: err}
	}

	business := conv.BusinessIdentity()
	if business == "" {
		business = d.sender.Address
	}
	return d.record(ctx, store, conversation.Record{
		OrganizationID:   conv.OrganizationID,
		UserID:           conv.UserID,
		Contact:          conv.ContactIdentifier,
		BusinessIdentity: business,
		Subject:          subject,
		Body:             req.Body,
		HTMLBody:         htmlBody,
		ExternalID:       messageID,
		Metadata:         withSender(req.Metadata, req.SenderUserID),
	})
}

func (d *Dispatcher) record(ctx context.Context, store conversation.ChannelStore, rec conversation.Record) (Result, error) {
	conv, msg, err := store.RecordOutbound(ctx, rec)
	if err != nil {
		d.logger.Error("delivered message not recorded",
			slog.String("channel", string(store.Channel())),
			slog.String("external_id", rec.ExternalID),
			slog.Any("error", err))
		return Result{}, fmt.Errorf("%w: %w", ErrNotRecorded, err)
	}
	d.logger.Info("message sent",
		slog.String("channel", string(store.Channel())),
		slog.String("conversation_id", conv.ID),
		slog.String("message_id", msg.ID))
	return Result{Conversation: conv, Message: msg}, nil
}

// PruneLimits drops rate-limit state of users who have been idle.
func (d *Dispatcher) PruneLimits(now time.Time) int {
	return d.limiter.Prune(now)
}

func withSender(meta map[string]any, userID string) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if userID != "" {
		out["sent_by"] = userID
	}
	return out
}

// ReplySubject prefixes "Re: " unless the subject already carries it.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Re: your message"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
