package send

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/fieldline/fieldline/internal/config"
)

// Email is one outbound message with a plain and an HTML part.
type Email struct {
	FromAddress string
	FromName    string
	ReplyTo     string
	To          string
	Subject     string
	Text        string
	HTML        string
}

// Mailer delivers email and returns the Message-ID it was sent with.
type Mailer interface {
	SendEmail(ctx context.Context, msg Email) (string, error)
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	client *mail.Client
}

func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client}, nil
}

func tlsPolicy(raw string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "off":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

// BuildMessage assembles the MIME message for msg.
func BuildMessage(msg Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	var err error
	if msg.FromName != "" {
		err = m.FromFormat(msg.FromName, msg.FromAddress)
	} else {
		err = m.From(msg.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if msg.ReplyTo != "" && !strings.EqualFold(msg.ReplyTo, msg.FromAddress) {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply-to: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPMailer) SendEmail(ctx context.Context, msg Email) (string, error) {
	m, err := BuildMessage(msg)
	if err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", err
	}
	return m.GetMessageID(), nil
}

// DisabledMailer rejects every send. Used when no SMTP relay is configured.
type DisabledMailer struct{}

func (DisabledMailer) SendEmail(context.Context, Email) (string, error) {
	return "", errors.New("smtp relay not configured")
}
