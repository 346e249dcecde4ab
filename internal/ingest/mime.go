package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxPartSize = 1 << 20

// InboundEmail is a received message reduced to what the inbox stores.
type InboundEmail struct {
	From        string
	FromName    string
	To          []string
	Subject     string
	Text        string
	HTML        string
	MessageID   string
	InReplyTo   []string
	Date        time.Time
	Attachments []string
}

// ParseEmail reads a raw RFC 5322 message. The first text/plain and
// text/html inline parts become the bodies; attachments are listed by name.
func ParseEmail(r io.Reader) (InboundEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return InboundEmail{}, fmt.Errorf("parse email: %w", err)
	}
	defer mr.Close()

	var out InboundEmail
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) == 0 {
		return InboundEmail{}, errors.New("parse email: missing From address")
	}
	out.From = strings.ToLower(from[0].Address)
	out.FromName = from[0].Name

	for _, key := range []string{"To", "Cc", "Delivered-To", "X-Original-To"} {
		addrs, err := mr.Header.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			out.To = appendUnique(out.To, strings.ToLower(a.Address))
		}
	}
	out.Subject, _ = mr.Header.Subject()
	out.MessageID, _ = mr.Header.MessageID()
	out.InReplyTo, _ = mr.Header.MsgIDList("In-Reply-To")
	if d, err := mr.Header.Date(); err == nil {
		out.Date = d
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return out, fmt.Errorf("parse email part: %w", err)
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
			if err != nil {
				return out, fmt.Errorf("read email part: %w", err)
			}
			switch {
			case ct == "text/html" && out.HTML == "":
				out.HTML = string(body)
			case (ct == "text/plain" || ct == "") && out.Text == "":
				out.Text = strings.TrimSpace(string(body))
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			if name != "" {
				out.Attachments = append(out.Attachments, name)
			}
		}
	}
	return out, nil
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
