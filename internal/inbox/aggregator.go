// Package inbox merges the per-channel conversation stores into one
// visibility-filtered, recency-ordered inbox.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/visibility"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ErrAllChannelsFailed is returned when no channel produced a result.
var ErrAllChannelsFailed = errors.New("all channels failed")

// Query selects one inbox view.
type Query struct {
	Category conversation.Category `json:"category"`
	Search   string                `json:"search,omitempty"`
	Limit    int                   `json:"limit,omitempty"`
}

// Result is a merged list plus the channels that failed to load.
type Result struct {
	Conversations []conversation.Conversation     `json:"conversations"`
	ChannelErrors map[conversation.Channel]string `json:"channel_errors,omitempty"`
}

// ChannelCount is the per-channel badge data.
type ChannelCount struct {
	Total          int `json:"total"`
	Unread         int `json:"unread"`
	UnreadMessages int `json:"unread_messages"`
}

// Counts feeds the category badges.
type Counts struct {
	SMS        ChannelCount `json:"sms"`
	Email      ChannelCount `json:"email"`
	Total      int          `json:"total"`
	Unread     int          `json:"unread"`
	NeedsReply int          `json:"needs_reply"`
}

// Aggregator fans list and count reads out to every relevant channel.
type Aggregator struct {
	stores conversation.Stores
	policy visibility.Policy
	logger *slog.Logger
}

func NewAggregator(log *slog.Logger, stores conversation.Stores, policy visibility.Policy) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		stores: stores,
		policy: policy,
		logger: log.With(slog.String("service", "inbox")),
	}
}

// Policy exposes the visibility policy the aggregator filters with.
func (a *Aggregator) Policy() visibility.Policy { return a.policy }

type plan struct {
	channels []conversation.Channel
	filter   conversation.Filter
}

func planFor(q Query, scope conversation.Scope) plan {
	notArchived := false
	p := plan{
		channels: conversation.Channels,
		filter: conversation.Filter{
			Scope:    scope,
			Archived: &notArchived,
			Search:   q.Search,
			Limit:    q.Limit,
		},
	}
	switch q.Category {
	case conversation.CategorySMS:
		p.channels = []conversation.Channel{conversation.ChannelSMS}
	case conversation.CategoryEmail:
		p.channels = []conversation.Channel{conversation.ChannelEmail}
	case conversation.CategoryStarred:
		p.channels = []conversation.Channel{conversation.ChannelEmail}
		p.filter.StarredOnly = true
	case conversation.CategoryUnread, conversation.CategoryNeedsReply:
		p.filter.UnreadOnly = true
	case conversation.CategoryArchived:
		archived := true
		p.filter.Archived = &archived
	}
	return p
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// List loads the view described by q for viewer. A failing channel is
// logged and contributes no rows; List only fails when every invoked
// channel fails.
func (a *Aggregator) List(ctx context.Context, viewer visibility.Viewer, assigned visibility.Assignment, q Query) (Result, error) {
	q.Limit = normalizeLimit(q.Limit)
	p := planFor(q, viewer.Scope())
	if a.policy.Restricted(viewer) {
		if len(assigned) == 0 {
			return Result{Conversations: []conversation.Conversation{}}, nil
		}
		// Restrict in the query so the row limit applies after visibility.
		p.filter.ClientIDs = assigned.IDs()
	}

	perChannel := make([][]conversation.Conversation, len(p.channels))
	errs := make([]error, len(p.channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range p.channels {
		g.Go(func() error {
			store, err := a.stores.For(ch)
			if err != nil {
				errs[i] = err
				return nil
			}
			rows, err := store.ListConversations(gctx, p.filter)
			if err != nil {
				errs[i] = err
				return nil
			}
			perChannel[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	res := Result{}
	failed := 0
	merged := make([]conversation.Conversation, 0)
	for i, ch := range p.channels {
		if errs[i] != nil {
			failed++
			if res.ChannelErrors == nil {
				res.ChannelErrors = make(map[conversation.Channel]string)
			}
			res.ChannelErrors[ch] = errs[i].Error()
			a.logger.Warn("channel list failed", slog.String("channel", string(ch)), slog.Any("error", errs[i]))
			continue
		}
		merged = append(merged, perChannel[i]...)
	}
	if failed == len(p.channels) {
		return Result{}, fmt.Errorf("list conversations: %w: %w", ErrAllChannelsFailed, errors.Join(errs...))
	}

	merged = a.policy.Filter(merged, viewer, assigned)
	merged = Search(merged, q.Search)
	SortByRecency(merged)
	if len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	res.Conversations = merged
	return res, nil
}

// Counts computes badge counts over the viewer's visible, non-archived
// conversations. Any channel failure fails the call.
func (a *Aggregator) Counts(ctx context.Context, viewer visibility.Viewer, assigned visibility.Assignment) (Counts, error) {
	scope := viewer.Scope()
	perChannel := make([][]conversation.Summary, len(conversation.Channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range conversation.Channels {
		g.Go(func() error {
			store, err := a.stores.For(ch)
			if err != nil {
				return err
			}
			rows, err := store.Summaries(gctx, scope)
			if err != nil {
				return fmt.Errorf("%s summaries: %w", ch, err)
			}
			perChannel[i] = a.policy.FilterSummaries(rows, viewer, assigned)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, fmt.Errorf("count conversations: %w", err)
	}

	var c Counts
	for i, ch := range conversation.Channels {
		cc := tally(perChannel[i])
		switch ch {
		case conversation.ChannelSMS:
			c.SMS = cc
		case conversation.ChannelEmail:
			c.Email = cc
		}
	}
	c.Total = c.SMS.Total + c.Email.Total
	c.Unread = c.SMS.Unread + c.Email.Unread
	c.NeedsReply = c.Unread
	return c, nil
}

func tally(rows []conversation.Summary) ChannelCount {
	cc := ChannelCount{Total: len(rows)}
	for _, r := range rows {
		if r.UnreadCount > 0 {
			cc.Unread++
			cc.UnreadMessages += r.UnreadCount
		}
	}
	return cc
}

// CountsFrom recomputes counts from an in-memory list, used for optimistic
// updates between server reads.
func CountsFrom(convs []conversation.Conversation) Counts {
	var sms, email []conversation.Summary
	for _, c := range convs {
		if c.IsArchived {
			continue
		}
		s := conversation.Summary{ID: c.ID, ClientID: c.ClientID, UnreadCount: c.UnreadCount}
		if c.Channel == conversation.ChannelSMS {
			sms = append(sms, s)
		} else {
			email = append(email, s)
		}
	}
	c := Counts{SMS: tally(sms), Email: tally(email)}
	c.Total = c.SMS.Total + c.Email.Total
	c.Unread = c.SMS.Unread + c.Email.Unread
	c.NeedsReply = c.Unread
	return c
}

// Search keeps conversations whose name, identifier, subject or preview
// contains q, ignoring case. An empty q keeps everything.
func Search(convs []conversation.Conversation, q string) []conversation.Conversation {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return convs
	}
	out := convs[:0:0]
	for _, c := range convs {
		if matches(c, q) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c conversation.Conversation, q string) bool {
	for _, field := range []string{c.ContactName, c.ContactIdentifier, c.Subject(), c.LastMessagePreview} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// SortByRecency orders by LastMessageAt descending. Ties keep input order.
func SortByRecency(convs []conversation.Conversation) {
	slices.SortStableFunc(convs, func(a, b conversation.Conversation) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
}
