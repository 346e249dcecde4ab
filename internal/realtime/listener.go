package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fieldline/fieldline/internal/conversation"
)

// ActiveCell holds the conversation a session currently displays. It is read
// by the listener goroutine and written synchronously by Select.
type ActiveCell struct {
	ref atomic.Pointer[conversation.Ref]
}

func (c *ActiveCell) Set(ref conversation.Ref) {
	c.ref.Store(&ref)
}

func (c *ActiveCell) Clear() {
	c.ref.Store(nil)
}

func (c *ActiveCell) Get() (conversation.Ref, bool) {
	p := c.ref.Load()
	if p == nil {
		return conversation.Ref{}, false
	}
	return *p, true
}

// Is reports whether ref is the active conversation.
func (c *ActiveCell) Is(ref conversation.Ref) bool {
	cur, ok := c.Get()
	return ok && cur == ref
}

// Sink receives the effects of changes for one session.
type Sink interface {
	// AppendMessage adds msg to the active thread; false when already present.
	AppendMessage(msg conversation.Message) bool
	// PatchMessage replaces a message of the active thread by id.
	PatchMessage(msg conversation.Message) bool
	// ReloadActive reloads the active thread and merges it.
	ReloadActive(ctx context.Context)
	// RefreshList re-reads the conversation list and counts.
	RefreshList(ctx context.Context)
	// NotifyInbound announces a newly received message.
	NotifyInbound(ctx context.Context, msg conversation.Message)
	// Resync reloads everything after missed changes.
	Resync(ctx context.Context)
}

// Listener routes message-table changes for one organization to a Sink.
// A single goroutine consumes both channels, so changes from one table are
// handled in publish order.
type Listener struct {
	orgID  string
	sink   Sink
	cell   *ActiveCell
	sms    *Subscription
	email  *Subscription
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewListener subscribes to both message tables and starts consuming.
// The returned listener owns its ActiveCell.
func NewListener(log *slog.Logger, hub *Hub, orgID string, sink Sink, buffer int) *Listener {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		orgID:  orgID,
		sink:   sink,
		cell:   &ActiveCell{},
		sms:    hub.Subscribe(TableSMSMessages, buffer),
		email:  hub.Subscribe(TableEmailMessages, buffer),
		logger: log.With(slog.String("service", "realtime_listener"), slog.String("organization_id", orgID)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

// Cell returns the active-conversation cell shared with the session.
func (l *Listener) Cell() *ActiveCell { return l.cell }

// Close cancels both subscriptions, stops the goroutine and clears the cell.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.cancel()
		l.sms.Cancel()
		l.email.Cancel()
		<-l.done
		l.cell.Clear()
	})
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	smsEvents, emailEvents := l.sms.Events(), l.email.Events()
	for smsEvents != nil || emailEvents != nil {
		var (
			change Change
			ok     bool
			sub    *Subscription
		)
		select {
		case <-ctx.Done():
			return
		case change, ok = <-smsEvents:
			if !ok {
				smsEvents = nil
				continue
			}
			sub = l.sms
		case change, ok = <-emailEvents:
			if !ok {
				emailEvents = nil
				continue
			}
			sub = l.email
		}
		l.Handle(ctx, change)
		if sub.TakeLagged() {
			l.logger.Warn("change stream lagged, resyncing", slog.String("table", sub.table))
			l.sink.Resync(ctx)
		}
	}
}

// Handle applies one change. Exported for tests and for replaying changes.
func (l *Listener) Handle(ctx context.Context, change Change) {
	if change.Type == ChangeResync {
		l.sink.Resync(ctx)
		return
	}
	ch, isMessage, err := TableChannel(change.Table)
	if err != nil || !isMessage {
		return
	}
	msg, err := conversation.DecodeMessageRow(ch, change.Row())
	if err != nil {
		l.logger.Warn("undecodable change, refreshing list", slog.Any("error", err))
		l.sink.RefreshList(ctx)
		return
	}
	if msg.OrganizationID != "" && msg.OrganizationID != l.orgID {
		return
	}

	active := l.cell.Is(msg.ConversationRef())
	switch {
	case active && change.Truncated:
		l.sink.ReloadActive(ctx)
		l.sink.RefreshList(ctx)
	case active && change.Type == ChangeInsert:
		l.sink.AppendMessage(msg)
	case active && change.Type == ChangeUpdate:
		l.sink.PatchMessage(msg)
	default:
		l.sink.RefreshList(ctx)
	}

	if change.Type == ChangeInsert && msg.Direction == conversation.DirectionInbound {
		l.sink.NotifyInbound(ctx, msg)
	}
}
