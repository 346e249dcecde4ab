package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

// Publisher publishes row changes to subscribers.
type Publisher interface {
	Publish(change Change)
}

// Hub is an in-process pub/sub dispatcher keyed by table name.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]*Subscription
}

func NewHub() *Hub {
	return &Hub{
		streams: map[string]map[string]*Subscription{},
	}
}

// Subscription is one consumer of a table's changes.
type Subscription struct {
	ID     string
	table  string
	ch     chan Change
	lagged atomic.Bool
	once   sync.Once
	hub    *Hub
}

// Events returns the change stream. It is closed by Cancel.
func (s *Subscription) Events() <-chan Change { return s.ch }

// TakeLagged reports whether an event was dropped since the last call.
func (s *Subscription) TakeLagged() bool { return s.lagged.Swap(false) }

// Cancel unsubscribes and closes the stream. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.hub == nil {
			return
		}
		h := s.hub
		h.mu.Lock()
		streams := h.streams[s.table]
		if streams != nil {
			if _, ok := streams[s.ID]; ok {
				delete(streams, s.ID)
				close(s.ch)
			}
			if len(streams) == 0 {
				delete(h.streams, s.table)
			}
		}
		h.mu.Unlock()
	})
}

// Publish delivers change to every subscriber of its table without blocking.
// A subscriber whose buffer is full misses the change and is marked lagged.
// Resync changes go to every subscriber.
func (h *Hub) Publish(change Change) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if change.Type == ChangeResync {
		for _, streams := range h.streams {
			deliver(streams, change)
		}
		return
	}
	deliver(h.streams[change.Table], change)
}

func deliver(streams map[string]*Subscription, change Change) {
	for _, sub := range streams {
		select {
		case sub.ch <- change:
		default:
			sub.lagged.Store(true)
		}
	}
}

// Subscribe registers a subscriber for table.
func (h *Hub) Subscribe(table string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	sub := &Subscription{
		ID:    uuid.NewString(),
		table: table,
		ch:    make(chan Change, buffer),
		hub:   h,
	}
	if h == nil || table == "" {
		close(sub.ch)
		sub.hub = nil
		return sub
	}
	h.mu.Lock()
	streams, ok := h.streams[table]
	if !ok {
		streams = map[string]*Subscription{}
		h.streams[table] = streams
	}
	streams[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// SubscriberCount reports how many subscribers table has.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[table])
}
