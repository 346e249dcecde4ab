package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// PGFeed holds a dedicated connection that LISTENs for trigger
// notifications and republishes them on a Publisher in commit order.
type PGFeed struct {
	pool    *pgxpool.Pool
	channel string
	pub     Publisher
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPGFeed(log *slog.Logger, pool *pgxpool.Pool, channel string, pub Publisher) *PGFeed {
	if log == nil {
		log = slog.Default()
	}
	return &PGFeed{
		pool:    pool,
		channel: channel,
		pub:     pub,
		logger:  log.With(slog.String("service", "realtime_feed")),
	}
}

// Start runs the feed in the background until Stop.
func (f *PGFeed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		f.Run(ctx)
	}()
}

// Stop cancels the feed and waits for it to exit or ctx to expire.
func (f *PGFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run listens until ctx is cancelled, reconnecting with exponential backoff.
// Every reconnect publishes a resync since notifications sent while
// disconnected are lost.
func (f *PGFeed) Run(ctx context.Context) {
	backoff := minBackoff
	connected := false
	for ctx.Err() == nil {
		err := f.listen(ctx, func() {
			if connected {
				f.pub.Publish(Change{Type: ChangeResync})
			}
			connected = true
			backoff = minBackoff
		})
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("change feed disconnected", slog.Any("error", err), slog.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (f *PGFeed) listen(ctx context.Context, onListening func()) error {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.channel, err)
	}
	f.logger.Info("change feed listening", slog.String("channel", f.channel))
	onListening()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		change, err := ParseChange(n.Payload)
		if err != nil {
			f.logger.Warn("drop malformed change", slog.Any("error", err))
			continue
		}
		f.pub.Publish(change)
	}
}
