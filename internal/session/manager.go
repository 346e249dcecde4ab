package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/inbox"
	"github.com/fieldline/fieldline/internal/visibility"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultEchoTimeout = 15 * time.Second

	sweepSpec      = "@every 1m"
	reconcileSpec  = "@every 10s"
	assignmentSpec = "@every 1m"
)

// Manager keeps one Session per user.
type Manager struct {
	deps        Deps
	idleTimeout time.Duration
	echoTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(log *slog.Logger, deps Deps, idleTimeout time.Duration) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		deps:        deps,
		idleTimeout: idleTimeout,
		echoTimeout: DefaultEchoTimeout,
		logger:      log.With(slog.String("service", "session_manager")),
		sessions:    map[string]*Session{},
	}
}

// Open returns the viewer's session, creating and loading it on first use.
// A session opened for a different role, organization or permission set
// is replaced. A restricted viewer whose assignments cannot be read gets
// no session.
func (m *Manager) Open(ctx context.Context, viewer visibility.Viewer) (*Session, error) {
	if s, ok := m.Get(viewer.UserID); ok {
		if s.viewer.Same(viewer) {
			s.touch()
			return s, nil
		}
		m.logger.Info("identity changed, reopening session", slog.String("user_id", viewer.UserID), slog.String("role", viewer.Role))
		m.closeSession(viewer.UserID, s)
	}

	s := New(m.logger, m.deps, viewer)
	if err := s.Reload(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Refresh(ctx, inbox.Query{Category: conversation.CategoryAll}); err != nil {
		m.logger.Warn("initial refresh failed", slog.String("user_id", viewer.UserID), slog.Any("error", err))
	}

	m.mu.Lock()
	existing, ok := m.sessions[viewer.UserID]
	if ok && existing.viewer.Same(viewer) {
		m.mu.Unlock()
		s.Close()
		return existing, nil
	}
	m.sessions[viewer.UserID] = s
	m.mu.Unlock()
	if ok {
		existing.Close()
	}
	m.logger.Info("session opened", slog.String("user_id", viewer.UserID), slog.String("organization_id", viewer.OrganizationID))
	return s, nil
}

func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close tears down the user's session, if any.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.Close()
		m.logger.Info("session closed", slog.String("user_id", userID))
	}
}

// closeSession removes s if it is still the user's session.
func (m *Manager) closeSession(userID string, s *Session) {
	m.mu.Lock()
	if m.sessions[userID] == s {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	s.Close()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SweepIdle closes sessions unused since idleTimeout before now that have
// no attached event stream. It returns how many were closed.
func (m *Manager) SweepIdle(now time.Time) int {
	closed := 0
	for _, s := range m.all() {
		if s.Subscribers() > 0 || now.Sub(s.IdleSince()) < m.idleTimeout {
			continue
		}
		m.closeSession(s.viewer.UserID, s)
		closed++
	}
	if closed > 0 {
		m.logger.Info("idle sessions closed", slog.Int("count", closed))
	}
	return closed
}

// ReconcileEchoes refreshes every session holding a sent message whose
// realtime echo is overdue.
func (m *Manager) ReconcileEchoes(ctx context.Context, now time.Time) int {
	total := 0
	for _, s := range m.all() {
		total += s.ReconcileEchoes(ctx, now, m.echoTimeout)
	}
	return total
}

// ReloadAssignments re-reads the assignments of every restricted session so
// that job changes take effect without a new login.
func (m *Manager) ReloadAssignments(ctx context.Context) {
	for _, s := range m.all() {
		if err := s.ReloadAssignments(ctx); err != nil {
			m.logger.Warn("reload assignments failed", slog.String("user_id", s.viewer.UserID), slog.Any("error", err))
		}
	}
}

// Start schedules the idle sweep, echo reconciliation and assignment reload.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)))
	if _, err := c.AddFunc(sweepSpec, func() {
		now := time.Now()
		m.SweepIdle(now)
		if m.deps.Limits != nil {
			m.deps.Limits.PruneLimits(now)
		}
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc(reconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.ReconcileEchoes(ctx, time.Now())
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc(assignmentSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.ReloadAssignments(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	m.cron = c
	return nil
}

// Stop halts the jobs and closes every session.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	for _, s := range sessions {
		s.Close()
	}
	return ctx.Err()
}
