package send

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type userBucket struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter applies a per-user token bucket to outbound sends.
type Limiter struct {
	mu      sync.Mutex
	perUser map[string]*userBucket
	limit   rate.Limit
	burst   int
}

// NewLimiter allows perMinute sends per user with a small burst.
// perMinute <= 0 disables limiting.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	return &Limiter{
		perUser: make(map[string]*userBucket),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   min(perMinute, 5),
	}
}

func (l *Limiter) Allow(userID string) bool {
	return l.allowAt(userID, time.Now())
}

func (l *Limiter) allowAt(userID string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.perUser[userID]
	if !ok {
		b = &userBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.perUser[userID] = b
	}
	b.last = now
	return b.lim.AllowN(now, 1)
}

// Prune forgets users idle long enough for their bucket to be full again.
// A forgotten user starts over with a full bucket, so nothing is lost.
func (l *Limiter) Prune(now time.Time) int {
	if l == nil {
		return 0
	}
	refill := time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for id, b := range l.perUser {
		if now.Sub(b.last) >= refill {
			delete(l.perUser, id)
			pruned++
		}
	}
	return pruned
}

// Users reports how many users currently hold a bucket.
func (l *Limiter) Users() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perUser)
}
