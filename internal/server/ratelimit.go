package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas. Each limit
// uses a fixed window that starts with the first request counted in it.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
	now     func() time.Time
}

// window is a fixed-length counter.
type window struct {
	start time.Time
	count int
}

func (w *window) roll(now time.Time, length time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= length {
		w.start = now
		w.count = 0
	}
}

func (w *window) retryAfter(now time.Time, length time.Duration) time.Duration {
	return max(length-now.Sub(w.start), 0)
}

type clientUsage struct {
	minute   window
	hour     window
	day      window
	dayBytes int64
	lastSeen time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64
	LastRequest        time.Time
}

// NewRateLimiter creates a rate limiter. Zero disables a limit.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits or rejects one request of dataSize bytes from
// clientID. Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{}
		rl.clients[clientID] = u
	}

	u.minute.roll(now, time.Minute)
	u.hour.roll(now, time.Hour)
	if u.day.start.IsZero() || !sameDay(u.day.start, now) {
		u.day = window{start: now}
		u.dayBytes = 0
	}

	if rl.requestsPerMinute > 0 && u.minute.count >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.minute.retryAfter(now, time.Minute)}
	}
	if rl.requestsPerHour > 0 && u.hour.count >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.hour.retryAfter(now, time.Hour)}
	}

	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && u.day.count >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.day.count), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dayBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dayBytes, Resets: resets}
	}

	u.minute.count++
	u.hour.count++
	u.day.count++
	u.dayBytes += dataSize
	u.lastSeen = now
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// GetUsage returns a snapshot of the counters for clientID. Unknown clients
// report zero usage.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsLastMinute: u.minute.count,
		RequestsLastHour:   u.hour.count,
		RequestsToday:      u.day.count,
		DataToday:          u.dayBytes,
		LastRequest:        u.lastSeen,
	}
}

// Prune forgets clients that have not been admitted for longer than idle and
// returns how many were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > idle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// RateLimitError reports a request-rate violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
