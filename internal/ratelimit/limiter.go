package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests per host and adapts to throttling
// signals. Each host gets its own token bucket; a 429/503 halves the
// bucket's rate and a run of successful responses recovers it.
type RateLimiter struct {
	mu sync.Mutex

	// Per-host tracking
	hostStates map[string]*HostState

	defaultRPS     float64
	minRPS         float64
	maxRPS         float64
	backoffFactor  float64       // Multiplier when rate limited (0.5 = halve)
	recoveryFactor float64       // Multiplier when recovering (1.2 = 20% increase)
	cooldownPeriod time.Duration // Time before attempting recovery
	consecutiveOK  int           // Consecutive OK responses before recovery
	maxRetryAfter  time.Duration

	now func() time.Time
}

// HostState tracks rate limiting state for a single host
type HostState struct {
	Host            string
	CurrentRPS      float64
	LastRateLimited time.Time
	ConsecutiveOK   int
	TotalRequests   int
	RateLimited     int
	BlockedUntil    time.Time

	bucket *rate.Limiter
}

// Option tweaks limiter defaults.
type Option func(*RateLimiter)

// WithBounds sets the floor and ceiling the adaptive rate moves between.
func WithBounds(minRPS, maxRPS float64) Option {
	return func(rl *RateLimiter) {
		rl.minRPS = minRPS
		rl.maxRPS = maxRPS
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter creates a limiter whose hosts start at rps requests per
// second. A non-positive rps disables pacing but still tracks throttling.
func NewRateLimiter(rps float64, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		hostStates:     make(map[string]*HostState),
		defaultRPS:     rps,
		minRPS:         rps / 8,
		maxRPS:         rps * 2,
		backoffFactor:  0.5,
		recoveryFactor: 1.2,
		cooldownPeriod: 30 * time.Second,
		consecutiveOK:  10,
		maxRetryAfter:  2 * time.Minute,
		now:            time.Now,
	}
	for _, o := range opts {
		o(rl)
	}
	return rl
}

func (rl *RateLimiter) state(host string) *HostState {
	st, ok := rl.hostStates[host]
	if !ok {
		st = &HostState{Host: host, CurrentRPS: rl.defaultRPS}
		if rl.defaultRPS > 0 {
			st.bucket = rate.NewLimiter(rate.Limit(rl.defaultRPS), 1)
		}
		rl.hostStates[host] = st
	}
	return st
}

// Wait blocks until a request to host may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	rl.mu.Lock()
	st := rl.state(host)
	bucket := st.bucket
	delay := st.BlockedUntil.Sub(rl.now())
	rl.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if bucket == nil {
		return ctx.Err()
	}
	return bucket.Wait(ctx)
}

// RecordResponse records a response and adjusts the host's pacing.
func (rl *RateLimiter) RecordResponse(host string, statusCode int, headers http.Header) *RateLimitEvent {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st := rl.state(host)
	st.TotalRequests++
	now := rl.now()
	event := &RateLimitEvent{Host: host, PreviousRPS: st.CurrentRPS}

	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		st.RateLimited++
		st.ConsecutiveOK = 0
		st.LastRateLimited = now

		if wait, ok := parseRetryAfter(headers, now); ok {
			if wait > rl.maxRetryAfter {
				wait = rl.maxRetryAfter
			}
			st.BlockedUntil = now.Add(wait)
			event.Action = "blocked"
			event.Reason = fmt.Sprintf("server asked to retry after %v", wait)
		} else if st.CurrentRPS > 0 && st.CurrentRPS <= rl.minRPS {
			// already at the floor and still throttled
			st.BlockedUntil = now.Add(rl.cooldownPeriod)
			event.Action = "blocked"
			event.Reason = fmt.Sprintf("rate limited at minimum RPS, pausing for %v", rl.cooldownPeriod)
		} else {
			event.Action = "backoff"
			event.Reason = fmt.Sprintf("rate limited (status %d), reducing RPS", statusCode)
		}

		rl.setRPS(st, maxFloat(st.CurrentRPS*rl.backoffFactor, rl.minRPS))
		event.NewRPS = st.CurrentRPS
		return event
	}

	st.ConsecutiveOK++
	if st.ConsecutiveOK >= rl.consecutiveOK && now.Sub(st.LastRateLimited) > rl.cooldownPeriod {
		newRPS := minFloat(st.CurrentRPS*rl.recoveryFactor, rl.maxRPS)
		if newRPS > st.CurrentRPS {
			rl.setRPS(st, newRPS)
			st.ConsecutiveOK = 0
			event.Action = "recovery"
			event.Reason = fmt.Sprintf("increasing RPS after %d consecutive OK responses", rl.consecutiveOK)
		}
	}

	event.NewRPS = st.CurrentRPS
	return event
}

func (rl *RateLimiter) setRPS(st *HostState, rps float64) {
	if rl.defaultRPS <= 0 {
		return
	}
	st.CurrentRPS = rps
	st.bucket.SetLimit(rate.Limit(rps))
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// GetState returns a copy of the state for a host, or nil if unseen.
func (rl *RateLimiter) GetState(host string) *HostState {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if st, ok := rl.hostStates[host]; ok {
		cp := *st
		cp.bucket = nil
		return &cp
	}
	return nil
}

// GetSummary returns a summary of rate limiting activity
func (rl *RateLimiter) GetSummary() *RateLimitSummary {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	summary := &RateLimitSummary{
		TotalHosts:   len(rl.hostStates),
		HostsByState: make(map[string]int),
	}
	now := rl.now()
	for _, st := range rl.hostStates {
		summary.TotalRequests += st.TotalRequests
		summary.TotalRateLimited += st.RateLimited
		switch {
		case now.Before(st.BlockedUntil):
			summary.CurrentlyBlocked++
			summary.HostsByState["blocked"]++
		case st.CurrentRPS < rl.defaultRPS:
			summary.HostsByState["throttled"]++
		default:
			summary.HostsByState["normal"]++
		}
	}
	return summary
}

// RateLimitEvent describes a rate limit adjustment event
type RateLimitEvent struct {
	Host        string
	PreviousRPS float64
	NewRPS      float64
	Action      string // "backoff", "recovery", "blocked" or empty
	Reason      string
}

// RateLimitSummary provides aggregate statistics
type RateLimitSummary struct {
	TotalHosts       int
	TotalRequests    int
	TotalRateLimited int
	CurrentlyBlocked int
	HostsByState     map[string]int
}

// String returns a formatted summary string
func (s *RateLimitSummary) String() string {
	pct := 0.0
	if s.TotalRequests > 0 {
		pct = float64(s.TotalRateLimited) / float64(s.TotalRequests) * 100
	}
	var sb strings.Builder
	sb.WriteString("Rate Limit Summary:\n")
	sb.WriteString(fmt.Sprintf("  Total Hosts: %d\n", s.TotalHosts))
	sb.WriteString(fmt.Sprintf("  Total Requests: %d\n", s.TotalRequests))
	sb.WriteString(fmt.Sprintf("  Rate Limited: %d (%.1f%%)\n", s.TotalRateLimited, pct))
	sb.WriteString(fmt.Sprintf("  Currently Blocked: %d hosts\n", s.CurrentlyBlocked))
	return sb.String()
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
