package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter bounds how many sessions a client may start within a sliding
// minute and hour.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	perHour   int

	// Session start times per client, oldest first, within the last hour.
	starts map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter; a zero limit disables that window.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		starts:    make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Allow records a session start for client, or returns a *RateLimitError
// without recording anything.
func (rl *RateLimiter) Allow(client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	history := rl.prune(client, now)

	if rl.perMinute > 0 {
		recent := 0
		for _, t := range history {
			if now.Sub(t) < time.Minute {
				recent++
			}
		}
		if recent >= rl.perMinute {
			oldest := history[len(history)-recent]
			return &RateLimitError{Window: "minute", Limit: rl.perMinute, RetryAfter: time.Minute - now.Sub(oldest)}
		}
	}
	if rl.perHour > 0 && len(history) >= rl.perHour {
		return &RateLimitError{Window: "hour", Limit: rl.perHour, RetryAfter: time.Hour - now.Sub(history[0])}
	}

	rl.starts[client] = append(history, now)
	return nil
}

// Count returns the number of starts recorded for client in the last hour.
func (rl *RateLimiter) Count(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(client, rl.now()))
}

func (rl *RateLimiter) prune(client string, now time.Time) []time.Time {
	history := rl.starts[client]
	drop := 0
	for drop < len(history) && now.Sub(history[drop]) >= time.Hour {
		drop++
	}
	history = history[drop:]
	if len(history) == 0 {
		delete(rl.starts, client)
		return nil
	}
	rl.starts[client] = history
	return history
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Window     string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("session rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}
