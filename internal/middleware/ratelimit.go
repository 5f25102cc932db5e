package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fjmerc/softvault/internal/utils"
)

// requestRecord tracks requests for an IP
type requestRecord struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// RateLimiter enforces a sliding-window request limit per client IP
type RateLimiter struct {
	limit   int
	window  time.Duration
	records sync.Map // map[string]*requestRecord
	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once
}

// NewRateLimiter allows limit requests per IP within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		cleanup: time.NewTicker(window),
		done:    make(chan struct{}),
	}

	go rl.cleanupOldEntries()

	return rl
}

// cleanupOldEntries drops records with no timestamps inside the window
func (rl *RateLimiter) cleanupOldEntries() {
	for {
		select {
		case <-rl.done:
			return
		case now := <-rl.cleanup.C:
			rl.records.Range(func(key, value any) bool {
				record := value.(*requestRecord)
				record.mu.Lock()
				record.prune(now.Add(-rl.window))
				empty := len(record.timestamps) == 0
				record.mu.Unlock()

				if empty {
					rl.records.Delete(key)
				}
				return true
			})
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() {
		rl.cleanup.Stop()
		close(rl.done)
	})
}

// prune removes timestamps at or before cutoff, reusing the backing array
func (r *requestRecord) prune(cutoff time.Time) {
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept
}

// Allow records a request from ip and reports whether it is within the limit
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	value, _ := rl.records.LoadOrStore(ip, &requestRecord{})
	record := value.(*requestRecord)

	record.mu.Lock()
	defer record.mu.Unlock()

	record.prune(now.Add(-rl.window))
	if len(record.timestamps) >= rl.limit {
		return false
	}

	record.timestamps = append(record.timestamps, now)
	return true
}

// RateLimitMiddleware rejects requests over the limit with 429. Clients are
// keyed by utils.GetClientIPWithTrust, so forwarding headers only count when
// they come through a trusted proxy.
func RateLimitMiddleware(rl *RateLimiter, trustProxyHeaders, trustedProxyIPs string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.GetClientIPWithTrust(r, trustProxyHeaders, trustedProxyIPs)

			if !rl.Allow(ip) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"limit", rl.limit,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later."}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
