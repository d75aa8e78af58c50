package server

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles token requests per client id and remote address.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	nowFunc func() time.Time
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the provided requests-per-minute budget. It returns nil,
// which allows everything, when the budget is not positive.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		window:  5 * time.Minute,
		nowFunc: time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil {
		return true
	}
	now := rl.nowFunc()
	return rl.getLimiter(key, now).AllowN(now, 1)
}

func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	rl.cleanupLocked(now)
	return limiter
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > rl.window {
			delete(rl.clients, key)
		}
	}
}

// RateLimitMiddleware rejects token requests over budget with 429 rate_limited.
func (s *Server) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next(w, r)
			return
		}
		if !s.limiter.Allow(s.rateLimitKey(r)) {
			observeToken(r.PathValue("realm"), r.PostFormValue("grant_type"), "rate_limited")
			writeJSONError(w, "rate_limited", "Too many requests. Please slow down.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) rateLimitKey(r *http.Request) string {
	clientID, _, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
	}
	return r.PathValue("realm") + "|" + clientID + "|" + s.proxies.ClientAddress(r)
}
