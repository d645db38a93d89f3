package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	rateWindow   = time.Minute
	staleClients = 10 * time.Minute
)

// rateLimiter is a fixed-window limiter keyed by client IP. Only mutating
// requests are counted.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	clients map[string]*clientInfo
	hits    int64
	now     func() time.Time
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		clients: make(map[string]*clientInfo),
		now:     time.Now,
	}
}

// allow reports whether another request from clientIP fits in the current
// window. A limit of zero or less disables limiting.
func (rl *rateLimiter) allow(clientIP string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.windowStart) >= rateWindow {
		rl.clients[clientIP] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	if client.requests > rl.limit {
		atomic.AddInt64(&rl.hits, 1)
		return false
	}
	return true
}

// CleanExpired drops clients idle for longer than ten minutes. It lets the
// cache janitor sweep the limiter alongside the caches.
func (rl *rateLimiter) CleanExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-staleClients)
	removed := 0
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// Hits returns how many requests were rejected.
func (rl *rateLimiter) Hits() int64 {
	return atomic.LoadInt64(&rl.hits)
}
