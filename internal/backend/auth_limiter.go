package backend

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultAuthMaxFailures = 10
	defaultAuthWindow      = time.Minute
	defaultAuthBlock       = 5 * time.Minute
	authSweepEvery         = 64
)

// authLimiter blocks a client address after repeated service auth failures.
type authLimiter struct {
	mu          sync.Mutex
	clients     map[string]authAttempts
	maxFailures int
	window      time.Duration
	block       time.Duration
	ops         int
}

type authAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// newAuthLimiter returns nil, which never blocks, when any limit is not positive.
func newAuthLimiter(maxFailures int, window, block time.Duration) *authLimiter {
	if maxFailures <= 0 || window <= 0 || block <= 0 {
		return nil
	}
	return &authLimiter{
		clients:     make(map[string]authAttempts),
		maxFailures: maxFailures,
		window:      window,
		block:       block,
	}
}

// Blocked reports whether key is inside a block period.
func (l *authLimiter) Blocked(key string, now time.Time) bool {
	if l == nil || key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[key]
	if !ok {
		return false
	}
	entry.lastSeen = now
	l.clients[key] = entry
	l.sweepLocked(now)
	return now.Before(entry.blockedUntil)
}

// Fail records one failed attempt and starts a block once the limit is hit
// inside the window.
func (l *authLimiter) Fail(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.clients[key]
	if entry.windowStart.IsZero() || now.Sub(entry.windowStart) > l.window {
		entry.failures = 0
		entry.windowStart = now
	}
	entry.failures++
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.block)
		entry.failures = 0
		entry.windowStart = time.Time{}
	}
	entry.lastSeen = now
	l.clients[key] = entry
	l.sweepLocked(now)
}

// Succeed forgets key.
func (l *authLimiter) Succeed(key string) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, key)
}

func (l *authLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%authSweepEvery != 0 {
		return
	}
	stale := 2 * max(l.window, l.block)
	for key, entry := range l.clients {
		if now.Before(entry.blockedUntil) {
			continue
		}
		if now.Sub(entry.lastSeen) > stale {
			delete(l.clients, key)
		}
	}
}

func clientAddress(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
