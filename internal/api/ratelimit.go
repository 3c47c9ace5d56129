package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sizes the per-client token buckets in front of the API
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// Buckets idle for two intervals are forgotten
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig leaves room for a 30 FPS frame poller plus input
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

type clientBucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// IPRateLimiter hands out one token bucket per client address
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
	idle    time.Duration

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter starts the sweeper; call Stop when done
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	rl := &IPRateLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		idle:    2 * cfg.CleanupInterval,
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop(cfg.CleanupInterval)
	return rl
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *IPRateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

// sweep drops buckets not touched since now-idle and returns how many
// remain.
func (rl *IPRateLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-rl.idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
	return len(rl.buckets)
}

// reserve takes a token for ip at now. A zero wait means the request may
// proceed; otherwise the token was handed back and wait is how long the
// client should back off.
func (rl *IPRateLimiter) reserve(ip string, now time.Time) (wait time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{tokens: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now
	rl.mu.Unlock()

	r := b.tokens.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	if wait = r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		rl.rejected.Add(1)
		return wait
	}
	rl.allowed.Add(1)
	return 0
}

// Allow reports whether ip has a token left right now
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.reserve(ip, time.Now()) == 0
}

// Middleware answers 429 with a Retry-After once a client runs dry
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := rl.reserve(GetClientIP(r), time.Now()); wait > 0 {
			RecordConnectionRejected("rate_limit")
			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats feeds the rateLimit block of /api/stats
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	rl.mu.Lock()
	clients := len(rl.buckets)
	rl.mu.Unlock()
	return map[string]uint64{
		"allowed":  rl.allowed.Load(),
		"rejected": rl.rejected.Load(),
		"clients":  uint64(clients),
	}
}

// GetClientIP prefers the proxy headers, then the socket address.
// The headers are only trustworthy behind a proxy that sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SlotLimiter caps how many live sockets one address may hold
type SlotLimiter struct {
	mu    sync.Mutex
	inUse map[string]int
	max   int
}

func NewSlotLimiter(maxPerIP int) *SlotLimiter {
	return &SlotLimiter{inUse: make(map[string]int), max: maxPerIP}
}

// Acquire claims a slot for ip, or reports false when it has none left
func (s *SlotLimiter) Acquire(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse[ip] >= s.max {
		return false
	}
	s.inUse[ip]++
	return true
}

// Release returns a slot. Addresses with no open sockets are forgotten.
func (s *SlotLimiter) Release(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch n := s.inUse[ip]; {
	case n > 1:
		s.inUse[ip] = n - 1
	case n == 1:
		delete(s.inUse, ip)
	}
}

// InUse is the number of slots ip currently holds
func (s *SlotLimiter) InUse(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse[ip]
}

// OriginPolicy decides which browser origins may open a WebSocket.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy allows the listed origins plus localhost on any port.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return p
}

// IsAllowed rejects empty origins; browsers always send one
func (p OriginPolicy) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, local := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == local || strings.HasPrefix(origin, local+":") {
			return true
		}
	}
	_, ok := p.allowed[origin]
	return ok
}
