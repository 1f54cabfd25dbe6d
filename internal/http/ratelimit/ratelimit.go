package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
)

// Options configures a Limiter. Rate is requests per second per client.
type Options struct {
	Rate       rate.Limit
	Burst      int
	Idle       time.Duration
	MaxClients int
	// TrustedProxies are CIDRs or single addresses whose X-Forwarded-For
	// header is honoured. Empty trusts every peer.
	TrustedProxies []string
}

// Limiter keeps one token bucket per client address.
type Limiter struct {
	mu         sync.Mutex
	clients    map[string]*client
	limit      rate.Limit
	burst      int
	idle       time.Duration
	maxClients int
	trusted    []netip.Prefix
	now        func() time.Time
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func New(opts Options) (*Limiter, error) {
	l := &Limiter{
		clients:    make(map[string]*client),
		limit:      opts.Rate,
		burst:      opts.Burst,
		idle:       opts.Idle,
		maxClients: opts.MaxClients,
		now:        time.Now,
	}
	if l.idle <= 0 {
		l.idle = 10 * time.Minute
	}
	if l.maxClients <= 0 {
		l.maxClients = 10000
	}
	for _, raw := range opts.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		l.trusted = append(l.trusted, p)
	}
	return l, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Allow reports whether key may make a request now.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.evictOldestLocked()
		}
		c = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.bucket
}

func (l *Limiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, c := range l.clients {
		if oldestKey == "" || c.lastSeen.Before(oldest) {
			oldestKey, oldest = k, c.lastSeen
		}
	}
	delete(l.clients, oldestKey)
}

// Sweep forgets clients idle for longer than the idle window and returns how
// many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	n := 0
	for k, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, k)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.ClientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
				httperrors.TooManyRequests(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) retryAfter() int {
	if l.limit <= 0 || l.limit == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(l.limit))))
}

// ClientIP is the peer address, or the left-most X-Forwarded-For entry when
// the peer is a trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	peer, ok := parseAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !l.trustedPeer(peer) {
		return peer.String()
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return peer.String()
}

func (l *Limiter) trustedPeer(peer netip.Addr) bool {
	if len(l.trusted) == 0 {
		return true
	}
	for _, p := range l.trusted {
		if p.Contains(peer) {
			return true
		}
	}
	return false
}

func parseAddr(remote string) (netip.Addr, bool) {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
