// Package ratelimit throttles write requests per participant and failed
// token attempts per client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/config"
)

// Config holds rate limit configuration.
type Config struct {
	MaxPerWindow int           // Max write requests per participant per window (default: 60)
	Window       time.Duration // Fixed window length (default: 1m)

	MaxAuthFailuresPerIP int           // Bad tokens per IP before lockout (default: 20)
	AuthLockout          time.Duration // Lockout after too many bad tokens (default: 15m)

	// Clock for testing (nil uses real time)
	Clock clock.Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPerWindow:         60,
		Window:               time.Minute,
		MaxAuthFailuresPerIP: 20,
		AuthLockout:          15 * time.Minute,
	}
}

// FromConfig overlays the configured write limits on the defaults.
func FromConfig(cfg config.RateLimitConfig) *Config {
	c := DefaultConfig()
	if cfg.MaxPerWindow > 0 {
		c.MaxPerWindow = cfg.MaxPerWindow
	}
	if cfg.Window > 0 {
		c.Window = cfg.Window
	}
	return c
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// entry tracks request counts and timestamps.
type entry struct {
	count    int
	firstAt  time.Time // First request in window
	lastAt   time.Time
	lockedAt time.Time // When lockout started (zero if not locked)
}

type Limiter struct {
	config *Config
	clock  clock.Clock
	mu     sync.Mutex
	// Keyed by hash of participant or IP
	writes   map[string]*entry
	failures map[string]*entry

	// Cleanup goroutine management
	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clk,
		writes:        make(map[string]*entry),
		failures:      make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// AllowWrite checks and records one write request for the participant.
// A blocked request is not counted.
func (l *Limiter) AllowWrite(participant string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	key := l.hashKey("write:", participant)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.writes[key]
	if e == nil || now.Sub(e.firstAt) >= l.config.Window {
		l.writes[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return LimitResult{Allowed: true}
	}
	if e.count >= l.config.MaxPerWindow {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.Window - now.Sub(e.firstAt),
			Reason:     "write_limit",
		}
	}
	e.count++
	e.lastAt = now
	return LimitResult{Allowed: true}
}

// CheckAuth reports whether the IP may attempt another token.
// Does NOT record the attempt - call RecordAuthFailure when the token is rejected.
func (l *Limiter) CheckAuth(ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	key := l.hashKey("auth:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.failures[key]
	if e == nil || e.lockedAt.IsZero() {
		return LimitResult{Allowed: true}
	}
	elapsed := now.Sub(e.lockedAt)
	if elapsed < l.config.AuthLockout {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.AuthLockout - elapsed,
			Reason:     "lockout",
		}
	}
	// Lockout expired
	delete(l.failures, key)
	return LimitResult{Allowed: true}
}

// RecordAuthFailure counts a rejected token from ip.
// Returns true if the failure started a lockout.
func (l *Limiter) RecordAuthFailure(ip string) (lockedOut bool) {
	now := l.clock.Now()
	key := l.hashKey("auth:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.failures[key]
	if e == nil || (e.lockedAt.IsZero() && now.Sub(e.firstAt) >= time.Hour) {
		e = &entry{firstAt: now}
		l.failures[key] = e
	}
	e.count++
	e.lastAt = now
	if e.count >= l.config.MaxAuthFailuresPerIP && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}
	return lockedOut
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return prefix + hex.EncodeToString(hash[:8])
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.writes {
		if now.Sub(e.firstAt) >= l.config.Window {
			delete(l.writes, k)
		}
	}
	maxAge := l.config.AuthLockout + time.Hour
	for k, e := range l.failures {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.failures, k)
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// LogRateLimitExceeded logs a rate limit event.
func LogRateLimitExceeded(ctx context.Context, limitType, subject, ip, reason string) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("subject", subject).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Rate limit exceeded")
}
