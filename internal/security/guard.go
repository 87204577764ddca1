// Package security screens outbound recipients before the API is called.
package security

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kirimi-id/kirimi-go/internal/config"
)

var (
	ErrNotAllowed  = errors.New("recipient not in allowlist")
	ErrRateLimited = errors.New("recipient rate limit exceeded")
)

// bucket tracks rate limit state for a single recipient.
type bucket struct {
	tokens    int
	windowEnd time.Time
}

// Guard enforces a recipient allowlist and per-recipient rate limiting.
// It satisfies service.Guard.
type Guard struct {
	mode       string
	allowed    map[string]struct{}
	rateLimit  int
	rateWindow time.Duration
	now        func() time.Time
	mu         sync.Mutex
	buckets    map[string]*bucket
}

// New creates a Guard from the security config. A RateLimit of zero disables
// rate limiting.
func New(cfg config.SecurityConfig) *Guard {
	allowed := make(map[string]struct{}, len(cfg.Allowed))
	for _, phone := range cfg.Allowed {
		if n := normalize(phone); n != "" {
			allowed[n] = struct{}{}
		}
	}

	return &Guard{
		mode:       cfg.Mode,
		allowed:    allowed,
		rateLimit:  cfg.RateLimit,
		rateWindow: time.Duration(cfg.RateWindow) * time.Second,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// Check returns nil if the recipient may be contacted now, ErrNotAllowed or
// ErrRateLimited otherwise. An allowed call consumes one token.
func (g *Guard) Check(recipient string) error {
	n := normalize(recipient)

	if g.mode == config.SecurityModeAllowlist {
		if _, ok := g.allowed[n]; !ok {
			return ErrNotAllowed
		}
	}

	if g.rateLimit <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, ok := g.buckets[n]
	if !ok || now.After(b.windowEnd) {
		g.buckets[n] = &bucket{
			tokens:    g.rateLimit - 1,
			windowEnd: now.Add(g.rateWindow),
		}
		return nil
	}

	if b.tokens <= 0 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}

// normalize keeps only the digits, so "+62 812-3456" and "628123456" match.
func normalize(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))

	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
