// Package ratelimit provides per-actor token bucket limiting for the HTTP API.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/config"
)

// Limiter keys token buckets by actor (authenticated account, falling back to
// client IP) and by request class: reads, writes, and import writes each draw
// from their own bucket.
type Limiter struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketTTL = 10 * time.Minute

func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}
}

// Middleware rejects requests over budget with 429 and a Retry-After header.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.cfg.Enabled {
				return next(c)
			}
			class, perMinute := l.classify(c.Request())
			if perMinute <= 0 {
				return next(c)
			}
			key := actorKey(c) + "|" + class
			if !l.allow(key, perMinute) {
				c.Response().Header().Set("Retry-After", "10")
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func (l *Limiter) classify(r *http.Request) (string, int) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if strings.Contains(r.URL.Path, "/imports/") {
			return "import", l.cfg.ImportPerMinute
		}
		return "write", l.cfg.WritePerMinute
	default:
		return "read", l.cfg.ReadPerMinute
	}
}

func (l *Limiter) allow(key string, perMinute int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)}
		l.buckets[key] = b
		l.evictStale(now)
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// evictStale drops buckets idle longer than bucketTTL. Called with mu held,
// only when a new bucket is created, so hot paths stay O(1).
func (l *Limiter) evictStale(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > bucketTTL {
			delete(l.buckets, key)
		}
	}
}

func actorKey(c echo.Context) string {
	if actor := auth.ActorFromContext(c); actor != "" {
		return actor
	}
	return c.RealIP()
}
