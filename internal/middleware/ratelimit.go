package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed. When it
// may not, wait is how long until it may.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, wait time.Duration, err error)
}

// Quota is a number of requests per window. Burst requests are allowed at
// once; after that they refill evenly over Window.
type Quota struct {
	Burst  int
	Window time.Duration
}

// BrowsingQuota covers catalog, cart and checkout page traffic.
var BrowsingQuota = Quota{Burst: 20, Window: 2 * time.Second}

// PaidQuota covers order submission and payment intent retries. Both fan
// out to the payment provider and the order API.
var PaidQuota = Quota{Burst: 5, Window: time.Minute}

// ShopperKey identifies who is shopping: the storefront session when there is
// one, then a presented bearer token, then the client address. Several
// shoppers behind one NAT therefore keep separate budgets once they have a
// cart.
func ShopperKey(r *http.Request) string {
	ctx := r.Context()
	if id := domain.SessionIDFromContext(ctx); id != "" {
		return "s:" + id
	}
	if token := domain.BearerTokenFromContext(ctx); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "b:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + GetClientIP(r)
}

// RateLimit rejects callers over their quota with 429 and a Retry-After.
// A limiter error lets the request through; losing the limiter backend must
// not take checkout down with it.
func RateLimit(l Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	if key == nil {
		key = ShopperKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait, err := l.Allow(r.Context(), key(r))
			if err != nil {
				GetLogger(r.Context()).Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				respondTooManyRequests(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter is a per-key token bucket held in process.
type MemoryLimiter struct {
	quota Quota
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter starts a limiter that forgets idle keys once a minute.
// Call Stop to end the sweep.
func NewMemoryLimiter(q Quota) *MemoryLimiter {
	m := &MemoryLimiter{
		quota:   q,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.sweep(time.Minute)
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()
	perToken := m.quota.Window / time.Duration(max(m.quota.Burst, 1))

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(m.quota.Burst), seen: now}
		m.buckets[key] = b
	}
	if perToken > 0 {
		b.tokens = math.Min(float64(m.quota.Burst), b.tokens+float64(now.Sub(b.seen))/float64(perToken))
	}
	b.seen = now

	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) * float64(perToken)), nil
	}
	b.tokens--
	return true, 0, nil
}

func (m *MemoryLimiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			cutoff := m.now().Add(-m.quota.Window)
			m.mu.Lock()
			for k, b := range m.buckets {
				if b.seen.Before(cutoff) {
					delete(m.buckets, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Stop ends the idle-key sweep.
func (m *MemoryLimiter) Stop() {
	close(m.done)
}

// RedisLimiter counts requests per key in fixed windows shared by every
// storefront instance. It allows Burst requests per Window.
type RedisLimiter struct {
	client redis.UniversalClient
	quota  Quota
	prefix string
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter whose keys live under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, q Quota) *RedisLimiter {
	return &RedisLimiter{client: client, quota: q, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := "ratelimit:" + l.prefix + ":" + key

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.client.PExpire(ctx, k, l.quota.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n <= int64(l.quota.Burst) {
		return true, 0, nil
	}

	wait, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if wait <= 0 {
		// A window without an expiry would block the key forever.
		_ = l.client.PExpire(ctx, k, l.quota.Window).Err()
		wait = l.quota.Window
	}
	return false, wait, nil
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote host.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
