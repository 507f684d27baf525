package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Pool hands out one token bucket per key. Buckets idle longer than the TTL are evicted.
type Pool struct {
	mu      sync.Mutex
	m       map[string]*entry
	rps     float64
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	lastGC  time.Time
}

// NewPool creates a pool refilling rps tokens per second up to burst.
func NewPool(rps float64, burst int) *Pool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Pool{
		m:       make(map[string]*entry),
		rps:     rps,
		burst:   burst,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
	}
}

func (p *Pool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastGC) > p.idleTTL {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > p.idleTTL {
				delete(p.m, k)
			}
		}
		p.lastGC = now
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &entry{limiter: l, lastSeen: now}
	return l
}

// Allow consumes one token for key.
func (p *Pool) Allow(key string) bool {
	return p.get(key).AllowN(p.now(), 1)
}

// KeyFunc derives the bucket key for a request.
type KeyFunc func(c *fiber.Ctx) string

// ByIP keys buckets on the client address.
func ByIP(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

// Middleware rejects requests whose bucket is empty with 429.
func Middleware(pool *Pool, key KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !pool.Allow(key(c)) {
			return apperrors.NewRateLimited()
		}
		return c.Next()
	}
}
