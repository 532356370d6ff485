package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/obs"
)

const (
	limiterIdle  = 10 * time.Minute
	sweepEvery   = time.Minute
	maxRetryHint = 60
)

// RateLimiter token bucket por chave (IP ou subject). Escopo nomeia a métrica.
type RateLimiter struct {
	scope string
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(scope string, reqPerSec float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		scope:   scope,
		limit:   rate.Limit(reqPerSec),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// reserve consome um token; devolve a espera sugerida quando não há token.
func (l *RateLimiter) reserve(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return 0, true
	}
	r := b.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return wait, false
}

// Limit aplica o limitador com a chave extraída de cada requisição. Chave vazia passa direto.
func (l *RateLimiter) Limit(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			if wait, ok := l.reserve(k); !ok {
				obs.ObserveRateLimited(l.scope)
				w.Header().Set("Retry-After", retryAfter(wait))
				respond.Error(w, http.StatusTooManyRequests, "RATE_LIMIT", "Limite de requisições excedido", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit usa o IP remoto; depende de chi middleware.RealIP antes na cadeia.
func IPRateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return l.Limit(remoteHost)
}

// UserRateLimit usa o subject autenticado; requisições anônimas não entram.
func UserRateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return l.Limit(func(r *http.Request) string {
		if s := GetSubject(r.Context()); s != uuid.Nil {
			return s.String()
		}
		return ""
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(wait time.Duration) string {
	if wait == rate.InfDuration || wait > maxRetryHint*time.Second {
		return strconv.Itoa(maxRetryHint)
	}
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
