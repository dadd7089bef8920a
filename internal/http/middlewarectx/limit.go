package middlewarectx

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"golang.org/x/time/rate"
)

const (
	// clientIdleTTL время, после которого limiter неактивного клиента удаляется.
	clientIdleTTL = 3 * time.Minute
	// maxClients предел числа отслеживаемых клиентов в памяти.
	maxClients = 10000
	// overflowKey общий ключ для клиентов сверх maxClients.
	overflowKey = "overflow"
)

// SharedLimiter считает запросы клиента в общем для всех экземпляров хранилище.
type SharedLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters хранит отдельный limiter на каждый адрес клиента.
type clientLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientEntry
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(limit float64, burst int) *clientLimiters {
	return &clientLimiters{
		limit:   rate.Limit(limit),
		burst:   burst,
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= clientIdleTTL || len(c.clients) >= maxClients {
		c.sweep(now)
	}

	e, ok := c.clients[key]
	if !ok {
		if len(c.clients) >= maxClients {
			key = overflowKey
			e, ok = c.clients[key]
		}
		if !ok {
			e = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
			c.clients[key] = e
		}
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep удаляет клиентов, не обращавшихся дольше clientIdleTTL.
func (c *clientLimiters) sweep(now time.Time) {
	for key, e := range c.clients {
		if now.Sub(e.lastSeen) >= clientIdleTTL {
			delete(c.clients, key)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// clientKey адрес соединения клиента. Заголовки X-Forwarded-For и X-Real-IP
// учитываются, только если перед сервером включён middleware.RealIP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitOption настраивает RateLimitMiddleware.
type RateLimitOption func(*rateLimiter)

// WithSharedLimiter считает запросы в общем хранилище. При его ошибке
// используется локальный limiter.
func WithSharedLimiter(shared SharedLimiter) RateLimitOption {
	return func(l *rateLimiter) {
		l.shared = shared
	}
}

type rateLimiter struct {
	log    *slog.Logger
	local  *clientLimiters
	shared SharedLimiter
	count  int
	window time.Duration
}

// allow возвращает решение и время до сброса окна для общего хранилища.
func (l *rateLimiter) allow(r *http.Request, key string) (bool, time.Duration) {
	if l.shared != nil {
		ok, retryAfter, err := l.shared.Allow(r.Context(), key, l.count, l.window)
		if err == nil {
			return ok, retryAfter
		}
		l.log.Warn("shared rate limiter failed, using local limiter",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
	}
	return l.local.allow(key), time.Second
}

// RateLimitMiddleware ограничивает частоту запросов с одного адреса:
// limit запросов в секунду с запасом burst.
func RateLimitMiddleware(log *slog.Logger, limit float64, burst int, opts ...RateLimitOption) func(http.Handler) http.Handler {
	window := time.Second
	if limit > 0 && float64(burst)/limit > 1 {
		window = time.Duration(float64(burst) / limit * float64(time.Second))
	}
	l := &rateLimiter{
		log:    log,
		local:  newClientLimiters(limit, burst),
		count:  int(math.Ceil(limit * window.Seconds())),
		window: window,
	}
	for _, opt := range opts {
		opt(l)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			ok, retryAfter := l.allow(r, key)
			if !ok {
				log.Error("too many requests",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("client", key),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.ErrorKind("RateLimited", "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
