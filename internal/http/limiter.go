package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP. Buckets are
// dropped wholesale every resetEvery so the map stays bounded.
type ipLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	resetEvery time.Duration
	lastReset  time.Time
	now        func() time.Time
	limiters   map[string]*rate.Limiter
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		resetEvery: time.Hour,
		now:        time.Now,
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastReset.IsZero() || now.Sub(l.lastReset) > l.resetEvery {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastReset = now
	}
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim.AllowN(now, 1)
}

// middleware rejects requests over the per-IP rate with 429.
func (l *ipLimiter) middleware(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.allow(ip) {
				logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", ip))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
