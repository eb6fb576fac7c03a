// Package ratelimit implements a fixed-window request limiter keyed by client address.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/store"

	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter 固定窗口限流；计数保存在 store.Counter（redis 或内存）
type Limiter struct {
	counter store.Counter
	window  time.Duration
	max     int
	logger  *zap.Logger
}

func New(counter store.Counter, window time.Duration, max int, logger *zap.Logger) *Limiter {
	return &Limiter{counter: counter, window: window, max: max, logger: logger}
}

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	n, ttl, err := l.counter.Incr(ctx, keyPrefix+key, l.window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.max - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   n <= int64(l.max),
		Limit:     l.max,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Middleware 超出限额时交给 onLimited 写 429 响应；计数器不可用时放行
func (l *Limiter) Middleware(onLimited func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)
			d, err := l.Allow(r.Context(), key)
			if err != nil {
				l.logger.Error("Rate limit counter unavailable", zap.String("client", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(d.ResetIn.Round(time.Second)/time.Second), 10))

			if !d.Allowed {
				h.Set("Retry-After", strconv.FormatInt(int64(d.ResetIn.Round(time.Second)/time.Second), 10))
				l.logger.Warn("Rate limit exceeded",
					zap.String("ip_address", key),
					zap.String("path", r.URL.Path),
					zap.Int("limit", d.Limit),
				)
				onLimited(w, r, apperr.TooManyRequests("too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey returns the host part of RemoteAddr (rewritten by TrustedProxies.RealIP only for trusted peers).
func ClientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
