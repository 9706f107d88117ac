package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

// Decider é o que o middleware precisa do limiter (application.Limiter).
type Decider interface {
	Namespace() string
	Decide(ctx context.Context, identifier string) domain.Decision
}

type Options struct {
	Limiter Decider
	Stats   domain.StatsStore
	KeyFn   KeyFunc
	// Match restringe o middleware a algumas rotas (ex: /api/auth/login).
	// nil = todas as rotas.
	Match               func(r *http.Request) bool
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// PathPrefix devolve um Match para rotas que começam com prefix.
func PathPrefix(prefix string) func(r *http.Request) bool {
	return func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, prefix) }
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	namespace := opts.Limiter.Namespace()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Match != nil && !opts.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			dec := opts.Limiter.Decide(r.Context(), key)

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Namespace: namespace,
					Key:       domain.Key(key),
					Allowed:   dec.Allowed,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				})
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Namespace", namespace)
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
