package tenant

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
)

// ErrorHandler renders a resolution failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	errorHandler ErrorHandler
	skipPaths    []string
	logger       *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithErrorHandler replaces the default JSON error renderer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithSkipPaths lists path prefixes served without a tenant (health checks).
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithLogger sets the logger used for rejected requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Middleware resolves the tenant of every request and attaches it to the
// request context. Requests without a resolvable tenant are rejected.
func Middleware(extract PrincipalExtractor, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler: func(w http.ResponseWriter, _ *http.Request, err error) { apperr.Write(w, err) },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			p, err := extract(r)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "principal rejected", logger.Error(err))
				cfg.errorHandler(w, r, err)
				return
			}

			tc, err := Resolve(p)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "tenant resolution failed", logger.Error(err))
				cfg.errorHandler(w, r, err)
				return
			}

			ctx := WithContext(r.Context(), tc)
			ctx = withPrincipal(ctx, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperatorMiddleware admits only platform operators. It reads the
// principal stored by Middleware or extracts it itself when used standalone.
func RequireOperatorMiddleware(extract PrincipalExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				var err error
				if p, err = extract(r); err != nil {
					apperr.Write(w, err)
					return
				}
			}
			if err := RequireOperator(p); err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}
