package writegate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/plan"
)

// Config of the gate.
type Config struct {
	Timeout time.Duration `env:"GATE_TIMEOUT" envDefault:"300ms"`
}

const defaultTimeout = 300 * time.Millisecond

// Counter returns a tenant's current usage of one plan resource.
// It runs on the hot path of every bounded write and must be fast.
type Counter func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// Option configures a Gate.
type Option func(*Gate)

func WithConfig(cfg Config) Option {
	return func(g *Gate) {
		if cfg.Timeout > 0 {
			g.timeout = cfg.Timeout
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithCounter registers the usage counter of res. Panics on nil fn.
func WithCounter(res plan.Resource, fn Counter) Option {
	if fn == nil {
		panic("writegate: nil counter for resource " + string(res))
	}
	return func(g *Gate) {
		g.counters[res] = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}
