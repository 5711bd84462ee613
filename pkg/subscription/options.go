package subscription

import (
	"log/slog"
	"time"
)

// Option configures a Machine.
type Option func(*Machine)

// WithConfig applies lifecycle policy. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(m *Machine) {
		if cfg.GracePeriod > 0 {
			m.grace = cfg.GracePeriod
		}
		if cfg.MaxRetries > 0 {
			m.maxRetries = cfg.MaxRetries
		}
	}
}

// WithGracePeriod overrides the past_due grace window.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.grace = d
		}
	}
}

// WithClock replaces time.Now, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}
