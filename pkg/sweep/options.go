package sweep

import (
	"log/slog"
	"time"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLocker serializes tenants across sweeper instances.
func WithLocker(l Locker) Option {
	return func(r *Runner) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithSnapshots records the MRR snapshot of the day after every sweep.
func WithSnapshots(s SnapshotRecorder) Option {
	return func(r *Runner) {
		r.snapshots = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}
