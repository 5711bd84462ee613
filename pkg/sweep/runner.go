// Package sweep persists the time-driven subscription transitions on a
// schedule. Reads already project them, so a missed sweep delays only the
// stored state and the MRR snapshot, never the gate.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
)

// Advancer is the part of *subscription.Machine the sweep drives.
type Advancer interface {
	DueTenants(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Advance(ctx context.Context, tenantID uuid.UUID, now time.Time) (*subscription.Subscription, bool, error)
}

// SnapshotRecorder is implemented by *platform.Reporter.
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, day time.Time) (platform.MRRSnapshot, error)
}

// Locker grants exclusive per-key locks. *redis.Locker implements it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Result counts the outcome of one sweep.
type Result struct {
	Due      int `json:"due"`
	Advanced int `json:"advanced"`
	Locked   int `json:"locked"`
	Failed   int `json:"failed"`
}

type Runner struct {
	machine   Advancer
	cfg       Config
	locker    Locker
	snapshots SnapshotRecorder
	now       func() time.Time
	log       *slog.Logger
}

// NewRunner returns a Runner. Without WithLocker tenants are not locked,
// which is only safe with a single sweeper.
func NewRunner(machine Advancer, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		machine: machine,
		cfg:     cfg,
		locker:  noLocker{},
		now:     time.Now,
		log:     slog.Default(),
	}
	if r.cfg.Interval <= 0 {
		r.cfg.Interval = time.Hour
	}
	if r.cfg.Concurrency <= 0 {
		r.cfg.Concurrency = 1
	}
	if r.cfg.LockTTL <= 0 {
		r.cfg.LockTTL = time.Minute
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("sweep"))
	return r
}

// Run sweeps immediately and then every cfg.Interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.ErrorContext(ctx, "sweep failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce advances every due tenant. Per-tenant failures are counted and
// joined into the returned error; the remaining tenants are still swept.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := r.now()
	now := start.UTC()
	due, err := r.machine.DueTenants(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("list due tenants: %w", err)
	}

	var advanced, locked, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(r.cfg.Concurrency).WithContext(ctx)
	for _, id := range due {
		p.Go(func(ctx context.Context) error {
			changed, err := r.advance(ctx, id, now)
			switch {
			case errors.Is(err, errLocked):
				locked.Add(1)
				return nil
			case err != nil:
				failed.Add(1)
				r.log.ErrorContext(ctx, "advance tenant", logger.TenantID(id), logger.Error(err))
				return fmt.Errorf("tenant %s: %w", id, err)
			case changed:
				advanced.Add(1)
			}
			return nil
		})
	}
	err = p.Wait()

	res := Result{
		Due:      len(due),
		Advanced: int(advanced.Load()),
		Locked:   int(locked.Load()),
		Failed:   int(failed.Load()),
	}

	if r.cfg.Snapshots && r.snapshots != nil {
		if _, serr := r.snapshots.RecordSnapshot(ctx, now); serr != nil {
			r.log.ErrorContext(ctx, "record mrr snapshot", logger.Error(serr))
			err = errors.Join(err, fmt.Errorf("record mrr snapshot: %w", serr))
		}
	}

	r.log.InfoContext(ctx, "sweep finished",
		logger.Count(res.Due),
		slog.Int("advanced", res.Advanced),
		slog.Int("locked", res.Locked),
		slog.Int("failed", res.Failed),
		logger.Duration(r.now().Sub(start)))
	return res, err
}

var errLocked = errors.New("tenant locked by another sweeper")

func (r *Runner) advance(ctx context.Context, tenantID uuid.UUID, now time.Time) (bool, error) {
	release, ok, err := r.locker.TryLock(ctx, tenantID.String(), r.cfg.LockTTL)
	if err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	if !ok {
		return false, errLocked
	}
	defer func() {
		// Detached so a cancelled sweep still frees the lock early.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			r.log.WarnContext(ctx, "release tenant lock", logger.TenantID(tenantID), logger.Error(err))
		}
	}()

	sub, changed, err := r.machine.Advance(ctx, tenantID, now)
	if err != nil {
		return false, err
	}
	if changed {
		r.log.InfoContext(ctx, "subscription advanced",
			logger.TenantID(tenantID),
			logger.SubscriptionID(sub.ID),
			logger.Status(string(sub.Status)))
	}
	return changed, nil
}

type noLocker struct{}

func (noLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
