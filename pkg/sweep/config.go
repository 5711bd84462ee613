package sweep

import "time"

type Config struct {
	Interval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`        // time between sweeps
	Concurrency int           `env:"SWEEP_CONCURRENCY" envDefault:"4"`      // tenants advanced in parallel
	LockTTL     time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"1m"`        // per-tenant lock lifetime
	Timeout     time.Duration `env:"SWEEP_TIMEOUT" envDefault:"10m"`        // bound on one sweep
	Snapshots   bool          `env:"SWEEP_MRR_SNAPSHOTS" envDefault:"true"` // record the daily MRR snapshot
}
