package subscription

import "time"

// Config holds lifecycle policy.
type Config struct {
	// GracePeriod is how long a past_due subscription may stay unpaid
	// before it is suspended.
	GracePeriod time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"168h"`
	// MaxRetries bounds retries of a transaction that lost a version race.
	MaxRetries uint64 `env:"BILLING_TX_RETRIES" envDefault:"3"`
}

// DefaultConfig returns the policy used when none is supplied.
func DefaultConfig() Config {
	return Config{GracePeriod: 7 * 24 * time.Hour, MaxRetries: 3}
}
