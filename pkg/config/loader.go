package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadEnv reads one or more .env files into the process environment without
// overriding variables that are already set. With no paths it reads ".env".
// Earlier files take precedence over later ones.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses the environment into v using its env struct tags.
//
//	type Config struct {
//		GracePeriod time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"168h"`
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Meant for binaries that
// cannot start without the configuration.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Defaults returns a T populated only from envDefault tags, ignoring the
// process environment. Components use it to build their zero-config values.
func Defaults[T any]() T {
	var v T
	// Required fields without defaults are left empty.
	_ = env.ParseWithOptions(&v, env.Options{Environment: map[string]string{}})
	return v
}
