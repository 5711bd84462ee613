// Package config loads component configuration from the process environment.
//
// Each component declares an env-tagged struct (pg.Config, redis.Config,
// subscription.Config, writegate.Config, sweep.Config) and the binary fills
// it with Load. Values are parsed fresh on each call; nothing is cached at
// package level, so tests can vary the environment between loads.
//
//	if err := config.LoadEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
//		return err
//	}
//	var cfg subscription.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// .env files are read with github.com/joho/godotenv and structs are parsed
// with github.com/caarlos0/env/v11.
package config
