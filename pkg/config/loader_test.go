package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/config"
)

type gateConfig struct {
	Timeout time.Duration `env:"TEST_GATE_TIMEOUT" envDefault:"300ms"`
	Grace   time.Duration `env:"TEST_GRACE_PERIOD" envDefault:"168h"`
}

type requiredConfig struct {
	URL string `env:"TEST_REQUIRED_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		var cfg gateConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 300*time.Millisecond, cfg.Timeout)
		assert.Equal(t, 7*24*time.Hour, cfg.Grace)
	})

	t.Run("reads environment on every call", func(t *testing.T) {
		t.Setenv("TEST_GATE_TIMEOUT", "1s")
		var first gateConfig
		require.NoError(t, config.Load(&first))
		assert.Equal(t, time.Second, first.Timeout)

		t.Setenv("TEST_GATE_TIMEOUT", "2s")
		var second gateConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 2*time.Second, second.Timeout)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[gateConfig](nil), config.ErrNilPointer)
	})

	t.Run("must load panics", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg requiredConfig
			config.MustLoad(&cfg)
		})
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_REQUIRED_URL=postgres://localhost/billing\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TEST_REQUIRED_URL") })

	require.NoError(t, config.LoadEnv(path))

	var cfg requiredConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "postgres://localhost/billing", cfg.URL)

	err := config.LoadEnv(filepath.Join(dir, "missing.env"))
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestDefaults(t *testing.T) {
	t.Setenv("TEST_GATE_TIMEOUT", "5s")

	cfg := config.Defaults[gateConfig]()
	assert.Equal(t, 300*time.Millisecond, cfg.Timeout)
}
