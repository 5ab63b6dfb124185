package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/config"
)

type testServerConfig struct {
	Host string `env:"TEST_SERVER_HOST" envDefault:"localhost"`
	Port int    `env:"TEST_SERVER_PORT" envDefault:"8080"`
}

type testRequiredConfig struct {
	Token string `env:"TEST_REQUIRED_TOKEN_MISSING,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env unset", func(t *testing.T) {
		var cfg testServerConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
	})

	t.Run("values from environment", func(t *testing.T) {
		t.Setenv("TEST_ENV_HOST", "billing.internal")
		t.Setenv("TEST_ENV_PORT", "9090")

		type envConfig struct {
			Host string `env:"TEST_ENV_HOST"`
			Port int    `env:"TEST_ENV_PORT"`
		}

		var cfg envConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "billing.internal", cfg.Host)
		assert.Equal(t, 9090, cfg.Port)
	})

	t.Run("same type cached across calls", func(t *testing.T) {
		var first testServerConfig
		require.NoError(t, config.Load(&first))

		// Changing the environment after the first load must not change
		// the cached result.
		t.Setenv("TEST_SERVER_HOST", "changed")

		var second testServerConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg testRequiredConfig
		err := config.Load(&cfg)
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		var cfg *testServerConfig
		err := config.Load(cfg)
		require.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	assert.Panics(t, func() {
		var cfg testRequiredConfig
		config.MustLoad(&cfg)
	})
}
