package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplehub/dispatch/pkg/config"
)

type sampleConfig struct {
	Host    string        `env:"SAMPLE_HOST" envDefault:"localhost"`
	Port    int           `env:"SAMPLE_PORT" envDefault:"6379"`
	Timeout time.Duration `env:"SAMPLE_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	Token string `env:"SAMPLE_REQUIRED_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg sampleConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 6379, cfg.Port)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("cached on second load", func(t *testing.T) {
		var first, second sampleConfig
		require.NoError(t, config.Load(&first))

		// Environment changes after the first load must not be observed.
		t.Setenv("SAMPLE_PORT", "9999")
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[sampleConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
