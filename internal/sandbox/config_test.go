package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SANDBOX_PORT", "9090")
		t.Setenv("SANDBOX_APP_KEYS", "a, b")
		t.Setenv("SANDBOX_RATE_WINDOW", "1m")
		t.Setenv("SANDBOX_STORE", "redis")
		t.Setenv("REDIS_ADDR", "cache:6379")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9090", cfg.Address())
		assert.Equal(t, []string{"a", "b"}, cfg.AppKeyList())
		assert.Equal(t, time.Minute, cfg.RateWindow)
		assert.Equal(t, StoreRedis, cfg.Store)
		assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	})

	malformed := []struct {
		name  string
		key   string
		value string
	}{
		{"duration", "SANDBOX_SESSION_TTL", "forever"},
		{"int", "SANDBOX_PORT", "eighty"},
		{"nested int", "REDIS_DB", "first"},
	}
	for _, tt := range malformed {
		t.Run("malformed "+tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}

	t.Run("invalid store", func(t *testing.T) {
		t.Setenv("SANDBOX_STORE", "postgres")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "SANDBOX_STORE")
	})
}
