package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "FRONTEND_URL", "MAX_BODY_BYTES", "STORE_BACKEND", "DB_DSN", "DB_HOST",
		"DB_DRIVER", "REDIS_URL", "REDIS_ADDR", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX",
		"APP_ENV", "NODE_ENV", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Server.FrontendURL)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, BackendAuto, cfg.Store.Backend)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.Database.Configured())
	assert.False(t, cfg.Redis.Configured())
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("APP_ENV", "")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.1, ,192.168.0.0/16 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.True(t, cfg.Redis.Configured())
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.Server.TrustedProxies)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "5000", FrontendURL: "http://localhost:3000", MaxBodyBytes: 1},
			Store:     StoreConfig{Backend: BackendMemory},
			Database:  DatabaseConfig{Driver: "pgx"},
			RateLimit: RateLimitConfig{Window: time.Second, Max: 1},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Store.Backend = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.Max = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Server.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Server.FrontendURL = "localhost:3000"
	assert.Error(t, cfg.Validate())
}
