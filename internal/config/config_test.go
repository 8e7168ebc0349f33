package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"DB_DSN": "postgres://localhost/scheduler"}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "UTC", cfg.ScheduleTZ)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "scheduler.events", cfg.RedisEventsChannel)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DB_DSN":       "postgres://localhost/scheduler",
		"ENV":          "production",
		"DB_TIMEOUT":   "2s",
		"AUTO_MIGRATE": "false",
		"REDIS_ADDR":   "localhost:6379",
		"REDIS_DB":     "3",
		"LOCK_TTL":     "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 2*time.Second, cfg.DBTimeout)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "missing dsn", vars: map[string]string{}},
		{name: "bad timeout", vars: map[string]string{"DB_DSN": "x", "DB_TIMEOUT": "soon"}},
		{name: "bad bool", vars: map[string]string{"DB_DSN": "x", "AUTO_MIGRATE": "maybe"}},
		{name: "bad redis db", vars: map[string]string{"DB_DSN": "x", "REDIS_DB": "first"}},
		{name: "bad timezone", vars: map[string]string{"DB_DSN": "x", "SCHEDULE_TZ": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.vars))
			assert.Error(t, err)
		})
	}
}
