package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, VerifyStrict, cfg.WinVerification)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROOM_RETENTION_DAYS", "7")
	t.Setenv("WIN_VERIFICATION", "advisory")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.Equal(t, VerifyAdvisory, cfg.WinVerification)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"WIN_VERIFICATION":    "maybe",
		"ROOM_RETENTION_DAYS": "0",
		"STORE_TIMEOUT":       "0s",
		"SEND_QUEUE_SIZE":     "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
