package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laftscreen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
screening:
  max_workers: 3
  as_of: "2025-06-30"
  delimiter: ";"
  session_ttl: 30m
  columns:
    transaction_value: "Monto COP"
cache:
  type: redis
  redis_addr: "localhost:6379"
logging:
  format: text
`), 0o600))

	t.Setenv("LAFT_SERVER_PORT", "9191")
	t.Setenv("LAFT_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Screening.MaxWorkers)
	assert.Equal(t, 30*time.Minute, cfg.Screening.SessionTTL)
	assert.Equal(t, "Monto COP", cfg.Screening.Columns["transaction_value"])
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	asOf, err := AsOf(&cfg.Screening)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), asOf)

	opts, err := IngestOptions(&cfg.Screening)
	require.NoError(t, err)
	assert.Equal(t, ';', opts.Delimiter)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"port", "LAFT_SERVER_PORT", "0"},
		{"workers", "LAFT_SCREENING_MAX_WORKERS", "-1"},
		{"as of", "LAFT_SCREENING_AS_OF", "30/06/2025"},
		{"delimiter", "LAFT_SCREENING_DELIMITER", "::"},
		{"cache", "LAFT_CACHE_TYPE", "memcached"},
		{"bus", "LAFT_EVENT_BUS_TYPE", "kafka"},
		{"level", "LAFT_LOGGING_LEVEL", "loud"},
		{"format", "LAFT_LOGGING_FORMAT", "xml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(domain.LoggingConfig{Level: "warn", Format: "json"}, &buf, false)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger = NewLogger(domain.LoggingConfig{Level: "error", Format: "text"}, &buf, true)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}
