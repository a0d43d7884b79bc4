// Package config loads the laftscreen configuration from defaults, an
// optional YAML file and LAFT_ environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
)

// EnvPrefix prefixes every environment override, e.g. LAFT_SERVER_PORT.
const EnvPrefix = "LAFT"

// Load builds the configuration. path may be empty.
func Load(path string) (*domain.Config, error) {
	v := viper.New()
	setDefaults(v, domain.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that environment variables can
// override keys absent from the file.
func setDefaults(v *viper.Viper, d *domain.Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("screening.max_workers", d.Screening.MaxWorkers)
	v.SetDefault("screening.as_of", d.Screening.AsOf)
	v.SetDefault("screening.delimiter", d.Screening.Delimiter)
	v.SetDefault("screening.sheet", d.Screening.Sheet)
	v.SetDefault("screening.session_ttl", d.Screening.SessionTTL)

	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.local_max_size", d.Cache.LocalMaxSize)
	v.SetDefault("cache.local_ttl", d.Cache.LocalTTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.enable_two_phase", d.Cache.EnableTwoPhase)

	v.SetDefault("event_bus.type", d.EventBus.Type)
	v.SetDefault("event_bus.channel_buffer_size", d.EventBus.ChannelBufferSize)
	v.SetDefault("event_bus.nats_url", d.EventBus.NATSUrl)
	v.SetDefault("event_bus.nats_token", d.EventBus.NATSToken)
	v.SetDefault("event_bus.nats_max_reconnects", d.EventBus.NATSMaxReconnects)
	v.SetDefault("event_bus.nats_reconnect_wait", d.EventBus.NATSReconnectWait)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate rejects settings the components cannot start with.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}
	if cfg.Screening.MaxWorkers <= 0 {
		return fmt.Errorf("screening.max_workers must be positive, got %d", cfg.Screening.MaxWorkers)
	}
	if _, err := AsOf(&cfg.Screening); err != nil {
		return err
	}
	if _, err := IngestOptions(&cfg.Screening); err != nil {
		return err
	}
	switch cfg.Cache.Type {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("cache.type must be memory or redis, got %q", cfg.Cache.Type)
	}
	switch cfg.EventBus.Type {
	case "", "channel", "nats":
	default:
		return fmt.Errorf("event_bus.type must be channel or nats, got %q", cfg.EventBus.Type)
	}
	if _, err := parseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	return nil
}

// AsOf returns the pinned evaluation date, or the zero time for today.
func AsOf(s *domain.ScreeningConfig) (time.Time, error) {
	if s.AsOf == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("screening.as_of must be YYYY-MM-DD, got %q", s.AsOf)
	}
	return t, nil
}

// IngestOptions converts the screening settings into reader options.
func IngestOptions(s *domain.ScreeningConfig) (ingest.Options, error) {
	opts := ingest.Options{Sheet: s.Sheet}
	if s.Delimiter != "" {
		if utf8.RuneCountInString(s.Delimiter) != 1 {
			return opts, fmt.Errorf("screening.delimiter must be a single character, got %q", s.Delimiter)
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(s.Delimiter)
	}
	return opts, nil
}

// NewLogger builds the slog logger described by cfg. debug forces the
// debug level.
func NewLogger(cfg domain.LoggingConfig, w io.Writer, debug bool) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", s)
}
