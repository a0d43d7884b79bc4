package domain

import "time"

// Config holds the complete laftscreen configuration.
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Screening ScreeningConfig `json:"screening" mapstructure:"screening"`

	// Component configurations
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	EventBus EventBusConfig `json:"eventBus" mapstructure:"event_bus"`

	// Observability
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `json:"host" mapstructure:"host"`
	Port           int    `json:"port" mapstructure:"port"`
	ReadTimeout    int    `json:"readTimeout" mapstructure:"read_timeout"`       // seconds
	WriteTimeout   int    `json:"writeTimeout" mapstructure:"write_timeout"`     // seconds
	RequestTimeout int    `json:"requestTimeout" mapstructure:"request_timeout"` // seconds
	MaxUploadMB    int    `json:"maxUploadMb" mapstructure:"max_upload_mb"`
}

// ScreeningConfig controls ingestion and the evaluation pass.
type ScreeningConfig struct {
	// MaxWorkers bounds the records evaluated concurrently.
	MaxWorkers int `json:"maxWorkers" mapstructure:"max_workers"`

	// AsOf pins the evaluation date (YYYY-MM-DD). Empty means today.
	AsOf string `json:"asOf" mapstructure:"as_of"`

	// Delimiter for delimited text input. Empty means comma.
	Delimiter string `json:"delimiter" mapstructure:"delimiter"`

	// Sheet to read from workbooks. Empty means the first sheet.
	Sheet string `json:"sheet" mapstructure:"sheet"`

	// Columns maps canonical field names to source headers, overriding
	// the built-in aliases.
	Columns map[string]string `json:"columns" mapstructure:"columns"`

	// SessionTTL is how long an interactive screening stays available.
	SessionTTL time.Duration `json:"sessionTtl" mapstructure:"session_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // json, text
}

// DefaultConfig returns the default configuration: in-memory cache and
// channel event bus, no external services.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   60,
			RequestTimeout: 60,
			MaxUploadMB:    64,
		},
		Screening: ScreeningConfig{
			MaxWorkers: 8,
			SessionTTL: time.Hour,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 64,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
