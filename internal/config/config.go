package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the oasgraph binary. Values come from, in
// increasing priority: Default, the YAML file, environment variables and
// command line flags (applied by the caller).
type Config struct {
	// ConfigFile is the YAML file the values were read from, if any.
	ConfigFile string `yaml:"-" ignored:"true"`

	// Document is a file path or http(s) URL of the API description.
	Document       string `yaml:"document" envconfig:"DOCUMENT"`
	StrictValidate bool   `yaml:"strict_validate" envconfig:"STRICT_VALIDATE"`

	ListenAddr      string        `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Pretty          bool          `yaml:"pretty" envconfig:"PRETTY"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	CORSOrigins     []string      `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	ForwardHeaders  []string      `yaml:"forward_headers" envconfig:"FORWARD_HEADERS"`
	// Introspection enables the __schema and __type query fields.
	Introspection bool `yaml:"introspection" envconfig:"INTROSPECTION"`

	BackendBaseURL string        `yaml:"backend_base_url" envconfig:"BACKEND_BASE_URL"`
	BackendTimeout time.Duration `yaml:"backend_timeout" envconfig:"BACKEND_TIMEOUT"`
	RetryAttempts  uint          `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	RetryDelay     time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`

	OtelEndpoint string `yaml:"otel_endpoint" envconfig:"OTEL_ENDPOINT"`
	OtelService  string `yaml:"otel_service" envconfig:"OTEL_SERVICE"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		Introspection:   true,
		BackendTimeout:  10 * time.Second,
		RetryAttempts:   3,
		RetryDelay:      100 * time.Millisecond,
		OtelService:     "oasgraph",
		LogLevel:        "info",
	}
}

// EnvPrefix derives the environment variable prefix from the program name,
// e.g. "oasgraph" becomes "OASGRAPH".
func EnvPrefix(program string) string {
	return strcase.UpperSnakeCase(program)
}

// Load builds the configuration for program. file overrides the config file
// named by the {PREFIX}_CONFIG_FILE variable; an empty path means no file.
func Load(program, file string) (*Config, error) {
	prefix := EnvPrefix(program)

	cfg := Default()
	// First pass only to discover the config file.
	var boot struct {
		ConfigFile string `envconfig:"CONFIG_FILE"`
	}
	if err := envconfig.Process(prefix, &boot); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if file == "" {
		file = boot.ConfigFile
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", file, err)
		}
	}

	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.ConfigFile = file
	return &cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Document) == "" {
		return fmt.Errorf("document is required")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	return nil
}

// ParsedLogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
