package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingBaseURL is fatal at startup: there is nowhere to forward directives to
	ErrMissingBaseURL = errors.New("config: BASE_URL must be set")
	// ErrMissingAMQPURL is returned when the queue runtime is started without a broker
	ErrMissingAMQPURL = errors.New("config: AMQP_URL must be set")
	// ErrUnsupportedFormat is returned for config files that are neither YAML nor JSON
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

// Config holds process-lifetime settings
type Config struct {
	BaseURL string       `json:"base_url" yaml:"base_url"`
	Server  ServerConfig `json:"server" yaml:"server"`
	Client  ClientConfig `json:"client" yaml:"client"`
	Log     LogConfig    `json:"log" yaml:"log"`
	AMQP    AMQPConfig   `json:"amqp" yaml:"amqp"`
}

type ServerConfig struct {
	ListenAddr      string   `json:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ClientConfig configures the HTTP client used to reach the backend. A zero
// timeout leaves cancellation to the caller's context.
type ClientConfig struct {
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type AMQPConfig struct {
	URL            string   `json:"url" yaml:"url"`
	Queue          string   `json:"queue" yaml:"queue"`
	Prefetch       int      `json:"prefetch" yaml:"prefetch"`
	ReconnectDelay Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
}

// Duration is a time.Duration written as a Go duration string ("10s") in files
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		AMQP: AMQPConfig{
			Queue:          "alexa.directives",
			Prefetch:       10,
			ReconnectDelay: Duration{5 * time.Second},
		},
	}
}

// Load reads defaults, then the optional file at path, then the environment
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config failed: %w", err)
		}
		if err := decodeFile(path, content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config failed: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	case ".json", ".jsonc", ".hujson":
		standard, err := hujson.Standardize(content)
		if err != nil {
			return err
		}
		return json.Unmarshal(standard, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"BASE_URL", &cfg.BaseURL},
		{"LISTEN_ADDR", &cfg.Server.ListenAddr},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
		{"AMQP_URL", &cfg.AMQP.URL},
		{"AMQP_QUEUE", &cfg.AMQP.Queue},
	}
	for _, s := range strs {
		if value, ok := lookup(s.key); ok && value != "" {
			*s.dst = value
		}
	}

	if value, ok := lookup("HTTP_TIMEOUT"); ok && value != "" {
		if err := cfg.Client.Timeout.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("config: HTTP_TIMEOUT: %w", err)
		}
	}
	if value, ok := lookup("AMQP_PREFETCH"); ok && value != "" {
		prefetch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: AMQP_PREFETCH: %w", err)
		}
		cfg.AMQP.Prefetch = prefetch
	}
	return nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "alexa.directives"
	}
	if c.AMQP.Prefetch <= 0 {
		c.AMQP.Prefetch = 10
	}
	if c.AMQP.ReconnectDelay.Duration <= 0 {
		c.AMQP.ReconnectDelay = Duration{5 * time.Second}
	}
}

// Validate checks the settings every runtime needs
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Client.Timeout.Duration < 0 {
		return fmt.Errorf("config: client timeout cannot be negative")
	}
	return nil
}

// RequireAMQP checks the settings of the queue runtime
func (c Config) RequireAMQP() error {
	if c.AMQP.URL == "" {
		return ErrMissingAMQPURL
	}
	return nil
}
