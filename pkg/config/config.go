package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	API       API       `yaml:"api"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Dashboard Dashboard `yaml:"dashboard"`
}

// API configures the backend client.
type API struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables limiting
	Burst     int           `yaml:"burst"`
	RetryMax  int           `yaml:"retry_max"` // retries for GET requests only
}

// Server configures the HTTP service.
type Server struct {
	Listen     string        `yaml:"listen"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Dashboard configures list loading.
type Dashboard struct {
	// Fallback substitutes the bundled mock dataset when a live load fails.
	Fallback *bool `yaml:"fallback"`
}

// FallbackEnabled defaults to true when unset.
func (d Dashboard) FallbackEnabled() bool {
	return d.Fallback == nil || *d.Fallback
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: API{
			BaseURL:   "http://localhost:8000",
			Timeout:   15 * time.Second,
			RateLimit: 10,
			Burst:     10,
			RetryMax:  2,
		},
		Server: Server{
			Listen:     "127.0.0.1:8080",
			SessionTTL: 30 * time.Minute,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file (explicit path or the first
// one found in the usual places), then .env, then MATCHFUND_* environment variables.
// It does not validate: callers apply their flag overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = findConfigFile()
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", file, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WithLog applies the command line logging flags. An empty level keeps the configured one.
func (c Config) WithLog(level string, dev bool) Config {
	if level != "" {
		c.Log.Level = level
	}
	if dev {
		c.Log.Development = true
	}
	return c
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func findConfigFile() string {
	var candidates []string
	add := func(p string) {
		if p != "" {
			candidates = append(candidates, p)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, "matchfund.yaml"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "matchfund", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".config", "matchfund", "config.yaml"))
	}
	for _, p := range candidates {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv("MATCHFUND_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MATCHFUND_API_TOKEN")); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("MATCHFUND_LISTEN")); v != "" {
		c.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("MATCHFUND_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("MATCHFUND_LOG_DEV")); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MATCHFUND_LOG_DEV: %w", err)
		}
		c.Log.Development = dev
	}
	return nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("api.retry_max must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
