package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"

	"torboxdav/pkg/env"
	"torboxdav/pkg/logger"
)

const (
	DefaultAddress         = "127.0.0.1:3000"
	DefaultAPIURL          = "https://api.torbox.app"
	DefaultRefreshInterval = 10 * time.Minute
	DefaultLinkIdleTimeout = 3 * time.Hour
	DefaultAPIRateLimit    = 5
	DefaultLogMaxSizeMB    = 50
	DefaultLogMaxBackups   = 3
)

// Config holds every runtime setting of the server
type Config struct {
	APIKey          string        `yaml:"apiKey"`
	APIURL          string        `yaml:"apiUrl"`
	APIRateLimit    int           `yaml:"apiRateLimit"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"-"`
	LinkIdleTimeout time.Duration `yaml:"-"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	LogLevel        string        `yaml:"logLevel"`
	LogFile         string        `yaml:"logFile"`
	// rotation of LogFile; a zero LogMaxAgeDays keeps old files regardless of age
	LogMaxSizeMB  int `yaml:"logMaxSize"`
	LogMaxBackups int `yaml:"logMaxBackups"`
	LogMaxAgeDays int `yaml:"logMaxAge"`
}

// fileConfig mirrors Config for YAML decoding; durations are kept as text so both
// "600" (seconds) and "10m" are accepted.
type fileConfig struct {
	Config          `yaml:",inline"`
	RefreshInterval string `yaml:"refreshInterval"`
	LinkIdleTimeout string `yaml:"linkIdleTimeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		APIURL:          DefaultAPIURL,
		APIRateLimit:    DefaultAPIRateLimit,
		Address:         DefaultAddress,
		RefreshInterval: DefaultRefreshInterval,
		LinkIdleTimeout: DefaultLinkIdleTimeout,
		LogLevel:        "info",
		LogMaxSizeMB:    DefaultLogMaxSizeMB,
		LogMaxBackups:   DefaultLogMaxBackups,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the file keep
// their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.RefreshInterval != "" {
		d, err := ParseDuration(fc.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refreshInterval: %w", err)
		}
		fc.Config.RefreshInterval = d
	}
	if fc.LinkIdleTimeout != "" {
		d, err := ParseDuration(fc.LinkIdleTimeout)
		if err != nil {
			return fmt.Errorf("invalid linkIdleTimeout: %w", err)
		}
		fc.Config.LinkIdleTimeout = d
	}

	*c = fc.Config
	logger.Debug("Configuration loaded from %s", path)
	return nil
}

// ApplyEnv overlays environment variables onto cfg
func (c *Config) ApplyEnv() {
	c.APIKey = env.GetString("API_KEY", c.APIKey)
	c.APIURL = env.GetString("TORBOX_API_URL", c.APIURL)
	c.APIRateLimit = env.GetInt("API_RATE_LIMIT", c.APIRateLimit)
	c.Address = env.GetString("ADDRESS", c.Address)
	c.RefreshInterval = env.GetDuration("REFRESH_INTERVAL", c.RefreshInterval)
	c.LinkIdleTimeout = env.GetDuration("LINK_IDLE_TIMEOUT", c.LinkIdleTimeout)
	c.MetricsAddress = env.GetString("METRICS_ADDRESS", c.MetricsAddress)
	c.LogLevel = env.GetString("LOG_LEVEL", c.LogLevel)
	c.LogFile = env.GetString("LOG_FILE", c.LogFile)
	c.LogMaxSizeMB = env.GetInt("LOG_MAX_SIZE", c.LogMaxSizeMB)
	c.LogMaxBackups = env.GetInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAgeDays = env.GetInt("LOG_MAX_AGE", c.LogMaxAgeDays)
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return errors.New("an API key is required (--api-key or API_KEY)")
	case c.Address == "":
		return errors.New("listen address must not be empty")
	case c.APIURL == "":
		return errors.New("API URL must not be empty")
	case c.RefreshInterval < time.Second:
		return fmt.Errorf("refresh interval must be at least 1s, got %s", c.RefreshInterval)
	case c.LinkIdleTimeout <= 0:
		return fmt.Errorf("link idle timeout must be positive, got %s", c.LinkIdleTimeout)
	case c.APIRateLimit < 1:
		return fmt.Errorf("API rate limit must be at least 1 request per second, got %d", c.APIRateLimit)
	case c.LogMaxSizeMB < 1:
		return fmt.Errorf("log max size must be at least 1 MB, got %d", c.LogMaxSizeMB)
	case c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0:
		return errors.New("log max backups and max age must not be negative")
	}
	return nil
}

// ParseDuration accepts a Go duration ("10m") or a plain number of seconds ("600")
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor a number of seconds", s)
	}
	return time.Duration(secs) * time.Second, nil
}
