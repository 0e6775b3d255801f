package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/joho/godotenv"
	"github.com/thesavant42/dragos-portal/internal/ratelimit"
)

const (
	// Section is the config file section holding portal settings
	Section = "dragos portal"

	DefaultURL     = "https://portal.dragos.com/api/v1/"
	DefaultTimeout = 60 * time.Second

	// LocalMarker in the base URL marks a local development portal
	LocalMarker = "-local"
)

// Environment variables that override config file values
const (
	EnvAccessToken = "DRAGOS_ACCESS_TOKEN"
	EnvAccessKey   = "DRAGOS_ACCESS_KEY"
	EnvURL         = "DRAGOS_URL"
	EnvDebug       = "DRAGOS_DEBUG"
)

// ErrConfiguration is returned when credentials are missing or the config is unreadable
var ErrConfiguration = errors.New("configuration error")

// Config holds the portal client settings
type Config struct {
	AccessToken string
	AccessKey   string
	URL         string
	Debug       bool

	Limits   ratelimit.Limits
	Timeout  time.Duration
	Throttle bool // pace requests client-side instead of only rejecting them
}

// IsLocal reports whether the base URL points at a local development portal
func (c *Config) IsLocal() bool {
	return strings.Contains(c.URL, LocalMarker)
}

// Validate checks the required credentials and normalises the base URL
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: config is missing access_token", ErrConfiguration)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("%w: config is missing access_key", ErrConfiguration)
	}
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if !strings.HasSuffix(c.URL, "/") {
		c.URL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Limits.PerMinute <= 0 {
		c.Limits.PerMinute = ratelimit.DefaultPerMinute
	}
	if c.Limits.PerWeek <= 0 {
		c.Limits.PerWeek = ratelimit.DefaultPerWeek
	}
	return nil
}

// Load reads the config file, then applies .env and environment overrides.
// An empty path skips the file and relies on the environment alone.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := &Config{
		URL:     DefaultURL,
		Timeout: DefaultTimeout,
		Limits:  ratelimit.DefaultLimits(),
	}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("%w: error reading portal config %s: %v", ErrConfiguration, path, err)
	}

	sec, err := file.GetSection(Section)
	if err != nil {
		return fmt.Errorf("%w: %s has no [%s] section", ErrConfiguration, path, Section)
	}

	c.AccessToken = sec.Key("access_token").String()
	c.AccessKey = sec.Key("access_key").String()

	if sec.HasKey("url") && sec.Key("url").String() != "" {
		c.URL = sec.Key("url").String()
	}

	if sec.HasKey("debug") {
		if c.Debug, err = sec.Key("debug").Bool(); err != nil {
			return fmt.Errorf("%w: invalid debug value: %v", ErrConfiguration, err)
		}
	}
	if sec.HasKey("throttle") {
		if c.Throttle, err = sec.Key("throttle").Bool(); err != nil {
			return fmt.Errorf("%w: invalid throttle value: %v", ErrConfiguration, err)
		}
	}
	if sec.HasKey("per_minute") {
		if c.Limits.PerMinute, err = sec.Key("per_minute").Int(); err != nil {
			return fmt.Errorf("%w: invalid per_minute value: %v", ErrConfiguration, err)
		}
	}
	if sec.HasKey("per_week") {
		if c.Limits.PerWeek, err = sec.Key("per_week").Int(); err != nil {
			return fmt.Errorf("%w: invalid per_week value: %v", ErrConfiguration, err)
		}
	}
	if sec.HasKey("timeout") {
		if c.Timeout, err = sec.Key("timeout").Duration(); err != nil {
			return fmt.Errorf("%w: invalid timeout value: %v", ErrConfiguration, err)
		}
	}

	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv(EnvAccessKey); v != "" {
		c.AccessKey = v
	}
	if v := os.Getenv(EnvURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: invalid %s value %q", ErrConfiguration, EnvDebug, v)
		}
		c.Debug = debug
	}
	return nil
}
