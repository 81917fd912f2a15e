package goSession

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
	"gopkg.in/yaml.v3"
)

// Config is the full client configuration. Zero values are replaced by
// [DefaultConfig] only when loaded through [LoadConfig]; Builder validates
// whatever it is given.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Store    StoreConfig   `yaml:"store"`
	Routes   RoutesConfig  `yaml:"routes"`
	Audit    AuditConfig   `yaml:"audit"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Log      LogConfig     `yaml:"log"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig locates the Auth Server and domain API.
type ServerConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Paths     authapi.Paths `yaml:"paths"`
}

/*
====================================
TIMEOUT CONFIG
====================================
*/

// TimeoutConfig bounds network work. Connect, Receive and Request apply to
// every call; Refresh bounds one refresh flight; Logout bounds the
// best-effort server notification.
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Receive time.Duration `yaml:"receive"`
	Request time.Duration `yaml:"request"`
	Refresh time.Duration `yaml:"refresh"`
	Logout  time.Duration `yaml:"logout"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend names a credential storage backend.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreFile     StoreBackend = "file"
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
)

// StoreConfig selects where and how the credential pair is persisted.
// Exactly one of Secret (at least 32 bytes) or Passphrase seals the pair.
type StoreConfig struct {
	Backend   StoreBackend `yaml:"backend"`
	Namespace string       `yaml:"namespace"`

	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`

	Dir string `yaml:"dir"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	PostgresURL   string `yaml:"postgres_url"`
	PostgresTable string `yaml:"postgres_table"`
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig configures the route guard.
type RoutesConfig struct {
	Login string   `yaml:"login"`
	Home  string   `yaml:"home"`
	Guest []string `yaml:"guest"`
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LogConfig controls the logger built by [NewLogger].
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with every field set except the
// server base URL and the sealing secret.
func DefaultConfig() Config {
	t := authapi.DefaultTimeouts()
	return Config{
		Server: ServerConfig{
			UserAgent: "goSession",
			Paths:     authapi.DefaultPaths(),
		},
		Timeouts: TimeoutConfig{
			Connect: t.Connect,
			Receive: t.Receive,
			Request: t.Request,
			Refresh: 15 * time.Second,
			Logout:  5 * time.Second,
		},
		Store: StoreConfig{
			Backend:       StoreMemory,
			Namespace:     "gosession",
			RedisPrefix:   "gs",
			PostgresTable: "gosession_credentials",
		},
		Routes: RoutesConfig{
			Login: "/login",
			Home:  "/",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Routes.Guest != nil {
		out.Routes.Guest = append([]string(nil), cfg.Routes.Guest...)
	}
	return out
}

// LoadConfig returns DefaultConfig overlaid with the YAML file at path (if
// path is non-empty) and then with GOSESSION_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := ParseConfig(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ParseConfig decodes YAML into cfg, keeping fields the document omits.
// Unknown keys are rejected.
func ParseConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from GOSESSION_* environment variables.
func (c *Config) ApplyEnv() {
	c.Server.BaseURL = envString("GOSESSION_BASE_URL", c.Server.BaseURL)
	c.Server.UserAgent = envString("GOSESSION_USER_AGENT", c.Server.UserAgent)

	c.Timeouts.Connect = envDuration("GOSESSION_TIMEOUT_CONNECT", c.Timeouts.Connect)
	c.Timeouts.Receive = envDuration("GOSESSION_TIMEOUT_RECEIVE", c.Timeouts.Receive)
	c.Timeouts.Request = envDuration("GOSESSION_TIMEOUT_REQUEST", c.Timeouts.Request)
	c.Timeouts.Refresh = envDuration("GOSESSION_TIMEOUT_REFRESH", c.Timeouts.Refresh)
	c.Timeouts.Logout = envDuration("GOSESSION_TIMEOUT_LOGOUT", c.Timeouts.Logout)

	c.Store.Backend = StoreBackend(envString("GOSESSION_STORE_BACKEND", string(c.Store.Backend)))
	c.Store.Namespace = envString("GOSESSION_STORE_NAMESPACE", c.Store.Namespace)
	c.Store.Secret = envString("GOSESSION_STORE_SECRET", c.Store.Secret)
	c.Store.Passphrase = envString("GOSESSION_STORE_PASSPHRASE", c.Store.Passphrase)
	c.Store.Dir = envString("GOSESSION_STORE_DIR", c.Store.Dir)
	c.Store.RedisAddr = envString("GOSESSION_REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = envString("GOSESSION_REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = envInt("GOSESSION_REDIS_DB", c.Store.RedisDB)
	c.Store.PostgresURL = envString("GOSESSION_POSTGRES_URL", c.Store.PostgresURL)

	c.Audit.Enabled = envBool("GOSESSION_AUDIT_ENABLED", c.Audit.Enabled)
	c.Metrics.Enabled = envBool("GOSESSION_METRICS_ENABLED", c.Metrics.Enabled)

	c.Log.Level = envString("GOSESSION_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("GOSESSION_LOG_FORMAT", c.Log.Format)
}

// Validate checks that cfg can build a Client.
func (c *Config) Validate() error {
	// Server
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return errors.New("Server BaseURL is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Server BaseURL must be an absolute http(s) URL")
	}

	// Timeouts
	if c.Timeouts.Connect <= 0 || c.Timeouts.Receive <= 0 || c.Timeouts.Request <= 0 {
		return errors.New("Timeouts Connect, Receive and Request must be > 0")
	}
	if c.Timeouts.Refresh <= 0 {
		return errors.New("Timeouts Refresh must be > 0")
	}
	if c.Timeouts.Logout <= 0 {
		return errors.New("Timeouts Logout must be > 0")
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("file store requires Store Dir")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("redis store requires Store RedisAddr")
		}
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("postgres store requires Store PostgresURL")
		}
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Store.Secret != "" && c.Store.Passphrase != "" {
		return errors.New("Store Secret and Passphrase are mutually exclusive")
	}
	if c.Store.Backend != StoreMemory && c.Store.Secret == "" && c.Store.Passphrase == "" {
		return errors.New("persistent stores require Store Secret or Passphrase")
	}
	if c.Store.Secret != "" && len(c.Store.Secret) < credstore.MinSecretBytes {
		return fmt.Errorf("Store Secret must be at least %d bytes", credstore.MinSecretBytes)
	}

	// Routes
	if !strings.HasPrefix(c.Routes.Login, "/") || !strings.HasPrefix(c.Routes.Home, "/") {
		return errors.New("Routes Login and Home must be absolute paths")
	}
	if c.Routes.Login == c.Routes.Home {
		return errors.New("Routes Login and Home must differ")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Log
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
