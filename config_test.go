package goSession

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://api.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	secret := strings.Repeat("s", 32)

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with base url", mutate: func(*Config) {}, wantValid: true},
		{name: "missing base url", mutate: func(c *Config) { c.Server.BaseURL = " " }, wantValid: false},
		{name: "relative base url", mutate: func(c *Config) { c.Server.BaseURL = "/api" }, wantValid: false},
		{name: "ftp base url", mutate: func(c *Config) { c.Server.BaseURL = "ftp://x" }, wantValid: false},
		{name: "zero request timeout", mutate: func(c *Config) { c.Timeouts.Request = 0 }, wantValid: false},
		{name: "zero refresh timeout", mutate: func(c *Config) { c.Timeouts.Refresh = 0 }, wantValid: false},
		{name: "zero logout timeout", mutate: func(c *Config) { c.Timeouts.Logout = 0 }, wantValid: false},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "etcd" }, wantValid: false},
		{
			name: "file without dir",
			mutate: func(c *Config) {
				c.Store.Backend = StoreFile
				c.Store.Secret = secret
			},
			wantValid: false,
		},
		{
			name: "file without secret",
			mutate: func(c *Config) {
				c.Store.Backend = StoreFile
				c.Store.Dir = "/tmp/x"
			},
			wantValid: false,
		},
		{
			name: "file with passphrase",
			mutate: func(c *Config) {
				c.Store.Backend = StoreFile
				c.Store.Dir = "/tmp/x"
				c.Store.Passphrase = "correct horse battery"
			},
			wantValid: true,
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Store.Backend = StoreRedis
				c.Store.Secret = secret
			},
			wantValid: false,
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Store.Backend = StorePostgres
				c.Store.PostgresURL = "postgres://localhost/db"
				c.Store.Secret = secret
			},
			wantValid: true,
		},
		{name: "short secret", mutate: func(c *Config) { c.Store.Secret = "short" }, wantValid: false},
		{
			name: "secret and passphrase",
			mutate: func(c *Config) {
				c.Store.Secret = secret
				c.Store.Passphrase = "pass"
			},
			wantValid: false,
		},
		{name: "relative login route", mutate: func(c *Config) { c.Routes.Login = "login" }, wantValid: false},
		{name: "login equals home", mutate: func(c *Config) { c.Routes.Login = "/" }, wantValid: false},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{name: "text log format", mutate: func(c *Config) { c.Log.Format = "TEXT" }, wantValid: true},
		{name: "xml log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantValid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseConfigOverlaysDefaults(t *testing.T) {
	cfg := DefaultConfig()
	doc := []byte(`
server:
  base_url: https://api.example.com
  paths:
    login: /v2/login
timeouts:
  refresh: 5s
routes:
  guest: [/signup, /reset]
`)
	if err := ParseConfig(doc, &cfg); err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Server.BaseURL != "https://api.example.com" || cfg.Server.Paths.Login != "/v2/login" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Timeouts.Refresh != 5*time.Second {
		t.Fatalf("refresh timeout = %v", cfg.Timeouts.Refresh)
	}
	if cfg.Timeouts.Logout != DefaultConfig().Timeouts.Logout || cfg.Routes.Login != "/login" {
		t.Fatal("omitted fields must keep their defaults")
	}
	if len(cfg.Routes.Guest) != 2 {
		t.Fatalf("guest = %v", cfg.Routes.Guest)
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := ParseConfig([]byte("server:\n  base_uri: x\n"), &cfg); err == nil {
		t.Fatal("expected unknown key error")
	}
	if err := ParseConfig(nil, &cfg); err != nil {
		t.Fatalf("empty document: %v", err)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	if err := os.WriteFile(path, []byte("server:\n  base_url: https://file.example.com\nlog:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOSESSION_BASE_URL", "https://env.example.com")
	t.Setenv("GOSESSION_TIMEOUT_LOGOUT", "2s")
	t.Setenv("GOSESSION_REDIS_DB", "not-a-number")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.BaseURL != "https://env.example.com" {
		t.Fatalf("env must win over file, got %q", cfg.Server.BaseURL)
	}
	if cfg.Log.Level != "debug" || cfg.Timeouts.Logout != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Store.RedisDB != 0 {
		t.Fatal("invalid env values must be ignored")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected missing base URL error")
	}

	b := New().WithBaseURL("https://api.example.com")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must not build twice")
	}
}

func TestCloneConfigCopiesGuestRoutes(t *testing.T) {
	cfg := validConfig()
	cfg.Routes.Guest = []string{"/signup"}
	out := cloneConfig(cfg)
	out.Routes.Guest[0] = "/changed"
	if cfg.Routes.Guest[0] != "/signup" {
		t.Fatal("clone shares the guest slice")
	}
}
