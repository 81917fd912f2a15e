package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo is worth knowing but usually intended.
	LintInfo LintSeverity = iota
	// LintWarn is likely a mistake outside of development.
	LintWarn
	// LintHigh breaks session guarantees in production.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding from [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult lists findings in a stable order.
type LintResult []LintWarning

// Codes returns the warning codes.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above floor.
func (r LintResult) BySeverity(floor LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= floor {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above floor into one error, or returns nil.
func (r LintResult) AsError(floor LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(floor) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports configurations that validate but are probably unintended.
// It does not repeat Validate's checks.
func (c Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if u, err := url.Parse(c.Server.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		add("base_url_plaintext", LintHigh, "tokens are sent over plain HTTP to a non-loopback host")
	}
	if c.Store.Backend == StoreMemory {
		add("store_ephemeral", LintInfo, "memory store forgets the session when the process exits")
	}
	if c.Store.Passphrase != "" && len(c.Store.Passphrase) < 12 {
		add("passphrase_short", LintWarn, "store passphrase is shorter than 12 characters")
	}
	if c.Timeouts.Refresh > c.Timeouts.Request {
		add("refresh_timeout_exceeds_request", LintWarn, "a refresh can outlive the request that triggered it")
	}
	if c.Timeouts.Logout > 30*time.Second {
		add("logout_timeout_long", LintInfo, "logout may wait long for the server notice")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink will block session operations")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session lifecycle events are not audited")
	}
	for _, g := range c.Routes.Guest {
		if g == c.Routes.Home {
			add("home_is_guest", LintHigh, "signed-in users are redirected away from the home route")
		}
	}
	if strings.EqualFold(c.Log.Level, "debug") {
		add("log_debug", LintInfo, "debug logging is enabled")
	}
	return r
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
