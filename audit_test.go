package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/internal/authmock"
)

func eventTypes(events []AuditEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	env := newTestEnv(t, func(_ *authmock.Options, c *Config) { c.Audit.Enabled = false })
	env.login(t)
	_ = env.client.Logout(context.Background())

	if events := env.auditEvents(); len(events) != 0 {
		t.Fatalf("expected no events, got %v", eventTypes(events))
	}
}

func TestAuditLifecycleEvents(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	ctx := WithRequestID(context.Background(), "req-login-1")
	if err := env.client.Login(ctx, testEmail, "wrong-password"); err == nil {
		t.Fatal("expected failure")
	}
	if err := env.client.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.mock.ExpireAccessTokens()
	if _, err := env.client.Get(context.Background(), "/api/items", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := env.client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	events := env.auditEvents()
	want := []string{auditEventLoginFailure, auditEventLoginSuccess, auditEventRefreshSuccess, auditEventLogout}
	if got := eventTypes(events); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}

	failure, _ := findEvent(events, auditEventLoginFailure)
	if failure.Success || failure.Error != string(auditErrRejected) || failure.RequestID != "req-login-1" {
		t.Fatalf("login failure event = %+v", failure)
	}
	success, _ := findEvent(events, auditEventLoginSuccess)
	if !success.Success || success.ID == "" || success.Timestamp.IsZero() {
		t.Fatalf("login success event = %+v", success)
	}
	if !strings.HasPrefix(failure.State, "error") {
		t.Fatalf("login failure state = %q", failure.State)
	}
	if success.State != "authenticated" {
		t.Fatalf("login success state = %q", success.State)
	}
	logout, _ := findEvent(events, auditEventLogout)
	if logout.Metadata["had_session"] != "true" || logout.Metadata["server_notice"] != "sent" {
		t.Fatalf("logout metadata = %v", logout.Metadata)
	}
	if logout.State != "unauthenticated" {
		t.Fatalf("logout state = %q", logout.State)
	}
}

func TestAuditSessionInvalidated(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.mock.ExpireAccessTokens()
	env.mock.RevokeRefreshTokens()

	_, _ = env.client.Get(context.Background(), "/api/items", nil)

	events := env.auditEvents()
	ev, ok := findEvent(events, auditEventSessionInvalidated)
	if !ok {
		t.Fatalf("missing session_invalidated in %v", eventTypes(events))
	}
	if ev.Error != string(auditErrSessionInvalid) || ev.Metadata["reason"] == "" {
		t.Fatalf("event = %+v", ev)
	}
	if _, ok := findEvent(events, auditEventRefreshRejected); !ok {
		t.Fatal("expected refresh_rejected")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	before, _ := env.stored(t)

	env.mock.ExpireAccessTokens()
	if _, err := env.client.Get(context.Background(), "/api/items", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	after, _ := env.stored(t)

	out := &syncBuffer{}
	sink := NewJSONWriterSink(out)
	for _, ev := range env.auditEvents() {
		sink.Emit(context.Background(), ev)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least two events, got %q", out.String())
	}
	for _, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
	}
	for _, secret := range []string{testPassword, before.AccessToken, before.RefreshToken, after.AccessToken, after.RefreshToken} {
		if strings.Contains(out.String(), secret) {
			t.Fatalf("audit output leaked a secret")
		}
	}
}

func TestAuditErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrSessionInvalid, auditErrSessionInvalid},
		{ErrSuperseded, auditErrSuperseded},
		{ErrUnauthorized, auditErrRejected},
		{ErrValidation, auditErrInvalidRequest},
		{ErrNetwork, auditErrNetwork},
		{ErrServer, auditErrServer},
		{ErrStorage, auditErrStorage},
		{context.Canceled, auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
