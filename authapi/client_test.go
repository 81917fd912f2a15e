package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client(), UserAgent: "gosession-test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginDecodesPair(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "pw" {
			t.Errorf("unexpected body %v", body)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "acc", "refresh_token": "ref", "token_type": "Bearer", "expires_in": 900,
		})
	}))

	pair, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken != "acc" || pair.RefreshToken != "ref" {
		t.Fatalf("unexpected pair %+v", pair)
	}
}

func TestLoginUnauthorizedCarriesMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
	}))

	_, err := c.Login(context.Background(), "a@example.com", "bad")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized || se.Message != "Invalid email or password" {
		t.Fatalf("unexpected status error %#v", se)
	}
}

func TestRegisterValidationVerbatim(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"details": map[string]any{"password": "too short"},
		})
	}))

	_, _, err := c.Register(context.Background(), "a@example.com", "x")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := UserMessage(err); got != "Validation failed" {
		t.Fatalf("expected verbatim message, got %q", got)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Details["password"] != "too short" {
		t.Fatalf("expected details, got %#v", se)
	}
}

func TestRegisterWithoutTokens(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully"})
	}))

	_, issued, err := c.Register(context.Background(), "a@example.com", "longpassword")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if issued {
		t.Fatal("expected issued=false when the response has no tokens")
	}
}

func TestRefreshAndLogoutBodies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/auth/refresh":
			if body["refresh_token"] != "r1" {
				t.Errorf("unexpected refresh body %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "a2", "refresh_token": "r2"})
		case "/auth/logout":
			if r.Header.Get("Authorization") != "Bearer a2" || body["refresh_token"] != "r2" {
				t.Errorf("unexpected logout request auth=%q body=%v", r.Header.Get("Authorization"), body)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))

	pair, err := c.Refresh(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if err := c.Logout(context.Background(), pair); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
}

func TestDoClassifiesStatuses(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ok":
			if r.URL.Query().Get("q") != "1" {
				t.Errorf("query lost: %q", r.URL.RawQuery)
			}
			b, _ := io.ReadAll(r.Body)
			w.Write(b)
		case "/api/expired":
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/boom":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
		case "/api/limited":
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		}
	}))
	ctx := context.Background()

	resp, err := c.Do(ctx, Request{Method: "post", Path: "/api/ok", Query: map[string][]string{"q": {"1"}}, Body: []byte("echo")}, "tok")
	if err != nil || string(resp.Body) != "echo" {
		t.Fatalf("unexpected ok result resp=%+v err=%v", resp, err)
	}

	resp, err = c.Do(ctx, Request{Path: "/api/expired"}, "tok")
	if !errors.Is(err, ErrUnauthorized) || resp == nil || resp.Status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got resp=%+v err=%v", resp, err)
	}

	_, err = c.Do(ctx, Request{Path: "/api/boom"}, "tok")
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
	if got := UserMessage(err); got == "db down" {
		t.Fatal("server error text must not reach the user")
	}

	_, err = c.Do(ctx, Request{Path: "/api/limited"}, "tok")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected 429 to classify as ErrValidation, got %v", err)
	}
}

func TestDoRejectsOversizedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := MaxResponseBytes
		if r.URL.Path == "/api/big" {
			n++
		}
		w.Write(bytes.Repeat([]byte("x"), n))
	}))
	ctx := context.Background()

	resp, err := c.Do(ctx, Request{Path: "/api/exact"}, "tok")
	if err != nil || len(resp.Body) != MaxResponseBytes {
		t.Fatalf("body at the limit must be accepted, err=%v", err)
	}

	resp, err = c.Do(ctx, Request{Path: "/api/big"}, "tok")
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer for an oversized body, got %v", err)
	}
	if resp != nil {
		t.Fatal("oversized body must not be returned truncated")
	}
}

func TestDoNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, HTTPClient: NewHTTPClient(Timeouts{Connect: time.Second, Receive: 50 * time.Millisecond, Request: time.Second})})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = c.Do(context.Background(), Request{Path: "/slow"}, "")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork on timeout, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("timeout must never be treated as credential expiry")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	got := make(chan string, 1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(RequestIDHeader)
	}))

	ctx := WithRequestID(context.Background(), "req-123")
	if _, err := c.Do(ctx, Request{Path: "/x"}, ""); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if id := <-got; id != "req-123" {
		t.Fatalf("expected request id from context, got %q", id)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "::bad"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for base URL %q", raw)
		}
	}
}
