package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/credstore"
	"github.com/google/uuid"
)

// MaxResponseBytes caps how much of a response body is read. Larger bodies
// fail with ErrServer rather than being truncated.
const MaxResponseBytes = 4 << 20

// RequestIDHeader is set on every outbound call.
const RequestIDHeader = "X-Request-ID"

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Paths are the Auth Server endpoints, relative to the base URL.
type Paths struct {
	Login    string `yaml:"login"`
	Register string `yaml:"register"`
	Refresh  string `yaml:"refresh"`
	Logout   string `yaml:"logout"`
}

// DefaultPaths returns the standard Auth Server endpoints.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/auth/login",
		Register: "/auth/register",
		Refresh:  "/auth/refresh",
		Logout:   "/auth/logout",
	}
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Paths      Paths
	UserAgent  string
	HTTPClient Doer
}

// Client talks to the Auth Server and the domain API behind the same base URL.
type Client struct {
	base      *url.URL
	paths     Paths
	userAgent string
	http      Doer
}

// New validates cfg and returns a Client. Missing paths fall back to
// [DefaultPaths]; a nil HTTPClient uses [NewHTTPClient] with default timeouts.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("authapi: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("authapi: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("authapi: unsupported base URL scheme %q", base.Scheme)
	}

	paths := cfg.Paths
	defaults := DefaultPaths()
	if paths.Login == "" {
		paths.Login = defaults.Login
	}
	if paths.Register == "" {
		paths.Register = defaults.Register
	}
	if paths.Refresh == "" {
		paths.Refresh = defaults.Refresh
	}
	if paths.Logout == "" {
		paths.Logout = defaults.Logout
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = NewHTTPClient(DefaultTimeouts())
	}

	return &Client{base: base, paths: paths, userAgent: cfg.UserAgent, http: doer}, nil
}

// Login exchanges credentials for a pair.
func (c *Client) Login(ctx context.Context, email, password string) (credstore.Pair, error) {
	var tr TokenResponse
	if _, err := c.postJSON(ctx, c.paths.Login, "", credentialsRequest{Email: email, Password: password}, &tr); err != nil {
		return credstore.Pair{}, err
	}
	return pairFrom(tr)
}

// Register creates an account. issued is false when the server accepted the
// registration without returning tokens; the caller should log in.
func (c *Client) Register(ctx context.Context, email, password string) (pair credstore.Pair, issued bool, err error) {
	var tr TokenResponse
	if _, err := c.postJSON(ctx, c.paths.Register, "", credentialsRequest{Email: email, Password: password}, &tr); err != nil {
		return credstore.Pair{}, false, err
	}
	if tr.AccessToken == "" && tr.RefreshToken == "" {
		return credstore.Pair{}, false, nil
	}
	pair, err = pairFrom(tr)
	if err != nil {
		return credstore.Pair{}, false, err
	}
	return pair, true, nil
}

// Refresh redeems a single-use refresh token for a rotated pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (credstore.Pair, error) {
	var tr TokenResponse
	if _, err := c.postJSON(ctx, c.paths.Refresh, "", refreshRequest{RefreshToken: refreshToken}, &tr); err != nil {
		return credstore.Pair{}, err
	}
	return pairFrom(tr)
}

// Logout asks the server to revoke the session identified by pair.
func (c *Client) Logout(ctx context.Context, pair credstore.Pair) error {
	_, err := c.postJSON(ctx, c.paths.Logout, pair.AccessToken, logoutRequest{RefreshToken: pair.RefreshToken}, nil)
	return err
}

// Do sends req with an optional bearer token. For non-2xx statuses the
// response is returned together with a [*StatusError].
func (c *Client) Do(ctx context.Context, req Request, bearer string) (*Response, error) {
	target := c.resolve(req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, methodOrGet(req.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("authapi: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.Header.Set(RequestIDHeader, RequestIDFrom(ctx))
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		httpReq.Header.Del("Authorization")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, networkError(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, networkError(err)
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrServer, MaxResponseBytes)
	}

	resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	if KindForStatus(resp.Status) != nil {
		return resp, newStatusError(resp.Status, data)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, in, out any) (*Response, error) {
	req, err := JSONRequest(http.MethodPost, path, in)
	if err != nil {
		return nil, fmt.Errorf("authapi: encode request: %w", err)
	}
	resp, err := c.Do(ctx, req, bearer)
	if err != nil {
		return resp, err
	}
	if out == nil || len(resp.Body) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp, fmt.Errorf("%w: decode response: %w", ErrServer, err)
	}
	return resp, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

func methodOrGet(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(method)
}

func pairFrom(tr TokenResponse) (credstore.Pair, error) {
	pair := credstore.Pair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if !pair.Valid() {
		return credstore.Pair{}, fmt.Errorf("%w: token response missing tokens", ErrServer)
	}
	return pair, nil
}

type requestIDKey struct{}

// WithRequestID stores a request ID used for the X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// RequestIDFrom returns the request ID stored in ctx, or a fresh UUID.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := RequestID(ctx); ok {
		return id
	}
	return uuid.NewString()
}
