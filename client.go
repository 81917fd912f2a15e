package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/route"
	"github.com/MrEthical07/goSession/session"
)

// Client is the session layer. It is safe for concurrent use.
//
// All authenticated traffic goes through [Client.Do] (or the *http.Client
// from [Client.HTTPClient]). Session state changes are observed with
// [Client.Subscribe] or a [route.Watcher] from [Client.Watch].
type Client struct {
	cfg     Config
	log     *slog.Logger
	api     *authapi.Client
	store   credstore.Store
	machine *session.Machine
	coord   *refresh.Coordinator
	guard   route.Guard
	metrics *Metrics
	audit   *internalaudit.Dispatcher
	deps    flows.Deps

	// authMu orders the start of a login attempt against logout so that a
	// logout can never slip between the state check and the epoch bump.
	authMu sync.Mutex

	startOnce  sync.Once
	startErr   error
	closed     atomic.Bool
	closeOnce  sync.Once
	closeStore func() error
}

func newClient(cfg Config, store credstore.Store, closeStore func() error, httpClient authapi.Doer, log *slog.Logger, sink AuditSink) (*Client, error) {
	api, err := authapi.New(authapi.Config{
		BaseURL:    cfg.Server.BaseURL,
		Paths:      cfg.Server.Paths,
		UserAgent:  cfg.Server.UserAgent,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		log:     log,
		api:     api,
		store:   store,
		machine: session.NewMachine(),
		guard: route.Guard{
			LoginPath:  cfg.Routes.Login,
			HomePath:   cfg.Routes.Home,
			GuestPaths: cfg.Routes.Guest,
		},
		metrics: NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		closeStore: closeStore,
	}

	coord, err := refresh.New(api, store, refresh.Config{
		Timeout:       cfg.Timeouts.Refresh,
		OnInvalidated: c.onInvalidated,
		Observe:       c.observeRefresh,
		Logger:        log,
	})
	if err != nil {
		c.audit.Close()
		return nil, err
	}
	c.coord = coord

	c.deps = flows.Deps{
		Call: flows.CallDeps{
			Store:     store,
			Sender:    api,
			Refresher: coord,
		},
		Auth: flows.AuthDeps{
			Server: api,
			Writer: coord,
			Succeeded: func() {
				_ = c.machine.AuthSucceeded()
			},
			Failed: func(err error) {
				_ = c.machine.AuthFailed(UserMessage(err))
			},
			ErrSuperseded: ErrSuperseded,
		},
		Logout: flows.LogoutDeps{
			Revoker: logoutRevoker{c: c},
			Server:  api,
			Commit: func() {
				c.machine.SignOut(session.CauseLogout)
			},
			Timeout: cfg.Timeouts.Logout,
		},
	}
	return c, nil
}

// Start resolves the initial session state from the credential store. A
// read failure or a corrupt entry resolves to Unauthenticated; a corrupt
// entry is also cleared. Calling Start again returns the first result.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.startOnce.Do(func() {
		_, ok, err := c.store.Read(ctx)
		if err != nil {
			c.metrics.Inc(MetricStorageFailure)
			c.log.Warn("session.start_read_failed", "error", err)
			if errors.Is(err, credstore.ErrCorrupt) {
				if clearErr := c.store.Clear(ctx); clearErr != nil {
					c.log.Error("session.clear_corrupt_failed", "error", clearErr)
				}
			}
			ok = false
		}
		c.startErr = c.machine.Resolve(ok)
		c.log.Info("session.started", "state", c.machine.State().String())
	})
	return c.startErr
}

// State returns the current session state.
func (c *Client) State() State {
	return c.machine.State()
}

// Subscribe delivers every state transition in order. When buffer fills up
// the oldest pending transition is dropped. cancel closes the channel.
func (c *Client) Subscribe(buffer int) (<-chan Transition, func()) {
	return c.machine.Subscribe(buffer)
}

// Guard returns the configured route guard.
func (c *Client) Guard() route.Guard {
	return c.guard
}

// Watch returns a Watcher that redirects nav whenever the session state
// makes its current location unreachable. Run it in its own goroutine.
func (c *Client) Watch(nav route.Navigator) *route.Watcher {
	return route.NewWatcher(c.guard, c.machine, nav, c.log)
}

// HasCredentials reports whether a credential pair is stored. Presence does
// not imply the session is still accepted by the server.
func (c *Client) HasCredentials(ctx context.Context) (bool, error) {
	_, ok, err := c.store.Read(ctx)
	return ok, err
}

// Login exchanges credentials for a session. On success the state is
// Authenticated; on failure it is Error with a user-facing reason.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, flows.AuthLogin, email, password)
}

// Register creates an account and signs in. If the server registers
// without issuing tokens, Register logs in with the same credentials.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, flows.AuthRegister, email, password)
}

func (c *Client) authenticate(ctx context.Context, mode flows.AuthMode, email, password string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	cause := session.CauseLogin
	if mode == flows.AuthRegister {
		cause = session.CauseRegister
	}

	c.authMu.Lock()
	switch c.machine.State().Kind {
	case session.KindInitial:
		c.authMu.Unlock()
		return ErrNotStarted
	case session.KindAuthenticated:
		c.authMu.Unlock()
		return ErrAlreadyAuthenticated
	case session.KindAuthenticating:
		c.authMu.Unlock()
		return ErrAuthInProgress
	}
	if err := c.machine.BeginAuth(cause); err != nil {
		c.authMu.Unlock()
		return err
	}
	epoch := c.coord.Begin()
	c.authMu.Unlock()

	res := flows.RunAuth(ctx, mode, email, password, epoch, c.deps.Auth)
	c.recordAuth(ctx, mode, res)
	if res.Failure != flows.AuthFailureNone {
		return res.Err
	}
	return nil
}

// Logout clears local credentials immediately and then notifies the server
// on a best-effort basis, bounded by the logout timeout. Server failures are
// logged and counted, never returned. A local clearing failure is returned
// after the state has already moved to Unauthenticated.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	res := flows.RunLogout(ctx, c.deps.Logout)
	c.metrics.Inc(MetricLogout)

	if res.ServerErr != nil {
		c.metrics.Inc(MetricLogoutServerFailure)
		c.log.Warn("logout.server_failed", "error", res.ServerErr)
	}
	c.emitAudit(ctx, auditEventLogout, res.ClearErr == nil, res.ClearErr, map[string]string{
		"had_session":   boolString(res.HadSession),
		"server_notice": serverNotice(res),
	})

	if res.ClearErr != nil {
		c.metrics.Inc(MetricStorageFailure)
		c.log.Error("logout.clear_failed", "error", res.ClearErr)
		return res.ClearErr
	}
	return nil
}

type logoutRevoker struct {
	c *Client
}

func (r logoutRevoker) Revoke(ctx context.Context, commit func()) (credstore.Pair, error) {
	r.c.authMu.Lock()
	defer r.c.authMu.Unlock()
	return r.c.coord.Revoke(ctx, commit)
}

// Do sends req through the session gateway: the stored access token is
// attached, a 401 triggers a single shared refresh and exactly one retry.
// For non-2xx responses both the response and a *StatusError are returned.
// ErrSessionInvalid means the user has been signed out.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	ctx = WithRequestID(ctx, requestIDFromContext(ctx))

	start := time.Now()
	res := flows.RunCall(ctx, req, c.deps.Call)
	if c.metrics.LatencyEnabled() {
		c.metrics.Observe(MetricCallLatency, time.Since(start))
	}

	if res.Retried {
		c.metrics.Inc(MetricRequestRetried)
	}
	if res.Err == nil {
		return res.Response, nil
	}

	c.metrics.Inc(MetricRequestFailure)
	switch res.Failure {
	case flows.CallFailureStorage:
		c.metrics.Inc(MetricStorageFailure)
		c.log.Error("gateway.store_read_failed", "error", res.Err)
	case flows.CallFailureSessionInvalid, flows.CallFailureRejectedAfterRefresh:
		c.log.Info("gateway.session_invalid", "method", req.Method, "path", req.Path, "error", res.Err)
	case flows.CallFailureRefreshTransient:
		c.log.Warn("gateway.refresh_unavailable", "method", req.Method, "path", req.Path, "error", res.Err)
	}
	return res.Response, res.Err
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body encoded as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := authapi.JSONRequest(method, path, body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
	}
	return c.Do(ctx, req)
}

// HTTPClient returns an *http.Client that routes every request through Do.
// Request URLs are resolved against the configured base URL; only their path
// and query are used.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: middleware.NewTransport(c)}
}

// Metrics returns the client's metrics. Never nil.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current metric values.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes audit events and releases store connections opened by the
// Builder. Credentials are left in place.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.audit.Close()
		if c.closeStore != nil {
			err = c.closeStore()
		}
	})
	return err
}

func (c *Client) onInvalidated(reason string) {
	c.metrics.Inc(MetricSessionInvalidated)
	if c.machine.SignOut(session.CauseSessionInvalid) {
		c.log.Warn("session.invalidated", "reason", reason)
	}
	c.emitAudit(context.Background(), auditEventSessionInvalidated, false, ErrSessionInvalid, map[string]string{"reason": reason})
}

func (c *Client) observeRefresh(o refresh.Outcome) {
	switch o {
	case refresh.OutcomeRefreshed:
		c.metrics.Inc(MetricRefreshSuccess)
		c.emitAudit(context.Background(), auditEventRefreshSuccess, true, nil, nil)
	case refresh.OutcomeJoined, refresh.OutcomeAlreadyRotated:
		c.metrics.Inc(MetricRefreshShared)
	case refresh.OutcomeRejected:
		c.metrics.Inc(MetricRefreshRejected)
		c.emitAudit(context.Background(), auditEventRefreshRejected, false, nil, nil)
	case refresh.OutcomeTransient:
		c.metrics.Inc(MetricRefreshTransient)
	case refresh.OutcomeDiscarded:
		c.metrics.Inc(MetricRefreshDiscarded)
	case refresh.OutcomeStorageFailed:
		c.metrics.Inc(MetricStorageFailure)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func serverNotice(res flows.LogoutResult) string {
	switch {
	case !res.HadSession:
		return "skipped"
	case res.ServerErr != nil:
		return "failed"
	default:
		return "sent"
	}
}
