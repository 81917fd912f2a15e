package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single refresh flight.
const DefaultTimeout = 15 * time.Second

// Refresher redeems a refresh token. *authapi.Client satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credstore.Pair, error)
}

// Outcome classifies how a Refresh call finished.
type Outcome int

const (
	// OutcomeRefreshed means this call ran a successful refresh flight.
	OutcomeRefreshed Outcome = iota
	// OutcomeJoined means this call waited on a flight started by another caller.
	OutcomeJoined
	// OutcomeAlreadyRotated means the stored pair had already moved past the
	// rejected token; no network call was made.
	OutcomeAlreadyRotated
	// OutcomeRejected means the server refused the refresh token and the
	// session was invalidated.
	OutcomeRejected
	// OutcomeTransient means the refresh failed without a server verdict.
	OutcomeTransient
	// OutcomeDiscarded means a newer write landed during the flight.
	OutcomeDiscarded
	// OutcomeStorageFailed means the rotated pair could not be persisted.
	OutcomeStorageFailed
	// OutcomeNoCredentials means the store was empty when the flight started.
	OutcomeNoCredentials
)

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds each flight. Zero uses DefaultTimeout.
	Timeout time.Duration
	// IsRejection reports whether a refresh error is a server verdict on the
	// token (terminal) rather than a transport problem. Nil treats 401 and
	// other 4xx responses as rejections.
	IsRejection func(error) bool
	// OnInvalidated runs under the writer lock right after the store was
	// cleared because the session cannot be recovered.
	OnInvalidated func(reason string)
	// Observe is called once per finished Refresh call.
	Observe func(Outcome)
	Logger  *slog.Logger
}

// Coordinator owns the credential store for writes.
type Coordinator struct {
	refresher Refresher
	store     credstore.Store
	cfg       Config
	log       *slog.Logger

	group  singleflight.Group
	flight sync.Mutex

	mu    sync.Mutex
	epoch uint64
}

// New returns a Coordinator writing to store and refreshing through r.
func New(r Refresher, store credstore.Store, cfg Config) (*Coordinator, error) {
	if r == nil {
		return nil, errors.New("refresh: refresher is required")
	}
	if store == nil {
		return nil, errors.New("refresh: store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IsRejection == nil {
		cfg.IsRejection = IsRejection
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{refresher: r, store: store, cfg: cfg, log: log}, nil
}

// IsRejection is the default classification of refresh errors. A 401 or
// any other 4xx ends the session; 408 and 429 are treated as transient.
func IsRejection(err error) bool {
	if errors.Is(err, authapi.ErrUnauthorized) {
		return true
	}
	if !errors.Is(err, authapi.ErrValidation) {
		return false
	}
	var se *authapi.StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
	}
	return true
}

// Epoch returns the current write epoch.
func (c *Coordinator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Refresh obtains a pair newer than the one whose access token was rejected.
// Concurrent callers with the same rejected token share one flight. A
// cancelled ctx returns early; the flight itself keeps running.
func (c *Coordinator) Refresh(ctx context.Context, rejectedAccess string) (credstore.Pair, error) {
	flightCtx := context.WithoutCancel(ctx)
	leader := false
	ch := c.group.DoChan(rejectedAccess, func() (any, error) {
		leader = true
		return c.run(flightCtx, rejectedAccess)
	})

	select {
	case <-ctx.Done():
		return credstore.Pair{}, ctx.Err()
	case res := <-ch:
		if !leader {
			c.observe(OutcomeJoined)
		}
		if res.Err != nil {
			return credstore.Pair{}, res.Err
		}
		return res.Val.(credstore.Pair), nil
	}
}

func (c *Coordinator) run(parent context.Context, rejectedAccess string) (credstore.Pair, error) {
	c.flight.Lock()
	defer c.flight.Unlock()

	ctx, cancel := context.WithTimeout(parent, c.cfg.Timeout)
	defer cancel()

	c.mu.Lock()
	epoch := c.epoch
	current, ok, err := c.store.Read(ctx)
	c.mu.Unlock()

	switch {
	case err != nil:
		c.observe(OutcomeTransient)
		return credstore.Pair{}, err
	case !ok:
		c.observe(OutcomeNoCredentials)
		return credstore.Pair{}, fmt.Errorf("%w: no stored credentials", authapi.ErrSessionInvalid)
	case current.AccessToken != rejectedAccess:
		c.observe(OutcomeAlreadyRotated)
		return current, nil
	}

	next, refreshErr := c.refresher.Refresh(ctx, current.RefreshToken)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.log.Info("refresh.discarded", "reason", "session changed during refresh")
		c.observe(OutcomeDiscarded)
		return credstore.Pair{}, fmt.Errorf("%w: session changed during refresh", authapi.ErrSessionInvalid)
	}

	if refreshErr != nil {
		if c.cfg.IsRejection(refreshErr) {
			c.log.Warn("refresh.rejected", "error", refreshErr)
			c.invalidateLocked(ctx, "refresh rejected")
			c.observe(OutcomeRejected)
			return credstore.Pair{}, fmt.Errorf("%w: refresh rejected: %v", authapi.ErrSessionInvalid, refreshErr)
		}
		c.log.Warn("refresh.transient_failure", "error", refreshErr)
		c.observe(OutcomeTransient)
		return credstore.Pair{}, refreshErr
	}

	if err := c.store.Save(ctx, next); err != nil {
		c.log.Error("refresh.store_failed", "error", err)
		c.invalidateLocked(ctx, "credential storage failed")
		c.observe(OutcomeStorageFailed)
		return credstore.Pair{}, fmt.Errorf("%w: %w", authapi.ErrSessionInvalid, err)
	}
	c.epoch++
	c.observe(OutcomeRefreshed)
	return next, nil
}

// Begin starts a new write generation for a login or registration attempt
// and returns its epoch. Results of older attempts and in-flight refreshes
// are discarded from then on.
func (c *Coordinator) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return c.epoch
}

// Apply runs fn under the writer lock if epoch is still current and reports
// whether it ran.
func (c *Coordinator) Apply(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}

// Install persists a pair obtained by login or registration and runs commit
// under the writer lock. It fails with ErrSuperseded if any write happened
// after epoch was captured.
func (c *Coordinator) Install(ctx context.Context, epoch uint64, pair credstore.Pair, commit func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return ErrSuperseded
	}
	if err := c.store.Save(ctx, pair); err != nil {
		return err
	}
	c.epoch++
	if commit != nil {
		commit()
	}
	return nil
}

// Revoke clears the stored pair, runs commit and returns the pair that was
// stored so the caller can notify the server. commit runs even when clearing
// fails; the clear error is returned.
func (c *Coordinator) Revoke(ctx context.Context, commit func()) (credstore.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior, _, readErr := c.store.Read(ctx)
	clearErr := c.store.Clear(ctx)
	c.epoch++
	if commit != nil {
		commit()
	}
	if clearErr != nil {
		return prior, clearErr
	}
	if readErr != nil {
		c.log.Warn("logout.read_failed", "error", readErr)
	}
	return prior, nil
}

// Invalidate clears the session if the stored access token is still the
// rejected one. It reports whether the session was cleared.
func (c *Coordinator) Invalidate(ctx context.Context, rejectedAccess string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok, err := c.store.Read(ctx)
	if err != nil || !ok || current.AccessToken != rejectedAccess {
		return false
	}
	c.invalidateLocked(ctx, "refreshed credentials rejected")
	return true
}

func (c *Coordinator) invalidateLocked(ctx context.Context, reason string) {
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Error("refresh.clear_failed", "error", err)
	}
	c.epoch++
	if c.cfg.OnInvalidated != nil {
		c.cfg.OnInvalidated(reason)
	}
}

func (c *Coordinator) observe(o Outcome) {
	if c.cfg.Observe != nil {
		c.cfg.Observe(o)
	}
}
