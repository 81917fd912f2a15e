package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
)

// CallFailureKind classifies gateway failures for root-level mapping.
type CallFailureKind int

const (
	CallFailureNone CallFailureKind = iota
	// CallFailureStorage means the stored pair could not be read.
	CallFailureStorage
	// CallFailureResponse means the call failed without involving refresh
	// (network, validation, server). The error is passed through untouched.
	CallFailureResponse
	// CallFailureSessionInvalid means refresh could not recover the session.
	CallFailureSessionInvalid
	// CallFailureRefreshTransient means refresh failed without a verdict on
	// the refresh token; the session is kept.
	CallFailureRefreshTransient
	// CallFailureRejectedAfterRefresh means the retried call was rejected
	// with a freshly refreshed token.
	CallFailureRejectedAfterRefresh
	// CallFailureRetry means the retried call failed for a reason other than
	// 401. The error is the retry's own.
	CallFailureRetry
)

// CallRefresher is the part of the refresh coordinator the gateway needs.
type CallRefresher interface {
	Refresh(ctx context.Context, rejectedAccess string) (credstore.Pair, error)
	Invalidate(ctx context.Context, rejectedAccess string) bool
}

// CallDeps captures gateway dependencies.
type CallDeps struct {
	Store     CredentialReader
	Sender    Sender
	Refresher CallRefresher
}

// CallResult carries the response or failure metadata.
type CallResult struct {
	Response *authapi.Response
	Err      error
	Failure  CallFailureKind
	// Retried is true when the request was sent a second time after refresh.
	Retried bool
}

// RunCall sends req with the stored access token and transparently recovers
// from one 401 through refresh.
func RunCall(ctx context.Context, req authapi.Request, deps CallDeps) CallResult {
	pair, ok, err := deps.Store.Read(ctx)
	if err != nil {
		return CallResult{Failure: CallFailureStorage, Err: err}
	}
	bearer := ""
	if ok {
		bearer = pair.AccessToken
	}

	resp, err := deps.Sender.Do(ctx, req, bearer)
	if err == nil {
		return CallResult{Response: resp}
	}
	if !errors.Is(err, authapi.ErrUnauthorized) {
		return CallResult{Response: resp, Err: err, Failure: CallFailureResponse}
	}

	next, err := deps.Refresher.Refresh(ctx, bearer)
	if err != nil {
		switch {
		case errors.Is(err, authapi.ErrSessionInvalid):
			return CallResult{Err: err, Failure: CallFailureSessionInvalid}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return CallResult{Err: fmt.Errorf("%w: %w", authapi.ErrNetwork, err), Failure: CallFailureRefreshTransient}
		default:
			return CallResult{Err: err, Failure: CallFailureRefreshTransient}
		}
	}

	resp, err = deps.Sender.Do(ctx, req, next.AccessToken)
	switch {
	case err == nil:
		return CallResult{Response: resp, Retried: true}
	case errors.Is(err, authapi.ErrUnauthorized):
		deps.Refresher.Invalidate(ctx, next.AccessToken)
		return CallResult{
			Response: resp,
			Err:      fmt.Errorf("%w: refreshed credentials rejected", authapi.ErrSessionInvalid),
			Failure:  CallFailureRejectedAfterRefresh,
			Retried:  true,
		}
	default:
		return CallResult{Response: resp, Err: err, Failure: CallFailureRetry, Retried: true}
	}
}
