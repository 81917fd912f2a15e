package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
)

// AuthMode selects login or registration.
type AuthMode int

const (
	AuthLogin AuthMode = iota
	AuthRegister
)

func (m AuthMode) String() string {
	if m == AuthRegister {
		return "register"
	}
	return "login"
}

// AuthFailureKind classifies login and registration failures.
type AuthFailureKind int

const (
	AuthFailureNone AuthFailureKind = iota
	// AuthFailureRejected means the server refused the credentials or the
	// registration payload.
	AuthFailureRejected
	// AuthFailureTransport means no verdict was obtained (network, 5xx).
	AuthFailureTransport
	// AuthFailureStorage means the issued pair could not be persisted.
	AuthFailureStorage
	// AuthFailureSuperseded means a logout or a newer attempt happened while
	// this one was in flight.
	AuthFailureSuperseded
)

// AuthServer is the credential exchange side of the Auth Server.
type AuthServer interface {
	Login(ctx context.Context, email, password string) (credstore.Pair, error)
	Register(ctx context.Context, email, password string) (credstore.Pair, bool, error)
}

// AuthWriter is the part of the refresh coordinator that serializes writes.
type AuthWriter interface {
	Install(ctx context.Context, epoch uint64, pair credstore.Pair, commit func()) error
	Apply(epoch uint64, fn func()) bool
}

// AuthDeps captures login and registration dependencies.
type AuthDeps struct {
	Server AuthServer
	Writer AuthWriter
	// Succeeded runs under the writer lock once the pair is stored.
	Succeeded func()
	// Failed runs under the writer lock if the attempt is still current.
	Failed func(err error)
	// ErrSuperseded is returned when the attempt lost to a newer write.
	ErrSuperseded error
}

// AuthResult describes the outcome of one attempt.
type AuthResult struct {
	Failure AuthFailureKind
	Err     error
	// LoginFallback is true when registration succeeded without tokens and a
	// login was issued to obtain them.
	LoginFallback bool
}

// RunAuth performs a login or registration attempt started at epoch.
func RunAuth(ctx context.Context, mode AuthMode, email, password string, epoch uint64, deps AuthDeps) AuthResult {
	var (
		pair     credstore.Pair
		err      error
		fallback bool
	)

	switch mode {
	case AuthRegister:
		var issued bool
		pair, issued, err = deps.Server.Register(ctx, email, password)
		if err == nil && !issued {
			fallback = true
			pair, err = deps.Server.Login(ctx, email, password)
		}
	default:
		pair, err = deps.Server.Login(ctx, email, password)
	}

	if err != nil {
		return fail(epoch, classifyAuth(err), err, fallback, deps)
	}

	if err := deps.Writer.Install(ctx, epoch, pair, deps.Succeeded); err != nil {
		if deps.ErrSuperseded != nil && errors.Is(err, deps.ErrSuperseded) {
			return AuthResult{Failure: AuthFailureSuperseded, Err: err, LoginFallback: fallback}
		}
		return fail(epoch, AuthFailureStorage, err, fallback, deps)
	}
	return AuthResult{LoginFallback: fallback}
}

func fail(epoch uint64, kind AuthFailureKind, err error, fallback bool, deps AuthDeps) AuthResult {
	applied := deps.Writer.Apply(epoch, func() {
		if deps.Failed != nil {
			deps.Failed(err)
		}
	})
	if !applied {
		return AuthResult{Failure: AuthFailureSuperseded, Err: deps.ErrSuperseded, LoginFallback: fallback}
	}
	return AuthResult{Failure: kind, Err: err, LoginFallback: fallback}
}

func classifyAuth(err error) AuthFailureKind {
	if errors.Is(err, authapi.ErrUnauthorized) || errors.Is(err, authapi.ErrValidation) {
		return AuthFailureRejected
	}
	return AuthFailureTransport
}
