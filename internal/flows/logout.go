package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/credstore"
)

// LogoutRevoker clears local credentials under the writer lock.
type LogoutRevoker interface {
	Revoke(ctx context.Context, commit func()) (credstore.Pair, error)
}

// LogoutServer notifies the Auth Server.
type LogoutServer interface {
	Logout(ctx context.Context, pair credstore.Pair) error
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Revoker LogoutRevoker
	Server  LogoutServer
	// Commit runs under the writer lock after the store was cleared.
	Commit func()
	// Timeout bounds the server notification.
	Timeout time.Duration
}

// LogoutResult reports what happened locally and remotely. Local clearing
// always happens before the server is contacted.
type LogoutResult struct {
	HadSession bool
	ClearErr   error
	ServerErr  error
}

// RunLogout clears local credentials, then tells the server about the pair
// that was stored. The server call runs even if ctx is already cancelled.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	prior, clearErr := deps.Revoker.Revoke(ctx, deps.Commit)
	res := LogoutResult{HadSession: prior.Valid(), ClearErr: clearErr}
	if !res.HadSession || deps.Server == nil {
		return res
	}

	serverCtx := context.WithoutCancel(ctx)
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		serverCtx, cancel = context.WithTimeout(serverCtx, deps.Timeout)
		defer cancel()
	}
	res.ServerErr = deps.Server.Logout(serverCtx, prior)
	return res
}
