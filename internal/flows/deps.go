package flows

import (
	"context"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
)

// CredentialReader is the read side of the credential store.
type CredentialReader interface {
	Read(ctx context.Context) (credstore.Pair, bool, error)
}

// Sender performs one HTTP exchange. *authapi.Client satisfies it.
type Sender interface {
	Do(ctx context.Context, req authapi.Request, bearer string) (*authapi.Response, error)
}

// Deps groups flow dependency sets. The root client builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Call   CallDeps
	Auth   AuthDeps
	Logout LogoutDeps
}
