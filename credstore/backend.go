package credstore

import "context"

// Backend is an opaque key-value secret store. Implementations must make each
// Write and Delete atomic: a concurrent Read observes either the old or the new
// value, never a partial one.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
