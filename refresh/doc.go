// Package refresh serializes every credential write and collapses concurrent
// access-token expiries into a single refresh call.
//
// # Single flight
//
// Requests rejected with the same access token share one flight
// (golang.org/x/sync/singleflight). A flight mutex additionally guarantees that
// no two refresh calls reach the Auth Server at the same time: a flight that
// starts after another has rotated the pair finds a different access token in
// the store and returns it without a network call.
//
// # Writers and epochs
//
// Refresh results, [Coordinator.Install] (login, registration) and
// [Coordinator.Revoke] (logout) are applied under one writer lock. Every
// applied write bumps an epoch. A refresh result computed under an older epoch
// is discarded, so a logout that lands while a refresh is in flight is never
// undone by it.
//
// # What this package must NOT do
//
//   - Drive navigation or UI state directly. State changes go through the
//     hooks supplied in [Config] and the commit callbacks.
//   - Retry a refresh. A rotating refresh token is single use.
package refresh
