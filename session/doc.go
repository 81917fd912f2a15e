// Package session holds the client-side authentication lifecycle state machine.
//
// # States
//
// A [Machine] is always in exactly one [State]: Initial, Authenticating,
// Authenticated, Unauthenticated, or Error(reason). State changes only happen
// through named events (Resolve, BeginAuth, AuthSucceeded, AuthFailed,
// SignOut, Dismiss); there is no setter.
//
// # Notifications
//
// Every transition is published, in order, to subscribers registered with
// [Machine.Subscribe]. Navigation code re-evaluates route guards on each
// emission.
//
// # What this package must NOT do
//
//   - Touch credential storage or the network.
//   - Import goSession, credstore, or refresh.
package session
