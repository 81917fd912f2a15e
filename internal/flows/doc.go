// Package flows contains pure-function orchestrators for every Client
// operation.
//
// Each flow function (RunCall, RunAuth, RunLogout) accepts a typed dependency
// struct and returns a result carrying a failure kind. The root package maps
// failure kinds to its error sentinels, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Touch the session state machine directly. State changes are passed in
//     as callbacks.
package flows
