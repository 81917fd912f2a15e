// Package goSession is a client-side session layer for applications that talk
// to a token-issuing Auth Server: it signs in, keeps the access and refresh
// token pair sealed in a credential store, injects the bearer token into every
// outbound call and recovers from an expired access token with one shared
// refresh and one retry.
//
// A [Client] is safe for concurrent use after [Builder.Build] and
// [Client.Start]. Any number of goroutines may call [Client.Do] at once; when
// several of them receive 401 for the same access token, exactly one refresh
// request reaches the server and every caller retries with the rotated pair.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Client], [Builder], [Config]
// and value types (State, Transition, Request, Response, MetricsSnapshot).
// Sub-packages own one concern each:
//
//   - credstore: sealed persistence of the pair (memory, file, Redis, Postgres)
//   - authapi: the Auth Server wire protocol and the raw HTTP transport
//   - refresh: the single-flight refresh coordinator and writer epochs
//   - session: the session state machine and transition fan-out
//   - route: the navigation guard and watcher
//   - middleware: an http.RoundTripper that routes requests through the client
//
// Flow orchestration, audit dispatch and the mock Auth Server live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log or audit token material. Only outcomes and reasons are recorded.
//   - Retry a call more than once, or retry anything but a 401.
//   - Sign the user out on a transient refresh failure (network, 5xx).
//   - Let a refresh that finishes after logout resurrect the session.
//
// # Performance contract
//
// The gateway hot path reads the pair once per attempt and allocates only the
// outbound request. Refresh is one round-trip per rejected access token,
// however many callers observed the rejection.
package goSession
