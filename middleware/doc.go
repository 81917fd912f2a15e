// Package middleware adapts the session gateway to net/http.
//
// [Transport] is an http.RoundTripper that sends every request through the
// gateway, so code written against *http.Client gets bearer injection and
// refresh-on-401 without knowing about sessions. [BearerToken] parses an
// Authorization header and is shared with server-side test doubles.
//
// # What this package must NOT do
//
//   - Import goSession (the root package builds the transport).
//   - Stream request bodies. The gateway may resend a request, so bodies are
//     read fully before the first attempt.
package middleware
