// Package authmock is an in-process Auth Server speaking the session
// client's wire contract. It backs the end-to-end tests and the
// `gosession mock-server` command.
//
// Refresh tokens are opaque, single use and rotated on every refresh;
// presenting a spent token revokes the whole session. Test hooks expire
// access tokens, revoke refresh tokens, hold refresh requests at a gate and
// slow down logout so concurrency scenarios can be driven deterministically.
package authmock
