// Package internal holds code private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - authmock: in-process Auth Server for tests and the mock-server command
//   - flows: login, register, logout and authenticated-call orchestration
//   - rate: Redis-backed attempt counters used by authmock
package internal
