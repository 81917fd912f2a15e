// Package route decides whether navigation must be redirected based on the
// session state.
//
// [Guard.Decide] is a pure function of (state, target). A [Watcher] re-runs it
// for the current location on every session transition, so an asynchronous
// sign-out redirects the visible screen immediately rather than on the next
// navigation.
package route
