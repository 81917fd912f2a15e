// Package rate holds the Redis-backed attempt counters the mock Auth Server
// uses for login lockout, sign-up and refresh throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rl:login:  per account
//   - rl:ip:     per client IP
//   - rl:refresh: per session
//   - rl:register: sign-ups per client IP
package rate
