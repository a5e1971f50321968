// Package rate provides the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: one Lua script runs INCR and, on the first hit,
// PEXPIRE. Key prefixes:
//   - al: login per normalized email
//   - ali: login per client IP
//
// # What this package must NOT do
//
//   - Implement keyed request limiters for mail-sending flows (those live in internal/limiters).
//   - Be imported outside the goAccount module.
package rate
