// Package limiters provides keyed request limiters with a
// Consume(ctx, key) (accepted, error) contract.
//
// # Limiters
//
//   - [FixedWindow]: Redis INCR + EXPIRE on first hit, used for reset
//     requests, verification mail, and registrations.
//   - [TokenBucket]: in-process golang.org/x/time/rate buckets per key, for
//     single-node deployments.
//
// A nil [FixedWindow] accepts every request.
//
// # What this package must NOT do
//
//   - Import goAccount or any sibling internal package.
//   - Decide what a rejection means; flows map it to user-facing outcomes.
package limiters
