// Package session provides Redis-backed browser sessions and flash messages.
//
// # Binary encoding
//
// Sessions are stored as a compact versioned binary record: account id,
// credential epoch, flags, and creation and expiry seconds. Unknown versions
// and trailing bytes are rejected.
//
// # Keys
//
//   - <prefix>:<sid>: the session record
//   - <prefix>u:<account>: set of session ids per account
//   - <prefix>f:<sid>: flash message list
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT compare
// credential epochs or decide whether a session is authenticated; the Engine
// does that against the current account.
//
// # What this package must NOT do
//
//   - Import goAccount, jwt, or any store of accounts.
//   - Store plaintext secrets in [Session] fields.
package session
