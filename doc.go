// Package goAccount provides the account lifecycle of a web application:
// registration, login, signed-link password reset and email verification,
// password and email changes, and logging out other devices.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Credential epoch
//
// Every session and remember-me token records the SHA-256 of the account's
// password hash at the time it authenticated. Any password change, including
// the fresh-salt re-hash done by [Engine.LogoutOtherDevices], moves that value
// forward, so older sessions and tokens stop authenticating on their next
// use. Reset links carry a second value derived from the same hash, which is
// what makes them single-use.
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder], [Config],
// [Account] and the capability interfaces ([AccountStore], [Mailer],
// [RateLimiter], [PasswordPolicy], [PasswordHasher], [Clock]). Flow
// orchestration, link markers, limiters and audit dispatch live under
// internal/.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Persist an Account except through AccountStore.Create and AccountStore.Update.
//   - Import any sub-package that re-imports goAccount (no import cycles).
package goAccount
