// Package password implements Argon2id password hashing and the default
// password policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Each hash uses a fresh random salt. Re-hashing an unchanged plaintext still
// produces a new string, which callers use to advance an account's
// credential epoch.
//
// # Policy
//
// [Policy] rejects blank passwords, passwords shorter than the configured
// rune count, and passwords whose [Entropy] estimate falls below the
// configured [Strength]. An optional [BreachChecker] may veto otherwise
// acceptable passwords.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other goAccount package.
//   - Log plaintext passwords.
package password
