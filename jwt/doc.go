// Package jwt issues and verifies remember-me tokens.
//
// A token names an account and carries the account's credential epoch at
// issue time. The package validates signature, issuer, and expiry against
// the configured clock; comparing the epoch with the account's current one
// is the Engine's job.
package jwt
