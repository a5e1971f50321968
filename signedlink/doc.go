// Package signedlink produces and checks HMAC-signed, expiring URLs used for
// out-of-band account actions such as password reset and email verification.
//
// # Architecture boundaries
//
// The package is stateless: a link is valid when its own contents and the
// server secret reproduce the MAC. It knows nothing about accounts, whether a
// link was already used, or what the link does.
//
// # What this package must NOT do
//
//   - Import goAccount, session, or any store.
//   - Panic or return errors from verification; malformed links are invalid.
//   - Compare MACs with anything other than a constant-time comparison.
package signedlink
