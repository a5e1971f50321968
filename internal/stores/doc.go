// Package stores provides Redis-backed, short-lived link markers.
//
// # Design
//
// A marker maps (purpose, browser session id) to the account a signed link
// was issued for. It is written when the link is clicked and read by the
// follow-up requests, so the signed URL itself never has to be replayed.
// Records are versioned and binary-encoded, expire through both a Redis TTL
// and an embedded deadline checked against the caller's clock, and Consume
// uses WATCH/MULTI with retry on contention.
//
// # Architecture boundaries
//
// This package owns persistence of markers only. It does NOT check link
// signatures, compare fingerprints, or load accounts.
//
// # What this package must NOT do
//
//   - Import goAccount or any sibling internal package.
//   - Store link signatures or fingerprints.
package stores
