// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRequestPasswordReset, RunCompleteVerification,
// RunLogoutOtherDevices, etc.) accepts a typed dependency struct and returns
// results without side effects beyond those dependencies. The Engine builds
// the dependency structs once and keeps its own methods thin.
//
// # Account values
//
// [Account] mirrors goAccount.Account field for field. Flows receive and
// return account values; nothing is persisted unless a flow calls
// AccountAccess.Update or AccountAccess.Create.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the account store, link codec, link
// markers, limiters, mailer, session store, audit dispatcher, and metrics.
// They do NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAccount (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency closures.
//   - Log links, fingerprints, or password material.
package flows
