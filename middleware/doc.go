// Package middleware exposes net/http adapters that attach a resolved
// browser session to each request and guard routes on it.
//
// # Middleware
//
//   - [LoadSession]: resolves or starts the session cookie, resumes
//     remember-me tokens, and stores the [goAccount.SessionState] in the
//     request context.
//   - [RequireAuth]: any authenticated session, remembered or not.
//   - [RequireFullAuth]: an interactive login in this session.
//   - [Trace]: one OpenTelemetry server span per request.
//
// # Architecture boundaries
//
// This package translates cookies and redirects into Engine calls. It does
// NOT compare credential epochs or parse remember-me tokens itself; the
// Engine decides whether a session still authenticates its account.
//
// # What this package must NOT do
//
//   - Access Redis or the account store directly.
//   - Render pages or set flash messages.
package middleware
