// Package mail defines the outbound message model used by account flows and
// two Mailer implementations: an in-memory Recorder for tests and demos, and
// a LogMailer that writes envelopes to slog.
//
// Real delivery (SMTP or a provider API) is expected to live outside this
// module and satisfy the goAccount.Mailer interface.
package mail
