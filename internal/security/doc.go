// Package security derives a configuration posture report: which
// protections are active and which settings fall below recommended floors.
//
// # What this package must NOT do
//
//   - Import goAccount; the engine copies its settings into [ReportInput].
//   - Perform I/O.
package security
