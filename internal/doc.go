// Package internal holds small helpers shared by the engine and its internal
// sub-packages: browser session identifiers and bounded random delays.
//
// # What this package must NOT do
//
//   - Import goAccount or any other package in this module.
//   - Use math/rand for anything security relevant.
package internal
