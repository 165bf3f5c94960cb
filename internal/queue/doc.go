// Package queue holds the authoritative in-memory job collection and its
// state machine. All mutation goes through a small set of update functions
// that validate status transitions; readers only ever see copies, so a
// snapshot taken before a suspension point can never be written back stale.
package queue
