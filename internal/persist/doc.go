// Package persist is the durable side of the queue: SQLite-backed snapshot
// save/load plus per-run analytics. The in-memory store never touches disk
// itself; the daemon flushes snapshots on a timer and at shutdown.
package persist
