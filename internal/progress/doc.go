// Package progress normalizes the heterogeneous progress reports emitted by
// stage executors (simple unit counters, parallel-worker envelopes, assembly
// sub-phases) into the single percentage and message displayed on a job.
package progress
