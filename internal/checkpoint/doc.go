// Package checkpoint persists partial synthesis sessions on disk. Sessions
// are keyed by a stable identity derived from the job's input so a restarted
// daemon can find and resume work it did not finish.
package checkpoint
