// Package resume decides whether a job about to start a resumable stage
// continues a prior session or starts fresh. Explicit resume info attached by
// a producer always wins; otherwise an interrupted job may auto-resume from
// a matching checkpoint; otherwise any stale session is discarded.
package resume
