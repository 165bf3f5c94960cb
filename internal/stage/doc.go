// Package stage defines the contract between the workflow manager and the
// per-job-type executors. Executors run the actual work (AI cleanup,
// translation, speech synthesis, audio assembly) and report progress and a
// final result; the manager owns all queue state.
package stage
