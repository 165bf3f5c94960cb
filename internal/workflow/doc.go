// Package workflow contains the orchestration core: the scheduler that keeps
// at most one queue-driven job processing, the standalone lane that bypasses
// it, the idempotent completion handler both result paths converge on, and
// the workflow graph logic (master progress, placeholder binding, cascading
// failure).
package workflow
