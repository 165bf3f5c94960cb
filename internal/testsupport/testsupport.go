// Package testsupport provides builders shared by package tests: configs
// seeded with per-test temp directories and prefilled queue jobs.
package testsupport

import (
	"path/filepath"
	"testing"

	"bookforge/internal/config"
	"bookforge/internal/queue"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SessionsDir = filepath.Join(base, "sessions")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.AI.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithStaleTimeout enables the staleness watchdog on the test config.
func WithStaleTimeout(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StaleTimeoutMinutes = minutes
	}
}

// NewJob returns a minimal pending job of the given type.
func NewJob(t testing.TB, jobType queue.JobType, title string) queue.Job {
	t.Helper()
	return queue.Job{
		Type:   jobType,
		Status: queue.StatusPending,
		Title:  title,
	}
}

// Workflow seeds a store with a master and concrete children of the given
// types, all sharing one workflow id. Returns the master followed by the
// children in order.
func Workflow(t testing.TB, store *queue.Store, workflowID string, childTypes ...queue.JobType) []queue.Job {
	t.Helper()

	master, err := store.Add(queue.Job{
		Type:       queue.TypeWorkflowContainer,
		Status:     queue.StatusPending,
		Title:      "workflow " + workflowID,
		WorkflowID: workflowID,
	})
	if err != nil {
		t.Fatalf("add master: %v", err)
	}
	jobs := []queue.Job{master}
	for i, childType := range childTypes {
		child, err := store.Add(queue.Job{
			Type:        childType,
			Status:      queue.StatusPending,
			Title:       master.Title,
			WorkflowID:  workflowID,
			ParentJobID: master.ID,
			InputRef:    filepath.Join("in", workflowID, string(childType)),
		})
		if err != nil {
			t.Fatalf("add child %d: %v", i, err)
		}
		jobs = append(jobs, child)
	}
	return jobs
}
