package queue

import (
	"strings"
	"testing"
)

func addPending(t *testing.T, store *Store, jobType JobType, title string) Job {
	t.Helper()
	job, err := store.Add(Job{Type: jobType, Status: StatusPending, Title: title})
	if err != nil {
		t.Fatalf("add %s: %v", title, err)
	}
	return job
}

func TestAddFillsDefaults(t *testing.T) {
	store := NewStore()
	job, err := store.Add(Job{Type: TypeCleanup})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if job.ID == "" {
		t.Error("expected generated id")
	}
	if job.Status != StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.AddedAt.IsZero() {
		t.Error("expected added timestamp")
	}
}

func TestAddRejectsUnknownTypeAndOrphans(t *testing.T) {
	store := NewStore()
	if _, err := store.Add(Job{Type: "ripping"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := store.Add(Job{Type: TypeSynthesis, ParentJobID: "missing"}); err == nil {
		t.Error("expected error for missing parent")
	}
	leaf := addPending(t, store, TypeCleanup, "leaf")
	if _, err := store.Add(Job{Type: TypeSynthesis, ParentJobID: leaf.ID}); err == nil {
		t.Error("expected error for non-container parent")
	}
}

func TestUpdateEnforcesTransitions(t *testing.T) {
	store := NewStore()
	job := addPending(t, store, TypeSynthesis, "book")

	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusComplete }); err == nil {
		t.Fatal("pending→complete should be rejected")
	}

	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusProcessing }); err != nil {
		t.Fatalf("pending→processing: %v", err)
	}
	// Stopped jobs fold back into pending.
	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusPending }); err != nil {
		t.Fatalf("processing→pending: %v", err)
	}

	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusProcessing }); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusComplete }); err != nil {
		t.Fatalf("processing→complete: %v", err)
	}
	if _, err := store.Update(job.ID, func(j *Job) { j.Status = StatusPending }); err == nil {
		t.Fatal("complete→pending should be rejected")
	}
}

func TestUpdatePreservesIdentityFields(t *testing.T) {
	store := NewStore()
	job := addPending(t, store, TypeCleanup, "book")
	updated, err := store.Update(job.ID, func(j *Job) {
		j.ID = "hijack"
		j.Type = TypeSynthesis
		j.Title = "renamed"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != job.ID || updated.Type != TypeCleanup {
		t.Errorf("identity fields changed: id=%s type=%s", updated.ID, updated.Type)
	}
	if updated.Title != "renamed" {
		t.Errorf("patch not applied: title=%s", updated.Title)
	}
}

func TestRetryOnlyFromError(t *testing.T) {
	store := NewStore()
	job := addPending(t, store, TypeSynthesis, "book")

	if _, err := store.Retry(job.ID); err == nil {
		t.Fatal("retry of pending job should fail")
	}

	mustUpdate(t, store, job.ID, StatusProcessing)
	if _, err := store.Update(job.ID, func(j *Job) { j.SetFailed("boom"); j.OnHold = true }); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	retried, err := store.Retry(job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != StatusPending || retried.ErrorMessage != "" || retried.OnHold {
		t.Errorf("retry state = %+v", retried)
	}
}

func TestRemoveCascadesFromMaster(t *testing.T) {
	store := NewStore()
	master, err := store.Add(Job{Type: TypeWorkflowContainer, WorkflowID: "w1", Title: "book"})
	if err != nil {
		t.Fatalf("add master: %v", err)
	}
	for range 3 {
		if _, err := store.Add(Job{Type: TypeSynthesis, ParentJobID: master.ID, WorkflowID: "w1"}); err != nil {
			t.Fatalf("add child: %v", err)
		}
	}
	other := addPending(t, store, TypeCleanup, "unrelated")

	removed := store.Remove(master.ID)
	if len(removed) != 4 {
		t.Fatalf("removed %d jobs, want 4", len(removed))
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
	if _, ok := store.Get(other.ID); !ok {
		t.Error("unrelated job should survive")
	}
}

func TestReorderPendingOnly(t *testing.T) {
	store := NewStore()
	first := addPending(t, store, TypeCleanup, "first")
	second := addPending(t, store, TypeCleanup, "second")
	third := addPending(t, store, TypeCleanup, "third")

	if err := store.Reorder(third.ID, first.ID); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	order := store.Snapshot()
	if order[0].ID != third.ID || order[1].ID != first.ID || order[2].ID != second.ID {
		t.Errorf("unexpected order: %s %s %s", order[0].Title, order[1].Title, order[2].Title)
	}

	mustUpdate(t, store, first.ID, StatusProcessing)
	if err := store.Reorder(first.ID, second.ID); err == nil {
		t.Error("processing job should not move")
	}
	if err := store.Reorder(second.ID, first.ID); err == nil {
		t.Error("processing job should not be displaced")
	}
}

func TestNextRunnableSkipsIneligibleJobs(t *testing.T) {
	store := NewStore()
	master, _ := store.Add(Job{Type: TypeWorkflowContainer, WorkflowID: "w1"})
	standalone, _ := store.Add(Job{Type: TypeEnhancement, Standalone: true})
	placeholder, _ := store.Add(Job{
		Type:        TypeSynthesis,
		WorkflowID:  "w1",
		ParentJobID: master.ID,
		Placeholder: &PlaceholderMarker{Role: RoleSynthesisSource, AwaitedUpstream: "up"},
	})
	held, _ := store.Add(Job{Type: TypeCleanup, OnHold: true})
	eligible := addPending(t, store, TypeCleanup, "eligible")

	next, ok := store.NextRunnable()
	if !ok {
		t.Fatal("expected a runnable job")
	}
	if next.ID != eligible.ID {
		t.Errorf("next = %s, want %s", next.Title, eligible.Title)
	}
	for _, skipped := range []Job{master, standalone, placeholder, held} {
		if next.ID == skipped.ID {
			t.Errorf("scheduler picked ineligible job %s", skipped.ID)
		}
	}
}

func TestPlaceholderBecomesRunnableAfterBinding(t *testing.T) {
	store := NewStore()
	master, _ := store.Add(Job{Type: TypeWorkflowContainer, WorkflowID: "w1"})
	job, err := store.Add(Job{
		Type:        TypeSynthesis,
		WorkflowID:  "w1",
		ParentJobID: master.ID,
		Placeholder: &PlaceholderMarker{Role: RoleSynthesisSource, AwaitedUpstream: "up"},
	})
	if err != nil {
		t.Fatalf("add placeholder: %v", err)
	}
	if _, ok := store.NextRunnable(); ok {
		t.Fatal("placeholder must be invisible to the scheduler")
	}

	if _, err := store.Update(job.ID, func(j *Job) {
		j.InputRef = "/staging/book.txt"
		j.Placeholder = nil
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	next, ok := store.NextRunnable()
	if !ok || next.ID != job.ID {
		t.Fatalf("bound job should be runnable, got ok=%v", ok)
	}
}

func TestSkipReasonWording(t *testing.T) {
	if !strings.Contains(SkipReason, "upstream failure") {
		t.Errorf("unexpected skip reason %q", SkipReason)
	}
}

func mustUpdate(t *testing.T, store *Store, id string, status Status) {
	t.Helper()
	if _, err := store.Update(id, func(j *Job) { j.Status = status }); err != nil {
		t.Fatalf("update %s to %s: %v", id, status, err)
	}
}
