package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bookforge/internal/queue"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadSnapshotEmptyDatabase(t *testing.T) {
	store := openTestStore(t)
	snapshot, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot, got %+v", snapshot)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	jobs := []queue.Job{
		{ID: "m1", Type: queue.TypeWorkflowContainer, Status: queue.StatusProcessing, WorkflowID: "w1", Title: "Dune"},
		{ID: "j1", Type: queue.TypeSynthesis, Status: queue.StatusProcessing, WorkflowID: "w1",
			ParentJobID: "m1", StartedAt: &started, CompletedUnits: 120, TotalUnits: 500},
		{ID: "j2", Type: queue.TypeAudioAssembly, Status: queue.StatusPending, WorkflowID: "w1",
			ParentJobID: "m1", Placeholder: &queue.PlaceholderMarker{Role: queue.RoleAssemblySource, AwaitedUpstream: "j1"}},
	}
	if err := store.SaveSnapshot(ctx, Snapshot{Jobs: jobs, QueueRunning: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot")
	}
	if !loaded.QueueRunning {
		t.Error("queue running flag lost")
	}
	if loaded.SavedAt.IsZero() {
		t.Error("saved timestamp missing")
	}
	if len(loaded.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(loaded.Jobs))
	}
	synth := loaded.Jobs[1]
	if synth.CompletedUnits != 120 || synth.TotalUnits != 500 {
		t.Errorf("units = %d/%d", synth.CompletedUnits, synth.TotalUnits)
	}
	if synth.StartedAt == nil || !synth.StartedAt.Equal(started) {
		t.Errorf("started at = %v", synth.StartedAt)
	}
	placeholder := loaded.Jobs[2]
	if placeholder.Placeholder == nil || placeholder.Placeholder.AwaitedUpstream != "j1" {
		t.Errorf("placeholder marker lost: %+v", placeholder.Placeholder)
	}
}

func TestSaveSnapshotReplacesPrior(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, Snapshot{Jobs: []queue.Job{{ID: "old", Type: queue.TypeCleanup}}, QueueRunning: true}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSnapshot(ctx, Snapshot{Jobs: []queue.Job{{ID: "new", Type: queue.TypeCleanup}}}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Jobs) != 1 || loaded.Jobs[0].ID != "new" {
		t.Errorf("snapshot not replaced: %+v", loaded.Jobs)
	}
	if loaded.QueueRunning {
		t.Error("running flag should reflect the latest save")
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runs := []Run{
		{JobID: "j1", JobType: string(queue.TypeSynthesis), WorkflowID: "w1", Success: true,
			Units: 500, Characters: 800000, Duration: 42 * time.Minute, Engine: "piper"},
		{JobID: "j2", JobType: string(queue.TypeCleanup), Success: true, Units: 12, Characters: 70000,
			Duration: 90 * time.Second, Engine: "gpt-4o-mini"},
		{JobID: "j3", JobType: string(queue.TypeSynthesis), Success: false, Units: 40,
			Duration: 3 * time.Minute, Engine: "piper"},
	}
	for _, run := range runs {
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("record %s: %v", run.JobID, err)
		}
	}

	listed, err := store.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("runs = %d, want limit 2", len(listed))
	}
	// Newest first.
	if listed[0].JobID != "j3" || listed[1].JobID != "j2" {
		t.Errorf("order = %s, %s", listed[0].JobID, listed[1].JobID)
	}
	if listed[0].Success {
		t.Error("j3 should be recorded as failed")
	}
	if listed[0].Duration != 3*time.Minute {
		t.Errorf("duration = %v", listed[0].Duration)
	}
	if listed[0].FinishedAt.IsZero() {
		t.Error("finished timestamp missing")
	}
}

func TestSummariesGroupByJobType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seed := []Run{
		{JobID: "a", JobType: string(queue.TypeSynthesis), Success: true, Units: 500, Duration: 40 * time.Minute},
		{JobID: "b", JobType: string(queue.TypeSynthesis), Success: false, Units: 40, Duration: 2 * time.Minute},
		{JobID: "c", JobType: string(queue.TypeCleanup), Success: true, Units: 10, Characters: 50000, Duration: time.Minute},
	}
	for _, run := range seed {
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	summaries, err := store.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	byType := map[string]RunSummary{}
	for _, summary := range summaries {
		byType[summary.JobType] = summary
	}
	synth := byType[string(queue.TypeSynthesis)]
	if synth.Total != 2 || synth.Succeeded != 1 || synth.Units != 540 {
		t.Errorf("synthesis summary = %+v", synth)
	}
	if synth.Duration != 42*time.Minute {
		t.Errorf("synthesis duration = %v", synth.Duration)
	}
	cleanup := byType[string(queue.TypeCleanup)]
	if cleanup.Total != 1 || cleanup.Characters != 50000 {
		t.Errorf("cleanup summary = %+v", cleanup)
	}
}
