package queue

import (
	"testing"
	"time"
)

func TestRestoreDemotesInterruptedJobs(t *testing.T) {
	started := time.Now().UTC()
	jobs := []Job{
		{ID: "m1", Type: TypeWorkflowContainer, Status: StatusProcessing, WorkflowID: "w1"},
		{ID: "j1", Type: TypeSynthesis, Status: StatusProcessing, WorkflowID: "w1", ParentJobID: "m1", StartedAt: &started, CompletedUnits: 42},
		{ID: "j2", Type: TypeAudioAssembly, Status: StatusPending, WorkflowID: "w1", ParentJobID: "m1"},
		{ID: "j3", Type: TypeCleanup, Status: StatusComplete},
	}

	store := NewStore()
	demoted := store.Restore(jobs)
	if demoted != 1 {
		t.Fatalf("demoted = %d, want 1", demoted)
	}

	restored, ok := store.Get("j1")
	if !ok {
		t.Fatal("j1 missing after restore")
	}
	if restored.Status != StatusPending {
		t.Errorf("j1 status = %s, want pending", restored.Status)
	}
	if !restored.Resume.WasInterrupted {
		t.Error("j1 should be flagged interrupted")
	}
	if restored.StartedAt != nil {
		t.Error("j1 started timestamp should be cleared")
	}
	if restored.CompletedUnits != 42 {
		t.Errorf("j1 completed units = %d, want preserved 42", restored.CompletedUnits)
	}

	master, _ := store.Get("m1")
	if master.Status != StatusPending {
		t.Errorf("master status = %s, want pending until a child event re-promotes it", master.Status)
	}
	if master.Resume.WasInterrupted {
		t.Error("containers are projections; the interrupted flag belongs to executable jobs")
	}
	done, _ := store.Get("j3")
	if done.Status != StatusComplete {
		t.Errorf("terminal job altered on restore: %s", done.Status)
	}
}

func TestRestoreRederivesMasterFromChildren(t *testing.T) {
	cases := []struct {
		name     string
		children []Job
		want     Status
	}{
		{
			name: "all children complete",
			children: []Job{
				{ID: "c1", Type: TypeSynthesis, Status: StatusComplete, ParentJobID: "m1"},
				{ID: "c2", Type: TypeAudioAssembly, Status: StatusComplete, ParentJobID: "m1"},
			},
			want: StatusComplete,
		},
		{
			name: "errored child",
			children: []Job{
				{ID: "c1", Type: TypeSynthesis, Status: StatusError, ParentJobID: "m1"},
				{ID: "c2", Type: TypeAudioAssembly, Status: StatusPending, ParentJobID: "m1"},
			},
			want: StatusError,
		},
		{
			name: "work remaining",
			children: []Job{
				{ID: "c1", Type: TypeSynthesis, Status: StatusComplete, ParentJobID: "m1"},
				{ID: "c2", Type: TypeAudioAssembly, Status: StatusProcessing, ParentJobID: "m1"},
			},
			want: StatusPending,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := append([]Job{
				{ID: "m1", Type: TypeWorkflowContainer, Status: StatusProcessing, WorkflowID: "w1"},
			}, tc.children...)
			store := NewStore()
			store.Restore(jobs)

			master, _ := store.Get("m1")
			if master.Status != tc.want {
				t.Errorf("master status = %s, want %s", master.Status, tc.want)
			}
			if tc.want == StatusComplete && master.Progress != 100 {
				t.Errorf("master progress = %v, want 100", master.Progress)
			}
		})
	}
}

func TestRestorePreservesOrder(t *testing.T) {
	store := NewStore()
	store.Restore([]Job{
		{ID: "b", Type: TypeCleanup, Status: StatusPending},
		{ID: "a", Type: TypeCleanup, Status: StatusPending},
		{ID: "c", Type: TypeCleanup, Status: StatusPending},
	})
	snapshot := store.Snapshot()
	if snapshot[0].ID != "b" || snapshot[1].ID != "a" || snapshot[2].ID != "c" {
		t.Errorf("order not preserved: %s %s %s", snapshot[0].ID, snapshot[1].ID, snapshot[2].ID)
	}
}
