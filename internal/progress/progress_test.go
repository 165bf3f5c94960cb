package progress

import (
	"testing"
	"time"

	"bookforge/internal/queue"
)

func TestApplyComputesPercentFromUnits(t *testing.T) {
	job := &queue.Job{}
	Apply(job, Envelope{Phase: "synthesis", CompletedUnits: 25, TotalUnits: 100}, time.Now())

	if job.Progress != 25 {
		t.Errorf("progress = %v, want 25", job.Progress)
	}
	if job.CompletedUnits != 25 || job.TotalUnits != 100 {
		t.Errorf("units = %d/%d", job.CompletedUnits, job.TotalUnits)
	}
	if job.LastUnitAt == nil {
		t.Error("expected last-unit timestamp")
	}
	if job.ProgressMessage != "25/100 units" {
		t.Errorf("message = %q", job.ProgressMessage)
	}
}

func TestApplyCompletedUnitsNeverDecrease(t *testing.T) {
	job := &queue.Job{}
	now := time.Now()
	Apply(job, Envelope{CompletedUnits: 30, TotalUnits: 100}, now)
	firstSeen := *job.LastUnitAt

	// A late or reordered event reporting fewer units must not move the
	// counter backwards.
	Apply(job, Envelope{CompletedUnits: 12, TotalUnits: 100}, now.Add(time.Second))
	if job.CompletedUnits != 30 {
		t.Errorf("completed units regressed to %d", job.CompletedUnits)
	}
	if !job.LastUnitAt.Equal(firstSeen) {
		t.Error("timestamp should only advance on new units")
	}

	Apply(job, Envelope{CompletedUnits: 31, TotalUnits: 100}, now.Add(2*time.Second))
	if job.CompletedUnits != 31 {
		t.Errorf("completed units = %d, want 31", job.CompletedUnits)
	}
	if job.LastUnitAt.Equal(firstSeen) {
		t.Error("timestamp should advance with the new unit")
	}
}

func TestApplyCurrentUnitFallback(t *testing.T) {
	job := &queue.Job{}
	Apply(job, Envelope{Phase: "cleanup", CurrentUnit: 3, TotalUnits: 10}, time.Now())
	if job.CompletedUnits != 3 {
		t.Errorf("completed units = %d, want 3", job.CompletedUnits)
	}
}

func TestApplyAssemblyPhaseUsesPhasePercent(t *testing.T) {
	job := &queue.Job{CompletedUnits: 100, TotalUnits: 100}
	Apply(job, Envelope{Phase: PhaseAssembly, PhasePercent: 40}, time.Now())
	if job.Progress != 40 {
		t.Errorf("progress = %v, want assembly percent 40", job.Progress)
	}
	if job.Phase != PhaseAssembly {
		t.Errorf("phase = %q", job.Phase)
	}
	if job.ProgressMessage != "Assembling audio" {
		t.Errorf("message = %q", job.ProgressMessage)
	}
}

func TestApplyClampsPercent(t *testing.T) {
	job := &queue.Job{}
	Apply(job, Envelope{Phase: PhaseAssembly, PhasePercent: 140}, time.Now())
	if job.Progress != 100 {
		t.Errorf("progress = %v, want clamped 100", job.Progress)
	}
	Apply(job, Envelope{Phase: PhaseAssembly, PhasePercent: -5}, time.Now())
	if job.Progress != 0 {
		t.Errorf("progress = %v, want clamped 0", job.Progress)
	}
}

func TestApplyRecordsWorkers(t *testing.T) {
	job := &queue.Job{}
	Apply(job, Envelope{
		CompletedUnits: 4,
		TotalUnits:     10,
		ActiveWorkers:  2,
		Workers: []WorkerState{
			{Worker: 1, Unit: 5, Phase: "synthesis"},
			{Worker: 2, Unit: 6, Phase: "synthesis"},
		},
	}, time.Now())
	if job.ActiveWorkers != 2 || len(job.Workers) != 2 {
		t.Errorf("workers = %d/%v", job.ActiveWorkers, job.Workers)
	}
	if job.Workers[1].Unit != 6 {
		t.Errorf("worker unit = %d", job.Workers[1].Unit)
	}
}
