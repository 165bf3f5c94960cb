package progress

import (
	"fmt"
	"time"

	"bookforge/internal/queue"
)

// PhaseAssembly is the distinguished phase during which the displayed
// percentage tracks assembly instead of synthesis, so the bar does not stall
// at 100% while chunks are being joined.
const PhaseAssembly = "assembly"

// WorkerState reports one parallel worker's position.
type WorkerState struct {
	Worker int    `json:"worker"`
	Unit   int    `json:"unit"`
	Phase  string `json:"phase,omitempty"`
}

// Envelope is a normalized progress report. Simple chunked stages fill
// CurrentUnit/TotalUnits; parallel stages fill CompletedUnits, ActiveWorkers,
// and Workers; assembly phases fill PhasePercent.
type Envelope struct {
	Phase          string        `json:"phase,omitempty"`
	CurrentUnit    int           `json:"current_unit,omitempty"`
	TotalUnits     int           `json:"total_units,omitempty"`
	CompletedUnits int           `json:"completed_units,omitempty"`
	ActiveWorkers  int           `json:"active_workers,omitempty"`
	Workers        []WorkerState `json:"workers,omitempty"`
	PhasePercent   float64       `json:"phase_percent,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// Apply folds an envelope into a job's displayed progress fields. The
// completed-unit count never decreases between updates, and the timestamp of
// the last completed unit is recorded for external ETA estimation.
func Apply(job *queue.Job, env Envelope, now time.Time) {
	completed := env.CompletedUnits
	if completed == 0 && env.CurrentUnit > 0 {
		completed = env.CurrentUnit
	}
	if completed < job.CompletedUnits {
		completed = job.CompletedUnits
	}

	total := env.TotalUnits
	if total <= 0 {
		total = job.TotalUnits
	}

	if completed > job.CompletedUnits {
		ts := now.UTC()
		job.LastUnitAt = &ts
	}
	job.CompletedUnits = completed
	if total > 0 {
		job.TotalUnits = total
	}
	if env.Phase != "" {
		job.Phase = env.Phase
	}
	job.ActiveWorkers = env.ActiveWorkers
	if len(env.Workers) > 0 {
		workers := make([]queue.WorkerSnapshot, 0, len(env.Workers))
		for _, w := range env.Workers {
			workers = append(workers, queue.WorkerSnapshot{Worker: w.Worker, Unit: w.Unit, Phase: w.Phase})
		}
		job.Workers = workers
	}

	percent := job.Progress
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	if env.Phase == PhaseAssembly {
		percent = env.PhasePercent
	}

	message := env.Message
	if message == "" {
		message = defaultMessage(env.Phase, completed, total)
	}
	job.SetProgress(clamp(percent), message)
}

func defaultMessage(phase string, completed, total int) string {
	if phase == PhaseAssembly {
		return "Assembling audio"
	}
	if total > 0 {
		return fmt.Sprintf("%d/%d units", completed, total)
	}
	return ""
}

func clamp(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
