package ipc

import (
	"bookforge/internal/persist"
	"bookforge/internal/queue"
	"bookforge/internal/workflow"
)

// StartQueueRequest starts the scheduler.
type StartQueueRequest struct{}

// StartQueueResponse reports scheduler start.
type StartQueueResponse struct {
	Started bool `json:"started"`
}

// StopQueueRequest pauses the scheduler.
type StopQueueRequest struct{}

// StopQueueResponse reports scheduler pause.
type StopQueueResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the combined daemon and queue status.
type StatusResponse struct {
	QueueRunning bool           `json:"queue_running"`
	ActiveJobID  string         `json:"active_job_id,omitempty"`
	QueueStats   map[string]int `json:"queue_stats"`
	DBPath       string         `json:"db_path"`
	PID          int            `json:"pid"`
}

// QueueListRequest filters the job listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueListResponse contains the jobs in queue order.
type QueueListResponse struct {
	Jobs []queue.Job `json:"jobs"`
}

// WorkflowCreateRequest builds a full audiobook workflow.
type WorkflowCreateRequest struct {
	Spec workflow.BookSpec `json:"spec"`
}

// WorkflowCreateResponse returns the created master job.
type WorkflowCreateResponse struct {
	Master queue.Job `json:"master"`
}

// JobAddRequest enqueues a single job.
type JobAddRequest struct {
	Job        queue.Job `json:"job"`
	Standalone bool      `json:"standalone"`
}

// JobAddResponse returns the stored job.
type JobAddResponse struct {
	Job queue.Job `json:"job"`
}

// JobIDRequest addresses one job.
type JobIDRequest struct {
	ID string `json:"id"`
}

// JobActionResponse reports a single-job mutation.
type JobActionResponse struct {
	Job queue.Job `json:"job,omitempty"`
	OK  bool      `json:"ok"`
}

// QueueRemoveResponse reports removed jobs (children included for masters).
type QueueRemoveResponse struct {
	Removed int `json:"removed"`
}

// QueueClearRequest removes every job in the given statuses; empty means
// complete and error.
type QueueClearRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueClearResponse reports the number of removed jobs.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// QueueReorderRequest moves a pending job ahead of another.
type QueueReorderRequest struct {
	ID       string `json:"id"`
	TargetID string `json:"target_id"`
}

// QueueReorderResponse acknowledges the move.
type QueueReorderResponse struct {
	OK bool `json:"ok"`
}

// RunsRequest fetches recent run analytics.
type RunsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RunsResponse returns recent runs and per-type summaries.
type RunsResponse struct {
	Runs      []persist.Run        `json:"runs"`
	Summaries []persist.RunSummary `json:"summaries"`
}

// LogTailRequest reads daemon log lines. Offset -1 requests the last Limit
// lines; subsequent reads pass the returned offset. WaitMillis keeps the
// request open until new lines arrive, for follow mode.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit,omitempty"`
	WaitMillis int   `json:"wait_millis,omitempty"`
}

// LogTailResponse returns log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines,omitempty"`
	Offset int64    `json:"offset"`
}
