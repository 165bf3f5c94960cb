package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// JobType identifies the pipeline stage a job executes.
type JobType string

const (
	TypeCleanup           JobType = "cleanup"
	TypeTranslation       JobType = "translation"
	TypeSynthesis         JobType = "tts-conversion"
	TypeAudioAssembly     JobType = "audio-assembly"
	TypeVideoAssembly     JobType = "video-assembly"
	TypeEnhancement       JobType = "enhancement"
	TypeWorkflowContainer JobType = "workflow-container"
)

// SkipReason is the error message set on pending siblings when a workflow
// job fails.
const SkipReason = "Skipped due to upstream failure"

var allStatuses = []Status{StatusPending, StatusProcessing, StatusComplete, StatusError}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allTypes = []JobType{
	TypeCleanup,
	TypeTranslation,
	TypeSynthesis,
	TypeAudioAssembly,
	TypeVideoAssembly,
	TypeEnhancement,
	TypeWorkflowContainer,
}

var typeSet = func() map[JobType]struct{} {
	set := make(map[JobType]struct{}, len(allTypes))
	for _, t := range allTypes {
		set[t] = struct{}{}
	}
	return set
}()

// PlaceholderMarker tags a child job whose input is not resolvable yet. A job
// carrying a marker is invisible to the scheduler until an upstream
// completion binds it.
type PlaceholderMarker struct {
	Role            string `json:"role"`
	AwaitedUpstream string `json:"awaited_upstream"`
}

// Placeholder roles used for deferred binding.
const (
	RoleTranslationSource = "translation-source"
	RoleSynthesisSource   = "synthesis-source"
	RoleAssemblySource    = "assembly-source"
)

// Config carries stage-specific parameters. Immutable once the job starts,
// except for placeholder binding which fills unresolved fields.
type Config struct {
	Voice          string   `json:"voice,omitempty"`
	Language       string   `json:"language,omitempty"`
	TargetLanguage string   `json:"target_language,omitempty"`
	Model          string   `json:"model,omitempty"`
	Workers        int      `json:"workers,omitempty"`
	OutputDir      string   `json:"output_dir,omitempty"`
	Parts          []string `json:"parts,omitempty"`
	SecondaryParts []string `json:"secondary_parts,omitempty"`
	Interleave     bool     `json:"interleave,omitempty"`
	Denoise        bool     `json:"denoise,omitempty"`
	ImagePath      string   `json:"image_path,omitempty"`
}

// ResumeState carries checkpoint information attached to a job, either by a
// producer (user chose "continue") or by the snapshot loader after a restart.
type ResumeState struct {
	IsResumeJob    bool   `json:"is_resume_job,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SessionDir     string `json:"session_dir,omitempty"`
	CompletedUnits int    `json:"completed_units,omitempty"`
	MissingUnits   int    `json:"missing_units,omitempty"`
	WasInterrupted bool   `json:"was_interrupted,omitempty"`
}

// WorkerSnapshot reflects one parallel synthesis worker's reported state.
type WorkerSnapshot struct {
	Worker int    `json:"worker"`
	Unit   int    `json:"unit"`
	Phase  string `json:"phase,omitempty"`
}

// Job is one unit of pipeline work.
type Job struct {
	ID          string             `json:"id"`
	Type        JobType            `json:"type"`
	Status      Status             `json:"status"`
	Title       string             `json:"title"`
	WorkflowID  string             `json:"workflow_id,omitempty"`
	ParentJobID string             `json:"parent_job_id,omitempty"`
	Standalone  bool               `json:"standalone,omitempty"`
	OnHold      bool               `json:"on_hold,omitempty"`
	Placeholder *PlaceholderMarker `json:"placeholder,omitempty"`
	Config      Config             `json:"config"`
	InputRef    string             `json:"input_ref,omitempty"`
	OutputPath  string             `json:"output_path,omitempty"`

	Progress        float64          `json:"progress"`
	ProgressMessage string           `json:"progress_message,omitempty"`
	Phase           string           `json:"phase,omitempty"`
	CompletedUnits  int              `json:"completed_units,omitempty"`
	TotalUnits      int              `json:"total_units,omitempty"`
	ActiveWorkers   int              `json:"active_workers,omitempty"`
	Workers         []WorkerSnapshot `json:"workers,omitempty"`
	LastUnitAt      *time.Time       `json:"last_unit_at,omitempty"`

	Resume       ResumeState `json:"resume"`
	ErrorMessage string      `json:"error_message,omitempty"`

	AddedAt     time.Time  `json:"added_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseType converts a string into a known JobType.
func ParseType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := typeSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// IsMaster reports whether the job is a workflow container.
func (j Job) IsMaster() bool {
	return j.Type == TypeWorkflowContainer
}

// Runnable reports whether the scheduler may start this job: pending, bound,
// not a container, and not held back by a user stop.
func (j Job) Runnable() bool {
	return j.Status == StatusPending && !j.IsMaster() && j.Placeholder == nil && !j.OnHold
}

// SetProgress updates the displayed progress fields together.
func (j *Job) SetProgress(percent float64, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.Progress = percent
	j.ProgressMessage = message
}

// SetFailed marks the job as errored with the given message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusError
	j.ErrorMessage = message
	j.ProgressMessage = message
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	cp := j
	if j.Placeholder != nil {
		marker := *j.Placeholder
		cp.Placeholder = &marker
	}
	if len(j.Config.Parts) > 0 {
		cp.Config.Parts = append([]string(nil), j.Config.Parts...)
	}
	if len(j.Config.SecondaryParts) > 0 {
		cp.Config.SecondaryParts = append([]string(nil), j.Config.SecondaryParts...)
	}
	if len(j.Workers) > 0 {
		cp.Workers = append([]WorkerSnapshot(nil), j.Workers...)
	}
	if j.LastUnitAt != nil {
		t := *j.LastUnitAt
		cp.LastUnitAt = &t
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}
