package stage

import (
	"context"
	"time"

	"bookforge/internal/progress"
	"bookforge/internal/queue"
)

// Analytics carries optional throughput numbers an executor measured while
// running, recorded for the run log.
type Analytics struct {
	Units      int
	Characters int
	Duration   time.Duration
	Engine     string
}

// SessionInfo reports the checkpoint session an executor used, so the
// completion handler can mark it complete or keep it for a later resume.
type SessionInfo struct {
	InputIdentity string
	SessionID     string
	SessionDir    string
	Complete      bool
}

// Result is the terminal outcome of one stage execution. Exactly one of
// Success, Stopped, or a non-empty ErrorMessage describes how it ended.
type Result struct {
	Success      bool
	Stopped      bool
	OutputPath   string
	ErrorMessage string
	Analytics    *Analytics
	Session      *SessionInfo
}

// ProgressFunc receives progress envelopes from a running executor. It must
// be safe to call from the executor's own goroutines.
type ProgressFunc func(progress.Envelope)

// Executor runs one job type. Start blocks until the job finishes, fails, or
// the context is cancelled; it returns an error only for infrastructure
// failures (a stage-level failure is a Result with Success=false).
type Executor interface {
	Start(ctx context.Context, job queue.Job, report ProgressFunc) (Result, error)
	Cancel(ctx context.Context, jobID string) error
}

// Func adapts a plain function into an Executor with a no-op Cancel, for
// executors whose Start honors context cancellation directly.
type Func func(ctx context.Context, job queue.Job, report ProgressFunc) (Result, error)

func (f Func) Start(ctx context.Context, job queue.Job, report ProgressFunc) (Result, error) {
	return f(ctx, job, report)
}

func (f Func) Cancel(ctx context.Context, jobID string) error { return nil }

// Failure builds a failed result from an error.
func Failure(err error) Result {
	if err == nil {
		return Result{Success: false, ErrorMessage: "stage failed"}
	}
	return Result{Success: false, ErrorMessage: err.Error()}
}
