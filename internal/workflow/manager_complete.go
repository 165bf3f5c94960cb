package workflow

import (
	"context"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/persist"
	"bookforge/internal/queue"
	"bookforge/internal/stage"
)

// HandleResult is the single convergence point for job completion. Both the
// inline path (the executor goroutine's return value) and the event path
// (an asynchronous completion notification) call it; only the arrival that
// finds the job still processing produces effects. The guard lives inside
// one store update, so concurrent arrivals cannot both apply.
func (m *Manager) HandleResult(jobID string, result stage.Result) {
	applied := false
	updated, err := m.store.Update(jobID, func(j *queue.Job) {
		if j.Status != queue.StatusProcessing {
			return
		}
		applied = true
		now := time.Now().UTC()
		switch {
		case result.Success:
			j.Status = queue.StatusComplete
			j.CompletedAt = &now
			if result.OutputPath != "" {
				j.OutputPath = result.OutputPath
			}
			j.ErrorMessage = ""
			j.SetProgress(100, "Complete")
		case result.Stopped:
			j.Status = queue.StatusPending
			j.OnHold = true
			j.StartedAt = nil
			j.ProgressMessage = "Stopped"
			j.Resume.IsResumeJob = true
			j.Resume.CompletedUnits = j.CompletedUnits
			if j.TotalUnits > j.CompletedUnits {
				j.Resume.MissingUnits = j.TotalUnits - j.CompletedUnits
			}
			if result.Session != nil {
				j.Resume.SessionID = result.Session.SessionID
				j.Resume.SessionDir = result.Session.SessionDir
			}
		default:
			message := result.ErrorMessage
			if message == "" {
				message = "stage failed"
			}
			j.SetFailed(message)
			j.CompletedAt = &now
		}
	})

	if err != nil {
		m.logger.Error("apply job result",
			logging.Error(err),
			logging.String(logging.FieldJobID, jobID),
		)
		if wasQueueJob, _ := m.releaseJob(jobID); wasQueueJob {
			m.ProcessNext()
		}
		return
	}
	// Only the applied arrival owns the slot release. A losing duplicate
	// must leave the bookkeeping untouched, or the winner would see the
	// slot already cleared and skip advancing the queue.
	if !applied {
		m.logger.Debug("duplicate completion ignored",
			logging.String(logging.FieldJobID, jobID),
			logging.String("status", string(updated.Status)),
		)
		return
	}
	wasQueueJob, intent := m.releaseJob(jobID)

	m.logCompletion(updated, result)

	switch {
	case result.Success:
		m.bindDownstream(updated, result)
	case result.Stopped:
		if intent == intentDiscard {
			m.discardResume(updated)
		}
	default:
		m.cascadeFailure(updated)
	}
	m.recordRun(updated, result)
	m.recomputeMaster(updated)

	if wasQueueJob {
		m.ProcessNext()
	}
}

// releaseJob clears the completion-side bookkeeping for one job: the queue
// slot if it holds it, the standalone marker, the executor cancel func, and
// the stop intent. Reports whether the job held the queue slot.
func (m *Manager) releaseJob(jobID string) (bool, stopIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasQueueJob := m.activeJobID == jobID
	if wasQueueJob {
		m.activeJobID = ""
	}
	delete(m.standalone, jobID)
	if cancel, ok := m.cancels[jobID]; ok {
		cancel()
		delete(m.cancels, jobID)
	}
	intent := m.stopIntents[jobID]
	delete(m.stopIntents, jobID)
	return wasQueueJob, intent
}

func (m *Manager) logCompletion(job queue.Job, result stage.Result) {
	switch {
	case result.Success:
		m.logger.Info("job complete",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobType, string(job.Type)),
			logging.String("output", job.OutputPath),
		)
	case result.Stopped:
		m.logger.Info("job stopped",
			logging.String(logging.FieldEventType, "job_stopped"),
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("completed_units", job.CompletedUnits),
		)
	default:
		m.logger.Error("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobType, string(job.Type)),
			logging.String("error", job.ErrorMessage),
			logging.String(logging.FieldImpact, "downstream workflow steps will be skipped"),
		)
	}
}

// recordRun persists throughput analytics. Failures here never affect the
// orchestration outcome.
func (m *Manager) recordRun(job queue.Job, result stage.Result) {
	if m.runs == nil || result.Stopped {
		return
	}
	run := persist.Run{
		JobID:      job.ID,
		JobType:    string(job.Type),
		WorkflowID: job.WorkflowID,
		Success:    result.Success,
	}
	if result.Analytics != nil {
		run.Units = result.Analytics.Units
		run.Characters = result.Analytics.Characters
		run.Duration = result.Analytics.Duration
		run.Engine = result.Analytics.Engine
	}
	if err := m.runs.RecordRun(context.Background(), run); err != nil {
		m.logger.Warn("record run analytics", logging.Error(err))
	}
}
