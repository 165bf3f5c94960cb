package workflow

import (
	"context"
	"fmt"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/progress"
	"bookforge/internal/queue"
	"bookforge/internal/stage"
)

// StartQueue begins advancing the queue. Idempotent: starting a running
// queue only re-triggers the scheduler.
func (m *Manager) StartQueue(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	wasRunning := m.queueRunning
	m.queueRunning = true
	m.mu.Unlock()

	if !wasRunning {
		m.logger.Info("queue started", logging.String(logging.FieldEventType, "queue_started"))
	}
	m.ProcessNext()
}

// StopQueue pauses the scheduler. The in-flight job, if any, keeps running
// to completion; no new job starts afterwards.
func (m *Manager) StopQueue() {
	m.mu.Lock()
	wasRunning := m.queueRunning
	m.queueRunning = false
	m.mu.Unlock()

	if wasRunning {
		m.logger.Info("queue paused", logging.String(logging.FieldEventType, "queue_paused"))
	}
}

// ProcessNext starts the next runnable queue job if the queue is running and
// the single active slot is free. Jobs that fail to start synchronously are
// marked errored and the scan continues with the next candidate.
func (m *Manager) ProcessNext() {
	for {
		m.mu.Lock()
		if !m.queueRunning || m.activeJobID != "" {
			m.mu.Unlock()
			return
		}
		job, ok := m.store.NextRunnable()
		if !ok {
			m.mu.Unlock()
			return
		}
		executor, found := m.executorFor(job.Type)
		if !found {
			m.mu.Unlock()
			m.failToStart(job.ID, fmt.Sprintf("no executor registered for job type %q", job.Type))
			if m.deferRescan() {
				return
			}
			continue
		}
		m.activeJobID = job.ID
		ctx := m.baseCtx
		m.mu.Unlock()

		if err := m.startJob(ctx, job, executor, false); err != nil {
			m.mu.Lock()
			if m.activeJobID == job.ID {
				m.activeJobID = ""
			}
			m.mu.Unlock()
			m.failToStart(job.ID, err.Error())
			if m.deferRescan() {
				return
			}
			continue
		}
		return
	}
}

// deferRescan spaces scheduler rescans after a start failure so a systemic
// misconfiguration (missing executor, unreachable service) fails jobs at the
// error retry interval instead of burning through the whole queue at once.
// Returns false when pacing is disabled, letting the scan continue inline.
func (m *Manager) deferRescan() bool {
	interval := time.Duration(m.cfg.ErrorRetryInterval) * time.Second
	if interval <= 0 {
		return false
	}
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(interval):
			m.ProcessNext()
		}
	}()
	return true
}

// RunStandalone starts a pending job outside the queue slot. Standalone jobs
// run concurrently with the queue and with each other.
func (m *Manager) RunStandalone(ctx context.Context, jobID string) error {
	job, ok := m.store.Get(jobID)
	if !ok {
		return queue.ErrJobNotFound
	}
	if !job.Runnable() {
		return fmt.Errorf("job %s is not runnable (status %s)", jobID, job.Status)
	}

	m.mu.Lock()
	if _, inFlight := m.standalone[jobID]; inFlight {
		m.mu.Unlock()
		return fmt.Errorf("job %s is already running standalone", jobID)
	}
	executor, found := m.executorFor(job.Type)
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("no executor registered for job type %q", job.Type)
	}
	m.standalone[jobID] = struct{}{}
	m.mu.Unlock()

	if err := m.startJob(ctx, job, executor, true); err != nil {
		m.mu.Lock()
		delete(m.standalone, jobID)
		m.mu.Unlock()
		m.failToStart(jobID, err.Error())
		return err
	}
	return nil
}

// startJob transitions the job to processing, promotes its master for
// display, and launches the executor goroutine. The goroutine's return value
// is the inline completion path.
func (m *Manager) startJob(ctx context.Context, job queue.Job, executor stage.Executor, standalone bool) error {
	started, err := m.store.Update(job.ID, func(j *queue.Job) {
		j.Status = queue.StatusProcessing
		now := time.Now().UTC()
		j.StartedAt = &now
		j.ErrorMessage = ""
		j.ProgressMessage = "Starting"
	})
	if err != nil {
		return fmt.Errorf("transition to processing: %w", err)
	}
	m.promoteMaster(started)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	m.logger.Info("job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.Bool("standalone", standalone),
	)

	go func() {
		defer cancel()
		result, execErr := executor.Start(runCtx, started, m.progressFunc(job.ID))
		if execErr != nil {
			m.HandleResult(job.ID, stage.Failure(execErr))
			return
		}
		m.HandleResult(job.ID, result)
	}()
	return nil
}

// progressFunc returns the callback the executor reports through. Updates
// are dropped once the job leaves processing, so late events from a
// cancelled executor cannot resurrect display state.
func (m *Manager) progressFunc(jobID string) stage.ProgressFunc {
	return func(env progress.Envelope) {
		_, err := m.store.Update(jobID, func(j *queue.Job) {
			if j.Status != queue.StatusProcessing {
				return
			}
			progress.Apply(j, env, time.Now())
		})
		if err == nil {
			m.refreshMaster(jobID)
		}
	}
}

// promoteMaster moves a still-pending master to processing when its first
// child starts. Display only; masters never occupy the queue slot.
func (m *Manager) promoteMaster(job queue.Job) {
	if job.ParentJobID == "" {
		return
	}
	master, ok := m.store.Get(job.ParentJobID)
	if !ok || master.Status != queue.StatusPending {
		return
	}
	_, _ = m.store.Update(master.ID, func(j *queue.Job) {
		if j.Status == queue.StatusPending {
			j.Status = queue.StatusProcessing
			now := time.Now().UTC()
			j.StartedAt = &now
		}
	})
}

// failToStart marks a job that could not be launched and notifies the
// workflow the same way a run failure would.
func (m *Manager) failToStart(jobID, message string) {
	job, err := m.store.Update(jobID, func(j *queue.Job) {
		j.SetFailed(message)
		now := time.Now().UTC()
		j.CompletedAt = &now
	})
	if err != nil {
		m.logger.Error("mark start failure",
			logging.Error(err),
			logging.String(logging.FieldJobID, jobID),
		)
		return
	}
	m.logger.Error("job failed to start",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldJobID, jobID),
		logging.String("error", message),
	)
	m.cascadeFailure(job)
	m.recomputeMaster(job)
}
