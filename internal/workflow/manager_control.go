package workflow

import (
	"context"
	"fmt"

	"bookforge/internal/checkpoint"
	"bookforge/internal/logging"
	"bookforge/internal/queue"
)

// AddJob enqueues a job and nudges the scheduler.
func (m *Manager) AddJob(job queue.Job) (queue.Job, error) {
	added, err := m.store.Add(job)
	if err != nil {
		return queue.Job{}, err
	}
	m.ProcessNext()
	return added, nil
}

// Stop asks a processing job's executor to stop, preserving its checkpoint
// so the job can resume later. The job returns to pending (held back from
// the scheduler) once the executor reports the stop.
func (m *Manager) Stop(ctx context.Context, jobID string) error {
	return m.signalStop(ctx, jobID, intentPreserve)
}

// Cancel stops a processing job and discards its session: the job returns to
// pending with resume state cleared and restarts from scratch if requeued.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	return m.signalStop(ctx, jobID, intentDiscard)
}

func (m *Manager) signalStop(ctx context.Context, jobID string, intent stopIntent) error {
	job, ok := m.store.Get(jobID)
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status != queue.StatusProcessing {
		return fmt.Errorf("job %s is not processing (status %s)", jobID, job.Status)
	}

	m.mu.Lock()
	m.stopIntents[jobID] = intent
	executor, found := m.executorFor(job.Type)
	cancel := m.cancels[jobID]
	m.mu.Unlock()

	if found {
		if err := executor.Cancel(ctx, jobID); err != nil {
			m.logger.Warn("executor cancel failed",
				logging.Error(err),
				logging.String(logging.FieldJobID, jobID),
			)
		}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// discardResume clears resume state after a cancel and removes the on-disk
// session for the job's input.
func (m *Manager) discardResume(job queue.Job) {
	_, err := m.store.Update(job.ID, func(j *queue.Job) {
		j.Resume = queue.ResumeState{}
		j.CompletedUnits = 0
		j.SetProgress(0, "Cancelled")
	})
	if err != nil {
		m.logger.Warn("clear resume state", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
	}
	if m.sessions != nil {
		identity := checkpoint.Identity(job.InputRef, job.Config.Voice)
		if err := m.sessions.Discard(identity); err != nil {
			m.logger.Warn("discard session", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		}
	}
}

// Resume releases a stopped job back to the scheduler.
func (m *Manager) Resume(jobID string) error {
	job, ok := m.store.Get(jobID)
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status != queue.StatusPending || !job.OnHold {
		return fmt.Errorf("job %s is not stopped (status %s)", jobID, job.Status)
	}
	_, err := m.store.Update(jobID, func(j *queue.Job) {
		j.OnHold = false
	})
	if err != nil {
		return err
	}
	m.ProcessNext()
	return nil
}

// Retry requeues an errored job and nudges the scheduler.
func (m *Manager) Retry(jobID string) error {
	if _, err := m.store.Retry(jobID); err != nil {
		return err
	}
	m.ProcessNext()
	return nil
}

// Remove deletes a job (cascading to children for masters). In-flight jobs
// must be stopped or cancelled first.
func (m *Manager) Remove(jobID string) ([]queue.Job, error) {
	job, ok := m.store.Get(jobID)
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	inFlight := job.Status == queue.StatusProcessing
	if !inFlight && job.IsMaster() {
		for _, child := range m.store.Children(job.ID) {
			if child.Status == queue.StatusProcessing {
				inFlight = true
				break
			}
		}
	}
	if inFlight {
		return nil, fmt.Errorf("job %s is processing; stop it before removing", jobID)
	}
	removed := m.store.Remove(jobID)
	m.logger.Info("jobs removed",
		logging.String(logging.FieldEventType, "jobs_removed"),
		logging.String(logging.FieldJobID, jobID),
		logging.Int("count", len(removed)),
	)
	return removed, nil
}

// Reorder moves a pending job ahead of another pending job.
func (m *Manager) Reorder(jobID, targetID string) error {
	return m.store.Reorder(jobID, targetID)
}
