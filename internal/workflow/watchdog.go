package workflow

import (
	"context"
	"fmt"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/queue"
	"bookforge/internal/stage"
)

const watchdogInterval = time.Minute

// RunWatchdog fails processing jobs that have reported no progress for the
// configured staleness window. Disabled (returns immediately) when the
// window is zero; synthesis of long chapters can legitimately go minutes
// between unit completions, so the default configuration leaves it off.
func (m *Manager) RunWatchdog(ctx context.Context) {
	if m.cfg.StaleTimeoutMinutes <= 0 {
		return
	}
	window := time.Duration(m.cfg.StaleTimeoutMinutes) * time.Minute
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reclaimStale(ctx, window)
		}
	}
}

func (m *Manager) reclaimStale(ctx context.Context, window time.Duration) {
	now := time.Now()
	for _, job := range m.store.List(queue.StatusProcessing) {
		if job.IsMaster() {
			continue
		}
		last := job.StartedAt
		if job.LastUnitAt != nil && (last == nil || job.LastUnitAt.After(*last)) {
			last = job.LastUnitAt
		}
		if last == nil || now.Sub(*last) < window {
			continue
		}

		m.logger.Warn("stale job reclaimed",
			logging.String(logging.FieldEventType, "job_stale"),
			logging.String(logging.FieldJobID, job.ID),
			logging.Duration("since_last_progress", now.Sub(*last)),
			logging.String(logging.FieldErrorHint, "check the external tool's logs; raise stale_timeout_minutes if the stage is healthy but slow"),
		)

		m.mu.Lock()
		executor, found := m.executorFor(job.Type)
		cancel := m.cancels[job.ID]
		m.mu.Unlock()
		if found {
			_ = executor.Cancel(ctx, job.ID)
		}
		if cancel != nil {
			cancel()
		}
		m.HandleResult(job.ID, stage.Result{
			ErrorMessage: fmt.Sprintf("No progress for %s; presumed stalled", now.Sub(*last).Round(time.Minute)),
		})
	}
}
