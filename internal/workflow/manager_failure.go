package workflow

import (
	"bookforge/internal/logging"
	"bookforge/internal/queue"
)

// cascadeFailure errors every still-pending sibling in the failed job's
// workflow, placeholders included. Jobs in other workflows and jobs already
// processing are untouched; a processing sibling finishes on its own and
// reports through the completion handler like any other.
func (m *Manager) cascadeFailure(failed queue.Job) {
	if failed.WorkflowID == "" {
		return
	}
	siblings := m.store.WorkflowJobs(failed.WorkflowID)
	skipped := 0
	for _, sibling := range siblings {
		if sibling.ID == failed.ID || sibling.IsMaster() {
			continue
		}
		if sibling.Status != queue.StatusPending {
			continue
		}
		_, err := m.store.Update(sibling.ID, func(j *queue.Job) {
			if j.Status != queue.StatusPending {
				return
			}
			j.SetFailed(queue.SkipReason)
			j.Placeholder = nil
		})
		if err != nil {
			m.logger.Warn("cascade sibling failure",
				logging.Error(err),
				logging.String(logging.FieldJobID, sibling.ID),
			)
			continue
		}
		skipped++
	}
	if skipped > 0 {
		m.logger.Info("workflow siblings skipped",
			logging.String(logging.FieldEventType, "workflow_cascade"),
			logging.String(logging.FieldWorkflowID, failed.WorkflowID),
			logging.String(logging.FieldJobID, failed.ID),
			logging.Int("skipped", skipped),
		)
	}
}
