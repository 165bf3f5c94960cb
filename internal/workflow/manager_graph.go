package workflow

import (
	"context"
	"math"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/queue"
	"bookforge/internal/stage"
)

// bindDownstream resolves placeholder children waiting on a completed job's
// output. Matching by awaited upstream id is the primary path; matching by
// role covers placeholders created without one; materializing a brand-new
// assembly job is a compatibility path for hand-built workflows that queued
// synthesis without its downstream.
func (m *Manager) bindDownstream(job queue.Job, result stage.Result) {
	if job.WorkflowID == "" || result.OutputPath == "" {
		return
	}

	siblings := m.store.WorkflowJobs(job.WorkflowID)
	bound := 0
	for _, sibling := range siblings {
		if sibling.Placeholder == nil || sibling.Status != queue.StatusPending {
			continue
		}
		if sibling.Placeholder.AwaitedUpstream != job.ID {
			continue
		}
		if m.bindPlaceholder(sibling.ID, result.OutputPath) {
			bound++
		}
	}
	if bound > 0 {
		return
	}

	for _, role := range producedRoles(job.Type) {
		for _, sibling := range siblings {
			if sibling.Placeholder == nil || sibling.Status != queue.StatusPending {
				continue
			}
			if sibling.Placeholder.AwaitedUpstream != "" || sibling.Placeholder.Role != role {
				continue
			}
			if m.bindPlaceholder(sibling.ID, result.OutputPath) {
				return
			}
		}
	}

	if job.Type == queue.TypeSynthesis {
		m.materializeAssembly(job, result.OutputPath, siblings)
	}
}

// bindPlaceholder clears a placeholder marker and fills the resolved input.
// The update is atomic with respect to the scheduler: the job is never
// observable as bound-but-unfilled.
func (m *Manager) bindPlaceholder(jobID, inputRef string) bool {
	updated, err := m.store.Update(jobID, func(j *queue.Job) {
		if j.Placeholder == nil || j.Status != queue.StatusPending {
			return
		}
		j.InputRef = inputRef
		j.Placeholder = nil
	})
	if err != nil {
		m.logger.Warn("bind placeholder", logging.Error(err), logging.String(logging.FieldJobID, jobID))
		return false
	}
	if updated.Placeholder != nil {
		return false
	}
	m.logger.Info("placeholder bound",
		logging.String(logging.FieldEventType, "placeholder_bound"),
		logging.String(logging.FieldJobID, jobID),
		logging.String("input", inputRef),
	)
	return true
}

// materializeAssembly creates a concrete assembly job when a synthesis job
// finished inside a workflow that has none queued.
func (m *Manager) materializeAssembly(job queue.Job, outputDir string, siblings []queue.Job) {
	for _, sibling := range siblings {
		if sibling.Type == queue.TypeAudioAssembly {
			return
		}
	}
	if job.ParentJobID == "" {
		return
	}
	created, err := m.store.Add(queue.Job{
		Type:        queue.TypeAudioAssembly,
		Status:      queue.StatusPending,
		Title:       job.Title,
		WorkflowID:  job.WorkflowID,
		ParentJobID: job.ParentJobID,
		InputRef:    outputDir,
		Config:      queue.Config{OutputDir: job.Config.OutputDir},
	})
	if err != nil {
		m.logger.Warn("materialize assembly job", logging.Error(err))
		return
	}
	m.logger.Info("assembly job materialized",
		logging.String(logging.FieldEventType, "job_materialized"),
		logging.String(logging.FieldJobID, created.ID),
		logging.String(logging.FieldWorkflowID, job.WorkflowID),
	)
}

func producedRoles(jobType queue.JobType) []string {
	switch jobType {
	case queue.TypeCleanup:
		return []string{queue.RoleTranslationSource, queue.RoleSynthesisSource}
	case queue.TypeTranslation:
		return []string{queue.RoleSynthesisSource}
	case queue.TypeSynthesis, queue.TypeAudioAssembly, queue.TypeEnhancement:
		return []string{queue.RoleAssemblySource}
	default:
		return nil
	}
}

// refreshMaster recomputes the master owning a child id, used by the
// progress path.
func (m *Manager) refreshMaster(childID string) {
	child, ok := m.store.Get(childID)
	if !ok {
		return
	}
	m.recomputeMaster(child)
}

// recomputeMaster rederives a workflow container's status and progress from
// its children. Containers never execute, so their status is pure
// projection: any errored child marks the workflow failed, all children
// complete marks it complete.
func (m *Manager) recomputeMaster(job queue.Job) {
	if job.ParentJobID == "" {
		return
	}
	children := m.store.Children(job.ParentJobID)
	if len(children) == 0 {
		return
	}

	var (
		errored   int
		completed int
		active    int
	)
	for _, child := range children {
		switch child.Status {
		case queue.StatusError:
			errored++
		case queue.StatusComplete:
			completed++
		case queue.StatusProcessing:
			active++
		}
	}

	status := queue.StatusPending
	switch {
	case errored > 0:
		status = queue.StatusError
	case completed == len(children):
		status = queue.StatusComplete
	case active > 0 || completed > 0:
		status = queue.StatusProcessing
	}
	// Master progress counts finished stages, not the blend of child
	// percentages: three children with two done reads 67.
	progressPercent := math.Round(float64(completed) / float64(len(children)) * 100)

	transitioned := false
	master, err := m.store.Update(job.ParentJobID, func(j *queue.Job) {
		j.SetProgress(progressPercent, "")
		if j.Status == status {
			return
		}
		transitioned = true
		j.Status = status
		switch status {
		case queue.StatusComplete:
			now := time.Now().UTC()
			j.CompletedAt = &now
			j.SetProgress(100, "Complete")
		case queue.StatusError:
			if j.ErrorMessage == "" {
				j.ErrorMessage = "One or more workflow steps failed"
			}
		}
	})
	if err != nil {
		m.logger.Warn("recompute master", logging.Error(err), logging.String(logging.FieldJobID, job.ParentJobID))
		return
	}
	if transitioned && status.IsTerminal() {
		m.notifyWorkflow(master, children)
	}
}

// notifyWorkflow pushes the workflow outcome. Runs on its own goroutine so a
// slow notification endpoint never stalls completion handling.
func (m *Manager) notifyWorkflow(master queue.Job, children []queue.Job) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		if master.Status == queue.StatusComplete {
			output := ""
			for _, child := range children {
				if child.Type == queue.TypeAudioAssembly && child.OutputPath != "" {
					output = child.OutputPath
				}
			}
			err = m.notifier.WorkflowCompleted(ctx, master.Title, output)
		} else {
			err = m.notifier.WorkflowFailed(ctx, master.Title, master.ErrorMessage)
		}
		if err != nil {
			m.logger.Warn("workflow notification failed",
				logging.Error(err),
				logging.String(logging.FieldJobID, master.ID),
			)
		}
	}()
}
