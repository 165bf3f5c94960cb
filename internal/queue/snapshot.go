package queue

import "time"

// InterruptedMessage is the progress message set on jobs demoted from
// processing during snapshot restore.
const InterruptedMessage = "Interrupted by restart"

// Restore replaces the store contents with a persisted snapshot. Any job
// found processing is demoted to pending with WasInterrupted set so the
// resume coordinator can distinguish it from a fresh start; it is never
// silently resumed. Returns the number of demoted jobs.
func (s *Store) Restore(jobs []Job) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.jobs = make(map[string]*Job, len(jobs))

	demoted := 0
	for _, job := range jobs {
		restored := job.Clone()
		if restored.Status == StatusProcessing && !restored.IsMaster() {
			restored.Status = StatusPending
			restored.Resume.WasInterrupted = true
			restored.ProgressMessage = InterruptedMessage
			restored.StartedAt = nil
			demoted++
		}
		if restored.AddedAt.IsZero() {
			restored.AddedAt = time.Now().UTC()
		}
		s.jobs[restored.ID] = &restored
		s.order = append(s.order, restored.ID)
	}
	s.rederiveMasters()
	return demoted
}

// rederiveMasters recomputes processing masters from their restored children.
// A master's status is pure projection, and the snapshot's value goes stale
// the moment children are demoted: terminal outcomes are restored directly,
// anything else drops to pending until the next child event re-promotes it.
func (s *Store) rederiveMasters() {
	for _, master := range s.jobs {
		if !master.IsMaster() || master.Status != StatusProcessing {
			continue
		}
		total, completed, errored := 0, 0, 0
		for _, job := range s.jobs {
			if job.ParentJobID != master.ID {
				continue
			}
			total++
			switch job.Status {
			case StatusComplete:
				completed++
			case StatusError:
				errored++
			}
		}
		switch {
		case errored > 0:
			master.Status = StatusError
		case total > 0 && completed == total:
			master.Status = StatusComplete
			master.Progress = 100
		default:
			master.Status = StatusPending
			master.StartedAt = nil
		}
	}
}
