package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when an operation references an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// Store manages the ordered in-memory job collection. Methods hand out
// copies only; mutation happens exclusively through Add/Update/Remove/
// Reorder/Retry/Restore so every write is validated against the state
// machine and derived from current state.
type Store struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]*Job
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Add appends a job to the queue. Missing id, status, and added timestamp
// are filled in. Masters must be added before their children.
func (s *Store) Add(job Job) (Job, error) {
	if strings.TrimSpace(string(job.Type)) == "" {
		return Job{}, errors.New("job type is required")
	}
	if _, ok := typeSet[job.Type]; !ok {
		return Job{}, fmt.Errorf("unknown job type %q", job.Type)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.AddedAt.IsZero() {
		job.AddedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return Job{}, fmt.Errorf("job %s already exists", job.ID)
	}
	if job.ParentJobID != "" {
		parent, ok := s.jobs[job.ParentJobID]
		if !ok {
			return Job{}, fmt.Errorf("parent job %s: %w", job.ParentJobID, ErrJobNotFound)
		}
		if !parent.IsMaster() {
			return Job{}, fmt.Errorf("parent job %s is not a workflow container", job.ParentJobID)
		}
	}

	stored := job.Clone()
	s.jobs[job.ID] = &stored
	s.order = append(s.order, job.ID)
	return stored.Clone(), nil
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.Clone(), true
}

// Update applies patch to a copy of the stored job, validates the status
// transition, and writes the result back. The patched job is returned.
func (s *Store) Update(id string, patch func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("update job %s: %w", id, ErrJobNotFound)
	}

	next := current.Clone()
	patch(&next)
	next.ID = current.ID
	next.Type = current.Type
	next.AddedAt = current.AddedAt

	if err := ValidateTransition(current.Type, current.Status, next.Status); err != nil {
		return Job{}, fmt.Errorf("update job %s: %w", id, err)
	}

	s.jobs[id] = &next
	return next.Clone(), nil
}

// Retry resets an errored job back to pending. This is the only sanctioned
// error→pending edge; it is user initiated and clears the failure state.
func (s *Store) Retry(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("retry job %s: %w", id, ErrJobNotFound)
	}
	if current.Status != StatusError {
		return Job{}, fmt.Errorf("retry job %s: status is %s, not %s", id, current.Status, StatusError)
	}

	next := current.Clone()
	next.Status = StatusPending
	next.ErrorMessage = ""
	next.OnHold = false
	next.Progress = 0
	next.ProgressMessage = "Retry requested"
	next.StartedAt = nil
	next.CompletedAt = nil
	s.jobs[id] = &next
	return next.Clone(), nil
}

// Remove deletes a job. Removing a workflow container cascades to all of its
// children. The removed jobs are returned.
func (s *Store) Remove(id string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.jobs[id]
	if !ok {
		return nil
	}

	doomed := map[string]struct{}{id: {}}
	if target.IsMaster() {
		for jobID, job := range s.jobs {
			if job.ParentJobID == id {
				doomed[jobID] = struct{}{}
			}
		}
	}

	removed := make([]Job, 0, len(doomed))
	kept := s.order[:0]
	for _, jobID := range s.order {
		if _, gone := doomed[jobID]; gone {
			removed = append(removed, s.jobs[jobID].Clone())
			delete(s.jobs, jobID)
			continue
		}
		kept = append(kept, jobID)
	}
	s.order = kept
	return removed
}

// Reorder moves a pending job so it sits immediately before targetID. Both
// jobs must be pending; processing and terminal jobs keep their positions.
func (s *Store) Reorder(id, targetID string) error {
	if id == targetID {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	moving, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("reorder job %s: %w", id, ErrJobNotFound)
	}
	target, ok := s.jobs[targetID]
	if !ok {
		return fmt.Errorf("reorder target %s: %w", targetID, ErrJobNotFound)
	}
	if moving.Status != StatusPending {
		return fmt.Errorf("reorder job %s: only pending jobs may move", id)
	}
	if target.Status != StatusPending {
		return fmt.Errorf("reorder target %s: only pending jobs may be displaced", targetID)
	}

	without := make([]string, 0, len(s.order))
	for _, jobID := range s.order {
		if jobID != id {
			without = append(without, jobID)
		}
	}
	reordered := make([]string, 0, len(s.order))
	for _, jobID := range without {
		if jobID == targetID {
			reordered = append(reordered, id)
		}
		reordered = append(reordered, jobID)
	}
	s.order = reordered
	return nil
}

// Snapshot returns copies of all jobs in queue order.
func (s *Store) Snapshot() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].Clone())
	}
	return out
}

// List returns jobs matching any of the given statuses, in queue order. With
// no statuses it behaves like Snapshot.
func (s *Store) List(statuses ...Status) []Job {
	if len(statuses) == 0 {
		return s.Snapshot()
	}
	wanted := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, id := range s.order {
		if _, ok := wanted[s.jobs[id].Status]; ok {
			out = append(out, s.jobs[id].Clone())
		}
	}
	return out
}

// NextRunnable returns the first job the scheduler may start, in queue order.
func (s *Store) NextRunnable() (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Standalone {
			continue
		}
		if job.Runnable() {
			return job.Clone(), true
		}
	}
	return Job{}, false
}

// Children returns the child jobs of a workflow container, in queue order.
func (s *Store) Children(masterID string) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, id := range s.order {
		if s.jobs[id].ParentJobID == masterID {
			out = append(out, s.jobs[id].Clone())
		}
	}
	return out
}

// WorkflowJobs returns every job sharing a workflow id, in queue order.
func (s *Store) WorkflowJobs(workflowID string) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, id := range s.order {
		if s.jobs[id].WorkflowID == workflowID {
			out = append(out, s.jobs[id].Clone())
		}
	}
	return out
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[Status]int)
	for _, job := range s.jobs {
		stats[job.Status]++
	}
	return stats
}

// Len returns the number of jobs in the queue.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
