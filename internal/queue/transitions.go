package queue

import "fmt"

// allowedTransitions is the directed edge set of the job state machine.
// pending→error covers cascading workflow failure; processing→pending covers
// user stops and interruption recovery. error→pending is reserved for the
// explicit Retry operation and is not listed here.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusProcessing: {},
		StatusError:      {},
	},
	StatusProcessing: {
		StatusComplete: {},
		StatusError:    {},
		StatusPending:  {},
	},
}

// ValidateTransition reports whether a status change follows the state
// machine. Same-status writes are always allowed. Workflow containers are
// exempt: their status is derived from children and recomputed wholesale.
func ValidateTransition(jobType JobType, from, to Status) error {
	if from == to {
		return nil
	}
	if jobType == TypeWorkflowContainer {
		return nil
	}
	if next, ok := allowedTransitions[from]; ok {
		if _, ok := next[to]; ok {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s -> %s", from, to)
}
