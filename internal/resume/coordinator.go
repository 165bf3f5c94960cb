package resume

import (
	"log/slog"

	"bookforge/internal/checkpoint"
	"bookforge/internal/logging"
	"bookforge/internal/queue"
)

// Source records which precedence rule produced a decision.
type Source string

const (
	SourceExplicit    Source = "explicit"
	SourceInterrupted Source = "interrupted"
	SourceFresh       Source = "fresh"
)

// Decision is the resume instruction handed to the stage executor.
type Decision struct {
	Resume         bool
	Source         Source
	SessionID      string
	SessionDir     string
	CompletedUnits int
	TotalUnits     int
	RemainingUnits int
}

// CheckpointStore is the subset of the session store the coordinator needs.
type CheckpointStore interface {
	CheckResumable(inputIdentity string) (*checkpoint.Session, error)
	Discard(inputIdentity string) error
	SessionDir(inputIdentity string) string
}

// Coordinator resolves resume precedence for resumable stages.
type Coordinator struct {
	checkpoints CheckpointStore
	logger      *slog.Logger
}

// NewCoordinator constructs a coordinator. A nil logger is replaced with a
// no-op logger.
func NewCoordinator(checkpoints CheckpointStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		checkpoints: checkpoints,
		logger:      logging.NewComponentLogger(logger, "resume-coordinator"),
	}
}

// Decide resolves the resume instruction for a job about to start.
//
// Precedence: explicit resume info attached to the job wins outright, even
// over a newer on-disk checkpoint; an interrupted job auto-resumes when a
// usable checkpoint exists; otherwise the job starts fresh and any stale
// session for the same input identity is discarded first.
func (c *Coordinator) Decide(job queue.Job) (Decision, error) {
	identity := checkpoint.Identity(job.InputRef, job.Config.Voice)

	if job.Resume.IsResumeJob && job.Resume.CompletedUnits > 0 {
		decision := Decision{
			Resume:         true,
			Source:         SourceExplicit,
			SessionID:      job.Resume.SessionID,
			SessionDir:     job.Resume.SessionDir,
			CompletedUnits: job.Resume.CompletedUnits,
			RemainingUnits: job.Resume.MissingUnits,
		}
		if decision.SessionDir == "" {
			decision.SessionDir = c.checkpoints.SessionDir(identity)
		}
		c.logDecision(job, decision)
		return decision, nil
	}

	if job.Resume.WasInterrupted {
		session, err := c.checkpoints.CheckResumable(identity)
		if err != nil {
			return Decision{}, err
		}
		if session != nil && session.CompletedUnits > 0 && !session.Complete {
			decision := Decision{
				Resume:         true,
				Source:         SourceInterrupted,
				SessionID:      session.SessionID,
				SessionDir:     c.checkpoints.SessionDir(identity),
				CompletedUnits: session.CompletedUnits,
				TotalUnits:     session.TotalUnits,
				RemainingUnits: session.TotalUnits - session.CompletedUnits,
			}
			c.logDecision(job, decision)
			return decision, nil
		}
	}

	if err := c.checkpoints.Discard(identity); err != nil {
		c.logger.Warn("discard stale session failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldErrorHint, "check sessions directory permissions"),
		)
	}
	decision := Decision{Resume: false, Source: SourceFresh, SessionDir: c.checkpoints.SessionDir(identity)}
	c.logDecision(job, decision)
	return decision, nil
}

func (c *Coordinator) logDecision(job queue.Job, decision Decision) {
	c.logger.Info("resume decision",
		logging.String(logging.FieldEventType, "resume_decision"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", string(decision.Source)),
		logging.Bool("resume", decision.Resume),
		logging.Int("completed_units", decision.CompletedUnits),
		logging.Int("remaining_units", decision.RemainingUnits),
	)
}
