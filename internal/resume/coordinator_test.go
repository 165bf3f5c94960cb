package resume

import (
	"testing"

	"bookforge/internal/checkpoint"
	"bookforge/internal/queue"
)

func newCoordinator(t *testing.T) (*Coordinator, *checkpoint.Store) {
	t.Helper()
	sessions := checkpoint.NewStore(t.TempDir())
	return NewCoordinator(sessions, nil), sessions
}

func synthesisJob(resume queue.ResumeState) queue.Job {
	return queue.Job{
		ID:       "j1",
		Type:     queue.TypeSynthesis,
		InputRef: "/books/dune.txt",
		Config:   queue.Config{Voice: "narrator"},
		Resume:   resume,
	}
}

func TestExplicitResumeWins(t *testing.T) {
	coordinator, sessions := newCoordinator(t)

	// An explicit instruction beats a newer on-disk checkpoint.
	identity := checkpoint.Identity("/books/dune.txt", "narrator")
	if err := sessions.Save(checkpoint.Session{
		InputIdentity:  identity,
		SessionID:      "disk-session",
		CompletedUnits: 400,
		TotalUnits:     500,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	decision, err := coordinator.Decide(synthesisJob(queue.ResumeState{
		IsResumeJob:    true,
		SessionID:      "explicit-session",
		CompletedUnits: 120,
		MissingUnits:   380,
	}))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Resume || decision.Source != SourceExplicit {
		t.Fatalf("decision = %+v, want explicit resume", decision)
	}
	if decision.SessionID != "explicit-session" {
		t.Errorf("session = %s, want the explicit one", decision.SessionID)
	}
	if decision.CompletedUnits != 120 || decision.RemainingUnits != 380 {
		t.Errorf("units = %d remaining %d, want 120/380", decision.CompletedUnits, decision.RemainingUnits)
	}
}

func TestInterruptedJobResumesFromCheckpoint(t *testing.T) {
	coordinator, sessions := newCoordinator(t)

	identity := checkpoint.Identity("/books/dune.txt", "narrator")
	if err := sessions.Save(checkpoint.Session{
		InputIdentity:  identity,
		SessionID:      "s1",
		CompletedUnits: 120,
		TotalUnits:     500,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	decision, err := coordinator.Decide(synthesisJob(queue.ResumeState{WasInterrupted: true}))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Resume || decision.Source != SourceInterrupted {
		t.Fatalf("decision = %+v, want interrupted resume", decision)
	}
	if decision.RemainingUnits != 380 {
		t.Errorf("remaining = %d, want 380", decision.RemainingUnits)
	}
}

func TestCompleteCheckpointStartsFresh(t *testing.T) {
	coordinator, sessions := newCoordinator(t)

	identity := checkpoint.Identity("/books/dune.txt", "narrator")
	if err := sessions.Save(checkpoint.Session{
		InputIdentity:  identity,
		SessionID:      "s1",
		CompletedUnits: 500,
		TotalUnits:     500,
		Complete:       true,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	decision, err := coordinator.Decide(synthesisJob(queue.ResumeState{WasInterrupted: true}))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Resume || decision.Source != SourceFresh {
		t.Fatalf("decision = %+v, want fresh start", decision)
	}
	// The finished session must have been discarded.
	session, err := sessions.CheckResumable(identity)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if session != nil {
		t.Error("complete session should be discarded on fresh start")
	}
}

func TestFreshStartWithoutCheckpoint(t *testing.T) {
	coordinator, _ := newCoordinator(t)
	decision, err := coordinator.Decide(synthesisJob(queue.ResumeState{}))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Resume || decision.Source != SourceFresh {
		t.Fatalf("decision = %+v, want fresh", decision)
	}
	if decision.SessionDir == "" {
		t.Error("fresh decision should still name the session directory")
	}
}
