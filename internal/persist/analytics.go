package persist

import (
	"context"
	"fmt"
	"time"
)

// Run is one finished stage execution recorded for throughput analytics.
type Run struct {
	JobID      string
	JobType    string
	WorkflowID string
	Success    bool
	Units      int
	Characters int
	Duration   time.Duration
	Engine     string
	FinishedAt time.Time
}

// RunSummary aggregates recorded runs per job type.
type RunSummary struct {
	JobType    string
	Total      int
	Succeeded  int
	Units      int
	Characters int
	Duration   time.Duration
}

// RecordRun appends a finished run to the analytics log.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_runs (job_id, job_type, workflow_id, success, units,
             characters, duration_ms, engine, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		run.JobType,
		nullableString(run.WorkflowID),
		boolToInt(run.Success),
		run.Units,
		run.Characters,
		run.Duration.Milliseconds(),
		nullableString(run.Engine),
		run.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, job_type, COALESCE(workflow_id, ''), success, units,
             characters, duration_ms, COALESCE(engine, ''), finished_at
         FROM job_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			success     int
			durationMS  int64
			finishedRaw string
		)
		if err := rows.Scan(&run.JobID, &run.JobType, &run.WorkflowID, &success,
			&run.Units, &run.Characters, &durationMS, &run.Engine, &finishedRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Success = success != 0
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if finished, parseErr := time.Parse(time.RFC3339Nano, finishedRaw); parseErr == nil {
			run.FinishedAt = finished
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Summaries aggregates all recorded runs grouped by job type.
func (s *Store) Summaries(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_type, COUNT(*), SUM(success), SUM(units), SUM(characters), SUM(duration_ms)
         FROM job_runs GROUP BY job_type ORDER BY job_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			summary    RunSummary
			durationMS int64
		)
		if err := rows.Scan(&summary.JobType, &summary.Total, &summary.Succeeded,
			&summary.Units, &summary.Characters, &durationMS); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
