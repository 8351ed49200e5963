package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// JobRun is an observability record for one ingestion job execution. Not
// required for correctness; job state is not durable between runs.
type JobRun struct {
	JobName         string    `json:"jobName"`
	Status          string    `json:"status"` // running, success, failed
	StartedAt       time.Time `json:"startedAt"`
	CompletedAt     time.Time `json:"completedAt"`
	CitiesProcessed int       `json:"citiesProcessed"`
	RecordsWritten  int       `json:"recordsWritten"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

// RecordJobRun appends a job_history row.
func (s *Store) RecordJobRun(ctx context.Context, run JobRun) error {
	duration := run.CompletedAt.Sub(run.StartedAt).Seconds()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_history
			(job_name, status, started_at, completed_at, duration_seconds,
			 cities_processed, records_written, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobName, run.Status,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
		duration, run.CitiesProcessed, run.RecordsWritten, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("recording job run %s: %w", run.JobName, err)
	}
	return nil
}

// Stats summarizes store contents for the metrics endpoint.
type Stats struct {
	TotalRecords   int            `json:"totalRecords"`
	UniqueCities   int            `json:"uniqueCities"`
	EarliestRecord string         `json:"earliestRecord,omitempty"`
	LatestRecord   string         `json:"latestRecord,omitempty"`
	BySource       map[string]int `json:"bySource"`
}

// Stats returns record counts, the covered date range, and per-source counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{BySource: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&stats.TotalRecords); err != nil {
		return Stats{}, fmt.Errorf("counting records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT city_key) FROM observations").Scan(&stats.UniqueCities); err != nil {
		return Stats{}, fmt.Errorf("counting cities: %w", err)
	}

	var earliest, latest sql.NullString
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(timestamp), MAX(timestamp) FROM observations").Scan(&earliest, &latest); err != nil {
		return Stats{}, fmt.Errorf("querying date range: %w", err)
	}
	stats.EarliestRecord = earliest.String
	stats.LatestRecord = latest.String

	rows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM observations GROUP BY source")
	if err != nil {
		return Stats{}, fmt.Errorf("querying source counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return Stats{}, err
		}
		stats.BySource[source] = count
	}

	return stats, rows.Err()
}
