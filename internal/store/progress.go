package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"property-pipeline/internal/model"
)

// ErrJobNotFound is returned when an import job id is unknown.
var ErrJobNotFound = errors.New("import job not found")

// CreateJob inserts a new import job cursor starting at offset zero.
func (s *Store) CreateJob(batchSize, totalItems int) (*model.ImportJob, error) {
	job := &model.ImportJob{
		ID:            uuid.New().String(),
		BatchSize:     batchSize,
		CurrentOffset: 0,
		TotalItems:    totalItems,
		Status:        model.StatusInProgress,
		StartedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO import_progress (id, batch_size, current_offset, total_items, status, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.BatchSize, job.CurrentOffset, job.TotalItems, job.Status, job.StartedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}
	return job, nil
}

// GetJob loads a job cursor by id.
func (s *Store) GetJob(id string) (*model.ImportJob, error) {
	row := s.db.QueryRow(
		`SELECT id, batch_size, current_offset, total_items, status, error, started_at, updated_at
		 FROM import_progress WHERE id = ?`, id,
	)

	var job model.ImportJob
	var errPayload sql.NullString
	err := row.Scan(&job.ID, &job.BatchSize, &job.CurrentOffset, &job.TotalItems,
		&job.Status, &errPayload, &job.StartedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import job: %w", err)
	}
	if errPayload.Valid {
		job.Error = &errPayload.String
	}
	return &job, nil
}

// UpdateProgress advances the cursor with a compare-and-set on the current
// offset. It reports whether this caller won the update; a false return with
// nil error means another worker already advanced past fromOffset.
func (s *Store) UpdateProgress(id string, fromOffset, toOffset int, status string, errPayload *string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE import_progress
		 SET current_offset = ?, status = ?, error = ?, updated_at = ?
		 WHERE id = ? AND current_offset = ?`,
		toOffset, status, errPayload, time.Now().UTC(), id, fromOffset,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update import progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// FailJob marks a job failed with a reason, regardless of its offset.
func (s *Store) FailJob(id, reason string) error {
	_, err := s.db.Exec(
		`UPDATE import_progress SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		model.StatusFailed, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import job failed: %w", err)
	}
	return nil
}

// ListJobs returns all import jobs, newest first.
func (s *Store) ListJobs() ([]*model.ImportJob, error) {
	rows, err := s.db.Query(
		`SELECT id, batch_size, current_offset, total_items, status, error, started_at, updated_at
		 FROM import_progress ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.ImportJob
	for rows.Next() {
		var job model.ImportJob
		var errPayload sql.NullString
		if err := rows.Scan(&job.ID, &job.BatchSize, &job.CurrentOffset, &job.TotalItems,
			&job.Status, &errPayload, &job.StartedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		if errPayload.Valid {
			job.Error = &errPayload.String
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
