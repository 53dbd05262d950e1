package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrImportJobNotFound = errors.New("import job not found")

// ImportJob tracks one batch import for idempotency and audit. Finished jobs
// carry a TTL and are hard-deleted once it elapses.
type ImportJob struct {
	ID              uuid.UUID
	IdempotencyKey  string
	Status          string
	TotalRecords    int
	ImportedRecords int
	FailedRecords   int
	CreatedBy       string
	CreatedAt       time.Time
	CompletedAt     *time.Time
	TTLExpiresAt    *time.Time
}

const (
	ImportJobStatusRunning   = "RUNNING"
	ImportJobStatusCompleted = "COMPLETED"
	ImportJobStatusFailed    = "FAILED"
)

type CreateImportJobParams struct {
	IdempotencyKey string
	TotalRecords   int
	CreatedBy      string
	CreatedAt      time.Time
}

func (r *Repository) CreateImportJob(ctx context.Context, params CreateImportJobParams) (ImportJob, error) {
	var job ImportJob
	err := r.pool.QueryRow(ctx, `
		INSERT INTO import_jobs (idempotency_key, status, total_records, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, idempotency_key, status, total_records, imported_records, failed_records,
			created_by, created_at, completed_at, ttl_expires_at
	`, params.IdempotencyKey, ImportJobStatusRunning, params.TotalRecords, params.CreatedBy, params.CreatedAt).Scan(
		&job.ID, &job.IdempotencyKey, &job.Status, &job.TotalRecords, &job.ImportedRecords, &job.FailedRecords,
		&job.CreatedBy, &job.CreatedAt, &job.CompletedAt, &job.TTLExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetImportJobByKey(ctx, params.IdempotencyKey)
	}
	if err != nil {
		return ImportJob{}, err
	}
	return job, nil
}

func (r *Repository) GetImportJobByKey(ctx context.Context, idempotencyKey string) (ImportJob, error) {
	var job ImportJob
	err := r.pool.QueryRow(ctx, `
		SELECT id, idempotency_key, status, total_records, imported_records, failed_records,
			created_by, created_at, completed_at, ttl_expires_at
		FROM import_jobs WHERE idempotency_key = $1
	`, idempotencyKey).Scan(
		&job.ID, &job.IdempotencyKey, &job.Status, &job.TotalRecords, &job.ImportedRecords, &job.FailedRecords,
		&job.CreatedBy, &job.CreatedAt, &job.CompletedAt, &job.TTLExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportJob{}, ErrImportJobNotFound
	}
	if err != nil {
		return ImportJob{}, err
	}
	return job, nil
}

// CompleteImportJob closes the job and arms its retention TTL.
func (r *Repository) CompleteImportJob(ctx context.Context, id uuid.UUID, status string, imported, failed int, now time.Time, retentionDays int) (bool, error) {
	ttl := now.AddDate(0, 0, retentionDays)
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, imported_records = $3, failed_records = $4,
			completed_at = $5, ttl_expires_at = $6
		WHERE id = $1 AND completed_at IS NULL
	`, id, status, imported, failed, now, ttl)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredImportJobs hard-deletes finished jobs whose TTL elapsed,
// oldest first, bounded by the batch size. Returns the number deleted.
func (r *Repository) DeleteExpiredImportJobs(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM import_jobs
		WHERE id IN (
			SELECT id FROM import_jobs
			WHERE ttl_expires_at IS NOT NULL AND ttl_expires_at < $1
			ORDER BY ttl_expires_at ASC
			LIMIT $2
		)
	`, now, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
