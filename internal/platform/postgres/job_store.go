package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// Ensure PostgresJobStore implements store.JobStore.
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx returns a new JobStore bound to the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db: tx,
	}
}

// CreateJob persists a new job to the database.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, original_filename, uploaded_file_path, file_size,
			status, step, progress, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.OriginalFilename,
		job.UploadedFilePath,
		job.FileSize,
		job.Status,
		job.Step,
		job.Progress,
		job.ErrorMessage,
		job.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create job",
			"job_id", job.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, original_filename, uploaded_file_path, file_size,
			status, step, progress, speaker_count, output_directory,
			error_message, created_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// UpdateJobStatus updates a job's status, step, progress and message.
// The write sets started_at once on the first transition into processing and
// completed_at once on entering a terminal state.
func (s *PostgresJobStore) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	step domain.JobStep,
	progress int,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	errorMsg = domain.TruncateErrorMessage(errorMsg)
	now := time.Now().UTC()

	query := `
		UPDATE jobs
		SET status = $1,
			step = $2,
			progress = $3,
			error_message = $4,
			started_at = CASE WHEN $1 = 'processing' AND started_at IS NULL THEN $5 ELSE started_at END,
			completed_at = CASE WHEN $1 IN ('completed', 'failed') AND completed_at IS NULL THEN $5 ELSE completed_at END
		WHERE id = $6 AND status NOT IN ('completed', 'failed')
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		step,
		progress,
		errorMsg,
		now,
		id,
	)
	if err != nil {
		log.Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		// Zero rows means either the job is gone or the guard refused a
		// write against a terminal row. Tell the two apart for the caller.
		var current string
		row := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id)
		if serr := row.Scan(&current); serr != nil {
			if errors.Is(serr, sql.ErrNoRows) {
				return store.ErrJobNotFound
			}
			return MapError(serr)
		}
		log.Warn("refused status write against terminal job",
			"job_id", id,
			"current_status", current,
			"attempted_status", status)
		return store.ErrJobTerminal
	}

	return nil
}

// UpdateJobResults records the speaker count and output directory produced
// by the finalizing stage.
func (s *PostgresJobStore) UpdateJobResults(ctx context.Context, id uuid.UUID, speakerCount int, outputDirectory string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET speaker_count = $1, output_directory = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, speakerCount, outputDirectory, id)
	if err != nil {
		log.Error("failed to update job results",
			"job_id", id,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrJobNotFound
	}

	return nil
}

// ResetJobForRetry moves a failed job back to pending and clears everything
// a fresh attempt will rewrite. The status guard in the WHERE clause makes
// concurrent retries of the same job safe: only one wins.
func (s *PostgresJobStore) ResetJobForRetry(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = 'pending', step = 'uploaded', progress = 0,
			error_message = '', speaker_count = 0, output_directory = '',
			started_at = NULL, completed_at = NULL
		WHERE id = $1 AND status = 'failed'
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to reset job for retry",
			"job_id", id,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrUpdateFailed
	}

	return nil
}

// ResetJobForRecovery moves an interrupted processing job back to pending.
// Clearing started_at matters: the rerun must start a fresh staleness clock
// or the reaper would fail it for the dead run's age.
func (s *PostgresJobStore) ResetJobForRecovery(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = 'pending', step = 'uploaded', progress = 0,
			error_message = '', started_at = NULL, completed_at = NULL
		WHERE id = $1 AND status = 'processing'
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to reset job for recovery",
			"job_id", id,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrUpdateFailed
	}

	return nil
}

// ListPendingJobs returns pending jobs oldest first so restarts requeue work
// in submission order.
func (s *PostgresJobStore) ListPendingJobs(ctx context.Context) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, original_filename, uploaded_file_path, file_size,
			status, step, progress, speaker_count, output_directory,
			error_message, created_at, started_at, completed_at
		FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query pending jobs", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", "error", err)
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", "error", err)
		return nil, MapError(err)
	}

	return jobs, nil
}

// ListProcessingOlderThan returns processing jobs whose started_at precedes
// the cutoff, oldest first. Jobs that never recorded started_at are skipped.
func (s *PostgresJobStore) ListProcessingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, original_filename, uploaded_file_path, file_size,
			status, step, progress, speaker_count, output_directory,
			error_message, created_at, started_at, completed_at
		FROM jobs
		WHERE status = 'processing' AND started_at IS NOT NULL AND started_at < $1
		ORDER BY started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		log.Error("failed to query stale processing jobs", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", "error", err)
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", "error", err)
		return nil, MapError(err)
	}

	return jobs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob maps one jobs row into a domain.Job.
func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var speakerCount sql.NullInt64
	var outputDirectory, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.OriginalFilename,
		&job.UploadedFilePath,
		&job.FileSize,
		&job.Status,
		&job.Step,
		&job.Progress,
		&speakerCount,
		&outputDirectory,
		&errorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.SpeakerCount = int(speakerCount.Int64)
	job.OutputDirectory = outputDirectory.String
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}
