package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// PostgresTrackStore implements the store.TrackStore interface using PostgreSQL.
type PostgresTrackStore struct {
	db store.DBTX
}

// NewPostgresTrackStore creates a new PostgresTrackStore.
func NewPostgresTrackStore(db store.DBTX) *PostgresTrackStore {
	return &PostgresTrackStore{
		db: db,
	}
}

// Ensure PostgresTrackStore implements store.TrackStore.
var _ store.TrackStore = (*PostgresTrackStore)(nil)

// WithTx returns a new TrackStore bound to the provided transaction.
func (s *PostgresTrackStore) WithTx(tx *sql.Tx) store.TrackStore {
	return &PostgresTrackStore{
		db: tx,
	}
}

// CreateTracks writes all tracks of one job in a single batch. The caller is
// expected to wrap this in a transaction (store.RunInTransaction) so the
// batch is atomic.
func (s *PostgresTrackStore) CreateTracks(ctx context.Context, tracks []*domain.SpeakerTrack) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO speaker_tracks (job_id, speaker_id, label, file_path,
			duration_seconds, word_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, track := range tracks {
		if err := track.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err := s.db.ExecContext(ctx, query,
			track.JobID,
			track.SpeakerID,
			track.Label,
			track.FilePath,
			track.DurationSeconds,
			track.WordCount,
		)
		if err != nil {
			log.Error("failed to insert speaker track",
				"job_id", track.JobID,
				"speaker_id", track.SpeakerID,
				"error", err)
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: %v", store.ErrTrackExists, err)
			}
			return MapError(err)
		}
	}

	return nil
}

// GetTracks returns all tracks for a job ordered by speaker ID.
func (s *PostgresTrackStore) GetTracks(ctx context.Context, jobID uuid.UUID) ([]*domain.SpeakerTrack, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT job_id, speaker_id, label, file_path, duration_seconds, word_count
		FROM speaker_tracks
		WHERE job_id = $1
		ORDER BY speaker_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		log.Error("failed to query speaker tracks",
			"job_id", jobID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tracks []*domain.SpeakerTrack
	for rows.Next() {
		var track domain.SpeakerTrack
		if err := rows.Scan(
			&track.JobID,
			&track.SpeakerID,
			&track.Label,
			&track.FilePath,
			&track.DurationSeconds,
			&track.WordCount,
		); err != nil {
			log.Error("failed to scan track row", "job_id", jobID, "error", err)
			return nil, MapError(err)
		}
		tracks = append(tracks, &track)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating track rows", "job_id", jobID, "error", err)
		return nil, MapError(err)
	}

	return tracks, nil
}

// GetTrack retrieves one track by its (job, speaker) pair.
func (s *PostgresTrackStore) GetTrack(ctx context.Context, jobID uuid.UUID, speakerID string) (*domain.SpeakerTrack, error) {
	query := `
		SELECT job_id, speaker_id, label, file_path, duration_seconds, word_count
		FROM speaker_tracks
		WHERE job_id = $1 AND speaker_id = $2
	`

	var track domain.SpeakerTrack
	err := s.db.QueryRowContext(ctx, query, jobID, speakerID).Scan(
		&track.JobID,
		&track.SpeakerID,
		&track.Label,
		&track.FilePath,
		&track.DurationSeconds,
		&track.WordCount,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTrackNotFound
		}
		return nil, MapError(err)
	}

	return &track, nil
}

// UpdateTrackLabel sets the user-editable display label of a track.
func (s *PostgresTrackStore) UpdateTrackLabel(ctx context.Context, jobID uuid.UUID, speakerID, label string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE speaker_tracks
		SET label = $1
		WHERE job_id = $2 AND speaker_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, label, jobID, speakerID)
	if err != nil {
		log.Error("failed to update track label",
			"job_id", jobID,
			"speaker_id", speakerID,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "track"); err != nil {
		return store.ErrTrackNotFound
	}

	return nil
}
