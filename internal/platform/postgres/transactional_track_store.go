package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
	"voxsplit/internal/store"
)

// TransactionalTrackStore wraps a PostgresTrackStore so that multi-row
// writes run inside their own transaction. Reads and single-row updates
// delegate to the inner store unchanged.
type TransactionalTrackStore struct {
	db    *sql.DB
	inner *PostgresTrackStore
}

// NewTransactionalTrackStore creates a TransactionalTrackStore over db.
func NewTransactionalTrackStore(db *sql.DB) *TransactionalTrackStore {
	return &TransactionalTrackStore{
		db:    db,
		inner: NewPostgresTrackStore(db),
	}
}

// Ensure TransactionalTrackStore implements store.TrackStore.
var _ store.TrackStore = (*TransactionalTrackStore)(nil)

// CreateTracks inserts all tracks of one job atomically: either every track
// row lands or none do.
func (s *TransactionalTrackStore) CreateTracks(ctx context.Context, tracks []*domain.SpeakerTrack) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.inner.WithTx(tx).CreateTracks(ctx, tracks)
	})
}

// GetTracks returns all tracks for a job ordered by speaker ID.
func (s *TransactionalTrackStore) GetTracks(ctx context.Context, jobID uuid.UUID) ([]*domain.SpeakerTrack, error) {
	return s.inner.GetTracks(ctx, jobID)
}

// GetTrack retrieves one track by its (job, speaker) pair.
func (s *TransactionalTrackStore) GetTrack(ctx context.Context, jobID uuid.UUID, speakerID string) (*domain.SpeakerTrack, error) {
	return s.inner.GetTrack(ctx, jobID, speakerID)
}

// UpdateTrackLabel sets the user-editable display label of a track.
func (s *TransactionalTrackStore) UpdateTrackLabel(ctx context.Context, jobID uuid.UUID, speakerID, label string) error {
	return s.inner.UpdateTrackLabel(ctx, jobID, speakerID, label)
}

// WithTx returns the inner store bound to the provided transaction; the
// caller now owns atomicity.
func (s *TransactionalTrackStore) WithTx(tx *sql.Tx) store.TrackStore {
	return s.inner.WithTx(tx)
}
