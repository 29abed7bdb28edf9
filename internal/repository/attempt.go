package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// AttemptRepository writes the verification audit trail.
type AttemptRepository struct {
	pool PgxPool
}

func NewAttemptRepository(pool PgxPool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Record(ctx context.Context, a *domain.VerificationAttempt) error {
	query := `
		INSERT INTO verification_attempts (id, session_id, subject_id, event_id, status, reason, match, distance, server_accepted, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	sessionID, err := uuid.Parse(a.SessionID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("session id: %w", err))
	}

	var eventID *string
	if a.EventID != "" {
		eventID = &a.EventID
	}

	_, err = r.pool.Exec(ctx, query,
		uuid.New(),
		sessionID,
		a.SubjectID,
		eventID,
		string(a.Status),
		string(a.Reason),
		a.Match,
		a.Distance,
		a.ServerAccepted,
		a.LatencyMs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// one row per session
			return nil
		}
		return fmt.Errorf("record verification attempt: %w", err)
	}

	return nil
}

// PurgeOlderThan deletes attempts created before cutoff.
func (r *AttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM verification_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge verification attempts: %w", err)
	}
	return result.RowsAffected(), nil
}
