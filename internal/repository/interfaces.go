package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use. pgxmock
// pools satisfy it too.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReferenceRepositoryInterface defines operations for stored enrollment descriptors
type ReferenceRepositoryInterface interface {
	Get(ctx context.Context, subjectID, imageURL string) (*domain.ReferenceDescriptor, error)
	Upsert(ctx context.Context, ref *domain.ReferenceDescriptor) error
	PurgeUnusedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptRepositoryInterface defines operations for the verification audit trail
type AttemptRepositoryInterface interface {
	Record(ctx context.Context, attempt *domain.VerificationAttempt) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
