package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// ReferenceRepository stores enrollment descriptors keyed by subject and
// image URL, so a changed enrollment image never matches an old row.
type ReferenceRepository struct {
	pool PgxPool
}

func NewReferenceRepository(pool PgxPool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// Get returns the stored descriptor and marks it as used.
func (r *ReferenceRepository) Get(ctx context.Context, subjectID, imageURL string) (*domain.ReferenceDescriptor, error) {
	query := `
		UPDATE reference_descriptors
		SET last_used_at = NOW()
		WHERE subject_id = $1 AND image_url = $2
		RETURNING descriptor, created_at, last_used_at
	`

	ref := domain.ReferenceDescriptor{
		SubjectID: subjectID,
		ImageURL:  imageURL,
	}
	var vec *pgvector.Vector

	err := r.pool.QueryRow(ctx, query, subjectID, imageURL).Scan(&vec, &ref.CreatedAt, &ref.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reference descriptor: %w", err)
	}

	if vec != nil {
		ref.Descriptor = fromVector(*vec)
	}
	if !ref.Descriptor.WellFormed() {
		return nil, domain.ErrNotFound
	}

	return &ref, nil
}

// Upsert stores ref and drops rows the subject had for other image URLs.
func (r *ReferenceRepository) Upsert(ctx context.Context, ref *domain.ReferenceDescriptor) error {
	if !ref.Descriptor.WellFormed() {
		return domain.ErrValidationFailed.WithMessage("descriptor must have 128 elements")
	}

	query := `
		INSERT INTO reference_descriptors (subject_id, image_url, descriptor, created_at, last_used_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (subject_id, image_url)
		DO UPDATE SET descriptor = EXCLUDED.descriptor, last_used_at = NOW()
		RETURNING created_at, last_used_at
	`

	err := r.pool.QueryRow(ctx, query,
		ref.SubjectID,
		ref.ImageURL,
		toVector(ref.Descriptor),
	).Scan(&ref.CreatedAt, &ref.LastUsedAt)
	if err != nil {
		return fmt.Errorf("upsert reference descriptor: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		DELETE FROM reference_descriptors
		WHERE subject_id = $1 AND image_url <> $2
	`, ref.SubjectID, ref.ImageURL)
	if err != nil {
		return fmt.Errorf("drop superseded reference descriptors: %w", err)
	}

	return nil
}

// PurgeUnusedSince deletes descriptors not read since cutoff.
func (r *ReferenceRepository) PurgeUnusedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM reference_descriptors WHERE last_used_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge reference descriptors: %w", err)
	}
	return result.RowsAffected(), nil
}

func toVector(d domain.Descriptor) pgvector.Vector {
	floats := make([]float32, len(d))
	for i, v := range d {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

func fromVector(v pgvector.Vector) domain.Descriptor {
	s := v.Slice()
	if s == nil {
		return nil
	}
	out := make(domain.Descriptor, len(s))
	for i, f := range s {
		out[i] = float64(f)
	}
	return out
}
