// Package reference turns a subject's enrollment image into the descriptor
// live frames are compared against.
package reference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// ErrImageUnavailable means the enrollment image could not be downloaded.
var ErrImageUnavailable = errors.New("enrollment image unavailable")

// Store persists descriptors across restarts.
type Store interface {
	Get(ctx context.Context, subjectID, imageURL string) (*domain.ReferenceDescriptor, error)
	Upsert(ctx context.Context, ref *domain.ReferenceDescriptor) error
}

type Config struct {
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	MaxImageBytes int64
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:      30 * time.Minute,
		FetchTimeout:  10 * time.Second,
		MaxImageBytes: 10 << 20,
	}
}

// Resolver looks descriptors up in memory, then in the store, and only then
// downloads the image and extracts one.
type Resolver struct {
	source     provider.DescriptorSource
	store      Store
	cache      *cache.Cache
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewResolver creates a resolver. store may be nil.
func NewResolver(source provider.DescriptorSource, store Store, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultConfig().MaxImageBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		source:     source,
		store:      store,
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:        cfg,
		logger:     logger,
	}
}

func cacheKey(subjectID, imageURL string) string {
	return subjectID + "|" + imageURL
}

// Resolve returns a copy of the subject's reference descriptor. The caller
// owns the returned slice.
func (r *Resolver) Resolve(ctx context.Context, subject domain.Subject) (domain.Descriptor, error) {
	if subject.EnrollmentImageURL == "" {
		return nil, domain.ErrNoEnrollmentImage
	}

	key := cacheKey(subject.ID, subject.EnrollmentImageURL)
	if v, found := r.cache.Get(key); found {
		return v.(domain.Descriptor).Clone(), nil
	}

	if r.store != nil {
		ref, err := r.store.Get(ctx, subject.ID, subject.EnrollmentImageURL)
		switch {
		case err == nil && ref.Descriptor.WellFormed():
			r.cache.Set(key, ref.Descriptor.Clone(), cache.DefaultExpiration)
			return ref.Descriptor.Clone(), nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			r.logger.Warn("reference store lookup failed", "subject_id", subject.ID, "error", err)
		}
	}

	image, err := r.fetch(ctx, subject.EnrollmentImageURL)
	if err != nil {
		return nil, err
	}

	desc, err := r.source.Describe(ctx, image)
	if err != nil {
		if errors.Is(err, provider.ErrNoFace) || errors.Is(err, provider.ErrMultipleFaces) {
			return nil, domain.ErrReferenceFaceNotFound.WithError(err)
		}
		return nil, fmt.Errorf("describe enrollment image: %w", err)
	}
	if !desc.WellFormed() {
		return nil, domain.ErrReferenceFaceNotFound
	}

	r.cache.Set(key, desc.Clone(), cache.DefaultExpiration)

	if r.store != nil {
		ref := &domain.ReferenceDescriptor{
			SubjectID:  subject.ID,
			ImageURL:   subject.EnrollmentImageURL,
			Descriptor: desc.Clone(),
		}
		if err := r.store.Upsert(ctx, ref); err != nil {
			r.logger.Warn("failed to persist reference descriptor", "subject_id", subject.ID, "error", err)
		}
	}

	r.logger.Debug("reference descriptor extracted", "subject_id", subject.ID)
	return desc.Clone(), nil
}

// Invalidate drops the cached descriptor for a subject and image.
func (r *Resolver) Invalidate(subjectID, imageURL string) {
	r.cache.Delete(cacheKey(subjectID, imageURL))
}

// fetch downloads the image. data: URLs are decoded in place.
func (r *Resolver) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if strings.HasPrefix(imageURL, "data:") {
		idx := strings.Index(imageURL, ",")
		if idx < 0 || !strings.Contains(imageURL[:idx], ";base64") {
			return nil, fmt.Errorf("%w: unsupported data url", ErrImageUnavailable)
		}
		data, err := base64.StdEncoding.DecodeString(imageURL[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrImageUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	if int64(len(data)) > r.cfg.MaxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrImageUnavailable, r.cfg.MaxImageBytes)
	}

	return data, nil
}
