package deepface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// Source implements provider.DescriptorSource using the DeepFace API
type Source struct {
	client *Client
}

func NewSource(config Config) *Source {
	return &Source{
		client: NewClient(config),
	}
}

// Describe returns the descriptor of the single face in image.
func (s *Source) Describe(ctx context.Context, image []byte) (domain.Descriptor, error) {
	resp, err := s.client.Represent(ctx, image)
	if err != nil {
		if isNoFaceError(err) {
			return nil, provider.ErrNoFace
		}
		return nil, fmt.Errorf("represent: %w", err)
	}

	switch len(resp.Results) {
	case 0:
		return nil, provider.ErrNoFace
	case 1:
	default:
		return nil, provider.ErrMultipleFaces
	}

	embedding := resp.Results[0].Embedding
	if len(embedding) != domain.DescriptorLength {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedDimension, len(embedding), domain.DescriptorLength)
	}

	return domain.Descriptor(embedding), nil
}

// DeepFace answers 400 when enforce_detection finds nothing.
func isNoFaceError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(se.Body), "face could not be detected")
}

var _ provider.DescriptorSource = (*Source)(nil)
