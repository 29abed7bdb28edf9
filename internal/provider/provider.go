package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

var (
	// ErrNoFace means the image holds no usable face.
	ErrNoFace = errors.New("no face detected in image")

	// ErrMultipleFaces means more than one face was found where exactly one is required.
	ErrMultipleFaces = errors.New("multiple faces detected in image")
)

// DescriptorSource extrai o descritor facial de uma imagem.
// Implementations return ErrNoFace or ErrMultipleFaces when the image does
// not contain exactly one face.
type DescriptorSource interface {
	Describe(ctx context.Context, image []byte) (domain.Descriptor, error)
}

// FaceCounter reports how many faces an image contains.
type FaceCounter interface {
	CountFaces(ctx context.Context, image []byte) (int, error)
}

// Gated only asks the source for a descriptor once the counter confirms a
// single face in the image.
type Gated struct {
	counter FaceCounter
	source  DescriptorSource
}

func NewGated(counter FaceCounter, source DescriptorSource) *Gated {
	return &Gated{counter: counter, source: source}
}

func (g *Gated) Describe(ctx context.Context, image []byte) (domain.Descriptor, error) {
	n, err := g.counter.CountFaces(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("count faces: %w", err)
	}

	switch {
	case n == 0:
		return nil, ErrNoFace
	case n > 1:
		return nil, ErrMultipleFaces
	}

	return g.source.Describe(ctx, image)
}

var _ DescriptorSource = (*Gated)(nil)
