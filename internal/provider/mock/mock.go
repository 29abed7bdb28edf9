package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// minImageSize abaixo disso a imagem é tratada como sem face
const minImageSize = 1000

// Provider gera descritores determinísticos para testes e desenvolvimento
type Provider struct{}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Describe returns a unit-length descriptor derived from the image hash.
// Identical images always yield identical descriptors.
func (p *Provider) Describe(ctx context.Context, image []byte) (domain.Descriptor, error) {
	if len(image) < minImageSize {
		return nil, provider.ErrNoFace
	}
	return generateDescriptor(image), nil
}

// CountFaces reports a single face for any image large enough to hold one.
func (p *Provider) CountFaces(ctx context.Context, image []byte) (int, error) {
	if len(image) < minImageSize {
		return 0, nil
	}
	return 1, nil
}

// generateDescriptor gera descritor determinístico baseado no hash da imagem
func generateDescriptor(image []byte) domain.Descriptor {
	hash := sha256.Sum256(image)
	d := make(domain.Descriptor, domain.DescriptorLength)
	hashLen := len(hash)

	for i := 0; i < domain.DescriptorLength; i++ {
		idx := (i * 7) % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		d[i] = (float64(hash[idx]^byte(i))/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range d {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return d
	}

	for i := range d {
		d[i] /= norm
	}

	return d
}

var (
	_ provider.DescriptorSource = (*Provider)(nil)
	_ provider.FaceCounter      = (*Provider)(nil)
)
