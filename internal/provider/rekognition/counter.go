package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Counter implements provider.FaceCounter with DetectFaces.
type Counter struct {
	api    DetectFacesAPI
	config Config
}

func NewCounter(api DetectFacesAPI, cfg Config) *Counter {
	return &Counter{api: api, config: cfg}
}

func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// CountFaces returns the number of faces at or above the configured confidence.
// Images Rekognition refuses to read count as zero faces.
func (c *Counter) CountFaces(ctx context.Context, image []byte) (int, error) {
	if err := validateImage(image); err != nil {
		return 0, nil
	}

	output, err := c.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		mapped := mapError(err)
		if errors.Is(mapped, ErrInvalidImage) {
			return 0, nil
		}
		return 0, fmt.Errorf("detect faces: %w", mapped)
	}

	n := 0
	for _, detail := range output.FaceDetails {
		if detail.Confidence != nil && *detail.Confidence >= c.config.MinConfidence {
			n++
		}
	}
	return n, nil
}

var _ provider.FaceCounter = (*Counter)(nil)
