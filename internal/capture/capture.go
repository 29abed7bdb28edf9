// Package capture provides the camera surfaces a verification session samples.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
)

var (
	// ErrDetached means there is no frame to sample yet. Callers treat it as a no-op.
	ErrDetached = errors.New("capture surface not attached")

	ErrPermissionDenied = errors.New("camera permission denied")
	ErrClosed           = errors.New("camera closed")
)

// Camera is a single exclusive capture device.
type Camera interface {
	// Open acquires the device. Failure here is fatal for the session.
	Open(ctx context.Context) error
	// Frame returns the current frame as encoded image bytes.
	Frame(ctx context.Context) ([]byte, error)
	// Close releases the device.
	Close() error
}

const jpegQuality = 90

// JPEGDataURL encodes a frame as a data:image/jpeg URL, re-encoding other
// formats as JPEG.
func JPEGDataURL(frame []byte) (string, error) {
	if len(frame) == 0 {
		return "", fmt.Errorf("encode frame: %w", ErrDetached)
	}

	if http.DetectContentType(frame) != "image/jpeg" {
		img, _, err := image.Decode(bytes.NewReader(frame))
		if err != nil {
			return "", fmt.Errorf("decode frame: %w", err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return "", fmt.Errorf("encode frame: %w", err)
		}
		frame = buf.Bytes()
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame), nil
}
