package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is returned when the input cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// ImageProcessor handles image processing like resizing.
type ImageProcessor struct {
	quality int
}

// NewImageProcessor creates a new ImageProcessor.
func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{quality: 85}
}

// Fit scales the source image down to fit within maxWidth x maxHeight keeping
// its aspect ratio, and returns it as a JPEG. Images already small enough are
// only re-encoded.
func (p *ImageProcessor) Fit(content io.Reader, maxWidth, maxHeight int) (*bytes.Reader, error) {
	img, err := imaging.Decode(content, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, fitted, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}
