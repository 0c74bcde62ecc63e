package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the images handed to a barcode backend.
type ImageConstraints struct {
	MinWidth  int
	MinHeight int
	// MaxSide caps the longer side; 0 leaves the image at full resolution.
	MaxSide int
}

// DefaultImageConstraints returns constraints suitable for camera stills.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MinWidth:  16,
		MinHeight: 16,
	}
}

// FitImage scales img down so that its longer side is at most maxSide,
// preserving aspect ratio. It returns the image to decode and the factor
// that maps its coordinates back to the original (original = fitted * scale).
// Images already within bounds, or maxSide <= 0, are returned unchanged
// with scale 1.
func FitImage(img image.Image, maxSide int) (image.Image, float64, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "fit", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, &ImageProcessingError{Operation: "fit", Err: fmt.Errorf("empty image %dx%d", w, h)}
	}
	if maxSide <= 0 || max(w, h) <= maxSide {
		return img, 1, nil
	}
	fitted := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	return fitted, float64(max(w, h)) / float64(max(fitted.Bounds().Dx(), fitted.Bounds().Dy())), nil
}
