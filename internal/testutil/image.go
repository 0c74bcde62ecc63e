package testutil

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common frame sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	HDSize     = ImageSize{1920, 1080}
)

// GenerateQRImage renders content as a QR code of side size pixels,
// including the quiet zone.
func GenerateQRImage(content string, size int) (image.Image, error) {
	hints := map[gozxing.EncodeHintType]any{
		gozxing.EncodeHintType_MARGIN: 2,
	}
	m, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, size, size, hints)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return m, nil
}

// GenerateCode128Image renders content as a Code 128 barcode.
func GenerateCode128Image(content string, width, height int) (image.Image, error) {
	m, err := oned.NewCode128Writer().Encode(content, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		return nil, fmt.Errorf("encode code128: %w", err)
	}
	return m, nil
}

// CreateTestImage creates a solid image.
func CreateTestImage(width, height int, background color.Color) *image.NRGBA {
	return imaging.New(width, height, background)
}

// PlaceOnCanvas pastes code onto a white canvas of the given size with its
// top-left corner at at, simulating a code somewhere in a camera frame.
func PlaceOnCanvas(code image.Image, size ImageSize, at image.Point) *image.NRGBA {
	return imaging.Paste(CreateTestImage(size.Width, size.Height, color.White), code, at)
}

// SaveImage writes img under dir and returns its path.
func SaveImage(t *testing.T, img image.Image, dir, name string) string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path), "Failed to save image: %s", path)
	return path
}
