//go:build !barcode_gozxing

package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBackend_NoDecoder(t *testing.T) {
	be, err := NewBackend()
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 32, 16))
	_, err = be.Decode(context.Background(), img, Options{})
	require.ErrorIs(t, err, ErrNoBackend)

	raws, size, err := DecodeFrame(context.Background(), be, img, Options{})
	require.ErrorIs(t, err, ErrNoBackend)
	assert.Nil(t, raws)
	assert.Equal(t, 32.0, size.Width)
	assert.Equal(t, 16.0, size.Height)
}
