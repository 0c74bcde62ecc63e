package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widthBackend "decodes" one code whose value is the image width, and fails
// for images narrower than 2 pixels.
type widthBackend struct{}

var errTooSmall = errors.New("too small")

func (widthBackend) Decode(_ context.Context, img image.Image, _ barcode.Options) ([]barcode.Result, error) {
	w := img.Bounds().Dx()
	if w < 2 {
		return nil, errTooSmall
	}
	return []barcode.Result{{
		Type:   barcode.TypeQR,
		Value:  string(rune('a' + w%26)),
		Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
	}}, nil
}

func TestDecodeImages_KeepsOrder(t *testing.T) {
	images := make([]image.Image, 12)
	for i := range images {
		images[i] = image.NewGray(image.Rect(0, 0, i+2, 3))
	}

	var buf bytes.Buffer
	out, err := DecodeImages(context.Background(), widthBackend{}, images, ParallelConfig{
		MaxWorkers:       4,
		ProgressCallback: NewConsoleProgressCallback(&buf, "decode: "),
	})
	require.NoError(t, err)
	require.Len(t, out, len(images))

	for i, d := range out {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, geometry.Size{Width: float64(i + 2), Height: 3}, d.Size)
		require.NoError(t, d.Err)
		require.Len(t, d.Raws, 1)
		assert.Equal(t, string(rune('a'+(i+2)%26)), d.Raws[0].(barcode.PixelDetection).RawValue)
	}
	assert.Contains(t, buf.String(), "12/12")
	assert.Contains(t, buf.String(), "decode: done")
}

func TestDecodeImages_PerImageErrors(t *testing.T) {
	images := []image.Image{
		image.NewGray(image.Rect(0, 0, 5, 5)),
		image.NewGray(image.Rect(0, 0, 1, 5)),
	}
	var buf bytes.Buffer
	out, err := DecodeImages(context.Background(), widthBackend{}, images, ParallelConfig{
		MaxWorkers:       1,
		ProgressCallback: NewConsoleProgressCallback(&buf, ""),
	})
	require.NoError(t, err)
	require.NoError(t, out[0].Err)
	require.ErrorIs(t, out[1].Err, errTooSmall)
	assert.Contains(t, buf.String(), "image 1: too small")
}

func TestDecodeImages_Errors(t *testing.T) {
	_, err := DecodeImages(context.Background(), widthBackend{}, nil, ParallelConfig{})
	require.Error(t, err)

	_, err = DecodeImages(context.Background(), nil, []image.Image{image.NewGray(image.Rect(0, 0, 2, 2))}, ParallelConfig{})
	require.ErrorIs(t, err, barcode.ErrNoBackend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DecodeImages(ctx, widthBackend{}, []image.Image{image.NewGray(image.Rect(0, 0, 2, 2))}, ParallelConfig{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProgressCallbacks(t *testing.T) {
	var cb ProgressCallback = NoOpProgressCallback{}
	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnError(1, assert.AnError)
	cb.OnComplete()

	cb = NewLogProgressCallback(nil, 0)
	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnError(1, assert.AnError)
	cb.OnComplete()

	var buf bytes.Buffer
	console := NewConsoleProgressCallback(&buf, "p: ")
	console.OnStart(4)
	console.OnProgress(2, 4)
	console.OnProgress(1, 0)
	assert.Contains(t, buf.String(), "p: 0/4")
	assert.Contains(t, buf.String(), "2/4")
}
