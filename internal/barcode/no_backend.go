//go:build !barcode_gozxing

package barcode

import (
	"context"
	"image"
)

type defaultBackend struct{}

func newDefaultBackend() (Backend, error) { return &defaultBackend{}, nil }

func (d *defaultBackend) Decode(_ context.Context, _ image.Image, _ Options) ([]Result, error) {
	return nil, ErrNoBackend
}
