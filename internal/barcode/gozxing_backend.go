//go:build barcode_gozxing

package barcode

import (
	"context"
	"image"
	"image/draw"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/pdf417"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// newDefaultBackend returns the gozxing-backed implementation when the build tag is enabled.
func newDefaultBackend() (Backend, error) { return &gozxingBackend{}, nil }

type gozxingBackend struct{}

var readers = map[CodeType]func() gozxing.Reader{
	TypeQR:         func() gozxing.Reader { return qrcode.NewQRCodeReader() },
	TypeDataMatrix: func() gozxing.Reader { return datamatrix.NewDataMatrixReader() },
	TypeAztec:      func() gozxing.Reader { return aztec.NewAztecReader() },
	TypePDF417:     func() gozxing.Reader { return pdf417.NewPDF417Reader() },
	TypeCode128:    func() gozxing.Reader { return oned.NewCode128Reader() },
	TypeCode39:     func() gozxing.Reader { return oned.NewCode39Reader() },
	TypeCode93:     func() gozxing.Reader { return oned.NewCode93Reader() },
	TypeCodabar:    func() gozxing.Reader { return oned.NewCodaBarReader() },
	TypeEAN8:       func() gozxing.Reader { return oned.NewEAN8Reader() },
	TypeEAN13:      func() gozxing.Reader { return oned.NewEAN13Reader() },
	TypeUPCA:       func() gozxing.Reader { return oned.NewUPCAReader() },
	TypeUPCE:       func() gozxing.Reader { return oned.NewUPCEReader() },
	TypeITF:        func() gozxing.Reader { return oned.NewITFReader() },
}

var zxingTypes = map[gozxing.BarcodeFormat]CodeType{
	gozxing.BarcodeFormat_QR_CODE:     TypeQR,
	gozxing.BarcodeFormat_DATA_MATRIX: TypeDataMatrix,
	gozxing.BarcodeFormat_AZTEC:       TypeAztec,
	gozxing.BarcodeFormat_PDF_417:     TypePDF417,
	gozxing.BarcodeFormat_CODE_128:    TypeCode128,
	gozxing.BarcodeFormat_CODE_39:     TypeCode39,
	gozxing.BarcodeFormat_CODE_93:     TypeCode93,
	gozxing.BarcodeFormat_CODABAR:     TypeCodabar,
	gozxing.BarcodeFormat_EAN_8:       TypeEAN8,
	gozxing.BarcodeFormat_EAN_13:      TypeEAN13,
	gozxing.BarcodeFormat_UPC_A:       TypeUPCA,
	gozxing.BarcodeFormat_UPC_E:       TypeUPCE,
	gozxing.BarcodeFormat_ITF:         TypeITF,
}

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	bitmap, err := gozxing.NewBinaryBitmapFromImage(toRGBA(img))
	if err != nil {
		return nil, err
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	types := opts.Types
	if len(types) == 0 {
		types = allTypes()
	}

	var out []Result
	seen := make(map[resultKey]bool)
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		newReader, ok := readers[t]
		if !ok {
			continue
		}

		var results []*gozxing.Result
		if opts.Multi {
			results, err = multi.NewGenericMultipleBarcodeReader(newReader()).DecodeMultiple(bitmap, hints)
		} else {
			var r *gozxing.Result
			r, err = newReader().Decode(bitmap, hints)
			if r != nil {
				results = []*gozxing.Result{r}
			}
		}
		if err != nil {
			// Not-found and checksum failures of one reader do not stop the others.
			continue
		}

		for _, r := range results {
			res := toResult(r)
			key := resultKey{res.Type, res.Value}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, res)
		}
		if !opts.Multi && len(out) > 0 {
			break
		}
	}
	return out, nil
}

func toResult(r *gozxing.Result) Result {
	t, ok := zxingTypes[r.GetBarcodeFormat()]
	if !ok {
		t = TypeUnknown
	}
	pts := r.GetResultPoints()
	points := make([]geometry.Point, 0, len(pts))
	for _, p := range pts {
		points = append(points, geometry.Point{X: p.GetX(), Y: p.GetY()})
	}
	return Result{Type: t, Value: r.GetText(), Points: points}
}

type resultKey struct {
	t     CodeType
	value string
}

func allTypes() []CodeType {
	out := make([]CodeType, 0, len(readers))
	for t := TypeQR; t <= TypeITF; t++ {
		out = append(out, t)
	}
	return out
}

// toRGBA copies img into an RGBA image anchored at the origin.
func toRGBA(img image.Image) image.Image {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
