package barcode

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownCodeType is returned when a configured code type name is not recognized.
var ErrUnknownCodeType = errors.New("barcode: unknown code type")

// CodeType is a barcode symbology in its canonical, platform-independent form.
type CodeType int

const (
	TypeUnknown CodeType = iota
	TypeQR
	TypeDataMatrix
	TypeAztec
	TypePDF417
	TypeCode128
	TypeCode39
	TypeCode93
	TypeCodabar
	TypeEAN8
	TypeEAN13
	TypeUPCA
	TypeUPCE
	TypeITF
)

var typeNames = map[CodeType]string{
	TypeUnknown:    "unknown",
	TypeQR:         "qr",
	TypeDataMatrix: "data-matrix",
	TypeAztec:      "aztec",
	TypePDF417:     "pdf-417",
	TypeCode128:    "code-128",
	TypeCode39:     "code-39",
	TypeCode93:     "code-93",
	TypeCodabar:    "codabar",
	TypeEAN8:       "ean-8",
	TypeEAN13:      "ean-13",
	TypeUPCA:       "upc-a",
	TypeUPCE:       "upc-e",
	TypeITF:        "itf",
}

// typeAliases is keyed by the lowercased name with separators removed.
var typeAliases = map[string]CodeType{
	"qr":              TypeQR,
	"qrcode":          TypeQR,
	"datamatrix":      TypeDataMatrix,
	"aztec":           TypeAztec,
	"pdf417":          TypePDF417,
	"code128":         TypeCode128,
	"code39":          TypeCode39,
	"code39mod43":     TypeCode39,
	"code93":          TypeCode93,
	"codabar":         TypeCodabar,
	"ean8":            TypeEAN8,
	"ean13":           TypeEAN13,
	"upca":            TypeUPCA,
	"upce":            TypeUPCE,
	"itf":             TypeITF,
	"itf14":           TypeITF,
	"interleaved2of5": TypeITF,
	"i25":             TypeITF,
}

// String returns the canonical name, e.g. "code-128".
func (t CodeType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return typeNames[TypeUnknown]
}

// MarshalText encodes the canonical name.
func (t CodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes any accepted name. Unrecognized names decode to
// TypeUnknown rather than failing, matching how detections are normalized.
func (t *CodeType) UnmarshalText(text []byte) error {
	parsed, err := ParseCodeType(string(text))
	if err != nil {
		*t = TypeUnknown
		return nil
	}
	*t = parsed
	return nil
}

func aliasKey(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "", "/", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// ParseCodeType parses a canonical name or one of its aliases
// ("code128", "QR_CODE", "ean_13", ...).
func ParseCodeType(s string) (CodeType, error) {
	if t, ok := typeAliases[aliasKey(s)]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownCodeType, s)
}

// ParseCodeTypes parses a configured list. An empty list means no restriction.
func ParseCodeTypes(names []string) ([]CodeType, error) {
	out := make([]CodeType, 0, len(names))
	for _, n := range names {
		t, err := ParseCodeType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// KnownCodeTypes returns the canonical names of every recognized type, sorted.
func KnownCodeTypes() []string {
	out := make([]string, 0, len(typeNames)-1)
	for t, n := range typeNames {
		if t != TypeUnknown {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// symbologies maps the identifiers reported by fractional-coordinate hosts
// (AVFoundation metadata types and Vision symbologies) to canonical types.
var symbologies = map[string]CodeType{
	"org.iso.QRCode":               TypeQR,
	"org.iso.DataMatrix":           TypeDataMatrix,
	"org.iso.Aztec":                TypeAztec,
	"org.iso.PDF417":               TypePDF417,
	"org.iso.Code128":              TypeCode128,
	"org.iso.Code39":               TypeCode39,
	"org.iso.Code39Mod43":          TypeCode39,
	"com.intermec.Code93":          TypeCode93,
	"Codabar":                      TypeCodabar,
	"org.gs1.EAN-8":                TypeEAN8,
	"org.gs1.EAN-13":               TypeEAN13,
	"org.gs1.UPC-E":                TypeUPCE,
	"org.ansi.Interleaved2of5":     TypeITF,
	"org.gs1.ITF14":                TypeITF,
	"VNBarcodeSymbologyQR":         TypeQR,
	"VNBarcodeSymbologyDataMatrix": TypeDataMatrix,
	"VNBarcodeSymbologyAztec":      TypeAztec,
	"VNBarcodeSymbologyPDF417":     TypePDF417,
	"VNBarcodeSymbologyCode128":    TypeCode128,
	"VNBarcodeSymbologyCode39":     TypeCode39,
	"VNBarcodeSymbologyCode93":     TypeCode93,
	"VNBarcodeSymbologyCodabar":    TypeCodabar,
	"VNBarcodeSymbologyEAN8":       TypeEAN8,
	"VNBarcodeSymbologyEAN13":      TypeEAN13,
	"VNBarcodeSymbologyUPCE":       TypeUPCE,
	"VNBarcodeSymbologyITF14":      TypeITF,
	"VNBarcodeSymbologyI2of5":      TypeITF,
}

// SymbologyType resolves a fractional-host symbology identifier. Anything
// not in the table is tried as a plain code type name before giving up
// with TypeUnknown.
func SymbologyType(symbology string) CodeType {
	if t, ok := symbologies[symbology]; ok {
		return t
	}
	if t, err := ParseCodeType(symbology); err == nil {
		return t
	}
	return TypeUnknown
}

// formatCodes are the integer format constants reported by pixel-coordinate
// hosts (ML Kit Barcode.FORMAT_*).
var formatCodes = map[int]CodeType{
	1:    TypeCode128,
	2:    TypeCode39,
	4:    TypeCode93,
	8:    TypeCodabar,
	16:   TypeDataMatrix,
	32:   TypeEAN13,
	64:   TypeEAN8,
	128:  TypeITF,
	256:  TypeQR,
	512:  TypeUPCA,
	1024: TypeUPCE,
	2048: TypePDF417,
	4096: TypeAztec,
}

// FormatType resolves a pixel-host format. Numeric strings are looked up
// as format codes; everything else is parsed as a name.
func FormatType(format string) CodeType {
	if n, err := strconv.Atoi(strings.TrimSpace(format)); err == nil {
		return FormatCodeType(n)
	}
	if t, err := ParseCodeType(format); err == nil {
		return t
	}
	return TypeUnknown
}

// FormatCodeType resolves an integer format constant.
func FormatCodeType(code int) CodeType {
	if t, ok := formatCodes[code]; ok {
		return t
	}
	return TypeUnknown
}

// TypeSet is a code type restriction. The nil set matches everything.
type TypeSet map[CodeType]struct{}

// NewTypeSet builds a set from types. No types yields the nil set.
func NewTypeSet(types ...CodeType) TypeSet {
	if len(types) == 0 {
		return nil
	}
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Allows reports whether t passes the restriction.
func (s TypeSet) Allows(t CodeType) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[t]
	return ok
}

// Types returns the members in enum order.
func (s TypeSet) Types() []CodeType {
	out := make([]CodeType, 0, len(s))
	for t := TypeUnknown; t <= TypeITF; t++ {
		if _, ok := s[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
