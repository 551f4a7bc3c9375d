// Package barcode provides pluggable QR decode backends: the native engine
// and a gozxing reference decoder used to cross-check generated images.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// ErrNoSymbol is returned when a backend finds nothing to decode.
var ErrNoSymbol = errors.New("barcode: no symbol found")

// Backend names.
const (
	BackendNative = "native"
	BackendZXing  = "zxing"
)

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables a more exhaustive search (slower but more robust).
	TryHarder bool
}

// Result is one decoded symbol.
type Result struct {
	Text   string
	Points []utils.Point // corner or key points if available
	BBox   image.Rectangle
}

// Backend is a pluggable QR decoder.
type Backend interface {
	Name() string
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// New returns the backend registered under name.
func New(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendNative:
		return nativeBackend{}, nil
	case BackendZXing, "gozxing":
		return zxingBackend{}, nil
	}
	return nil, fmt.Errorf("barcode: unknown backend %q", name)
}

func rectFromPoints(pts []utils.Point, bounds image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	return utils.BoundingBox(pts).ToRect(bounds)
}
