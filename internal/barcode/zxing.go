package barcode

import (
	"context"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// zxingBackend wraps the gozxing QR reader. It decodes one symbol per image.
type zxingBackend struct{}

func (zxingBackend) Name() string { return BackendZXing }

func (zxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: prepare bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	r, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return nil, ErrNoSymbol
		}
		return nil, fmt.Errorf("barcode: zxing decode: %w", err)
	}

	var pts []utils.Point
	for _, p := range r.GetResultPoints() {
		pts = append(pts, utils.Point{X: p.GetX(), Y: p.GetY()})
	}
	return []Result{{Text: r.GetText(), Points: pts, BBox: rectFromPoints(pts, img.Bounds())}}, nil
}
