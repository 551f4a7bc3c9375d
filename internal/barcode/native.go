package barcode

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/qrengine/internal/decoder"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

type nativeBackend struct{}

func (nativeBackend) Name() string { return BackendNative }

func (nativeBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := decoder.DefaultConfig()
	cfg.Detector.TryHarder = opts.TryHarder

	found, errs := decoder.DecodeImageConfig(preprocess.ToGray(img), cfg)
	if len(found) == 0 {
		if len(errs) == 0 || errors.Is(errs[0], decoder.ErrNotFound) {
			return nil, ErrNoSymbol
		}
		return nil, errors.Join(errs...)
	}

	out := make([]Result, 0, len(found))
	for _, r := range found {
		pts := r.Quad.Points()
		out = append(out, Result{Text: r.Text, Points: pts, BBox: rectFromPoints(pts, img.Bounds())})
	}
	return out, nil
}
