package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/barcode"
	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

// Generation limits.
const (
	DefaultBoxSize = 10
	DefaultBorder  = 4
	MaxBoxSize     = 100
	MaxBorder      = 20
	MinFinalSize   = 100
	MaxFinalSize   = 2000
)

var (
	// ErrInvalidRequest is returned for out-of-range generation parameters.
	ErrInvalidRequest = errors.New("invalid generation request")
	// ErrVerification is returned when a generated image does not decode
	// back to its payload.
	ErrVerification = errors.New("generated symbol failed verification")
)

// GenerateRequest describes one symbol to generate.
type GenerateRequest struct {
	Data       []byte
	Level      qr.ECLevel
	MinVersion int
	BoxSize    int
	// Border is the quiet zone in modules; nil means DefaultBorder.
	Border *int
	Format render.Format
	// FinalSize resamples PNG output to a square of this side; 0 keeps the
	// natural size.
	FinalSize int
	// Style enables styled raster output; nil draws plain squares in
	// FrontColor on BackColor.
	Style      *render.StyleSpec
	FrontColor color.Color
	BackColor  color.Color
	Logo       image.Image
	// Verify overrides the configured verification when set.
	Verify *bool
}

// GeneratedImage is the encoded output of Generate.
type GeneratedImage struct {
	Format render.Format
	Symbol *qr.Symbol
	// Image is set for PNG output; Data holds the encoded bytes (PNG) or
	// text (SVG, ASCII).
	Image  *image.NRGBA
	Data   []byte
	Width  int
	Height int
}

func (r *GenerateRequest) normalize() error {
	if r.BoxSize == 0 {
		r.BoxSize = DefaultBoxSize
	}
	if r.Border == nil {
		border := DefaultBorder
		r.Border = &border
	}
	if r.Format == "" {
		r.Format = render.FormatPNG
	}
	if r.BoxSize < 1 || r.BoxSize > MaxBoxSize {
		return fmt.Errorf("%w: box size %d outside 1..%d", ErrInvalidRequest, r.BoxSize, MaxBoxSize)
	}
	if *r.Border < 0 || *r.Border > MaxBorder {
		return fmt.Errorf("%w: border %d outside 0..%d", ErrInvalidRequest, *r.Border, MaxBorder)
	}
	if r.MinVersion < 0 || r.MinVersion > 40 {
		return fmt.Errorf("%w: version %d outside 1..40", ErrInvalidRequest, r.MinVersion)
	}
	if r.FinalSize != 0 {
		if r.Format != render.FormatPNG {
			return fmt.Errorf("%w: final size applies to png output only", ErrInvalidRequest)
		}
		if r.FinalSize < MinFinalSize || r.FinalSize > MaxFinalSize {
			return fmt.Errorf("%w: final size %d outside %d..%d", ErrInvalidRequest, r.FinalSize, MinFinalSize, MaxFinalSize)
		}
	}
	if r.Format != render.FormatPNG && (r.Style != nil || r.Logo != nil) {
		return fmt.Errorf("%w: styles and logos apply to png output only", ErrInvalidRequest)
	}
	return nil
}

// Generate encodes req.Data and renders it in the requested format.
// Encoding and style errors abort the call before any pixel work.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*GeneratedImage, error) {
	start := time.Now()
	defer track(&p.load.generates)()
	if err := req.normalize(); err != nil {
		return nil, err
	}
	border := *req.Border
	style := render.PlainStyle(req.FrontColor, req.BackColor)
	if req.Style != nil {
		style = *req.Style
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}

	sym, err := encoder.Encode(req.Data, req.Level, encoder.Options{MinVersion: req.MinVersion})
	if err != nil {
		return nil, err
	}

	out := &GeneratedImage{Format: req.Format, Symbol: sym}
	var raster image.Image
	switch {
	case req.Format == render.FormatPNG:
		img, err := render.Render(sym, style, req.BoxSize, border)
		if err != nil {
			return nil, err
		}
		if req.Logo != nil {
			img = render.EmbedLogo(img, req.Logo)
		}
		if req.FinalSize > 0 {
			img = render.FinalSize(img, req.FinalSize)
		}
		if out.Data, err = render.EncodePNG(img); err != nil {
			return nil, err
		}
		out.Image, raster = img, img
		out.Width, out.Height = img.Bounds().Dx(), img.Bounds().Dy()
	case req.Format.IsSVG():
		svg, err := render.SVG(sym, req.Format, render.VectorOptions{
			BoxSize: req.BoxSize, Border: border, Front: req.FrontColor, Back: req.BackColor,
		})
		if err != nil {
			return nil, err
		}
		out.Data = []byte(svg)
		side := (sym.Size() + 2*border) * req.BoxSize
		out.Width, out.Height = side, side
	case req.Format == render.FormatASCII:
		out.Data = []byte(render.ASCII(sym, border))
		out.Width = sym.Size() + 2*border
		out.Height = (out.Width + 1) / 2
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, req.Format)
	}

	verify := p.cfg.Verify.Enabled
	if req.Verify != nil {
		verify = *req.Verify
	}
	if verify {
		if raster == nil {
			// Vector and text output draw exactly the plain module grid.
			if raster, err = render.Render(sym, render.PlainStyle(req.FrontColor, req.BackColor), req.BoxSize, max(border, 1)); err != nil {
				return nil, err
			}
		}
		if err := p.verify(ctx, raster, req.Data); err != nil {
			return nil, err
		}
	}

	p.stats.RecordGenerate(time.Since(start))
	return out, nil
}

func (p *Pipeline) verify(ctx context.Context, img image.Image, want []byte) error {
	results, err := p.verifier.Decode(ctx, img, barcode.Options{TryHarder: true})
	if err != nil {
		return fmt.Errorf("%w: %s backend: %w", ErrVerification, p.verifier.Name(), err)
	}
	for _, r := range results {
		if r.Text == string(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s backend read %d symbol(s), none matching", ErrVerification, p.verifier.Name(), len(results))
}
