package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // logo formats
	_ "image/jpeg" // logo formats
	_ "image/png"  // logo formats

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// LogoRatio is the logo width relative to the rendered image.
const LogoRatio = 0.25

// svgLogoSide is the raster size SVG logos are drawn at before scaling.
const svgLogoSide = 512

// ErrInvalidLogo is returned when logo bytes are neither a raster image nor SVG.
var ErrInvalidLogo = errors.New("invalid embedded image")

// DecodeLogo decodes a raster logo (PNG, JPEG, GIF) or rasterizes an SVG one.
func DecodeLogo(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if !bytes.Contains(data, []byte("<svg")) {
		return nil, ErrInvalidLogo
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLogo, err)
	}
	w, h := svgLogoSide, svgLogoSide
	if vb := icon.ViewBox; vb.W > 0 && vb.H > 0 {
		h = int(float64(svgLogoSide) * vb.H / vb.W)
		if h < 1 {
			h = 1
		}
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}

// EmbedLogo returns a copy of img with logo scaled to LogoRatio of its
// width and centred. Only high error correction levels survive the covered
// modules reliably.
func EmbedLogo(img image.Image, logo image.Image) *image.NRGBA {
	b := img.Bounds()
	w := int(float64(b.Dx()) * LogoRatio)
	if w < 1 {
		w = 1
	}
	scaled := imaging.Resize(logo, w, 0, imaging.Lanczos)
	pos := image.Pt((b.Dx()-scaled.Bounds().Dx())/2, (b.Dy()-scaled.Bounds().Dy())/2)
	return imaging.Overlay(img, scaled, pos, 1.0)
}
