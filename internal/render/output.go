package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrengine/internal/qr"
)

// Format is an output encoding of a generated symbol.
type Format string

const (
	FormatPNG         Format = "png"
	FormatSVG         Format = "svg"
	FormatSVGPath     Format = "svg-path"
	FormatSVGFragment Format = "svg-fragment"
	FormatASCII       Format = "ascii"
)

// Formats lists every supported output format.
var Formats = []Format{FormatPNG, FormatSVG, FormatSVGPath, FormatSVGFragment, FormatASCII}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// IsSVG reports whether f is one of the SVG variants.
func (f Format) IsSVG() bool { return strings.HasPrefix(string(f), "svg") }

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FinalSize resamples img to a side x side square.
func FinalSize(img image.Image, side int) *image.NRGBA {
	return imaging.Resize(img, side, side, imaging.Lanczos)
}

// VectorOptions controls the SVG and text outputs. Sizes are in modules
// except BoxSize, which is pixels per module.
type VectorOptions struct {
	BoxSize int
	Border  int
	Front   color.Color
	Back    color.Color
}

// SVG renders sym in one of the SVG variants. Styling does not apply to
// vector output; only the two colours are used.
func SVG(sym *qr.Symbol, format Format, opts VectorOptions) (string, error) {
	if !format.IsSVG() {
		return "", fmt.Errorf("%q is not an svg format", format)
	}
	n := sym.Size() + 2*opts.Border
	px := n * max(opts.BoxSize, 1)
	front := HexColor(toNRGBA(opts.Front, defaultFront))
	back := HexColor(toNRGBA(opts.Back, defaultBack))

	var sb strings.Builder
	if format != FormatSVGFragment {
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	}
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		px, px, n, n)
	if format != FormatSVGFragment {
		fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="%s"/>`, n, n, back)
	}

	switch format {
	case FormatSVGPath:
		fmt.Fprintf(&sb, `<path fill="%s" d="`, front)
		eachDark(sym, func(x, y int) {
			fmt.Fprintf(&sb, "M%d %dh1v1h-1z", x+opts.Border, y+opts.Border)
		})
		sb.WriteString(`"/>`)
	default:
		eachDark(sym, func(x, y int) {
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="1" fill="%s"/>`, x+opts.Border, y+opts.Border, front)
		})
	}
	sb.WriteString("</svg>")
	return sb.String(), nil
}

// ASCII renders two module rows per text line with half-block characters.
// Dark modules are printed, light ones are spaces.
func ASCII(sym *qr.Symbol, border int) string {
	size := sym.Size()
	dark := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < size && y < size && sym.Dark(x, y)
	}
	glyphs := [4]string{" ", "▀", "▄", "█"}

	var sb strings.Builder
	for y := -border; y < size+border; y += 2 {
		for x := -border; x < size+border; x++ {
			i := 0
			if dark(x, y) {
				i |= 1
			}
			if dark(x, y+1) {
				i |= 2
			}
			sb.WriteString(glyphs[i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func eachDark(sym *qr.Symbol, fn func(x, y int)) {
	size := sym.Size()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if sym.Dark(x, y) {
				fn(x, y)
			}
		}
	}
}
