package render

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/fogleman/gg"

	"github.com/MeKo-Tech/qrengine/internal/qr"
)

// MaxCanvasPixels bounds the side of a rendered image.
const MaxCanvasPixels = 20000

// Render paints sym with style at pixelsPerModule pixels per module and a
// quiet zone of quietZone modules. The style is validated first; an invalid
// style never produces a partial image.
func Render(sym *qr.Symbol, style StyleSpec, pixelsPerModule, quietZone int) (*image.NRGBA, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	if pixelsPerModule < 1 {
		return nil, fmt.Errorf("pixels per module must be positive, got %d", pixelsPerModule)
	}
	if quietZone < 0 {
		return nil, fmt.Errorf("quiet zone must not be negative, got %d", quietZone)
	}
	size := sym.Size()
	side := (size + 2*quietZone) * pixelsPerModule
	if side > MaxCanvasPixels {
		return nil, fmt.Errorf("canvas of %d pixels exceeds %d", side, MaxCanvasPixels)
	}

	style = style.normalized()
	coverage := rasterize(sym, style, float64(pixelsPerModule), float64(quietZone*pixelsPerModule), side)

	out := image.NewNRGBA(image.Rect(0, 0, side, side))
	back := style.Background()
	front := colorMasks[style.Mask.Type](style.Mask, side, side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			a := coverage.Pix[y*coverage.Stride+x*4+3]
			c := back
			if a > 0 {
				c = blend(back, front(x, y), a)
			}
			i := y*out.Stride + x*4
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return out, nil
}

// rasterize draws every dark module as opaque shapes on a transparent
// canvas; the alpha channel is the per-pixel coverage.
func rasterize(sym *qr.Symbol, style StyleSpec, module, origin float64, side int) *image.RGBA {
	dc := gg.NewContext(side, side)
	dc.SetRGBA(0, 0, 0, 1)

	size := sym.Size()
	dark := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < size && y < size && sym.Dark(x, y) && !qr.IsFinderEye(x, y, size)
	}
	drawModule := moduleDrawers[style.Module.Type]
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !dark(x, y) {
				continue
			}
			c := cell{X: origin + float64(x)*module, Y: origin + float64(y)*module, Size: module}
			nb := neighbours{N: dark(x, y-1), S: dark(x, y+1), E: dark(x+1, y), W: dark(x-1, y)}
			drawModule(dc, c, nb, style.Module)
		}
	}

	drawEye := eyeDrawers[style.Eye.Type]
	for _, corner := range [][2]int{{0, 0}, {size - 7, 0}, {0, size - 7}} {
		drawEye(dc, origin+float64(corner[0])*module, origin+float64(corner[1])*module, module, style.Eye)
	}

	if rgba, ok := dc.Image().(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(rgba, rgba.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return rgba
}
