package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// Overlay colours.
var (
	OverlayOutline = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	OverlayCorner  = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// RenderOverlay returns an RGBA copy of img with every symbol outline drawn
// in outline and its first corner (the symbol's top-left) marked in corner.
func RenderOverlay(img image.Image, res *ScanResult, outline, corner color.Color) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if res == nil {
		return dst
	}
	thickness := max(1, min(b.Dx(), b.Dy())/250)
	for _, s := range res.Symbols {
		utils.DrawPolygon(dst, s.Quad.Points(), outline, thickness)
		utils.DrawMarker(dst, s.Quad[0], corner, 3*thickness)
	}
	return dst
}
