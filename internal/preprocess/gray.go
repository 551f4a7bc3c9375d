package preprocess

import (
	"image"
	"image/draw"
)

// ToGray converts img to 8-bit luma (0.299 R + 0.587 G + 0.114 B).
// Transparent pixels are composited over white so that codes printed on a
// transparent background keep their contrast.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.Gray:
		draw.Draw(out, out.Rect, src, b.Min, draw.Src)
		return out
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+b.Dx()*4]
			for x := 0; x < b.Dx(); x++ {
				p := row[x*4 : x*4+4]
				a := uint32(p[3])
				r := (uint32(p[0])*a + 255*(255-a)) / 255
				g := (uint32(p[1])*a + 255*(255-a)) / 255
				bl := (uint32(p[2])*a + 255*(255-a)) / 255
				out.Pix[y*out.Stride+x] = luma8(r, g, bl)
			}
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Premultiplied: adding the missing coverage as white.
			r += 0xffff - a
			g += 0xffff - a
			bl += 0xffff - a
			out.Pix[y*out.Stride+x] = luma8(r>>8, g>>8, bl>>8)
		}
	}
	return out
}

func luma8(r, g, b uint32) uint8 {
	return uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
}
