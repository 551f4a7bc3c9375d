package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/stretchr/testify/require"
)

// RasterizeMatrix paints m as black squares of scale pixels on a white
// background with a quiet zone of quiet modules.
func RasterizeMatrix(m *qr.BitMatrix, scale, quiet int) *image.Gray {
	w := (m.Width() + 2*quiet) * scale
	h := (m.Height() + 2*quiet) * scale
	img := NewCanvas(w, h)
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if !m.Get(x, y) {
				continue
			}
			r := image.Rect((x+quiet)*scale, (y+quiet)*scale, (x+quiet+1)*scale, (y+quiet+1)*scale)
			draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
		}
	}
	return img
}

// NewCanvas returns a white grayscale image.
func NewCanvas(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// Paste draws src onto dst with its top-left corner at (x, y).
func Paste(dst draw.Image, src image.Image, x, y int) {
	b := src.Bounds()
	draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, draw.Src)
}

// NoiseImage returns a deterministic field of random gray values.
func NoiseImage(width, height int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// Flat returns a uniform image of the given color.
func Flat(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
}

// FlipCodewords flips the first module of each listed codeword in the
// masked module matrix of a symbol of version v.
func FlipCodewords(m *qr.BitMatrix, v *qr.Version, codewords ...int) {
	positions := qr.DataModules(v)
	for _, c := range codewords {
		p := positions[c*8]
		m.Flip(p[0], p[1])
	}
}
