package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

func TestLadderSizes(t *testing.T) {
	tests := []struct {
		name string
		orig int
		want []int
	}{
		{"no original", 0, []int{1280, 677, 358, 189, 100}},
		{"between rungs", 1000, []int{1280, 677, 358, 189, 100}},
		{"original at top rung", 1280, []int{677, 358, 189, 100}},
		{"original near a rung", 370, []int{1280, 677, 189, 100}},
		{"tiny original", 95, []int{1280, 677, 358, 189}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LadderSizes(tt.orig))
		})
	}
}

func TestLadderSizes_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rungs descend and avoid the original size", prop.ForAll(
		func(orig int) bool {
			sizes := LadderSizes(orig)
			for i, s := range sizes {
				if i > 0 && s >= sizes[i-1] {
					return false
				}
				d := float64(s - orig)
				if d < 0 {
					d = -d
				}
				if d/float64(orig) < ladderSkip {
					return false
				}
			}
			return len(sizes) >= ladderSteps-2
		},
		gen.IntRange(10, 8192),
	))

	properties.TestingRun(t)
}

func TestPrepare_Formats(t *testing.T) {
	src := testutil.NoiseImage(120, 80, 7)

	var jpg, bm, tf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, src, nil))
	require.NoError(t, bmp.Encode(&bm, src))
	require.NoError(t, tiff.Encode(&tf, src, nil))

	tests := []struct {
		format string
		data   []byte
	}{
		{"png", testutil.EncodePNG(t, src)},
		{"jpeg", jpg.Bytes()},
		{"bmp", bm.Bytes()},
		{"tiff", tf.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			l, err := Prepare(tt.data, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.format, l.Format)
			assert.Equal(t, 120, l.Width)
			assert.Equal(t, 80, l.Height)
			require.Len(t, l.Candidates, 1)
			assert.Equal(t, 1.0, l.Candidates[0].Scale)
		})
	}
}

func TestPrepare_Errors(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := Prepare([]byte("definitely not an image"), DefaultOptions())
		assert.ErrorIs(t, err, ErrUnreadableImage)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Prepare(nil, DefaultOptions())
		assert.ErrorIs(t, err, ErrUnreadableImage)
	})

	t.Run("truncated png", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.NoiseImage(64, 64, 1))
		_, err := Prepare(data[:len(data)/2], DefaultOptions())
		assert.ErrorIs(t, err, ErrUnreadableImage)
	})

	t.Run("too large", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.NewCanvas(300, 20))
		_, err := Prepare(data, Options{MaxDimension: 200})
		assert.ErrorIs(t, err, ErrInputTooLarge)
	})
}

func TestPrepare_Ladder(t *testing.T) {
	data := testutil.EncodePNG(t, testutil.NewCanvas(1000, 500))
	l, err := Prepare(data, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, l.Candidates, 6)
	assert.Equal(t, 1000, l.Candidates[0].Image.Rect.Dx())
	wantWidths := []int{1280, 677, 358, 189, 100}
	for i, c := range l.Candidates[1:] {
		assert.Equal(t, i+1, c.Index)
		assert.Equal(t, wantWidths[i], c.Image.Rect.Dx())
		assert.InDelta(t, float64(wantWidths[i])/1000, c.Scale, 1e-9)
		assert.InDelta(t, float64(c.Image.Rect.Dy()), 500*c.Scale, 1)
	}
}

func TestToGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{A: 0})
	img.SetNRGBA(3, 0, color.NRGBA{R: 255, A: 255})

	g := ToGray(img)
	assert.Equal(t, uint8(0), g.Pix[0])
	assert.Equal(t, uint8(255), g.Pix[1])
	assert.Equal(t, uint8(255), g.Pix[2], "transparent pixels become white")
	assert.InDelta(t, 76, int(g.Pix[3]), 1)

	// Generic path agrees with the fast path.
	rgba := testutil.Flat(2, 2, color.RGBA{R: 255, A: 255})
	assert.InDelta(t, 76, int(ToGray(rgba).Pix[0]), 1)
}

func TestDecodeBase64(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0xff, 0xfe}
	std := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"raw", std, false},
		{"data url", "data:image/png;base64," + std, false},
		{"wrapped lines", std[:4] + "\n" + std[4:], false},
		{"unpadded", base64.RawStdEncoding.EncodeToString(payload), false},
		{"url alphabet", base64.URLEncoding.EncodeToString(payload), false},
		{"data url without base64", "data:image/png," + std, true},
		{"not base64", "%%%%", true},
		{"empty", "  ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBase64)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}
