package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

func encode(t *testing.T, payload string, level qr.ECLevel, minVersion int) *qr.Symbol {
	t.Helper()

	sym, err := encoder.Encode([]byte(payload), level, encoder.Options{MinVersion: minVersion})
	require.NoError(t, err)
	return sym
}

// rotate90 turns img a quarter clockwise.
func rotate90(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(b.Dy()-1-y, x, img.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func TestOtsuThreshold(t *testing.T) {
	tests := []struct {
		name string
		lum  []uint8
		want func(int) bool
	}{
		{"empty", nil, func(v int) bool { return v == 0 }},
		{"two levels", []uint8{10, 10, 10, 200, 200, 200}, func(v int) bool { return v >= 10 && v < 200 }},
		{"noisy bimodal", []uint8{20, 25, 30, 22, 180, 190, 185, 200}, func(v int) bool { return v >= 30 && v < 180 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OtsuThreshold(tt.lum)
			assert.True(t, tt.want(got), "threshold %d", got)
		})
	}
}

func TestBinarize_SmallImageUsesGlobalThreshold(t *testing.T) {
	img := testutil.NewCanvas(20, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetGray(x, y, color.Gray{Y: 40})
		}
	}
	bits := Binarize(img)

	assert.True(t, bits.Get(0, 0))
	assert.True(t, bits.Get(9, 9))
	assert.False(t, bits.Get(10, 0))
	assert.False(t, bits.Get(19, 9))
}

func TestBinarize_MatchesRasterizedSymbol(t *testing.T) {
	sym := encode(t, "binarize", qr.LevelM, 0)
	img := testutil.RasterizeMatrix(sym.Modules, 4, 4)
	bits := Binarize(img)

	for y := 0; y < sym.Size(); y++ {
		for x := 0; x < sym.Size(); x++ {
			px, py := (x+4)*4+2, (y+4)*4+2
			require.Equal(t, sym.Dark(x, y), bits.Get(px, py), "module (%d,%d)", x, y)
		}
	}
}

func TestBinarize_HandlesSubImage(t *testing.T) {
	img := testutil.NewCanvas(60, 60)
	for y := 30; y < 60; y++ {
		for x := 30; x < 60; x++ {
			img.SetGray(x, y, color.Gray{})
		}
	}
	sub, ok := img.SubImage(image.Rect(20, 20, 60, 60)).(*image.Gray)
	require.True(t, ok)
	bits := Binarize(sub)

	assert.Equal(t, 40, bits.Width())
	assert.False(t, bits.Get(2, 2))
	assert.True(t, bits.Get(30, 30))
}

func TestFindFinderPatterns(t *testing.T) {
	sym := encode(t, "finder", qr.LevelL, 0)
	img := testutil.RasterizeMatrix(sym.Modules, 5, 4)
	centers := findFinderPatterns(Binarize(img), DefaultConfig())

	want := []struct{ x, y float64 }{
		{(4 + 3.5) * 5, (4 + 3.5) * 5},
		{(4 + 21 - 3.5) * 5, (4 + 3.5) * 5},
		{(4 + 3.5) * 5, (4 + 21 - 3.5) * 5},
	}
	for _, w := range want {
		found := false
		for _, c := range centers {
			if c.Count >= 2 && abs(int(c.X-w.x)) <= 1 && abs(int(c.Y-w.y)) <= 1 {
				found = true
				assert.InDelta(t, 5.0, c.ModuleSize, 0.5)
			}
		}
		assert.True(t, found, "no finder near (%.1f, %.1f)", w.x, w.y)
	}
}

func TestOrderTriple(t *testing.T) {
	tl := &FinderPattern{X: 10, Y: 10}
	tr := &FinderPattern{X: 100, Y: 10}
	bl := &FinderPattern{X: 10, Y: 100}

	perms := [][3]*FinderPattern{
		{tl, tr, bl}, {tl, bl, tr}, {tr, tl, bl}, {tr, bl, tl}, {bl, tl, tr}, {bl, tr, tl},
	}
	for _, p := range perms {
		got := orderTriple(p[0], p[1], p[2])
		assert.Same(t, tl, got.TopLeft)
		assert.Same(t, tr, got.TopRight)
		assert.Same(t, bl, got.BottomLeft)
	}

	// Rotated a quarter clockwise the top-left finder ends up top-right.
	rtl := &FinderPattern{X: 100, Y: 10}
	rtr := &FinderPattern{X: 100, Y: 100}
	rbl := &FinderPattern{X: 10, Y: 10}
	got := orderTriple(rbl, rtr, rtl)
	assert.Same(t, rtl, got.TopLeft)
	assert.Same(t, rtr, got.TopRight)
	assert.Same(t, rbl, got.BottomLeft)
}

func TestGroupTriples_RejectsImplausibleShapes(t *testing.T) {
	cfg := DefaultConfig()
	mk := func(x, y float64) *FinderPattern { return &FinderPattern{X: x, Y: y, ModuleSize: 4, Count: 3} }

	tests := []struct {
		name    string
		centers []*FinderPattern
		want    int
	}{
		{"right angle", []*FinderPattern{mk(20, 20), mk(100, 20), mk(20, 100)}, 1},
		{"collinear", []*FinderPattern{mk(20, 20), mk(100, 20), mk(180, 20)}, 0},
		{"unequal legs", []*FinderPattern{mk(20, 20), mk(200, 20), mk(20, 100)}, 0},
		{"too small", []*FinderPattern{mk(20, 20), mk(30, 20), mk(20, 30)}, 0},
		{"unconfirmed", []*FinderPattern{mk(20, 20), mk(100, 20), {X: 20, Y: 100, ModuleSize: 4, Count: 1}}, 0},
		{"mixed module sizes", []*FinderPattern{mk(20, 20), mk(100, 20), {X: 20, Y: 100, ModuleSize: 9, Count: 3}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, groupTriples(tt.centers, cfg), tt.want)
		})
	}
}

func TestDetect_SamplesModuleGrid(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		level      qr.ECLevel
		minVersion int
		scale      int
		alignment  bool
	}{
		{"version 1", "HELLO", qr.LevelM, 1, 4, false},
		{"version 2", "alignment pattern", qr.LevelQ, 2, 4, true},
		{"version 7", "version information block", qr.LevelH, 7, 3, true},
		{"large modules", "12345", qr.LevelL, 1, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := encode(t, tt.payload, tt.level, tt.minVersion)
			img := testutil.RasterizeMatrix(sym.Modules, tt.scale, 4)

			found, err := Detect(img, DefaultConfig())
			require.NoError(t, err)
			require.NotEmpty(t, found)

			d := found[0]
			assert.Equal(t, sym.Size(), d.Dimension)
			assert.InDelta(t, float64(tt.scale), d.ModuleSize, 0.5)
			assert.Equal(t, tt.alignment, d.Alignment != nil)
			assert.True(t, sym.Modules.Equal(d.Bits), "sampled grid differs:\n%s", d.Bits)

			origin := float64(4 * tt.scale)
			far := float64((4 + sym.Size()) * tt.scale)
			assert.InDelta(t, origin, d.Quad[0].X, 1.5)
			assert.InDelta(t, origin, d.Quad[0].Y, 1.5)
			assert.InDelta(t, far, d.Quad[2].X, 1.5)
			assert.InDelta(t, far, d.Quad[2].Y, 1.5)
		})
	}
}

func TestDetect_RotatedSymbolKeepsOrientation(t *testing.T) {
	sym := encode(t, "rotate me", qr.LevelM, 3)
	img := testutil.RasterizeMatrix(sym.Modules, 4, 4)

	for turns := 1; turns <= 3; turns++ {
		img = rotate90(img)
		found, err := Detect(img, DefaultConfig())
		require.NoError(t, err, "turns=%d", turns)
		require.NotEmpty(t, found, "turns=%d", turns)
		assert.True(t, sym.Modules.Equal(found[0].Bits), "turns=%d", turns)
	}
}

func TestDetect_ArbitraryRotation(t *testing.T) {
	sym := encode(t, "rotated by any angle", qr.LevelM, 3)
	require.Equal(t, 29, sym.Size())
	img := testutil.RasterizeMatrix(sym.Modules, 6, 4)

	for _, angle := range []float64{10, 30, 45, -30, 60} {
		rotated := preprocess.ToGray(imaging.Rotate(img, angle, color.White))
		found, err := Detect(rotated, DefaultConfig())
		require.NoError(t, err, "angle=%v", angle)
		require.NotEmpty(t, found, "angle=%v", angle)

		d := found[0]
		assert.Equal(t, 29, d.Dimension, "angle=%v", angle)
		assert.InDelta(t, 6, d.ModuleSize, 0.6, "angle=%v", angle)
	}
}

func TestMeasureModuleSize(t *testing.T) {
	sym := encode(t, "measure", qr.LevelM, 1)
	bits := Binarize(testutil.RasterizeMatrix(sym.Modules, 8, 4))

	// Finder centres of a 21 module symbol with a four module quiet zone.
	at := func(mx, my float64) *FinderPattern {
		return &FinderPattern{X: (mx + 4) * 8, Y: (my + 4) * 8, ModuleSize: 20, Count: 3}
	}
	tri := Triple{TopLeft: at(3.5, 3.5), TopRight: at(17.5, 3.5), BottomLeft: at(3.5, 17.5)}
	assert.InDelta(t, 8, measureModuleSize(bits, tri), 0.3, "measured along the finder lines, not the row-scan estimate")

	blank := Binarize(testutil.NewCanvas(232, 232))
	assert.InDelta(t, 20, measureModuleSize(blank, tri), 1e-9, "falls back to the row-scan estimate")
}

func TestDetect_TwoSymbols(t *testing.T) {
	left := encode(t, "LEFT", qr.LevelM, 1)
	right := encode(t, "RIGHT SYMBOL", qr.LevelM, 2)
	a := testutil.RasterizeMatrix(left.Modules, 4, 4)
	b := testutil.RasterizeMatrix(right.Modules, 4, 4)

	canvas := testutil.NewCanvas(a.Bounds().Dx()+b.Bounds().Dx()+40, b.Bounds().Dy()+40)
	testutil.Paste(canvas, a, 20, 20)
	testutil.Paste(canvas, b, a.Bounds().Dx()+20, 20)

	found, err := Detect(canvas, DefaultConfig())
	require.NoError(t, err)

	var gotLeft, gotRight bool
	for _, d := range found {
		gotLeft = gotLeft || left.Modules.Equal(d.Bits)
		gotRight = gotRight || right.Modules.Equal(d.Bits)
	}
	assert.True(t, gotLeft)
	assert.True(t, gotRight)
}

func TestDetect_NothingFound(t *testing.T) {
	tests := []struct {
		name string
		img  *image.Gray
	}{
		{"blank", testutil.NewCanvas(200, 200)},
		{"noise", testutil.NoiseImage(200, 200, 7)},
		{"tiny", testutil.NewCanvas(3, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.img, DefaultConfig())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEstimateDimension(t *testing.T) {
	tests := []struct {
		name    string
		legs    float64
		want    int
		wantErr bool
	}{
		{"exact", 14, 21, false},
		{"one short", 13, 21, false},
		{"one long", 15, 21, false},
		{"between sizes", 16, 0, true},
		{"version 10", 50, 57, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tri := Triple{
				TopLeft:    &FinderPattern{X: 0, Y: 0, ModuleSize: 1},
				TopRight:   &FinderPattern{X: tt.legs, Y: 0, ModuleSize: 1},
				BottomLeft: &FinderPattern{X: 0, Y: tt.legs, ModuleSize: 1},
			}
			got, err := estimateDimension(tri, 1)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
