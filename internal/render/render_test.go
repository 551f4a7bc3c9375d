package render

import (
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

const (
	testPPM   = 10
	testQuiet = 4
)

func testSymbol(t *testing.T, payload string) *qr.Symbol {
	t.Helper()
	sym, err := encoder.Encode([]byte(payload), qr.LevelM, encoder.Options{})
	require.NoError(t, err)
	return sym
}

func isDark(c color.NRGBA) bool {
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return luma < 128
}

func moduleCentre(img *image.NRGBA, x, y int) color.NRGBA {
	px := (testQuiet+x)*testPPM + testPPM/2
	py := (testQuiet+y)*testPPM + testPPM/2
	return img.NRGBAAt(px, py)
}

// assertModulesPreserved checks every module centre outside the eyes and the
// two centre lines through every eye.
func assertModulesPreserved(t *testing.T, sym *qr.Symbol, img *image.NRGBA) {
	t.Helper()
	size := sym.Size()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if qr.IsFinderEye(x, y, size) {
				continue
			}
			require.Equal(t, sym.Dark(x, y), isDark(moduleCentre(img, x, y)), "module (%d,%d)", x, y)
		}
	}
	for _, corner := range [][2]int{{0, 0}, {size - 7, 0}, {0, size - 7}} {
		for i := 0; i < 7; i++ {
			x, y := corner[0]+i, corner[1]+3
			require.Equal(t, sym.Dark(x, y), isDark(moduleCentre(img, x, y)), "eye row module (%d,%d)", x, y)
			x, y = corner[0]+3, corner[1]+i
			require.Equal(t, sym.Dark(x, y), isDark(moduleCentre(img, x, y)), "eye column module (%d,%d)", x, y)
		}
	}
}

func allStyles() map[string]StyleSpec {
	styles := map[string]StyleSpec{}
	for _, md := range ModuleDrawerCatalog() {
		for _, ed := range EyeDrawerCatalog() {
			styles[string(md.Name)+"/"+string(ed.Name)] = StyleSpec{
				Module: ModuleDrawer{Type: md.Name},
				Eye:    EyeDrawer{Type: ed.Name},
				Mask:   ColorMask{Type: MaskSolid},
			}
		}
	}
	return styles
}

func TestRender_StylesPreserveModules(t *testing.T) {
	sym := testSymbol(t, "https://example.com/styled")
	for name, style := range allStyles() {
		t.Run(name, func(t *testing.T) {
			img, err := Render(sym, style, testPPM, testQuiet)
			require.NoError(t, err)
			side := (sym.Size() + 2*testQuiet) * testPPM
			require.Equal(t, image.Rect(0, 0, side, side), img.Bounds())
			assertModulesPreserved(t, sym, img)
		})
	}
}

func TestRender_QuietZoneIsBackground(t *testing.T) {
	sym := testSymbol(t, "QUIET")
	back := color.NRGBA{R: 250, G: 240, B: 200, A: 255}
	for name, style := range allStyles() {
		t.Run(name, func(t *testing.T) {
			style.Mask.BackColor = back
			img, err := Render(sym, style, testPPM, testQuiet)
			require.NoError(t, err)
			side := img.Bounds().Dx()
			q := testQuiet * testPPM
			for y := 0; y < side; y++ {
				for x := 0; x < side; x++ {
					if x >= q && x < side-q && y >= q && y < side-q {
						continue
					}
					require.Equal(t, back, img.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestRender_ColorMasksDoNotChangeModules(t *testing.T) {
	sym := testSymbol(t, "mask isolation")
	masks := []ColorMask{
		{Type: MaskSolid},
		{Type: MaskSolid, FrontColor: color.NRGBA{R: 120, A: 255}},
		{Type: MaskRadialGradient},
		{Type: MaskSquareGradient},
		{Type: MaskHorizontalGradient},
		{Type: MaskVerticalGradient},
		{Type: MaskImage, Image: testutil.Flat(8, 8, color.NRGBA{G: 60, B: 90, A: 255})},
	}

	base, err := Render(sym, DefaultStyle(), testPPM, testQuiet)
	require.NoError(t, err)

	for _, m := range masks[1:] {
		t.Run(string(m.Type), func(t *testing.T) {
			style := DefaultStyle()
			style.Mask = m
			img, err := Render(sym, style, testPPM, testQuiet)
			require.NoError(t, err)

			assert.NotEqual(t, base.Pix, img.Pix, "mask should change colours")
			assertModulesPreserved(t, sym, img)
		})
	}
}

func TestRender_GradientEnds(t *testing.T) {
	sym := testSymbol(t, "gradient")
	style := DefaultStyle()
	style.Mask = ColorMask{
		Type:       MaskHorizontalGradient,
		LeftColor:  color.NRGBA{R: 200, A: 255},
		RightColor: color.NRGBA{B: 200, A: 255},
	}
	img, err := Render(sym, style, testPPM, testQuiet)
	require.NoError(t, err)

	// Top-left and top-right eyes start with a dark module in row 0.
	left := moduleCentre(img, 0, 0)
	right := moduleCentre(img, sym.Size()-1, 0)
	assert.Greater(t, left.R, left.B)
	assert.Greater(t, right.B, right.R)
}

func TestRender_Deterministic(t *testing.T) {
	sym := testSymbol(t, "same every time")
	style := StyleSpec{
		Module: ModuleDrawer{Type: ModuleRounded},
		Eye:    EyeDrawer{Type: EyeCircle},
		Mask:   ColorMask{Type: MaskRadialGradient},
	}
	a, err := Render(sym, style, testPPM, testQuiet)
	require.NoError(t, err)
	b, err := Render(sym, style, testPPM, testQuiet)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestStyleValidate(t *testing.T) {
	tests := []struct {
		name      string
		style     StyleSpec
		wantField string
	}{
		{"zero value is valid", StyleSpec{}, ""},
		{"default", DefaultStyle(), ""},
		{"unknown module drawer", StyleSpec{Module: ModuleDrawer{Type: "hexagon"}}, "module_drawer.type"},
		{"unknown eye drawer", StyleSpec{Eye: EyeDrawer{Type: "star"}}, "eye_drawer.type"},
		{"unknown mask", StyleSpec{Mask: ColorMask{Type: "plaid"}}, "color_mask.type"},
		{"size ratio too large", StyleSpec{Module: ModuleDrawer{Type: ModuleCircle, SizeRatio: 1.5}}, "module_drawer.size_ratio"},
		{"negative size ratio", StyleSpec{Module: ModuleDrawer{Type: ModuleGappedSquare, SizeRatio: -0.2}}, "module_drawer.size_ratio"},
		{"radius ratio too large", StyleSpec{Module: ModuleDrawer{Type: ModuleRounded, RadiusRatio: 2}}, "module_drawer.radius_ratio"},
		{"eye radius negative", StyleSpec{Eye: EyeDrawer{Type: EyeRounded, RadiusRatio: -1}}, "eye_drawer.radius_ratio"},
		{"image mask without image", StyleSpec{Mask: ColorMask{Type: MaskImage}}, "color_mask.image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.style.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedStyle))
			var se *StyleError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestRender_InvalidInputsProduceNoImage(t *testing.T) {
	sym := testSymbol(t, "x")

	img, err := Render(sym, StyleSpec{Module: ModuleDrawer{Type: "nope"}}, testPPM, testQuiet)
	assert.ErrorIs(t, err, ErrUnsupportedStyle)
	assert.Nil(t, img)

	img, err = Render(sym, DefaultStyle(), 0, testQuiet)
	assert.Error(t, err)
	assert.Nil(t, img)

	img, err = Render(sym, DefaultStyle(), testPPM, -1)
	assert.Error(t, err)
	assert.Nil(t, img)

	img, err = Render(sym, DefaultStyle(), MaxCanvasPixels, testQuiet)
	assert.Error(t, err)
	assert.Nil(t, img)
}

func coverageAt(dc *gg.Context, x, y int) uint32 {
	_, _, _, a := dc.Image().At(x, y).RGBA()
	return a
}

func TestDrawRounded_CornersFollowNeighbours(t *testing.T) {
	style := DefaultStyle().normalized()
	style.Module.Type = ModuleRounded

	dc := gg.NewContext(20, 20)
	dc.SetRGBA(0, 0, 0, 1)
	drawRounded(dc, cell{X: 0, Y: 0, Size: 20}, neighbours{}, style.Module)
	assert.Zero(t, coverageAt(dc, 0, 0), "isolated module has a round corner")
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 10, 10))

	dc = gg.NewContext(20, 20)
	dc.SetRGBA(0, 0, 0, 1)
	drawRounded(dc, cell{X: 0, Y: 0, Size: 20}, neighbours{N: true}, style.Module)
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 0, 0), "corner touching a neighbour stays square")
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 19, 0))
	assert.Zero(t, coverageAt(dc, 0, 19))
}

func TestDrawBars_JoinNeighbours(t *testing.T) {
	d := DefaultStyle().normalized().Module

	dc := gg.NewContext(20, 20)
	dc.SetRGBA(0, 0, 0, 1)
	drawVerticalBar(dc, cell{X: 0, Y: 0, Size: 20}, neighbours{N: true, S: true}, d)
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 10, 0), "joins the module above")
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 10, 19), "joins the module below")
	assert.Zero(t, coverageAt(dc, 0, 10), "bar is narrower than the module")

	dc = gg.NewContext(20, 20)
	dc.SetRGBA(0, 0, 0, 1)
	drawHorizontalBar(dc, cell{X: 0, Y: 0, Size: 20}, neighbours{}, d)
	assert.Zero(t, coverageAt(dc, 0, 3), "free ends are rounded")
	assert.Zero(t, coverageAt(dc, 10, 0))
	assert.Equal(t, uint32(0xffff), coverageAt(dc, 10, 10))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#000000", color.NRGBA{A: 255}, false},
		{"#ff8000", color.NRGBA{R: 255, G: 128, A: 255}, false},
		{"#FFF", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{" #0a0 ", color.NRGBA{G: 0xaa, A: 255}, false},
		{"000000", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.ToLower(HexColor(got)), HexColor(got))
		})
	}
}

func countDark(sym *qr.Symbol) int {
	n := 0
	eachDark(sym, func(int, int) { n++ })
	return n
}

func TestSVG_Variants(t *testing.T) {
	sym := testSymbol(t, "svg output")
	opts := VectorOptions{BoxSize: 10, Border: 4, Front: color.NRGBA{R: 255, A: 255}}
	n := sym.Size() + 8

	doc, err := SVG(sym, FormatSVG, opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `width="`+strconv.Itoa(n*10)+`"`)
	assert.Contains(t, doc, `fill="#ffffff"`)
	assert.Equal(t, countDark(sym), strings.Count(doc, `fill="#ff0000"`))

	path, err := SVG(sym, FormatSVGPath, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(path, "<path"))
	assert.Equal(t, countDark(sym), strings.Count(path, "h1v1h-1z"))

	frag, err := SVG(sym, FormatSVGFragment, opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(frag, "<svg"))
	assert.True(t, strings.HasSuffix(frag, "</svg>"))

	_, err = SVG(sym, FormatPNG, opts)
	assert.Error(t, err)
}

func TestASCII(t *testing.T) {
	sym := testSymbol(t, "ascii")
	size := sym.Size()

	t.Run("no border", func(t *testing.T) {
		lines := strings.Split(strings.TrimSuffix(ASCII(sym, 0), "\n"), "\n")
		require.Len(t, lines, (size+1)/2)
		for _, l := range lines {
			assert.Equal(t, size, utf8.RuneCountInString(l))
		}
		// Finder rows 0 and 1: full top edge, then the hollow ring.
		first := []rune(lines[0])
		assert.Equal(t, '█', first[0])
		assert.Equal(t, '▀', first[1])
	})

	t.Run("border", func(t *testing.T) {
		lines := strings.Split(strings.TrimSuffix(ASCII(sym, 2), "\n"), "\n")
		require.Len(t, lines, (size+4+1)/2)
		assert.Equal(t, strings.Repeat(" ", size+4), lines[0])
		assert.Equal(t, size+4, utf8.RuneCountInString(lines[1]))
	})
}

func TestFinalSizeAndPNG(t *testing.T) {
	sym := testSymbol(t, "resize")
	img, err := Render(sym, DefaultStyle(), testPPM, testQuiet)
	require.NoError(t, err)

	resized := FinalSize(img, 300)
	assert.Equal(t, image.Rect(0, 0, 300, 300), resized.Bounds())

	data, err := EncodePNG(resized)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(strings.ToUpper(string(f)))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("jpeg")
	assert.Error(t, err)
	assert.True(t, FormatSVGPath.IsSVG())
	assert.False(t, FormatASCII.IsSVG())
}

func TestEmbedLogo(t *testing.T) {
	sym := testSymbol(t, "logo")
	img, err := Render(sym, DefaultStyle(), testPPM, testQuiet)
	require.NoError(t, err)

	red := color.NRGBA{R: 255, A: 255}
	out := EmbedLogo(img, testutil.Flat(40, 40, red))
	require.Equal(t, img.Bounds(), out.Bounds())

	c := out.Bounds().Dx() / 2
	assert.Equal(t, red, out.NRGBAAt(c, c))
	// Corners stay untouched.
	assert.Equal(t, img.NRGBAAt(0, 0), out.NRGBAAt(0, 0))
}

func TestDecodeLogo(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.Flat(16, 16, color.White))
		img, err := DecodeLogo(data)
		require.NoError(t, err)
		assert.Equal(t, 16, img.Bounds().Dx())
	})

	t.Run("svg", func(t *testing.T) {
		svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10" fill="#00ff00"/></svg>`
		img, err := DecodeLogo([]byte(svg))
		require.NoError(t, err)
		assert.Equal(t, svgLogoSide, img.Bounds().Dx())
		_, g, _, a := img.At(svgLogoSide/2, svgLogoSide/2).RGBA()
		assert.Equal(t, uint32(0xffff), a)
		assert.Equal(t, uint32(0xffff), g)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeLogo([]byte("not an image"))
		assert.ErrorIs(t, err, ErrInvalidLogo)
	})
}

func TestCatalogEntriesAreDispatchable(t *testing.T) {
	for _, m := range ModuleDrawerCatalog() {
		assert.Contains(t, moduleDrawers, m.Name)
	}
	for _, e := range EyeDrawerCatalog() {
		assert.Contains(t, eyeDrawers, e.Name)
	}
	for _, c := range ColorMaskCatalog() {
		assert.Contains(t, colorMasks, c.Name)
	}
	assert.Len(t, ModuleDrawerCatalog(), len(moduleDrawers))
	assert.Len(t, EyeDrawerCatalog(), len(eyeDrawers))
	assert.Len(t, ColorMaskCatalog(), len(colorMasks))
}
