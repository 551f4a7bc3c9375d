package pipeline

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

func TestGenerate_PNG(t *testing.T) {
	p := newTestPipeline(t)
	out, err := p.Generate(context.Background(), GenerateRequest{Data: []byte("https://example.com"), Level: qr.LevelM})
	require.NoError(t, err)

	assert.Equal(t, render.FormatPNG, out.Format)
	side := (out.Symbol.Size() + 2*DefaultBorder) * DefaultBoxSize
	assert.Equal(t, side, out.Width)
	assert.Equal(t, side, out.Height)

	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, side, img.Bounds().Dx())
}

func intPtr(v int) *int { return &v }

func TestGenerate_Border(t *testing.T) {
	p := newTestPipeline(t)
	tests := []struct {
		name   string
		border *int
		want   int
	}{
		{"omitted uses the default quiet zone", nil, DefaultBorder},
		{"explicit zero", intPtr(0), 0},
		{"explicit", intPtr(7), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := GenerateRequest{Data: []byte("quiet zone"), Level: qr.LevelM, BoxSize: 2, Border: tt.border}
			out, err := p.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, (out.Symbol.Size()+2*tt.want)*2, out.Width)
			assert.Equal(t, tt.border, req.Border, "the caller's request is not modified")
		})
	}
}

func TestGenerate_VerifiedRoundTrip(t *testing.T) {
	styled := render.DefaultStyle()
	styled.Module.Type = render.ModuleRounded
	styled.Eye.Type = render.EyeCircle
	styled.Mask = render.ColorMask{
		Type:        render.MaskRadialGradient,
		CenterColor: color.NRGBA{R: 20, G: 20, B: 120, A: 255},
		EdgeColor:   color.NRGBA{R: 60, A: 255},
	}

	for _, backend := range []string{"native", "zxing"} {
		t.Run(backend, func(t *testing.T) {
			p := newTestPipeline(t, func(b *Builder) { b.WithVerify(true, backend) })
			for _, req := range []GenerateRequest{
				{Data: []byte("plain"), Level: qr.LevelL},
				{Data: []byte("styled"), Level: qr.LevelH, Style: &styled},
				{Data: []byte("resized"), Level: qr.LevelQ, FinalSize: 400},
				{Data: []byte("vector"), Level: qr.LevelM, Format: render.FormatSVG},
			} {
				_, err := p.Generate(context.Background(), req)
				assert.NoError(t, err, string(req.Data))
			}
		})
	}
}

func TestGenerate_VerifyOverride(t *testing.T) {
	p := newTestPipeline(t)
	on := true
	_, err := p.Generate(context.Background(), GenerateRequest{Data: []byte("check"), Verify: &on})
	require.NoError(t, err)
}

func TestGenerate_TextFormats(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	svg, err := p.Generate(ctx, GenerateRequest{Data: []byte("svg"), Format: render.FormatSVGPath, Border: intPtr(2)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg.Data), "<?xml"))
	assert.Contains(t, string(svg.Data), "<path")
	assert.Nil(t, svg.Image)

	ascii, err := p.Generate(ctx, GenerateRequest{Data: []byte("ascii"), Format: render.FormatASCII, Border: intPtr(1)})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(ascii.Data), "\n"), "\n")
	assert.Len(t, lines, ascii.Height)
	assert.Equal(t, ascii.Width, len([]rune(lines[0])))
}

func TestGenerate_FinalSize(t *testing.T) {
	p := newTestPipeline(t)
	out, err := p.Generate(context.Background(), GenerateRequest{Data: []byte("x"), FinalSize: 150})
	require.NoError(t, err)
	assert.Equal(t, 150, out.Width)
	assert.Equal(t, 150, out.Image.Bounds().Dy())
}

func TestGenerate_Logo(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithVerify(true, "native") })
	logo := testutil.Flat(40, 40, color.NRGBA{R: 200, A: 255})
	out, err := p.Generate(context.Background(), GenerateRequest{Data: []byte("with a logo embedded in the middle of the symbol"), Level: qr.LevelH, Logo: logo})
	require.NoError(t, err)

	cx, cy := out.Width/2, out.Height/2
	r, g, _, _ := out.Image.At(cx, cy).RGBA()
	assert.Greater(t, r, g)
}

func TestGenerate_InvalidRequests(t *testing.T) {
	p := newTestPipeline(t)
	style := render.DefaultStyle()
	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"box size", GenerateRequest{Data: []byte("a"), BoxSize: MaxBoxSize + 1}},
		{"border", GenerateRequest{Data: []byte("a"), Border: intPtr(-1)}},
		{"version", GenerateRequest{Data: []byte("a"), MinVersion: 41}},
		{"final size small", GenerateRequest{Data: []byte("a"), FinalSize: MinFinalSize - 1}},
		{"final size svg", GenerateRequest{Data: []byte("a"), FinalSize: 200, Format: render.FormatSVG}},
		{"style svg", GenerateRequest{Data: []byte("a"), Format: render.FormatSVG, Style: &style}},
		{"format", GenerateRequest{Data: []byte("a"), Format: "bmp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestGenerate_EngineErrors(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Generate(context.Background(), GenerateRequest{
		Data:  bytes.Repeat([]byte{0xA5}, 1274),
		Level: qr.LevelH,
	})
	require.ErrorIs(t, err, encoder.ErrCapacityExceeded)

	bad := render.DefaultStyle()
	bad.Module.Type = "hexagon"
	_, err = p.Generate(context.Background(), GenerateRequest{Data: []byte("a"), Style: &bad})
	require.ErrorIs(t, err, render.ErrUnsupportedStyle)
}
