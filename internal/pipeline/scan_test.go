package pipeline

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

func TestScan_Single(t *testing.T) {
	p := newTestPipeline(t)
	raw := testutil.EncodePNG(t, symbolImage(t, "hello", 5))

	res, err := p.Scan(context.Background(), raw, p.ScanOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, res.Codes())
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, 1, res.CandidatesScanned, "the original already decodes")

	s := res.Symbols[0]
	assert.Equal(t, qr.LevelM, s.Level)
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, 0, s.ScaleIndex)
	assert.NoError(t, ValidateScanResult(res))

	b := s.Quad.Bounds()
	assert.InDelta(t, 20, b.MinX, 3)
	assert.InDelta(t, 125, b.MaxX, 3)
}

func TestScan_ExhaustiveDeduplicates(t *testing.T) {
	p := newTestPipeline(t)
	raw := testutil.EncodePNG(t, symbolImage(t, "hello", 5))

	opts := p.ScanOptions()
	opts.Exhaustive = true
	res, err := p.Scan(context.Background(), raw, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, res.Codes())
	assert.Greater(t, res.CandidatesScanned, 1)
	assert.Equal(t, 0, res.Symbols[0].ScaleIndex, "lowest scale index wins")
}

func TestScan_NoAutoResize(t *testing.T) {
	p := newTestPipeline(t)
	raw := testutil.EncodePNG(t, symbolImage(t, "solo", 4))
	res, err := p.Scan(context.Background(), raw, ScanOptions{Exhaustive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CandidatesScanned)
	assert.Equal(t, []string{"solo"}, res.Codes())
}

func TestScan_TwoSymbolsOrdered(t *testing.T) {
	canvas := testutil.NewCanvas(420, 200)
	testutil.Paste(canvas, symbolImage(t, "right", 5), 250, 30)
	testutil.Paste(canvas, symbolImage(t, "left", 5), 20, 10)
	raw := testutil.EncodePNG(t, canvas)

	p := newTestPipeline(t)
	opts := p.ScanOptions()
	opts.Exhaustive = true
	res, err := p.Scan(context.Background(), raw, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, res.Codes())
}

func TestScan_GridReadingOrder(t *testing.T) {
	// Left edges in each column differ by a pixel or two.
	canvas := testutil.NewCanvas(420, 430)
	testutil.Paste(canvas, symbolImage(t, "cell 0", 5), 10, 10)
	testutil.Paste(canvas, symbolImage(t, "cell 1", 5), 260, 12)
	testutil.Paste(canvas, symbolImage(t, "cell 2", 5), 9, 270)
	testutil.Paste(canvas, symbolImage(t, "cell 3", 5), 261, 268)
	raw := testutil.EncodePNG(t, canvas)

	p := newTestPipeline(t)
	res, err := p.Scan(context.Background(), raw, p.ScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"cell 0", "cell 2", "cell 1", "cell 3"}, res.Codes())
	assert.Zero(t, res.PartialFailures, "triples across neighbouring symbols are not damaged symbols")
}

func TestScan_RotatedSymbol(t *testing.T) {
	sym, err := encoder.Encode([]byte("turned on its side"), qr.LevelM, encoder.Options{MinVersion: 3})
	require.NoError(t, err)
	img := testutil.RasterizeMatrix(sym.Modules, 6, 4)
	p := newTestPipeline(t)

	for _, angle := range []float64{30, 45, -20, 135} {
		raw := testutil.EncodePNG(t, imaging.Rotate(img, angle, color.White))
		res, err := p.Scan(context.Background(), raw, p.ScanOptions())
		require.NoError(t, err, "angle=%v", angle)
		assert.Equal(t, []string{"turned on its side"}, res.Codes(), "angle=%v", angle)
	}
}

func TestScan_NothingFound(t *testing.T) {
	p := newTestPipeline(t)
	tests := []struct {
		name string
		img  image.Image
	}{
		{"blank", testutil.Flat(300, 300, color.White)},
		{"noise", testutil.NoiseImage(200, 160, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Scan(context.Background(), testutil.EncodePNG(t, tt.img), p.ScanOptions())
			require.NoError(t, err)
			assert.Empty(t, res.Symbols)
			assert.NotNil(t, res.Symbols)
			assert.Empty(t, res.Codes())
		})
	}
}

func TestScan_InputErrors(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithMaxDimension(100) })

	_, err := p.Scan(context.Background(), []byte("not an image"), p.ScanOptions())
	require.ErrorIs(t, err, preprocess.ErrUnreadableImage)

	raw := testutil.EncodePNG(t, symbolImage(t, "big", 5))
	_, err = p.Scan(context.Background(), raw, p.ScanOptions())
	require.ErrorIs(t, err, preprocess.ErrInputTooLarge)

	_, err = p.ScanImage(context.Background(), symbolImage(t, "big", 5), p.ScanOptions())
	require.ErrorIs(t, err, preprocess.ErrInputTooLarge)
}

func TestScan_Cancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ScanImage(ctx, symbolImage(t, "late", 5), p.ScanOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestScan_WorkerCountIndependent(t *testing.T) {
	canvas := testutil.NewCanvas(420, 200)
	testutil.Paste(canvas, symbolImage(t, "one", 4), 10, 10)
	testutil.Paste(canvas, symbolImage(t, "two", 6), 220, 20)

	var results []*ScanResult
	for _, workers := range []int{1, 2, 8} {
		for _, exhaustive := range []bool{false, true} {
			p := newTestPipeline(t, func(b *Builder) { b.WithMaxWorkers(workers) })
			res, err := p.ScanImage(context.Background(), canvas, ScanOptions{AutoResize: true, Exhaustive: exhaustive})
			require.NoError(t, err)
			res.Duration = 0
			results = append(results, res)
		}
	}
	for i := 2; i < len(results); i++ {
		assert.Equal(t, results[i%2], results[i])
	}
}

func TestScanLadder_MapsQuadsToOriginal(t *testing.T) {
	sym := symbolImage(t, "scaled", 8)
	ladder := &preprocess.Ladder{
		Format: "test",
		Width:  sym.Rect.Dx() / 2,
		Height: sym.Rect.Dy() / 2,
		Candidates: []preprocess.Candidate{
			{Index: 0, Image: preprocess.ToGray(testutil.Flat(80, 80, color.White)), Scale: 1},
			{Index: 1, Image: sym, Scale: 2},
		},
	}

	p := newTestPipeline(t)
	res, err := p.ScanLadder(context.Background(), ladder, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, 2, res.CandidatesScanned)
	assert.Equal(t, 1, res.Symbols[0].ScaleIndex)

	b := res.Symbols[0].Quad.Bounds()
	assert.InDelta(t, 16, b.MinX, 2)
	assert.InDelta(t, 16+21*4, b.MaxX, 2)
}

func TestScan_ProgressReportsSkips(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithMaxWorkers(1) })

	var mu sync.Mutex
	var reports []CandidateReport
	opts := ScanOptions{AutoResize: true, Progress: NewFuncProgress(func(r CandidateReport, _, _ int) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	})}
	img := symbolImage(t, "progress", 5)
	res, err := p.ScanImage(context.Background(), img, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"progress"}, res.Codes())

	want := len(preprocess.FromImage(img, "", true).Candidates)
	require.Len(t, reports, want)
	assert.Equal(t, 0, reports[0].Index)
	assert.GreaterOrEqual(t, reports[0].Found, 1)
	for _, r := range reports[1:] {
		assert.True(t, r.Skipped, "candidate %d", r.Index)
	}
}

func TestDedupSymbols(t *testing.T) {
	square := func(x, y, side float64) utils.Quad {
		return utils.Quad{{X: x, Y: y}, {X: x + side, Y: y}, {X: x + side, Y: y + side}, {X: x, Y: y + side}}
	}
	in := []Symbol{
		{Text: "b", Quad: square(200, 0, 100), ScaleIndex: 0},
		{Text: "a", Quad: square(0, 50, 100), ScaleIndex: 0},
		{Text: "b", Quad: square(205, 3, 100), ScaleIndex: 2},
		{Text: "c", Quad: square(0, 300, 100), ScaleIndex: 2},
		{Text: "a-shifted", Quad: square(60, 50, 100), ScaleIndex: 3},
	}
	out := dedupSymbols(in, DefaultDedupIoU)

	var texts []string
	for _, s := range out {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"a", "c", "a-shifted", "b"}, texts)
	assert.Equal(t, 0, out[3].ScaleIndex)
	assert.Empty(t, dedupSymbols(nil, DefaultDedupIoU))
}

func TestReadingOrder(t *testing.T) {
	square := func(x, y float64) utils.Quad {
		return utils.Quad{{X: x, Y: y}, {X: x + 100, Y: y}, {X: x + 100, Y: y + 100}, {X: x, Y: y + 100}}
	}
	tests := []struct {
		name string
		in   []Symbol
		want []string
	}{
		{
			name: "column with jittered left edges",
			in: []Symbol{
				{Text: "bottom", Quad: square(9.6, 300)},
				{Text: "top", Quad: square(10.2, 10)},
			},
			want: []string{"top", "bottom"},
		},
		{
			name: "two by two grid",
			in: []Symbol{
				{Text: "cell 3", Quad: square(251, 260)},
				{Text: "cell 2", Quad: square(9, 262)},
				{Text: "cell 1", Quad: square(250, 11)},
				{Text: "cell 0", Quad: square(10, 10)},
			},
			want: []string{"cell 0", "cell 2", "cell 1", "cell 3"},
		},
		{
			name: "offset beyond half a width starts a new column",
			in: []Symbol{
				{Text: "right", Quad: square(70, 0)},
				{Text: "left", Quad: square(0, 200)},
			},
			want: []string{"left", "right"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readingOrder(tt.in)
			got := make([]string, 0, len(tt.in))
			for _, s := range tt.in {
				got = append(got, s.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanPDF(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "code.png")
	testutil.SaveImage(t, symbolImage(t, "from pdf", 6), imgPath)
	pdfPath := filepath.Join(dir, "codes.pdf")
	require.NoError(t, api.ImportImagesFile([]string{imgPath}, pdfPath, nil, nil))

	p := newTestPipeline(t)
	res, err := p.ScanPDF(context.Background(), pdfPath, PDFOptions{Scan: p.ScanOptions()})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 1, res.Pages[0].Page)
	assert.Equal(t, []string{"from pdf"}, res.Codes())
	assert.Equal(t, 1, res.TotalSymbols)

	_, err = p.ScanPDF(context.Background(), "", PDFOptions{})
	require.Error(t, err)
	_, err = p.ScanPDF(context.Background(), filepath.Join(dir, "missing.pdf"), PDFOptions{})
	require.Error(t, err)
}
