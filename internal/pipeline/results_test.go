package pipeline

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

func sampleResults() []FileResult {
	quad := utils.Quad{{X: 10, Y: 10}, {X: 60, Y: 10}, {X: 60, Y: 60}, {X: 10, Y: 60}}
	return []FileResult{
		{File: "a.png", Result: &ScanResult{
			Format: "png", Width: 100, Height: 100, CandidatesScanned: 1,
			Symbols: []Symbol{{Text: "first", Quad: quad, Level: qr.LevelQ, Version: 2}},
		}},
		{File: "b.png", Error: "unreadable image"},
	}
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := FormatResults(sampleResults(), OutputJSON)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	sym := decoded[0]["result"].(map[string]any)["symbols"].([]any)[0].(map[string]any)
	assert.Equal(t, "first", sym["text"])
	assert.Equal(t, "Q", sym["error_correction"])
	assert.Equal(t, "unreadable image", decoded[1]["error"])
}

func TestFormatResults_YAML(t *testing.T) {
	out, err := FormatResults(sampleResults(), "YAML")
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "a.png", decoded[0]["file"])
	assert.Contains(t, out, "error_correction: Q")
}

func TestFormatResults_TextAndCSV(t *testing.T) {
	text, err := FormatResults(sampleResults(), OutputText)
	require.NoError(t, err)
	assert.Equal(t, "== a.png\nfirst\n== b.png\nerror: unreadable image\n", text)

	single, err := FormatResults(sampleResults()[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "first\n", single)

	csv, err := FormatResults(sampleResults(), OutputCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "file,index,text"))
	assert.Equal(t, "a.png,0,first,Q,2,10.0,10.0,60.0,10.0,60.0,60.0,10.0,60.0", lines[1])

	_, err = FormatResults(nil, "xml")
	require.Error(t, err)
}

func TestValidateScanResult(t *testing.T) {
	require.Error(t, ValidateScanResult(nil))

	res := sampleResults()[0].Result
	require.NoError(t, ValidateScanResult(res))

	res.Symbols[0].Quad[2] = utils.Point{X: 500, Y: 60}
	require.ErrorContains(t, ValidateScanResult(res), "outside")

	res.Symbols[0].Version = 41
	require.ErrorContains(t, ValidateScanResult(res), "version")
}

func TestRenderOverlay(t *testing.T) {
	base := image.NewGray(image.Rect(0, 0, 100, 100))
	res := sampleResults()[0].Result
	out := RenderOverlay(base, res, OverlayOutline, OverlayCorner)
	require.NotNil(t, out)

	assert.Equal(t, color.RGBAModel.Convert(OverlayOutline), out.At(35, 10))
	assert.Equal(t, color.RGBAModel.Convert(OverlayCorner), out.At(10, 10))
	assert.Equal(t, color.RGBA{A: 255}, out.At(35, 35))

	assert.Nil(t, RenderOverlay(nil, res, OverlayOutline, OverlayCorner))
	assert.NotNil(t, RenderOverlay(base, nil, OverlayOutline, OverlayCorner))
}

func TestProgressCallbacks(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsoleProgressCallback(&buf, "scan ").WithWidth(10)
	multi := NewMultiProgressCallback(console, NoOpProgressCallback{})

	var got []CandidateReport
	multi.callbacks = append(multi.callbacks, NewFuncProgress(func(r CandidateReport, _, _ int) {
		got = append(got, r)
	}))

	multi.OnStart(2)
	multi.OnProgress(1, 2)
	multi.OnCandidate(CandidateReport{Index: 0, Found: 1})
	multi.OnProgress(2, 2)
	multi.OnComplete()

	assert.Contains(t, buf.String(), "scan [░░░░░░░░░░] 0/2")
	assert.Contains(t, buf.String(), "2/2")
	assert.Contains(t, buf.String(), "done in")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Found)
}
