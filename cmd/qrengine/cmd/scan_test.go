package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

func TestScanCommand(t *testing.T) {
	assert.NotNil(t, scanCmd)
	assert.True(t, strings.HasPrefix(scanCmd.Use, "scan"))
	assert.NotEmpty(t, scanCmd.Short)
	assert.Same(t, scanCmd, GetScanCommand())

	for _, name := range []string{
		"format", "output", "recursive", "auto-resize", "exhaustive", "try-harder",
		"overlay-dir", "pages", "password", "max-images", "progress",
	} {
		assert.NotNil(t, scanCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestScanText(t *testing.T) {
	path := writeSymbolPNG(t, t.TempDir(), "one.png", "scan me")
	out, _, err := executeCommand(t, "", "scan", path)
	require.NoError(t, err)
	assert.Equal(t, "scan me\n", out)
}

func TestScanFormats(t *testing.T) {
	path := writeSymbolPNG(t, t.TempDir(), "one.png", "formatted")
	tests := []struct {
		format   string
		contains []string
	}{
		{"json", []string{`"text": "formatted"`, `"symbols"`}},
		{"yaml", []string{"text: formatted", "symbols:"}},
		{"csv", []string{"file,index,text", ",0,formatted,M,1,"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _, err := executeCommand(t, "", "scan", path, "--format", tt.format)
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, out, c)
			}
		})
	}
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSymbolPNG(t, dir, "a.png", "first")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	writeSymbolPNG(t, sub, "b.png", "second")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	out, _, err := executeCommand(t, "", "scan", dir, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, decodedTexts(t, out))

	out, _, err = executeCommand(t, "", "scan", dir, "--recursive", "--format", "json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first", "second"}, decodedTexts(t, out))
}

func TestScanNothingFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.png")
	testutil.SaveImage(t, testutil.NoiseImage(120, 120, 7), path)

	out, _, err := executeCommand(t, "", "scan", path, "--format", "json", "--exhaustive")
	require.NoError(t, err)
	assert.Empty(t, decodedTexts(t, out))
}

func TestScanOutputAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeSymbolPNG(t, dir, "code.png", "overlay")
	resultFile := filepath.Join(dir, "codes.csv")
	overlayDir := filepath.Join(dir, "overlays")

	out, _, err := executeCommand(t, "", "scan", path, "--format", "csv", "-o", resultFile, "--overlay-dir", overlayDir)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(resultFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "overlay")
	assert.True(t, testutil.FileExists(filepath.Join(overlayDir, "code_overlay.png")))
}

func TestScanPDF(t *testing.T) {
	dir := t.TempDir()
	img := writeSymbolPNG(t, dir, "page.png", "from pdf")
	pdfPath := filepath.Join(dir, "codes.pdf")
	require.NoError(t, api.ImportImagesFile([]string{img}, pdfPath, nil, nil))

	out, _, err := executeCommand(t, "", "scan", pdfPath, "--format", "json", "--pages", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"from pdf"}, decodedTexts(t, out))
	assert.Contains(t, out, "codes.pdf#p1i0")
}

func TestScanErrors(t *testing.T) {
	dir := t.TempDir()
	notImage := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0o600))
	emptyDir := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(emptyDir, 0o750))
	good := writeSymbolPNG(t, dir, "good.png", "good")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", []string{"scan"}, "requires at least 1 arg"},
		{"missing file", []string{"scan", "/non/existent/file.png"}, "no such file"},
		{"empty dir", []string{"scan", emptyDir}, "no images or PDFs"},
		{"unreadable only", []string{"scan", notImage}, "all 1 input(s) failed"},
		{"bad format", []string{"scan", good, "--format", "xml"}, "unsupported output format"},
		{"bad dedup", []string{"scan", good, "--dedup-iou", "0"}, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScanPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeSymbolPNG(t, dir, "good.png", "still works")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o600))

	out, _, err := executeCommand(t, "", "scan", good, bad)
	require.NoError(t, err)
	assert.Contains(t, out, "still works")
	assert.Contains(t, out, "error:")
}

func TestScanIncludeExcludeAndStats(t *testing.T) {
	dir := t.TempDir()
	writeSymbolPNG(t, dir, "keep.png", "kept")
	writeSymbolPNG(t, dir, "draft_skip.png", "skipped")

	out, errOut, err := executeCommand(t, "", "scan", dir, "--exclude", "draft_*", "--stats", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, decodedTexts(t, out))
	assert.Contains(t, errOut, "Scan Statistics:")
	assert.Contains(t, errOut, "Files: 1")

	_, _, err = executeCommand(t, "", "scan", dir, "--include", "*.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images or PDFs found")
}
