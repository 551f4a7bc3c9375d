package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats for scan results.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputCSV  = "csv"
)

// OutputFormats lists the scan result formats.
var OutputFormats = []string{OutputText, OutputJSON, OutputYAML, OutputCSV}

// FileResult is the scan outcome of one input file.
type FileResult struct {
	File   string      `json:"file" yaml:"file"`
	Result *ScanResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// FormatResults renders file results in one of OutputFormats.
func FormatResults(results []FileResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", OutputText:
		return ToPlainText(results), nil
	case OutputJSON:
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case OutputYAML:
		b, err := yaml.Marshal(results)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case OutputCSV:
		return ToCSV(results)
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

// ToPlainText prints one decoded text per line. Several files are
// separated by a header line each.
func ToPlainText(results []FileResult) string {
	var sb strings.Builder
	for _, r := range results {
		if len(results) > 1 {
			fmt.Fprintf(&sb, "== %s\n", r.File)
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, "error: %s\n", r.Error)
			continue
		}
		if r.Result == nil {
			continue
		}
		for _, s := range r.Result.Symbols {
			sb.WriteString(s.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ToCSV exports one row per symbol with its outline.
func ToCSV(results []FileResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"file", "index", "text", "error_correction", "version", "x1", "y1", "x2", "y2", "x3", "y3", "x4", "y4"})
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		for i, s := range r.Result.Symbols {
			row := []string{r.File, strconv.Itoa(i), s.Text, s.Level.String(), strconv.Itoa(s.Version)}
			for _, p := range s.Quad {
				row = append(row, fmt.Sprintf("%.1f", p.X), fmt.Sprintf("%.1f", p.Y))
			}
			_ = w.Write(row)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateScanResult checks that every symbol lies within the image.
func ValidateScanResult(res *ScanResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	for i, s := range res.Symbols {
		if s.Version < 1 || s.Version > 40 {
			return fmt.Errorf("symbol %d: version %d out of range", i, s.Version)
		}
		b := s.Quad.Bounds()
		const slack = 2
		if b.MinX < -slack || b.MinY < -slack || b.MaxX > float64(res.Width)+slack || b.MaxY > float64(res.Height)+slack {
			return fmt.Errorf("symbol %d: outline (%.0f,%.0f)-(%.0f,%.0f) outside %dx%d image",
				i, b.MinX, b.MinY, b.MaxX, b.MaxY, res.Width, res.Height)
		}
	}
	return nil
}
