package batch

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
)

// Config holds all configuration for a batch scan.
type Config struct {
	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Input limits
	MaxFileBytes int64

	// PDF settings
	Pages        string
	PDFPassword  string
	PDFMaxImages int

	// Scan settings applied to every image
	Scan pipeline.ScanOptions

	// Overlay settings; an empty OverlayDir disables overlays.
	OverlayDir   string
	OverlayColor color.Color

	// Progress is told about finished files, not candidates.
	Progress pipeline.ProgressCallback
}

// Result holds the result of a batch scan. Results are in input order; a
// PDF contributes one entry per embedded image.
type Result struct {
	Results     []pipeline.FileResult
	Files       []string
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	Files            int
	Results          int
	Failed           int
	Symbols          int
	Duration         time.Duration
	WorkerCount      int
	ThroughputPerSec float64
}

// Failed counts the results that carry an error.
func (r *Result) Failed() int {
	n := 0
	for _, fr := range r.Results {
		if fr.Error != "" {
			n++
		}
	}
	return n
}

// AllFailed reports whether there were results and every one failed.
func (r *Result) AllFailed() bool {
	return len(r.Results) > 0 && r.Failed() == len(r.Results)
}

// Stats computes the run summary.
func (r *Result) Stats() Stats {
	s := Stats{
		Files:       len(r.Files),
		Results:     len(r.Results),
		Failed:      r.Failed(),
		Duration:    r.Duration,
		WorkerCount: r.WorkerCount,
	}
	for _, fr := range r.Results {
		if fr.Result != nil {
			s.Symbols += len(fr.Result.Symbols)
		}
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.Files) / r.Duration.Seconds()
	}
	return s
}

// FormatResults formats the batch results in one of pipeline.OutputFormats.
func (r *Result) FormatResults(format string) (string, error) {
	return pipeline.FormatResults(r.Results, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o644); err != nil { //nolint:gosec // G306: results file
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nScan Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Files: %d\n", stats.Files)
	_, _ = fmt.Fprintf(w, "  Results: %d\n", stats.Results)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Symbols: %d\n", stats.Symbols)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f files/sec\n", stats.ThroughputPerSec)
}
