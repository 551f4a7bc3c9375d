package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/decoder"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// Symbol is one decoded symbol in original image coordinates.
type Symbol struct {
	Text string     `json:"text" yaml:"text"`
	Quad utils.Quad `json:"quad" yaml:"quad"`
	// Level is the error correction level read from the format information.
	Level      qr.ECLevel                `json:"error_correction" yaml:"error_correction"`
	Version    int                       `json:"version" yaml:"version"`
	Mask       int                       `json:"mask" yaml:"mask"`
	Corrected  int                       `json:"corrected" yaml:"corrected"`
	Mirrored   bool                      `json:"mirrored,omitempty" yaml:"mirrored,omitempty"`
	ScaleIndex int                       `json:"scale_index" yaml:"scale_index"`
	Structured *decoder.StructuredAppend `json:"structured_append,omitempty" yaml:"structured_append,omitempty"`
}

// ScanResult is the merged outcome of one scan.
type ScanResult struct {
	Symbols []Symbol `json:"symbols" yaml:"symbols"`
	Format  string   `json:"format" yaml:"format"`
	Width   int      `json:"width" yaml:"width"`
	Height  int      `json:"height" yaml:"height"`
	// CandidatesScanned counts the ladder candidates that contributed.
	CandidatesScanned int `json:"candidates_scanned" yaml:"candidates_scanned"`
	// PartialFailures counts located symbols whose content was unrecoverable.
	PartialFailures int           `json:"partial_failures" yaml:"partial_failures"`
	Duration        time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Codes returns the decoded texts in result order.
func (r *ScanResult) Codes() []string {
	codes := make([]string, len(r.Symbols))
	for i, s := range r.Symbols {
		codes[i] = s.Text
	}
	return codes
}

// ScanOptions controls one scan.
type ScanOptions struct {
	AutoResize bool
	Exhaustive bool
	Progress   ProgressCallback
}

// ScanOptions returns the configured scan defaults.
func (p *Pipeline) ScanOptions() ScanOptions {
	return ScanOptions{AutoResize: p.cfg.Scan.AutoResize, Exhaustive: p.cfg.Scan.Exhaustive}
}

// Scan decodes every symbol in the raw image bytes. An image without any
// symbol yields an empty result, not an error; only unreadable or oversized
// input and cancellation fail the call.
func (p *Pipeline) Scan(ctx context.Context, raw []byte, opts ScanOptions) (*ScanResult, error) {
	ladder, err := preprocess.Prepare(raw, preprocess.Options{
		AutoResize:   opts.AutoResize,
		MaxDimension: p.cfg.Scan.MaxDimension,
	})
	if err != nil {
		return nil, err
	}
	return p.ScanLadder(ctx, ladder, opts)
}

// ScanImage scans an already decoded image.
func (p *Pipeline) ScanImage(ctx context.Context, img image.Image, opts ScanOptions) (*ScanResult, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, preprocess.ErrUnreadableImage
	}
	if b.Dx() > p.cfg.Scan.MaxDimension || b.Dy() > p.cfg.Scan.MaxDimension {
		return nil, preprocess.ErrInputTooLarge
	}
	return p.ScanLadder(ctx, preprocess.FromImage(img, "image", opts.AutoResize), opts)
}

// ScanLadder scans the candidates of a prepared ladder. Unless Exhaustive is
// set, candidates after the first one that decodes a symbol are ignored.
// The result does not depend on the number of workers.
func (p *Pipeline) ScanLadder(ctx context.Context, ladder *preprocess.Ladder, opts ScanOptions) (*ScanResult, error) {
	start := time.Now()
	defer track(&p.load.scans)()
	p.load.observeLadder(ladder)
	outcomes, err := p.scanCandidates(ctx, ladder.Candidates, opts)
	if err != nil {
		return nil, err
	}

	res := &ScanResult{Format: ladder.Format, Width: ladder.Width, Height: ladder.Height}
	var found []Symbol
	for _, o := range outcomes {
		if o.skipped {
			break
		}
		res.CandidatesScanned++
		found = append(found, o.symbols...)
		res.PartialFailures += o.partial
		if len(o.symbols) > 0 && !opts.Exhaustive {
			break
		}
	}
	res.Symbols = dedupSymbols(found, p.cfg.Scan.DedupIoU)
	if res.Symbols == nil {
		res.Symbols = []Symbol{}
	}
	res.Duration = time.Since(start)

	p.stats.RecordScan(res.Duration, res.CandidatesScanned, len(res.Symbols))
	slog.Debug("Scan finished", "format", res.Format, "width", res.Width, "height", res.Height,
		"candidates", res.CandidatesScanned, "symbols", len(res.Symbols),
		"partial_failures", res.PartialFailures, "duration", res.Duration)
	return res, nil
}

// candidateOutcome is what one ladder candidate contributed.
type candidateOutcome struct {
	index   int
	symbols []Symbol
	partial int
	skipped bool
}

func (p *Pipeline) scanCandidate(cand preprocess.Candidate) candidateOutcome {
	out := candidateOutcome{index: cand.Index}
	results, errs := decoder.DecodeImageConfig(cand.Image, decoder.Config{Detector: p.detectorConfig()})
	for _, err := range errs {
		if errors.Is(err, decoder.ErrPartialDecode) {
			out.partial++
		}
	}
	inv := 1 / cand.Scale
	for _, r := range results {
		out.symbols = append(out.symbols, Symbol{
			Text:       r.Text,
			Quad:       r.Quad.Scale(inv),
			Level:      r.Level,
			Version:    r.Version,
			Mask:       r.Mask,
			Corrected:  r.Corrected,
			Mirrored:   r.Mirrored,
			ScaleIndex: cand.Index,
			Structured: r.Structured,
		})
	}
	return out
}
