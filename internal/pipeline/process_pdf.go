package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrengine/internal/pdf"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

// PDFOptions selects the pages and images of a PDF scan.
type PDFOptions struct {
	Pages     string
	Password  string
	MaxImages int
	Scan      ScanOptions
}

// PDFImageResult holds the symbols of one embedded image.
type PDFImageResult struct {
	Index   int      `json:"index" yaml:"index"`
	Width   int      `json:"width" yaml:"width"`
	Height  int      `json:"height" yaml:"height"`
	Symbols []Symbol `json:"symbols" yaml:"symbols"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// PDFPageResult groups the image results of one page.
type PDFPageResult struct {
	Page   int              `json:"page" yaml:"page"`
	Images []PDFImageResult `json:"images" yaml:"images"`
}

// PDFScanResult is the outcome of ScanPDF.
type PDFScanResult struct {
	Filename     string          `json:"filename" yaml:"filename"`
	Pages        []PDFPageResult `json:"pages" yaml:"pages"`
	TotalSymbols int             `json:"total_symbols" yaml:"total_symbols"`
	Duration     time.Duration   `json:"duration_ns" yaml:"duration_ns"`
}

// Codes returns every decoded text in page and image order.
func (r *PDFScanResult) Codes() []string {
	var codes []string
	for _, p := range r.Pages {
		for _, img := range p.Images {
			for _, s := range img.Symbols {
				codes = append(codes, s.Text)
			}
		}
	}
	return codes
}

// ScanPDF extracts the embedded images of a PDF and scans each of them.
// Images are scanned concurrently, bounded by the worker setting; an image
// that cannot be scanned is reported on its entry and does not fail the
// document.
func (p *Pipeline) ScanPDF(ctx context.Context, filename string, opts PDFOptions) (*PDFScanResult, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}
	start := time.Now()

	pages, err := pdf.ExtractImages(filename, pdf.Options{
		Pages:     opts.Pages,
		Password:  opts.Password,
		MaxImages: opts.MaxImages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	res := &PDFScanResult{Filename: filename, Pages: make([]PDFPageResult, len(pages))}
	total := 0
	for i, pg := range pages {
		res.Pages[i] = PDFPageResult{Page: pg.Number, Images: make([]PDFImageResult, len(pg.Images))}
		total += len(pg.Images)
	}

	progress := opts.Scan.Progress
	scanOpts := opts.Scan
	scanOpts.Progress = nil
	if progress != nil {
		progress.OnStart(total)
		defer progress.OnComplete()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Parallel.MaxWorkers, 1))
	var done atomic.Int64
	for pi, pg := range pages {
		for ii, img := range pg.Images {
			g.Go(func() error {
				entry := &res.Pages[pi].Images[ii]
				entry.Index = ii
				entry.Width, entry.Height = img.Bounds().Dx(), img.Bounds().Dy()

				sr, err := p.ScanImage(gctx, img, scanOpts)
				switch {
				case err == nil:
					entry.Symbols = sr.Symbols
				case errors.Is(err, preprocess.ErrInputTooLarge), errors.Is(err, preprocess.ErrUnreadableImage):
					slog.Warn("Skipping PDF image", "page", pg.Number, "image", ii, "error", err)
					entry.Symbols = []Symbol{}
					entry.Error = err.Error()
				default:
					return fmt.Errorf("page %d image %d: %w", pg.Number, ii, err)
				}
				if progress != nil {
					progress.OnProgress(int(done.Add(1)), total)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, pg := range res.Pages {
		for _, img := range pg.Images {
			res.TotalSymbols += len(img.Symbols)
		}
	}
	res.Duration = time.Since(start)
	slog.Debug("PDF scan finished", "file", filename, "pages", len(res.Pages),
		"images", total, "symbols", res.TotalSymbols, "duration", res.Duration)
	return res, nil
}
