// Package batch scans many files with a bounded number of workers.
package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
)

// Scanner is the part of the pipeline a batch needs.
type Scanner interface {
	Scan(ctx context.Context, raw []byte, opts pipeline.ScanOptions) (*pipeline.ScanResult, error)
	ScanPDF(ctx context.Context, filename string, opts pipeline.PDFOptions) (*pipeline.PDFScanResult, error)
}

// Run discovers the inputs and scans them. Per-file failures are recorded
// in the results; only discovery errors and cancellation fail the run.
func Run(ctx context.Context, s Scanner, inputs []string, cfg Config) (*Result, error) {
	files, err := DiscoverFiles(inputs, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	return ScanFiles(ctx, s, files, cfg)
}

// ScanFiles scans files in parallel and returns the results in file order.
func ScanFiles(ctx context.Context, s Scanner, files []string, cfg Config) (*Result, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(len(files), 1))

	progress := cfg.Progress
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}
	progress.OnStart(len(files))

	perFile := make([][]pipeline.FileResult, len(files))
	var (
		mu   sync.Mutex
		done int
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = scanFile(gctx, s, path, &cfg)

			mu.Lock()
			done++
			progress.OnProgress(done, len(files))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.OnComplete()

	var results []pipeline.FileResult
	for _, r := range perFile {
		results = append(results, r...)
	}
	return &Result{
		Results:     results,
		Files:       files,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}, nil
}
