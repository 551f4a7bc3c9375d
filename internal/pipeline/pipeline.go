// Package pipeline wires the engine together: it generates styled symbols,
// scans images through the preprocessing ladder with a worker pool and
// merges the per-candidate results, and scans the images embedded in PDFs.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/qrengine/internal/barcode"
	"github.com/MeKo-Tech/qrengine/internal/detector"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

// DefaultDedupIoU is the overlap above which two detections are the same
// symbol.
const DefaultDedupIoU = 0.5

// ScanConfig holds the scan defaults.
type ScanConfig struct {
	AutoResize   bool
	Exhaustive   bool
	TryHarder    bool
	MaxDimension int
	DedupIoU     float64
}

// VerifyConfig controls the generation round-trip check.
type VerifyConfig struct {
	Enabled bool
	Backend string
}

// Config holds configuration for the engine pipeline.
type Config struct {
	Scan     ScanConfig
	Verify   VerifyConfig
	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Scan: ScanConfig{
			AutoResize:   true,
			MaxDimension: preprocess.DefaultMaxDimension,
			DedupIoU:     DefaultDedupIoU,
		},
		Verify:   VerifyConfig{Backend: barcode.BackendNative},
		Parallel: DefaultParallelConfig(),
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Scan.DedupIoU <= 0 || c.Scan.DedupIoU > 1 {
		return fmt.Errorf("dedup IoU must be in (0,1], got %v", c.Scan.DedupIoU)
	}
	if c.Scan.MaxDimension < 0 {
		return errors.New("max dimension must not be negative")
	}
	if c.Parallel.MaxWorkers < 0 {
		return errors.New("max workers must not be negative")
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithAutoResize toggles the resize ladder.
func (b *Builder) WithAutoResize(on bool) *Builder {
	b.cfg.Scan.AutoResize = on
	return b
}

// WithExhaustive makes scans merge every ladder candidate instead of
// stopping at the first one that finds a symbol.
func (b *Builder) WithExhaustive(on bool) *Builder {
	b.cfg.Scan.Exhaustive = on
	return b
}

// WithTryHarder scans every row when looking for finder patterns.
func (b *Builder) WithTryHarder(on bool) *Builder {
	b.cfg.Scan.TryHarder = on
	return b
}

// WithMaxDimension caps the accepted image width and height.
func (b *Builder) WithMaxDimension(px int) *Builder {
	if px > 0 {
		b.cfg.Scan.MaxDimension = px
	}
	return b
}

// WithDedupIoU sets the overlap threshold for merging detections.
func (b *Builder) WithDedupIoU(iou float64) *Builder {
	if iou > 0 {
		b.cfg.Scan.DedupIoU = iou
	}
	return b
}

// WithMaxWorkers bounds the scan worker pool (0 = runtime.NumCPU()).
func (b *Builder) WithMaxWorkers(n int) *Builder {
	if n >= 0 {
		b.cfg.Parallel.MaxWorkers = n
	}
	return b
}

// WithVerify enables the generation round trip through the named backend.
func (b *Builder) WithVerify(enabled bool, backend string) *Builder {
	b.cfg.Verify.Enabled = enabled
	if backend != "" {
		b.cfg.Verify.Backend = backend
	}
	return b
}

// Config returns a copy of the current builder config.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	verifier, err := barcode.New(b.cfg.Verify.Backend)
	if err != nil {
		return nil, err
	}
	cfg := b.cfg
	if cfg.Parallel.MaxWorkers == 0 {
		cfg.Parallel.MaxWorkers = runtime.NumCPU()
	}
	return &Pipeline{cfg: cfg, verifier: verifier, stats: &Profiler{}, load: &loadMonitor{}}, nil
}

// Pipeline runs generation and scans. It holds no per-call state and is
// safe for concurrent use.
type Pipeline struct {
	cfg      Config
	verifier barcode.Backend
	stats    *Profiler
	load     *loadMonitor
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Stats returns cumulative counters.
func (p *Pipeline) Stats() map[string]any { return p.stats.Snapshot() }

func (p *Pipeline) detectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.TryHarder = p.cfg.Scan.TryHarder
	return cfg
}
