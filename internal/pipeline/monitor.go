package pipeline

import (
	"runtime"
	"sync/atomic"

	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

// MemStats summarizes memory usage information.
type MemStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// GetMemStats captures current memory statistics for the health report.
func GetMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}

// Load is what the engine is working on right now.
type Load struct {
	ScansInFlight     int64 `json:"scans_in_flight"`
	GeneratesInFlight int64 `json:"generates_in_flight"`
	// PeakLadderPixels is the largest pixel total of one resize ladder so
	// far. Every rung is held in memory while a scan runs, so it bounds the
	// grayscale buffers of a single scan.
	PeakLadderPixels int64 `json:"peak_ladder_pixels"`
	// LadderPixelBudget is the pixel total of a square image at the
	// configured maximum dimension plus every resampled rung.
	LadderPixelBudget int64 `json:"ladder_pixel_budget"`
	MaxWorkers        int   `json:"max_workers"`
}

// loadMonitor tracks work in flight across concurrent calls.
type loadMonitor struct {
	scans      atomic.Int64
	generates  atomic.Int64
	peakPixels atomic.Int64
}

// track counts one call in flight until the returned func runs.
func track(counter *atomic.Int64) func() {
	counter.Add(1)
	return func() { counter.Add(-1) }
}

// observeLadder raises the peak ladder size when l is larger.
func (m *loadMonitor) observeLadder(l *preprocess.Ladder) {
	px := ladderPixels(l)
	for {
		cur := m.peakPixels.Load()
		if px <= cur || m.peakPixels.CompareAndSwap(cur, px) {
			return
		}
	}
}

func ladderPixels(l *preprocess.Ladder) int64 {
	var px int64
	for _, c := range l.Candidates {
		b := c.Image.Bounds()
		px += int64(b.Dx()) * int64(b.Dy())
	}
	return px
}

// Load reports the calls in flight and the ladder sizes seen so far.
func (p *Pipeline) Load() Load {
	side := int64(p.cfg.Scan.MaxDimension)
	budget := side * side
	for _, rung := range preprocess.LadderSizes(0) {
		budget += int64(rung) * int64(rung)
	}
	return Load{
		ScansInFlight:     p.load.scans.Load(),
		GeneratesInFlight: p.load.generates.Load(),
		PeakLadderPixels:  p.load.peakPixels.Load(),
		LadderPixelBudget: budget,
		MaxWorkers:        p.cfg.Parallel.MaxWorkers,
	}
}
