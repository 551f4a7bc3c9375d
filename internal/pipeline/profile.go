package pipeline

import (
	"sync/atomic"
	"time"
)

// Profiler aggregates counters and timers across calls.
type Profiler struct {
	ScanTimeNs        atomic.Int64
	Scans             atomic.Int64
	CandidatesScanned atomic.Int64
	SymbolsDecoded    atomic.Int64
	GenerateTimeNs    atomic.Int64
	Generated         atomic.Int64
}

// RecordScan adds one finished scan.
func (p *Profiler) RecordScan(d time.Duration, candidates, symbols int) {
	p.ScanTimeNs.Add(d.Nanoseconds())
	p.Scans.Add(1)
	p.CandidatesScanned.Add(int64(candidates))
	p.SymbolsDecoded.Add(int64(symbols))
}

// RecordGenerate adds one finished generation.
func (p *Profiler) RecordGenerate(d time.Duration) {
	p.GenerateTimeNs.Add(d.Nanoseconds())
	p.Generated.Add(1)
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	scans := p.Scans.Load()
	gens := p.Generated.Load()
	scanNs := p.ScanTimeNs.Load()
	genNs := p.GenerateTimeNs.Load()
	out := map[string]any{
		"scans":              scans,
		"candidates_scanned": p.CandidatesScanned.Load(),
		"symbols_decoded":    p.SymbolsDecoded.Load(),
		"scan_ms_total":      scanNs / 1_000_000,
		"generated":          gens,
		"generate_ms_total":  genNs / 1_000_000,
	}
	if scans > 0 {
		out["scan_ms_per_call"] = float64(scanNs) / 1_000_000.0 / float64(scans)
	}
	if gens > 0 {
		out["generate_ms_per_call"] = float64(genNs) / 1_000_000.0 / float64(gens)
	}
	return out
}
