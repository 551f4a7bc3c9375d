package pipeline

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

// ParallelConfig holds configuration for the ladder worker pool.
type ParallelConfig struct {
	MaxWorkers int // Number of parallel workers (0 = runtime.NumCPU())
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// candidateJob is one ladder candidate handed to a worker.
type candidateJob struct {
	cand preprocess.Candidate
}

// scanCandidates fans the candidates out to a worker pool and returns their
// outcomes in candidate order. Without Exhaustive, a worker skips any
// candidate after the lowest index that has already produced a symbol; those
// candidates would be discarded by the in-order merge anyway.
func (p *Pipeline) scanCandidates(ctx context.Context, cands []preprocess.Candidate, opts ScanOptions) ([]candidateOutcome, error) {
	outcomes := make([]candidateOutcome, len(cands))
	if len(cands) == 0 {
		return outcomes, nil
	}

	if opts.Progress != nil {
		opts.Progress.OnStart(len(cands))
		defer opts.Progress.OnComplete()
	}

	var firstHit atomic.Int64
	firstHit.Store(math.MaxInt64)

	workers := min(max(p.cfg.Parallel.MaxWorkers, 1), len(cands))
	jobs := make(chan candidateJob, len(cands))
	results := make(chan candidateOutcome, len(cands))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg, &firstHit, opts.Exhaustive)
	}

	go func() {
		defer close(jobs)
		for _, c := range cands {
			select {
			case jobs <- candidateJob{cand: c}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for r := range results {
		outcomes[r.index] = r
		processed++
		if opts.Progress != nil {
			opts.Progress.OnProgress(processed, len(cands))
			if obs, ok := opts.Progress.(CandidateObserver); ok {
				c := cands[r.index]
				obs.OnCandidate(CandidateReport{
					Index:   r.index,
					Scale:   c.Scale,
					Width:   c.Image.Rect.Dx(),
					Height:  c.Image.Rect.Dy(),
					Found:   len(r.symbols),
					Partial: r.partial,
					Skipped: r.skipped,
				})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// worker scans candidates from the jobs channel.
func (p *Pipeline) worker(
	ctx context.Context,
	jobs <-chan candidateJob,
	results chan<- candidateOutcome,
	wg *sync.WaitGroup,
	firstHit *atomic.Int64,
	exhaustive bool,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}

			var out candidateOutcome
			if !exhaustive && int64(job.cand.Index) > firstHit.Load() {
				out = candidateOutcome{index: job.cand.Index, skipped: true}
			} else {
				out = p.scanCandidate(job.cand)
				if len(out.symbols) > 0 && !exhaustive {
					lowerHit(firstHit, int64(job.cand.Index))
				}
			}

			select {
			case results <- out:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// lowerHit stores idx if it is below the current first hit.
func lowerHit(hit *atomic.Int64, idx int64) {
	for {
		cur := hit.Load()
		if idx >= cur || hit.CompareAndSwap(cur, idx) {
			return
		}
	}
}
