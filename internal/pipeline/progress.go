package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while a scan works through its
// candidates, or a PDF scan through its images.
type ProgressCallback interface {
	// OnStart is called when processing begins with the total number of items.
	OnStart(total int)

	// OnProgress is called after every finished item.
	OnProgress(current, total int)

	// OnComplete is called when processing is finished.
	OnComplete()
}

// CandidateReport describes one finished ladder candidate.
type CandidateReport struct {
	Index   int     `json:"index"`
	Scale   float64 `json:"scale"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Found   int     `json:"found"`
	Partial int     `json:"partial_failures"`
	Skipped bool    `json:"skipped"`
}

// CandidateObserver is implemented by callbacks that want per-candidate
// detail in addition to counts.
type CandidateObserver interface {
	OnCandidate(r CandidateReport)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}

// ConsoleProgressCallback draws a progress bar on a terminal.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	mu             sync.Mutex
	lastUpdate     time.Time
	startTime      time.Time
}

// NewConsoleProgressCallback creates a console reporter; a nil writer means
// stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          30,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.draw(0, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	c.draw(current, total)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) draw(current, total int) {
	if total <= 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d", c.prefix, bar, current, total)
}

// LogProgressCallback logs progress with slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	prefix    string
	mu        sync.Mutex
	startTime time.Time
}

// NewLogProgressCallback creates a log based reporter; a nil logger means
// slog.Default().
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, prefix: prefix}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	l.startTime = time.Now()
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, l.prefix+"Starting", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.logger.Log(context.Background(), l.level, l.prefix+"Progress", "current", current, "total", total)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.startTime)
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, l.prefix+"Completed", "elapsed", elapsed.Round(time.Millisecond))
}

func (l *LogProgressCallback) OnCandidate(r CandidateReport) {
	l.logger.Log(context.Background(), l.level, l.prefix+"Candidate scanned",
		"index", r.Index, "scale", r.Scale, "found", r.Found, "skipped", r.Skipped)
}

// ProgressFunc adapts a function receiving candidate reports. OnStart,
// OnProgress and OnComplete are ignored.
type ProgressFunc func(r CandidateReport, done, total int)

type funcProgress struct {
	fn    ProgressFunc
	mu    sync.Mutex
	done  int
	total int
}

// NewFuncProgress wraps fn as a ProgressCallback.
func NewFuncProgress(fn ProgressFunc) ProgressCallback { return &funcProgress{fn: fn} }

func (f *funcProgress) OnStart(total int) {
	f.mu.Lock()
	f.total, f.done = total, 0
	f.mu.Unlock()
}

func (f *funcProgress) OnProgress(current, _ int) {
	f.mu.Lock()
	f.done = current
	f.mu.Unlock()
}

func (f *funcProgress) OnComplete() {}

func (f *funcProgress) OnCandidate(r CandidateReport) {
	f.mu.Lock()
	done, total := f.done, f.total
	f.mu.Unlock()
	f.fn(r, done, total)
}

// MultiProgressCallback reports to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a progress callback that reports to multiple callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnCandidate(r CandidateReport) {
	for _, cb := range m.callbacks {
		if obs, ok := cb.(CandidateObserver); ok {
			obs.OnCandidate(r)
		}
	}
}
