// Package decoder reads QR symbols from grayscale images. Detection runs
// first; every candidate grid is then demodulated, error corrected and
// parsed independently, so one damaged symbol never hides the others.
package decoder

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/qrengine/internal/detector"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

var (
	// ErrNotFound means the image holds no finder pattern triple. It is a
	// normal outcome, not a failure.
	ErrNotFound = detector.ErrNotFound
	// ErrPartialDecode means a symbol was located but its content could not
	// be recovered.
	ErrPartialDecode = errors.New("symbol located but not decodable")
)

// PartialDecodeError scopes a decode failure to one located symbol.
type PartialDecodeError struct {
	Quad utils.Quad
	Err  error
}

func (e *PartialDecodeError) Error() string {
	return fmt.Sprintf("%v at (%.0f,%.0f): %v", ErrPartialDecode, e.Quad[0].X, e.Quad[0].Y, e.Err)
}

func (e *PartialDecodeError) Unwrap() []error { return []error{ErrPartialDecode, e.Err} }

// Result is one decoded symbol.
type Result struct {
	Text string
	// Bytes holds the raw content of byte mode segments.
	Bytes      []byte
	Quad       utils.Quad
	Level      qr.ECLevel
	Version    int
	Mask       int
	ECI        int // -1 when the symbol carries none
	Mirrored   bool
	Corrected  int
	Structured *StructuredAppend
}

// Config tunes decoding.
type Config struct {
	Detector detector.Config
}

// DefaultConfig returns the standard decoder settings.
func DefaultConfig() Config {
	return Config{Detector: detector.DefaultConfig()}
}

// DecodeImage locates and decodes every symbol in img with the default
// configuration.
func DecodeImage(img *image.Gray) ([]Result, []error) {
	return DecodeImageConfig(img, DefaultConfig())
}

// DecodeImageConfig locates and decodes every symbol in img. It returns the
// decoded symbols together with one error per candidate that failed;
// ErrNotFound is the only error when nothing was located. A failed
// candidate that uses a finder pattern of a decoded symbol is a triple
// spanning neighbouring symbols, not a damaged symbol, and is not reported.
func DecodeImageConfig(img *image.Gray, cfg Config) ([]Result, []error) {
	found, err := detector.Detect(img, cfg.Detector)
	if err != nil {
		return nil, []error{err}
	}

	var (
		results []Result
		failed  []candidateFailure
	)
	claimed := make(map[utils.Point]bool)
	for _, d := range found {
		r, err := DecodeGrid(d.Bits)
		if err != nil {
			failed = append(failed, candidateFailure{detection: d, err: err})
			continue
		}
		for _, f := range d.Finders {
			claimed[f] = true
		}
		r.Quad = d.Quad
		results = append(results, *r)
	}

	var errs []error
	for _, f := range failed {
		if f.sharesFinder(claimed) {
			continue
		}
		slog.Debug("Symbol candidate not decodable", "dimension", f.detection.Dimension, "error", f.err)
		errs = append(errs, &PartialDecodeError{Quad: f.detection.Quad, Err: f.err})
	}
	return results, errs
}

type candidateFailure struct {
	detection detector.Detection
	err       error
}

func (f candidateFailure) sharesFinder(claimed map[utils.Point]bool) bool {
	for _, p := range f.detection.Finders {
		if claimed[p] {
			return true
		}
	}
	return false
}

// DecodeGrid decodes a sampled module grid, dark modules set. A grid that
// cannot be read as is is retried transposed, which is how a mirrored
// symbol appears.
func DecodeGrid(grid *qr.BitMatrix) (*Result, error) {
	r, err := decodeGrid(grid)
	if err == nil {
		return r, nil
	}
	if mr, merr := decodeGrid(grid.Transpose()); merr == nil {
		mr.Mirrored = true
		return mr, nil
	}
	return nil, err
}

func decodeGrid(grid *qr.BitMatrix) (*Result, error) {
	info, err := readGrid(grid)
	if err != nil {
		return nil, err
	}
	c, err := parseBitstream(info.data, info.version.Number)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:       c.text,
		Bytes:      c.raw,
		Level:      info.format.Level,
		Version:    info.version.Number,
		Mask:       info.format.Mask,
		ECI:        c.eci,
		Corrected:  info.corrected,
		Structured: c.structured,
	}, nil
}
