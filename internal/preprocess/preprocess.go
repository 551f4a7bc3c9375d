// Package preprocess turns raw image bytes into the grayscale candidates the
// decoder scans: the original plus an optional ladder of resampled copies.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // registered decoders
	_ "image/jpeg" // registered decoders
	_ "image/png"  // registered decoders
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // registered decoders
	_ "golang.org/x/image/tiff" // registered decoders
	_ "golang.org/x/image/webp" // registered decoders
)

var (
	// ErrUnreadableImage is returned when the bytes are not a supported image.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrInputTooLarge is returned when an image dimension exceeds the limit.
	ErrInputTooLarge = errors.New("input image too large")
)

// DefaultMaxDimension caps width and height of accepted images.
const DefaultMaxDimension = 8192

// Ladder bounds: resampled candidates are spaced geometrically between
// these largest-side lengths.
const (
	ladderMin   = 100
	ladderMax   = 1280
	ladderSteps = 5
	// ladderSkip drops a rung this close (relative) to the original size.
	ladderSkip = 0.10
)

// Options controls Prepare.
type Options struct {
	AutoResize   bool
	MaxDimension int
}

// DefaultOptions enables the resize ladder with the default size cap.
func DefaultOptions() Options {
	return Options{AutoResize: true, MaxDimension: DefaultMaxDimension}
}

// Candidate is one grayscale rendition of the input. Scale is the candidate
// size divided by the original size; dividing candidate coordinates by Scale
// maps them back to the original image.
type Candidate struct {
	Index int
	Image *image.Gray
	Scale float64
}

// Ladder is the ordered candidate list for one input image. Candidate 0 is
// always the original.
type Ladder struct {
	Format     string
	Width      int
	Height     int
	Candidates []Candidate
}

// Prepare validates, decodes and grayscales raw, then builds the ladder.
// The container and its dimensions are checked before pixels are decoded.
func Prepare(raw []byte, opts Options) (*Ladder, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnreadableImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}
	if cfg.Width > opts.MaxDimension || cfg.Height > opts.MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrInputTooLarge, cfg.Width, cfg.Height, opts.MaxDimension)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnreadableImage)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrUnreadableImage, format, err)
	}

	return FromImage(img, format, opts.AutoResize), nil
}

// FromImage builds a ladder for an already decoded image.
func FromImage(img image.Image, format string, autoResize bool) *Ladder {
	gray := ToGray(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	ladder := &Ladder{
		Format:     format,
		Width:      w,
		Height:     h,
		Candidates: []Candidate{{Index: 0, Image: gray, Scale: 1}},
	}
	if !autoResize {
		return ladder
	}

	for _, side := range LadderSizes(max(w, h)) {
		scale := float64(side) / float64(max(w, h))
		cw := max(1, int(math.Round(float64(w)*scale)))
		ch := max(1, int(math.Round(float64(h)*scale)))
		resized := imaging.Resize(gray, cw, ch, imaging.Lanczos)
		ladder.Candidates = append(ladder.Candidates, Candidate{
			Index: len(ladder.Candidates),
			Image: ToGray(resized),
			Scale: float64(cw) / float64(w),
		})
	}
	slog.Debug("Prepared scan ladder", "format", format, "width", w, "height", h,
		"candidates", len(ladder.Candidates))
	return ladder
}

// LadderSizes returns the largest-side lengths of the resampled candidates
// for an original whose largest side is orig, from largest to smallest.
func LadderSizes(orig int) []int {
	ratio := math.Pow(float64(ladderMax)/float64(ladderMin), 1/float64(ladderSteps-1))
	sizes := make([]int, 0, ladderSteps)
	for i := ladderSteps - 1; i >= 0; i-- {
		side := int(math.Round(float64(ladderMin) * math.Pow(ratio, float64(i))))
		if orig > 0 && math.Abs(float64(side-orig))/float64(orig) < ladderSkip {
			continue
		}
		sizes = append(sizes, side)
	}
	return sizes
}
