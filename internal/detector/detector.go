// Package detector locates QR symbols in a grayscale image: it binarizes,
// finds finder patterns, groups them into symbol candidates and samples
// each candidate's module grid through a perspective transform.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/rectify"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// ErrNotFound is returned when an image holds no finder pattern triple.
var ErrNotFound = errors.New("no QR symbol found")

// maxRowSkip bounds the row stride of the finder scan.
const maxRowSkip = 4

// Config tunes the search.
type Config struct {
	// MaxModulesPerEdge bounds the implied symbol size of a triple and sets
	// the row stride (more modules per edge means denser rows).
	MaxModulesPerEdge int
	MinModulesPerEdge int
	// TryHarder scans every row.
	TryHarder bool
}

// DefaultConfig returns the standard search settings.
func DefaultConfig() Config {
	return Config{MaxModulesPerEdge: 180, MinModulesPerEdge: 9}
}

// Detection is one sampled symbol candidate.
type Detection struct {
	// Bits is the sampled module grid, dark modules set.
	Bits *qr.BitMatrix
	// Quad is the symbol outline in image coordinates.
	Quad       utils.Quad
	Dimension  int
	ModuleSize float64
	Finders    [3]utils.Point // top-left, top-right, bottom-left
	Alignment  *utils.Point
}

// Detect finds and samples every plausible symbol in img.
func Detect(img *image.Gray, cfg Config) ([]Detection, error) {
	return DetectBinary(Binarize(img), cfg)
}

// DetectBinary works on an already binarized image. Triples whose geometry
// cannot be sampled are skipped; ErrNotFound is returned only when nothing
// could be sampled.
func DetectBinary(bits *qr.BitMatrix, cfg Config) ([]Detection, error) {
	if cfg.MaxModulesPerEdge <= 0 {
		cfg = DefaultConfig()
	}
	centers := findFinderPatterns(bits, cfg)
	triples := groupTriples(centers, cfg)
	if len(triples) == 0 {
		return nil, ErrNotFound
	}

	var out []Detection
	for _, t := range triples {
		d, err := sampleTriple(bits, t)
		if err != nil {
			slog.Debug("Skipping finder triple", "top_left_x", t.TopLeft.X, "top_left_y", t.TopLeft.Y, "error", err)
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func sampleTriple(bits *qr.BitMatrix, t Triple) (Detection, error) {
	moduleSize := measureModuleSize(bits, t)
	if moduleSize < 1 {
		return Detection{}, fmt.Errorf("module size %.2f below one pixel", moduleSize)
	}
	dim, err := estimateDimension(t, moduleSize)
	if err != nil {
		return Detection{}, err
	}
	version, err := qr.VersionForDimension(dim)
	if err != nil {
		return Detection{}, err
	}

	tl, tr, bl := t.TopLeft.Point(), t.TopRight.Point(), t.BottomLeft.Point()
	var align *utils.Point
	if len(version.AlignmentCenters) > 0 {
		align = findAlignment(bits, tl, tr, bl, dim, moduleSize)
	}

	xf, err := gridTransform(tl, tr, bl, align, dim)
	if err != nil {
		return Detection{}, err
	}
	grid, err := sampleGrid(bits, xf, dim)
	if err != nil {
		return Detection{}, err
	}

	d := Detection{
		Bits:       grid,
		Dimension:  dim,
		ModuleSize: moduleSize,
		Finders:    [3]utils.Point{tl, tr, bl},
		Alignment:  align,
	}
	fd := float64(dim)
	for i, corner := range [4]utils.Point{{X: 0, Y: 0}, {X: fd, Y: 0}, {X: fd, Y: fd}, {X: 0, Y: fd}} {
		p, ok := xf.ApplyPoint(corner)
		if !ok {
			return Detection{}, errors.New("symbol corner maps to infinity")
		}
		d.Quad[i] = p
	}
	return d, nil
}

// estimateDimension derives the module count per side from the finder
// distances and snaps it to the 4k+1 grid of valid sizes.
func estimateDimension(t Triple, moduleSize float64) (int, error) {
	top := utils.Distance(t.TopLeft.Point(), t.TopRight.Point()) / moduleSize
	left := utils.Distance(t.TopLeft.Point(), t.BottomLeft.Point()) / moduleSize
	dim := int(math.Round((top+left)/2)) + 7
	switch dim % 4 {
	case 0:
		dim++
	case 2:
		dim--
	case 3:
		return 0, fmt.Errorf("estimated dimension %d is between valid sizes", dim)
	}
	return dim, nil
}

// gridTransform maps module-space coordinates onto the image. Finder
// centres sit at 3.5 modules from the edges; the bottom-right anchor is the
// alignment pattern centre when found, otherwise the parallelogram corner.
func gridTransform(tl, tr, bl utils.Point, align *utils.Point, dim int) (rectify.Homography, error) {
	far := float64(dim) - 3.5
	src := [4]utils.Point{{X: 3.5, Y: 3.5}, {X: far, Y: 3.5}, {X: far, Y: far}, {X: 3.5, Y: far}}
	br := utils.Point{X: tr.X - tl.X + bl.X, Y: tr.Y - tl.Y + bl.Y}
	if align != nil {
		src[2] = utils.Point{X: far - 3, Y: far - 3}
		br = *align
	}
	return rectify.ComputeHomography(src, [4]utils.Point{tl, tr, br, bl})
}

// sampleGrid reads the binarized pixel under every module centre. Centres
// up to one pixel outside the image are pulled back onto the border.
func sampleGrid(bits *qr.BitMatrix, xf rectify.Homography, dim int) (*qr.BitMatrix, error) {
	w, h := bits.Width(), bits.Height()
	grid := qr.NewSquareBitMatrix(dim)
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			px, py, ok := xf.Apply(float64(x)+0.5, float64(y)+0.5)
			if !ok {
				return nil, errors.New("module centre maps to infinity")
			}
			ix, iy := int(math.Floor(px)), int(math.Floor(py))
			if ix < -1 || iy < -1 || ix > w || iy > h {
				return nil, fmt.Errorf("module (%d,%d) samples outside the image", x, y)
			}
			ix, iy = clamp(ix, 0, w-1), clamp(iy, 0, h-1)
			grid.Set(x, y, bits.Get(ix, iy))
		}
	}
	return grid, nil
}
