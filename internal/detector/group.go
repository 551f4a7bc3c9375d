package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

const (
	// Neighbouring centres in a triple may differ in module size by this
	// fraction, or by this many pixels, whichever is more lenient.
	diffModSizeCutoffPercent = 0.05
	diffModSizeCutoff        = 0.5
	// sideTolerance bounds both the leg ratio and the Pythagoras test.
	sideTolerance = 0.1
)

// Triple is an ordered finder pattern group.
type Triple struct {
	TopLeft, TopRight, BottomLeft *FinderPattern
}

// groupTriples returns every combination of confirmed centres that looks
// like the three corners of one symbol. A centre may belong to several
// triples; decoding sorts out which ones are real.
func groupTriples(centers []*FinderPattern, cfg Config) []Triple {
	var confirmed []*FinderPattern
	for _, c := range centers {
		if c.Count >= 2 {
			confirmed = append(confirmed, c)
		}
	}
	n := len(confirmed)
	if n < 3 {
		return nil
	}

	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].ModuleSize > confirmed[j].ModuleSize
	})

	var out []Triple
	for i1 := 0; i1 < n-2; i1++ {
		p1 := confirmed[i1]
		for i2 := i1 + 1; i2 < n-1; i2++ {
			p2 := confirmed[i2]
			if !similarModuleSize(p1, p2) {
				break
			}
			for i3 := i2 + 1; i3 < n; i3++ {
				p3 := confirmed[i3]
				if !similarModuleSize(p2, p3) {
					break
				}
				t := orderTriple(p1, p2, p3)
				if plausible(t, cfg) {
					out = append(out, t)
				}
			}
		}
	}
	return out
}

func similarModuleSize(a, b *FinderPattern) bool {
	d := math.Abs(a.ModuleSize - b.ModuleSize)
	return d <= diffModSizeCutoff || d/math.Min(a.ModuleSize, b.ModuleSize) < diffModSizeCutoffPercent
}

// plausible checks that the legs are about equal, the angle at the top-left
// is about right and the implied module count is in range.
func plausible(t Triple, cfg Config) bool {
	dA := utils.Distance(t.TopLeft.Point(), t.BottomLeft.Point())
	dB := utils.Distance(t.TopLeft.Point(), t.TopRight.Point())
	dC := utils.Distance(t.TopRight.Point(), t.BottomLeft.Point())
	if dA == 0 || dB == 0 || dC == 0 {
		return false
	}

	moduleSize := (t.TopLeft.ModuleSize + t.TopRight.ModuleSize + t.BottomLeft.ModuleSize) / 3
	modules := (dA + dB) / (2 * moduleSize)
	if modules > float64(cfg.MaxModulesPerEdge) || modules < float64(cfg.MinModulesPerEdge) {
		return false
	}
	if math.Abs(dA-dB)/math.Min(dA, dB) >= sideTolerance {
		return false
	}
	hyp := math.Hypot(dA, dB)
	return math.Abs(dC-hyp)/math.Min(dC, hyp) < sideTolerance
}

// orderTriple puts the centre opposite the longest side at the top-left,
// then labels the other two so that top-left -> top-right -> bottom-left
// turns clockwise on screen (positive cross product with y pointing down).
func orderTriple(a, b, c *FinderPattern) Triple {
	dAB := utils.Distance(a.Point(), b.Point())
	dBC := utils.Distance(b.Point(), c.Point())
	dAC := utils.Distance(a.Point(), c.Point())

	var tl, p, q *FinderPattern
	switch {
	case dBC >= dAB && dBC >= dAC:
		tl, p, q = a, b, c
	case dAC >= dAB && dAC >= dBC:
		tl, p, q = b, a, c
	default:
		tl, p, q = c, a, b
	}
	if utils.Cross(tl.Point(), p.Point(), q.Point()) < 0 {
		p, q = q, p
	}
	return Triple{TopLeft: tl, TopRight: p, BottomLeft: q}
}
