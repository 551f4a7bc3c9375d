package detector

import (
	"math"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// FinderPattern is a confirmed finder centre. Count is the number of scan
// rows that agreed on it.
type FinderPattern struct {
	X, Y       float64
	ModuleSize float64
	Count      int
}

// Point returns the centre.
func (f *FinderPattern) Point() utils.Point { return utils.Point{X: f.X, Y: f.Y} }

func (f *FinderPattern) aboutEquals(moduleSize, x, y float64) bool {
	if math.Abs(y-f.Y) > moduleSize || math.Abs(x-f.X) > moduleSize {
		return false
	}
	diff := math.Abs(moduleSize - f.ModuleSize)
	return diff <= 1 || diff <= f.ModuleSize
}

func (f *FinderPattern) combine(x, y, moduleSize float64) {
	n := float64(f.Count)
	f.X = (n*f.X + x) / (n + 1)
	f.Y = (n*f.Y + y) / (n + 1)
	f.ModuleSize = (n*f.ModuleSize + moduleSize) / (n + 1)
	f.Count++
}

type finderScanner struct {
	img     *qr.BitMatrix
	centers []*FinderPattern
}

// findFinderPatterns scans rows for the 1:1:3:1:1 dark/light signature and
// returns every centre confirmed by cross-checks, in discovery order.
func findFinderPatterns(img *qr.BitMatrix, cfg Config) []*FinderPattern {
	s := &finderScanner{img: img}
	h, w := img.Height(), img.Width()

	skip := (3 * h) / (4 * cfg.MaxModulesPerEdge)
	if skip < 1 || cfg.TryHarder {
		skip = 1
	}
	skip = min(skip, maxRowSkip)

	for y := skip - 1; y < h; y += skip {
		var counts [5]int
		state := 0
		for x := 0; x < w; x++ {
			if img.Get(x, y) {
				if state&1 == 1 {
					state++
				}
				counts[state]++
				continue
			}
			if state&1 == 1 {
				counts[state]++
				continue
			}
			if state < 4 {
				state++
				counts[state]++
				continue
			}
			if finderRatio(counts) && s.handleCenter(counts, y, x) {
				state = 0
				counts = [5]int{}
				continue
			}
			counts = [5]int{counts[2], counts[3], counts[4], 1, 0}
			state = 3
		}
		if state == 4 && finderRatio(counts) {
			s.handleCenter(counts, y, w)
		}
	}
	return s.centers
}

// finderRatio checks run lengths against 1:1:3:1:1 with a tolerance of half
// a module per run.
func finderRatio(c [5]int) bool {
	total := 0
	for _, n := range c {
		if n == 0 {
			return false
		}
		total += n
	}
	if total < 7 {
		return false
	}
	module := float64(total) / 7
	v := module / 2
	return math.Abs(module-float64(c[0])) < v &&
		math.Abs(module-float64(c[1])) < v &&
		math.Abs(3*module-float64(c[2])) < 3*v &&
		math.Abs(module-float64(c[3])) < v &&
		math.Abs(module-float64(c[4])) < v
}

func centerFromEnd(c [5]int, end int) float64 {
	return float64(end-c[4]-c[3]) - float64(c[2])/2
}

// handleCenter cross-checks a row hit vertically and horizontally and merges
// it into an existing centre or records a new one.
func (s *finderScanner) handleCenter(c [5]int, row, end int) bool {
	total := c[0] + c[1] + c[2] + c[3] + c[4]
	cx := centerFromEnd(c, end)
	cy := s.crossCheck(int(cx), row, c[2], total, false)
	if math.IsNaN(cy) {
		return false
	}
	cx = s.crossCheck(int(cx), int(cy), c[2], total, true)
	if math.IsNaN(cx) {
		return false
	}

	module := float64(total) / 7
	for _, f := range s.centers {
		if f.aboutEquals(module, cx, cy) {
			f.combine(cx, cy, module)
			return true
		}
	}
	s.centers = append(s.centers, &FinderPattern{X: cx, Y: cy, ModuleSize: module, Count: 1})
	return true
}

// crossCheck walks from (x, y) along a column (or a row when horizontal)
// and re-measures the five runs. It returns the refined centre coordinate
// on that axis, or NaN.
func (s *finderScanner) crossCheck(x, y, maxCount, originalTotal int, horizontal bool) float64 {
	get := func(i int) bool { return s.img.Get(x, i) }
	pos, limit := y, s.img.Height()
	if horizontal {
		get = func(i int) bool { return s.img.Get(i, y) }
		pos, limit = x, s.img.Width()
	}

	var c [5]int
	i := pos
	for ; i >= 0 && get(i); i-- {
		c[2]++
	}
	if i < 0 {
		return math.NaN()
	}
	for ; i >= 0 && !get(i) && c[1] <= maxCount; i-- {
		c[1]++
	}
	if i < 0 || c[1] > maxCount {
		return math.NaN()
	}
	for ; i >= 0 && get(i) && c[0] <= maxCount; i-- {
		c[0]++
	}
	if c[0] > maxCount {
		return math.NaN()
	}

	i = pos + 1
	for ; i < limit && get(i); i++ {
		c[2]++
	}
	if i == limit {
		return math.NaN()
	}
	for ; i < limit && !get(i) && c[3] <= maxCount; i++ {
		c[3]++
	}
	if i == limit || c[3] > maxCount {
		return math.NaN()
	}
	for ; i < limit && get(i) && c[4] <= maxCount; i++ {
		c[4]++
	}
	if c[4] > maxCount {
		return math.NaN()
	}

	total := c[0] + c[1] + c[2] + c[3] + c[4]
	tolerance := 2 * originalTotal
	if horizontal {
		tolerance = originalTotal
	}
	if 5*abs(total-originalTotal) >= tolerance {
		return math.NaN()
	}
	if !finderRatio(c) {
		return math.NaN()
	}
	return centerFromEnd(c, i)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
