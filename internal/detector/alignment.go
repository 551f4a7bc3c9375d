package detector

import (
	"math"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// findAlignment looks for the bottom-right alignment pattern near where the
// finder geometry predicts it, widening the search window on failure.
func findAlignment(bits *qr.BitMatrix, tl, tr, bl utils.Point, dim int, moduleSize float64) *utils.Point {
	brX := tr.X - tl.X + bl.X
	brY := tr.Y - tl.Y + bl.Y
	// The alignment centre sits three modules in from the bottom-right
	// finder-centre position.
	correction := 1 - 3/float64(dim-7)
	estX := int(tl.X + correction*(brX-tl.X))
	estY := int(tl.Y + correction*(brY-tl.Y))

	for factor := 4; factor <= 16; factor <<= 1 {
		allowance := int(float64(factor) * moduleSize)
		left := max(0, estX-allowance)
		top := max(0, estY-allowance)
		right := min(bits.Width()-1, estX+allowance)
		bottom := min(bits.Height()-1, estY+allowance)
		if right-left < int(3*moduleSize) || bottom-top < int(3*moduleSize) {
			continue
		}
		if p := searchAlignment(bits, left, top, right-left, bottom-top, moduleSize); p != nil {
			return p
		}
	}
	return nil
}

// searchAlignment scans rows outwards from the middle of the window for a
// light/dark/light run of about one module each around the dark centre
// module, confirmed vertically.
func searchAlignment(bits *qr.BitMatrix, startX, startY, width, height int, moduleSize float64) *utils.Point {
	middle := startY + height/2
	end := startX + width
	for i := 0; i < height; i++ {
		y := middle + (i+1)/2
		if i%2 == 1 {
			y = middle - (i+1)/2
		}

		var c [3]int
		state := 0
		x := startX
		for x < end && !bits.Get(x, y) {
			x++
		}
		for ; x < end; x++ {
			if !bits.Get(x, y) {
				if state == 1 {
					state = 2
				}
				c[state]++
				continue
			}
			switch state {
			case 1:
				c[1]++
			case 2:
				if p := checkAlignment(bits, c, x, y, moduleSize); p != nil {
					return p
				}
				c = [3]int{c[2], 1, 0}
				state = 1
			default:
				state = 1
				c[1]++
			}
		}
		if state == 2 {
			if p := checkAlignment(bits, c, end, y, moduleSize); p != nil {
				return p
			}
		}
	}
	return nil
}

func checkAlignment(bits *qr.BitMatrix, c [3]int, end, y int, moduleSize float64) *utils.Point {
	for _, n := range c {
		if math.Abs(moduleSize-float64(n)) >= moduleSize/2 {
			return nil
		}
	}
	cx := float64(end-c[2]) - float64(c[1])/2
	cy := crossCheckAlignment(bits, int(cx), y, 2*c[1], c[0]+c[1]+c[2], moduleSize)
	if math.IsNaN(cy) {
		return nil
	}
	return &utils.Point{X: cx, Y: cy}
}

// crossCheckAlignment measures the light/dark/light runs through the
// candidate column and returns the vertical centre of the dark run.
func crossCheckAlignment(bits *qr.BitMatrix, x, startY, maxCount, originalTotal int, moduleSize float64) float64 {
	h := bits.Height()
	var c [3]int

	y := startY
	for ; y >= 0 && bits.Get(x, y) && c[1] <= maxCount; y-- {
		c[1]++
	}
	if y < 0 || c[1] > maxCount {
		return math.NaN()
	}
	for ; y >= 0 && !bits.Get(x, y) && c[0] <= maxCount; y-- {
		c[0]++
	}
	if c[0] > maxCount {
		return math.NaN()
	}

	y = startY + 1
	for ; y < h && bits.Get(x, y) && c[1] <= maxCount; y++ {
		c[1]++
	}
	if y == h || c[1] > maxCount {
		return math.NaN()
	}
	for ; y < h && !bits.Get(x, y) && c[2] <= maxCount; y++ {
		c[2]++
	}
	if c[2] > maxCount {
		return math.NaN()
	}

	total := c[0] + c[1] + c[2]
	if 5*abs(total-originalTotal) >= 2*originalTotal {
		return math.NaN()
	}
	for _, n := range c {
		if math.Abs(moduleSize-float64(n)) >= moduleSize/2 {
			return math.NaN()
		}
	}
	return float64(y-c[2]) - float64(c[1])/2
}
