package encoder

import (
	"math"

	"github.com/MeKo-Tech/qrengine/internal/qr"
)

// buildMatrix places function patterns and codewords, then tries all eight
// masks and keeps the one with the lowest penalty. Ties go to the lower
// mask index.
func buildMatrix(v *qr.Version, level qr.ECLevel, codewords []byte) (*qr.BitMatrix, int) {
	base := functionModules(v)
	positions := qr.DataModules(v)

	var best *qr.BitMatrix
	bestMask, bestPenalty := 0, math.MaxInt
	for mask := 0; mask < 8; mask++ {
		m := base.Clone()
		placeData(m, positions, codewords, mask)
		writeFormatInfo(m, level, mask)
		if p := Penalty(m); p < bestPenalty {
			best, bestMask, bestPenalty = m, mask, p
		}
	}
	return best, bestMask
}

// functionModules draws every function pattern except format information.
func functionModules(v *qr.Version) *qr.BitMatrix {
	dim := v.Dimension()
	m := qr.NewSquareBitMatrix(dim)

	for i := 8; i < dim-8; i++ {
		m.Set(6, i, i%2 == 0)
		m.Set(i, 6, i%2 == 0)
	}
	drawFinder(m, 3, 3)
	drawFinder(m, dim-4, 3)
	drawFinder(m, 3, dim-4)
	for _, c := range qr.AlignmentPositions(v) {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				m.Set(c[0]+dx, c[1]+dy, max(abs(dx), abs(dy)) != 1)
			}
		}
	}

	if v.Number >= 7 {
		word := qr.VersionInfoBits(v.Number)
		for i := 0; i < 18; i++ {
			bit := word>>uint(i)&1 == 1
			a, b := dim-11+i%3, i/3
			m.Set(a, b, bit)
			m.Set(b, a, bit)
		}
	}
	return m
}

// drawFinder draws a 7x7 finder centred on (cx, cy) with its light separator.
func drawFinder(m *qr.BitMatrix, cx, cy int) {
	dim := m.Width()
	for dy := -4; dy <= 4; dy++ {
		for dx := -4; dx <= 4; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= dim || y >= dim {
				continue
			}
			d := max(abs(dx), abs(dy))
			m.Set(x, y, d != 2 && d != 4)
		}
	}
}

func placeData(m *qr.BitMatrix, positions [][2]int, codewords []byte, mask int) {
	total := len(codewords) * 8
	for i, p := range positions {
		bit := false
		if i < total {
			bit = codewords[i/8]&(0x80>>uint(i%8)) != 0
		}
		m.Set(p[0], p[1], bit != qr.MaskBit(mask, p[0], p[1]))
	}
}

// writeFormatInfo writes both copies of the format word and the dark module.
func writeFormatInfo(m *qr.BitMatrix, level qr.ECLevel, mask int) {
	word := qr.FormatInfoBits(level, mask)
	dim := m.Width()
	bit := func(i int) bool { return word>>uint(i)&1 == 1 }

	for i := 0; i <= 5; i++ {
		m.Set(8, i, bit(i))
	}
	m.Set(8, 7, bit(6))
	m.Set(8, 8, bit(7))
	m.Set(7, 8, bit(8))
	for i := 9; i < 15; i++ {
		m.Set(14-i, 8, bit(i))
	}

	for i := 0; i < 8; i++ {
		m.Set(dim-1-i, 8, bit(i))
	}
	for i := 8; i < 15; i++ {
		m.Set(8, dim-15+i, bit(i))
	}
	m.Set(8, dim-8, true)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
