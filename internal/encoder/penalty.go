package encoder

import "github.com/MeKo-Tech/qrengine/internal/qr"

// Penalty weights of the four mask evaluation rules.
const (
	penaltyRun    = 3
	penaltyBlock  = 3
	penaltyFinder = 40
	penaltyRatio  = 10
)

// Penalty scores m with the four mask evaluation rules: long runs, 2x2
// blocks, finder-like sequences and dark/light imbalance.
func Penalty(m *qr.BitMatrix) int {
	return penaltyRuns(m) + penaltyBlocks(m) + penaltyFinderLike(m) + penaltyBalance(m)
}

// line returns a getter for row or column i.
func line(m *qr.BitMatrix, i int, horizontal bool) func(j int) bool {
	if horizontal {
		return func(j int) bool { return m.Get(j, i) }
	}
	return func(j int) bool { return m.Get(i, j) }
}

func penaltyRuns(m *qr.BitMatrix) int {
	n := m.Width()
	total := 0
	for _, horizontal := range []bool{true, false} {
		for i := 0; i < n; i++ {
			at := line(m, i, horizontal)
			run := 1
			for j := 1; j <= n; j++ {
				if j < n && at(j) == at(j-1) {
					run++
					continue
				}
				if run >= 5 {
					total += penaltyRun + run - 5
				}
				run = 1
			}
		}
	}
	return total
}

func penaltyBlocks(m *qr.BitMatrix) int {
	n := m.Width()
	total := 0
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			c := m.Get(x, y)
			if c == m.Get(x+1, y) && c == m.Get(x, y+1) && c == m.Get(x+1, y+1) {
				total += penaltyBlock
			}
		}
	}
	return total
}

// finderLike is dark-light-dark-dark-dark-light-dark.
var finderLike = [7]bool{true, false, true, true, true, false, true}

// penaltyFinderLike counts 1:1:3:1:1 sequences with four light modules on
// at least one side. Modules outside the symbol count as light.
func penaltyFinderLike(m *qr.BitMatrix) int {
	n := m.Width()
	total := 0
	for _, horizontal := range []bool{true, false} {
		for i := 0; i < n; i++ {
			at := line(m, i, horizontal)
			for j := 0; j+7 <= n; j++ {
				match := true
				for k, want := range finderLike {
					if at(j+k) != want {
						match = false
						break
					}
				}
				if !match {
					continue
				}
				if lightRun(at, j-4, j, n) || lightRun(at, j+7, j+11, n) {
					total += penaltyFinder
				}
			}
		}
	}
	return total
}

func lightRun(at func(int) bool, from, to, n int) bool {
	for j := from; j < to; j++ {
		if j >= 0 && j < n && at(j) {
			return false
		}
	}
	return true
}

func penaltyBalance(m *qr.BitMatrix) int {
	n := m.Width()
	dark := 0
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if m.Get(x, y) {
				dark++
			}
		}
	}
	total := n * n
	return abs(dark*2-total) * 10 / total * penaltyRatio
}
