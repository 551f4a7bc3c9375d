package qr

// CellKind classifies a module of a symbol.
type CellKind int

const (
	CellData0 CellKind = iota
	CellData1
	CellFunction
)

// Symbol is an encoded QR symbol: the final masked module matrix plus the
// parameters that produced it.
type Symbol struct {
	Version *Version
	Level   ECLevel
	Mask    int
	Mode    Mode
	Modules *BitMatrix
}

// Size returns the module count per side.
func (s *Symbol) Size() int { return s.Modules.Width() }

// Dark reports whether module (x, y) is dark.
func (s *Symbol) Dark(x, y int) bool { return s.Modules.Get(x, y) }

// Kind classifies module (x, y).
func (s *Symbol) Kind(x, y int) CellKind {
	if s.Version.FunctionPattern().Get(x, y) {
		return CellFunction
	}
	if s.Modules.Get(x, y) {
		return CellData1
	}
	return CellData0
}

// IsFinderEye reports whether (x, y) lies inside one of the three 7x7
// finder patterns of a symbol with the given side.
func IsFinderEye(x, y, size int) bool {
	inBand := func(v int) int {
		switch {
		case v >= 0 && v < 7:
			return 0
		case v >= size-7 && v < size:
			return 1
		}
		return -1
	}
	bx, by := inBand(x), inBand(y)
	if bx < 0 || by < 0 {
		return false
	}
	return !(bx == 1 && by == 1)
}

// DataModules returns the coordinates of every non-function module in
// placement order: two-column strips from the right edge, alternating
// upward and downward, skipping the vertical timing column.
func DataModules(v *Version) [][2]int {
	dim := v.Dimension()
	fn := v.FunctionPattern()
	out := make([][2]int, 0, v.TotalCodewords*8+7)
	upward := true
	for right := dim - 1; right > 0; right -= 2 {
		if right == 6 {
			right--
		}
		for i := 0; i < dim; i++ {
			y := i
			if upward {
				y = dim - 1 - i
			}
			for dx := 0; dx < 2; dx++ {
				x := right - dx
				if !fn.Get(x, y) {
					out = append(out, [2]int{x, y})
				}
			}
		}
		upward = !upward
	}
	return out
}
