// Package qr holds the vocabulary shared by the encoder, renderer and decoder:
// bit containers, error correction levels, modes, the version table, format
// information and data masks.
package qr

import "strings"

// BitMatrix is a two-dimensional grid of bits addressed as (x, y), x being
// the column. A set bit is a dark module or a black pixel.
type BitMatrix struct {
	width  int
	height int
	bits   []bool
}

// NewBitMatrix returns an all-clear matrix of the given size.
func NewBitMatrix(width, height int) *BitMatrix {
	return &BitMatrix{width: width, height: height, bits: make([]bool, width*height)}
}

// NewSquareBitMatrix returns an all-clear dimension x dimension matrix.
func NewSquareBitMatrix(dimension int) *BitMatrix {
	return NewBitMatrix(dimension, dimension)
}

// ParseBitMatrix builds a matrix from rows of text where '#' or 'X' marks a
// set bit. Whitespace between cells is ignored.
func ParseBitMatrix(rows []string) *BitMatrix {
	cleaned := make([]string, 0, len(rows))
	for _, r := range rows {
		cleaned = append(cleaned, strings.ReplaceAll(r, " ", ""))
	}
	if len(cleaned) == 0 {
		return NewBitMatrix(0, 0)
	}
	m := NewBitMatrix(len(cleaned[0]), len(cleaned))
	for y, r := range cleaned {
		for x, c := range r {
			if x < m.width && (c == '#' || c == 'X') {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func (m *BitMatrix) Width() int  { return m.width }
func (m *BitMatrix) Height() int { return m.height }

// Get reports whether (x, y) is set. Out-of-range coordinates read as clear.
func (m *BitMatrix) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.bits[y*m.width+x]
}

func (m *BitMatrix) Set(x, y int, v bool) {
	m.bits[y*m.width+x] = v
}

func (m *BitMatrix) Flip(x, y int) {
	i := y*m.width + x
	m.bits[i] = !m.bits[i]
}

// SetRegion sets every bit of the width x height rectangle at (left, top).
func (m *BitMatrix) SetRegion(left, top, width, height int) {
	for y := top; y < top+height; y++ {
		for x := left; x < left+width; x++ {
			m.bits[y*m.width+x] = true
		}
	}
}

// Clone returns a deep copy.
func (m *BitMatrix) Clone() *BitMatrix {
	c := &BitMatrix{width: m.width, height: m.height, bits: make([]bool, len(m.bits))}
	copy(c.bits, m.bits)
	return c
}

// Transpose returns the matrix mirrored over its main diagonal.
func (m *BitMatrix) Transpose() *BitMatrix {
	t := NewBitMatrix(m.height, m.width)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			t.bits[x*t.width+y] = m.bits[y*m.width+x]
		}
	}
	return t
}

// Equal reports whether both matrices have the same size and bits.
func (m *BitMatrix) Equal(o *BitMatrix) bool {
	if o == nil || m.width != o.width || m.height != o.height {
		return false
	}
	for i, b := range m.bits {
		if o.bits[i] != b {
			return false
		}
	}
	return true
}

// String renders the matrix with "##" for set and "  " for clear bits.
func (m *BitMatrix) String() string {
	var sb strings.Builder
	sb.Grow(m.height * (2*m.width + 1))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.Get(x, y) {
				sb.WriteString("##")
			} else {
				sb.WriteString("  ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
