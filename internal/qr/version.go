package qr

import (
	"fmt"
	"math/bits"
	"sync"
)

// BlockGroup is a run of blocks sharing a data codeword count.
type BlockGroup struct {
	Count         int
	DataCodewords int
}

// ECBlocks describes the block structure for one version and level.
type ECBlocks struct {
	ECCodewordsPerBlock int
	Groups              []BlockGroup
}

// NumBlocks returns the total block count.
func (e ECBlocks) NumBlocks() int {
	n := 0
	for _, g := range e.Groups {
		n += g.Count
	}
	return n
}

// DataCodewords returns the total number of data codewords.
func (e ECBlocks) DataCodewords() int {
	n := 0
	for _, g := range e.Groups {
		n += g.Count * g.DataCodewords
	}
	return n
}

// Version is one row of the immutable version table.
type Version struct {
	Number           int
	AlignmentCenters []int
	TotalCodewords   int
	blocks           [4]ECBlocks
}

// Dimension returns the module count per side.
func (v *Version) Dimension() int { return 17 + 4*v.Number }

// ECBlocks returns the block structure for level.
func (v *Version) ECBlocks(level ECLevel) ECBlocks { return v.blocks[level] }

// DataCodewords returns the data capacity in codewords at level.
func (v *Version) DataCodewords(level ECLevel) int { return v.blocks[level].DataCodewords() }

// DataBits returns the data capacity in bits at level.
func (v *Version) DataBits(level ECLevel) int { return 8 * v.DataCodewords(level) }

// VersionForNumber returns version n (1..40).
func VersionForNumber(n int) (*Version, error) {
	if n < 1 || n > len(versions) {
		return nil, fmt.Errorf("qr: version %d out of range 1..40", n)
	}
	return &versions[n-1], nil
}

// MustVersion is VersionForNumber for constant arguments.
func MustVersion(n int) *Version {
	v, err := VersionForNumber(n)
	if err != nil {
		panic(err)
	}
	return v
}

// VersionForDimension returns the version whose side is dimension modules.
func VersionForDimension(dimension int) (*Version, error) {
	if dimension%4 != 1 {
		return nil, fmt.Errorf("qr: dimension %d is not 4k+1", dimension)
	}
	return VersionForNumber((dimension - 17) / 4)
}

// VersionInfoBits returns the 18-bit BCH(18,6) version information word.
func VersionInfoBits(version int) int {
	return version<<12 | bchRemainder(version, versionInfoPoly)
}

// DecodeVersionInfo matches raw version bits against every valid word
// and returns the closest one within three bit errors.
func DecodeVersionInfo(raw int) (*Version, bool) {
	best, bestDist := 0, 4
	for n := 7; n <= 40; n++ {
		d := bits.OnesCount(uint(raw ^ VersionInfoBits(n)))
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	if best == 0 {
		return nil, false
	}
	return &versions[best-1], true
}

var functionPatterns [40]struct {
	once sync.Once
	m    *BitMatrix
}

// FunctionPattern returns the shared, read-only matrix marking every
// function module of v: finders with separators and format areas, timing
// strips, alignment patterns, the dark module and version information.
func (v *Version) FunctionPattern() *BitMatrix {
	slot := &functionPatterns[v.Number-1]
	slot.once.Do(func() { slot.m = v.buildFunctionPattern() })
	return slot.m
}

func (v *Version) buildFunctionPattern() *BitMatrix {
	dim := v.Dimension()
	m := NewSquareBitMatrix(dim)
	m.SetRegion(0, 0, 9, 9)
	m.SetRegion(dim-8, 0, 8, 9)
	m.SetRegion(0, dim-8, 9, 8)
	for _, c := range AlignmentPositions(v) {
		m.SetRegion(c[0]-2, c[1]-2, 5, 5)
	}
	m.SetRegion(6, 9, 1, dim-17)
	m.SetRegion(9, 6, dim-17, 1)
	if v.Number >= 7 {
		m.SetRegion(dim-11, 0, 3, 6)
		m.SetRegion(0, dim-11, 6, 3)
	}
	return m
}

// AlignmentPositions returns the (x, y) centres of every alignment pattern,
// leaving out the three that would collide with finder patterns.
func AlignmentPositions(v *Version) [][2]int {
	c := v.AlignmentCenters
	n := len(c)
	out := make([][2]int, 0, n*n)
	for i, y := range c {
		for j, x := range c {
			if (i == 0 && j == 0) || (i == 0 && j == n-1) || (i == n-1 && j == 0) {
				continue
			}
			out = append(out, [2]int{x, y})
		}
	}
	return out
}

// blockSpec is {ec per block, group 1 count, group 1 data, group 2 count, group 2 data}.
type blockSpec [5]int

type versionRow struct {
	align  []int
	blocks [4]blockSpec
}

var versions = func() [40]Version {
	var out [40]Version
	for i, row := range versionTable {
		v := Version{Number: i + 1, AlignmentCenters: row.align}
		for l, s := range row.blocks {
			e := ECBlocks{ECCodewordsPerBlock: s[0], Groups: []BlockGroup{{Count: s[1], DataCodewords: s[2]}}}
			if s[3] > 0 {
				e.Groups = append(e.Groups, BlockGroup{Count: s[3], DataCodewords: s[4]})
			}
			v.blocks[l] = e
		}
		l := v.blocks[LevelL]
		v.TotalCodewords = l.DataCodewords() + l.NumBlocks()*l.ECCodewordsPerBlock
		out[i] = v
	}
	return out
}()

// versionTable rows are ordered L, M, Q, H.
var versionTable = [40]versionRow{
	{nil, [4]blockSpec{{7, 1, 19, 0, 0}, {10, 1, 16, 0, 0}, {13, 1, 13, 0, 0}, {17, 1, 9, 0, 0}}}, // 1
	{[]int{6, 18}, [4]blockSpec{{10, 1, 34, 0, 0}, {16, 1, 28, 0, 0}, {22, 1, 22, 0, 0}, {28, 1, 16, 0, 0}}}, // 2
	{[]int{6, 22}, [4]blockSpec{{15, 1, 55, 0, 0}, {26, 1, 44, 0, 0}, {18, 2, 17, 0, 0}, {22, 2, 13, 0, 0}}}, // 3
	{[]int{6, 26}, [4]blockSpec{{20, 1, 80, 0, 0}, {18, 2, 32, 0, 0}, {26, 2, 24, 0, 0}, {16, 4, 9, 0, 0}}}, // 4
	{[]int{6, 30}, [4]blockSpec{{26, 1, 108, 0, 0}, {24, 2, 43, 0, 0}, {18, 2, 15, 2, 16}, {22, 2, 11, 2, 12}}}, // 5
	{[]int{6, 34}, [4]blockSpec{{18, 2, 68, 0, 0}, {16, 4, 27, 0, 0}, {24, 4, 19, 0, 0}, {28, 4, 15, 0, 0}}}, // 6
	{[]int{6, 22, 38}, [4]blockSpec{{20, 2, 78, 0, 0}, {18, 4, 31, 0, 0}, {18, 2, 14, 4, 15}, {26, 4, 13, 1, 14}}}, // 7
	{[]int{6, 24, 42}, [4]blockSpec{{24, 2, 97, 0, 0}, {22, 2, 38, 2, 39}, {22, 4, 18, 2, 19}, {26, 4, 14, 2, 15}}}, // 8
	{[]int{6, 26, 46}, [4]blockSpec{{30, 2, 116, 0, 0}, {22, 3, 36, 2, 37}, {20, 4, 16, 4, 17}, {24, 4, 12, 4, 13}}}, // 9
	{[]int{6, 28, 50}, [4]blockSpec{{18, 2, 68, 2, 69}, {26, 4, 43, 1, 44}, {24, 6, 19, 2, 20}, {28, 6, 15, 2, 16}}}, // 10
	{[]int{6, 30, 54}, [4]blockSpec{{20, 4, 81, 0, 0}, {30, 1, 50, 4, 51}, {28, 4, 22, 4, 23}, {24, 3, 12, 8, 13}}}, // 11
	{[]int{6, 32, 58}, [4]blockSpec{{24, 2, 92, 2, 93}, {22, 6, 36, 2, 37}, {26, 4, 20, 6, 21}, {28, 7, 14, 4, 15}}}, // 12
	{[]int{6, 34, 62}, [4]blockSpec{{26, 4, 107, 0, 0}, {22, 8, 37, 1, 38}, {24, 8, 20, 4, 21}, {22, 12, 11, 4, 12}}}, // 13
	{[]int{6, 26, 46, 66}, [4]blockSpec{{30, 3, 115, 1, 116}, {24, 4, 40, 5, 41}, {20, 11, 16, 5, 17}, {24, 11, 12, 5, 13}}}, // 14
	{[]int{6, 26, 48, 70}, [4]blockSpec{{22, 5, 87, 1, 88}, {24, 5, 41, 5, 42}, {30, 5, 24, 7, 25}, {24, 11, 12, 7, 13}}}, // 15
	{[]int{6, 26, 50, 74}, [4]blockSpec{{24, 5, 98, 1, 99}, {28, 7, 45, 3, 46}, {24, 15, 19, 2, 20}, {30, 3, 15, 13, 16}}}, // 16
	{[]int{6, 30, 54, 78}, [4]blockSpec{{28, 1, 107, 5, 108}, {28, 10, 46, 1, 47}, {28, 1, 22, 15, 23}, {28, 2, 14, 17, 15}}}, // 17
	{[]int{6, 30, 56, 82}, [4]blockSpec{{30, 5, 120, 1, 121}, {26, 9, 43, 4, 44}, {28, 17, 22, 1, 23}, {28, 2, 14, 19, 15}}}, // 18
	{[]int{6, 30, 58, 86}, [4]blockSpec{{28, 3, 113, 4, 114}, {26, 3, 44, 11, 45}, {26, 17, 21, 4, 22}, {26, 9, 13, 16, 14}}}, // 19
	{[]int{6, 34, 62, 90}, [4]blockSpec{{28, 3, 107, 5, 108}, {26, 3, 41, 13, 42}, {30, 15, 24, 5, 25}, {28, 15, 15, 10, 16}}}, // 20
	{[]int{6, 28, 50, 72, 94}, [4]blockSpec{{28, 4, 116, 4, 117}, {26, 17, 42, 0, 0}, {28, 17, 22, 6, 23}, {30, 19, 16, 6, 17}}}, // 21
	{[]int{6, 26, 50, 74, 98}, [4]blockSpec{{28, 2, 111, 7, 112}, {28, 17, 46, 0, 0}, {30, 7, 24, 16, 25}, {24, 34, 13, 0, 0}}}, // 22
	{[]int{6, 30, 54, 78, 102}, [4]blockSpec{{30, 4, 121, 5, 122}, {28, 4, 47, 14, 48}, {30, 11, 24, 14, 25}, {30, 16, 15, 14, 16}}}, // 23
	{[]int{6, 28, 54, 80, 106}, [4]blockSpec{{30, 6, 117, 4, 118}, {28, 6, 45, 14, 46}, {30, 11, 24, 16, 25}, {30, 30, 16, 2, 17}}}, // 24
	{[]int{6, 32, 58, 84, 110}, [4]blockSpec{{26, 8, 106, 4, 107}, {28, 8, 47, 13, 48}, {30, 7, 24, 22, 25}, {30, 22, 15, 13, 16}}}, // 25
	{[]int{6, 30, 58, 86, 114}, [4]blockSpec{{28, 10, 114, 2, 115}, {28, 19, 46, 4, 47}, {28, 28, 22, 6, 23}, {30, 33, 16, 4, 17}}}, // 26
	{[]int{6, 34, 62, 90, 118}, [4]blockSpec{{30, 8, 122, 4, 123}, {28, 22, 45, 3, 46}, {30, 8, 23, 26, 24}, {30, 12, 15, 28, 16}}}, // 27
	{[]int{6, 26, 50, 74, 98, 122}, [4]blockSpec{{30, 3, 117, 10, 118}, {28, 3, 45, 23, 46}, {30, 4, 24, 31, 25}, {30, 11, 15, 31, 16}}}, // 28
	{[]int{6, 30, 54, 78, 102, 126}, [4]blockSpec{{30, 7, 116, 7, 117}, {28, 21, 45, 7, 46}, {30, 1, 23, 37, 24}, {30, 19, 15, 26, 16}}}, // 29
	{[]int{6, 26, 52, 78, 104, 130}, [4]blockSpec{{30, 5, 115, 10, 116}, {28, 19, 47, 10, 48}, {30, 15, 24, 25, 25}, {30, 23, 15, 25, 16}}}, // 30
	{[]int{6, 30, 56, 82, 108, 134}, [4]blockSpec{{30, 13, 115, 3, 116}, {28, 2, 46, 29, 47}, {30, 42, 24, 1, 25}, {30, 23, 15, 28, 16}}}, // 31
	{[]int{6, 34, 60, 86, 112, 138}, [4]blockSpec{{30, 17, 115, 0, 0}, {28, 10, 46, 23, 47}, {30, 10, 24, 35, 25}, {30, 19, 15, 35, 16}}}, // 32
	{[]int{6, 30, 58, 86, 114, 142}, [4]blockSpec{{30, 17, 115, 1, 116}, {28, 14, 46, 21, 47}, {30, 29, 24, 19, 25}, {30, 11, 15, 46, 16}}}, // 33
	{[]int{6, 34, 62, 90, 118, 146}, [4]blockSpec{{30, 13, 115, 6, 116}, {28, 14, 46, 23, 47}, {30, 44, 24, 7, 25}, {30, 59, 16, 1, 17}}}, // 34
	{[]int{6, 30, 54, 78, 102, 126, 150}, [4]blockSpec{{30, 12, 121, 7, 122}, {28, 12, 47, 26, 48}, {30, 39, 24, 14, 25}, {30, 22, 15, 41, 16}}}, // 35
	{[]int{6, 24, 50, 76, 102, 128, 154}, [4]blockSpec{{30, 6, 121, 14, 122}, {28, 6, 47, 34, 48}, {30, 46, 24, 10, 25}, {30, 2, 15, 64, 16}}}, // 36
	{[]int{6, 28, 54, 80, 106, 132, 158}, [4]blockSpec{{30, 17, 122, 4, 123}, {28, 29, 46, 14, 47}, {30, 49, 24, 10, 25}, {30, 24, 15, 46, 16}}}, // 37
	{[]int{6, 32, 58, 84, 110, 136, 162}, [4]blockSpec{{30, 4, 122, 18, 123}, {28, 13, 46, 32, 47}, {30, 48, 24, 14, 25}, {30, 42, 15, 32, 16}}}, // 38
	{[]int{6, 26, 54, 82, 110, 138, 166}, [4]blockSpec{{30, 20, 117, 4, 118}, {28, 40, 47, 7, 48}, {30, 43, 24, 22, 25}, {30, 10, 15, 67, 16}}}, // 39
	{[]int{6, 30, 58, 86, 114, 142, 170}, [4]blockSpec{{30, 19, 118, 6, 119}, {28, 18, 47, 31, 48}, {30, 34, 24, 34, 25}, {30, 20, 15, 61, 16}}}, // 40
}
