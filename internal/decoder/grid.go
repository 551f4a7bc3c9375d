package decoder

import (
	"fmt"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/reedsolomon"
)

// symbolInfo is what the function patterns and codewords of a grid say.
type symbolInfo struct {
	version   *qr.Version
	format    qr.FormatInfo
	data      []byte
	corrected int
}

// readFormat collects both format information copies in the bit order the
// encoder writes them.
func readFormat(grid *qr.BitMatrix) (qr.FormatInfo, error) {
	dim := grid.Width()
	bit := func(x, y int) int {
		if grid.Get(x, y) {
			return 1
		}
		return 0
	}

	raw1 := 0
	for i := 0; i <= 5; i++ {
		raw1 |= bit(8, i) << i
	}
	raw1 |= bit(8, 7) << 6
	raw1 |= bit(8, 8) << 7
	raw1 |= bit(7, 8) << 8
	for i := 9; i < 15; i++ {
		raw1 |= bit(14-i, 8) << i
	}

	raw2 := 0
	for i := 0; i < 8; i++ {
		raw2 |= bit(dim-1-i, 8) << i
	}
	for i := 8; i < 15; i++ {
		raw2 |= bit(8, dim-15+i) << i
	}
	return qr.DecodeFormatInfo(raw1, raw2)
}

// readVersion returns the version of a grid. From version 7 on both
// version information blocks are read; the grid size must agree with them.
func readVersion(grid *qr.BitMatrix) (*qr.Version, error) {
	dim := grid.Width()
	provisional, err := qr.VersionForDimension(dim)
	if err != nil {
		return nil, err
	}
	if provisional.Number < 7 {
		return provisional, nil
	}

	var topRight, bottomLeft int
	for i := 0; i < 18; i++ {
		a, b := dim-11+i%3, i/3
		if grid.Get(a, b) {
			topRight |= 1 << i
		}
		if grid.Get(b, a) {
			bottomLeft |= 1 << i
		}
	}
	for _, raw := range []int{topRight, bottomLeft} {
		if v, ok := qr.DecodeVersionInfo(raw); ok {
			if v.Dimension() != dim {
				return nil, fmt.Errorf("version information says %d, grid is %d modules", v.Number, dim)
			}
			return v, nil
		}
	}
	return nil, fmt.Errorf("version information %#x/%#x unreadable", topRight, bottomLeft)
}

// readCodewords unmasks the data region and packs it into codewords in
// placement order.
func readCodewords(grid *qr.BitMatrix, v *qr.Version, mask int) []byte {
	out := make([]byte, v.TotalCodewords)
	for i, p := range qr.DataModules(v) {
		if i >= 8*len(out) {
			break
		}
		if grid.Get(p[0], p[1]) != qr.MaskBit(mask, p[0], p[1]) {
			out[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return out
}

// correctBlocks splits interleaved codewords into their blocks, repairs
// each one and returns the concatenated data codewords.
func correctBlocks(codewords []byte, blocks qr.ECBlocks) ([]byte, int, error) {
	ec := blocks.ECCodewordsPerBlock
	var sizes []int
	for _, g := range blocks.Groups {
		for i := 0; i < g.Count; i++ {
			sizes = append(sizes, g.DataCodewords)
		}
	}
	longest := sizes[len(sizes)-1]

	split := make([][]byte, len(sizes))
	for i, n := range sizes {
		split[i] = make([]byte, 0, n+ec)
	}
	pos := 0
	for i := 0; i < longest; i++ {
		for b, n := range sizes {
			if i < n {
				split[b] = append(split[b], codewords[pos])
				pos++
			}
		}
	}
	for i := 0; i < ec; i++ {
		for b := range sizes {
			split[b] = append(split[b], codewords[pos])
			pos++
		}
	}

	data := make([]byte, 0, blocks.DataCodewords())
	corrected := 0
	for b, block := range split {
		n, err := reedsolomon.Decode(block, ec)
		if err != nil {
			return nil, 0, fmt.Errorf("block %d of %d: %w", b+1, len(split), err)
		}
		corrected += n
		data = append(data, block[:sizes[b]]...)
	}
	return data, corrected, nil
}

// readGrid demodulates a sampled grid up to corrected data codewords.
func readGrid(grid *qr.BitMatrix) (*symbolInfo, error) {
	format, err := readFormat(grid)
	if err != nil {
		return nil, err
	}
	v, err := readVersion(grid)
	if err != nil {
		return nil, err
	}
	codewords := readCodewords(grid, v, format.Mask)
	data, corrected, err := correctBlocks(codewords, v.ECBlocks(format.Level))
	if err != nil {
		return nil, err
	}
	return &symbolInfo{version: v, format: format, data: data, corrected: corrected}, nil
}
