package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionTable_Consistency(t *testing.T) {
	for n := 1; n <= 40; n++ {
		v := MustVersion(n)
		assert.Equal(t, 17+4*n, v.Dimension())
		for _, level := range Levels {
			e := v.ECBlocks(level)
			total := e.DataCodewords() + e.NumBlocks()*e.ECCodewordsPerBlock
			assert.Equal(t, v.TotalCodewords, total, "version %d level %s", n, level)
		}
		// Every non-function module carries a codeword bit, plus 0-7 remainder bits.
		modules := len(DataModules(v))
		assert.Equal(t, v.TotalCodewords, modules/8, "version %d", n)
		assert.Less(t, modules-8*v.TotalCodewords, 8)
	}
}

func TestVersionTable_KnownCapacities(t *testing.T) {
	assert.Equal(t, 26, MustVersion(1).TotalCodewords)
	assert.Equal(t, 19, MustVersion(1).DataCodewords(LevelL))
	assert.Equal(t, 9, MustVersion(1).DataCodewords(LevelH))
	assert.Equal(t, 3706, MustVersion(40).TotalCodewords)
	assert.Equal(t, 1276, MustVersion(40).DataCodewords(LevelH))
	assert.Equal(t, 2956, MustVersion(40).DataCodewords(LevelL))
}

func TestVersionForDimension(t *testing.T) {
	v, err := VersionForDimension(21)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)

	_, err = VersionForDimension(22)
	require.Error(t, err)
	_, err = VersionForDimension(181)
	require.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	assert.Equal(t, 0x07C94, VersionInfoBits(7))
	assert.Equal(t, 0x28C69, VersionInfoBits(40))

	v, ok := DecodeVersionInfo(VersionInfoBits(23) ^ 0b101)
	require.True(t, ok)
	assert.Equal(t, 23, v.Number)

	_, ok = DecodeVersionInfo(0)
	assert.False(t, ok)
}

func TestFormatInfo(t *testing.T) {
	assert.Equal(t, 0x5412, FormatInfoBits(LevelM, 0))
	assert.Equal(t, 0x77C4, FormatInfoBits(LevelL, 0))

	tests := []struct {
		name  string
		level ECLevel
		mask  int
		flips int
	}{
		{"exact", LevelH, 5, 0},
		{"one error", LevelQ, 2, 0b1},
		{"three errors", LevelL, 7, 0b100000100001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := FormatInfoBits(tt.level, tt.mask) ^ tt.flips
			fi, err := DecodeFormatInfo(raw, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.level, fi.Level)
			assert.Equal(t, tt.mask, fi.Mask)
		})
	}

	// A bad first copy is rescued by a clean second copy.
	fi, err := DecodeFormatInfo(0x7FFF, FormatInfoBits(LevelH, 3))
	require.NoError(t, err)
	assert.Equal(t, FormatInfo{Level: LevelH, Mask: 3}, fi)
}

func TestParseECLevel(t *testing.T) {
	tests := map[string]ECLevel{"l": LevelL, "MEDIUM": LevelM, " q ": LevelQ, "High": LevelH}
	for in, want := range tests {
		got, err := ParseECLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseECLevel("X")
	require.Error(t, err)
}

func TestAlignmentPositions(t *testing.T) {
	assert.Empty(t, AlignmentPositions(MustVersion(1)))
	assert.Equal(t, [][2]int{{18, 18}}, AlignmentPositions(MustVersion(2)))
	assert.Len(t, AlignmentPositions(MustVersion(7)), 6)
	assert.Len(t, AlignmentPositions(MustVersion(40)), 46)
}

func TestIsFinderEye(t *testing.T) {
	assert.True(t, IsFinderEye(0, 0, 21))
	assert.True(t, IsFinderEye(6, 6, 21))
	assert.True(t, IsFinderEye(20, 0, 21))
	assert.True(t, IsFinderEye(0, 14, 21))
	assert.False(t, IsFinderEye(7, 7, 21))
	assert.False(t, IsFinderEye(20, 20, 21))
	assert.False(t, IsFinderEye(10, 3, 21))
}

func TestBitBufferAndReader(t *testing.T) {
	var b BitBuffer
	b.AppendBits(0b0100, 4)
	b.AppendBits(5, 8)
	b.AppendBit(true)
	assert.Equal(t, 13, b.Len())
	assert.Equal(t, []byte{0x40, 0x58}, b.Bytes())

	r := NewBitReader(b.Bytes())
	mode, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, 4, mode)
	n, err := r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 4, r.Available())
	_, err = r.ReadBits(5)
	require.Error(t, err)
}

func TestBitMatrix(t *testing.T) {
	m := ParseBitMatrix([]string{
		"# . .",
		". # .",
		"# # .",
	})
	assert.True(t, m.Get(0, 0))
	assert.True(t, m.Get(1, 2))
	assert.False(t, m.Get(2, 2))
	assert.False(t, m.Get(-1, 0))

	tr := m.Transpose()
	assert.True(t, tr.Get(2, 0))
	assert.True(t, tr.Transpose().Equal(m))

	c := m.Clone()
	c.Flip(2, 2)
	assert.False(t, c.Equal(m))
}
