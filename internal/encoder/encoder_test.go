package encoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

func TestChooseMode(t *testing.T) {
	tests := []struct {
		payload string
		want    qr.Mode
	}{
		{"0123456789", qr.ModeNumeric},
		{"", qr.ModeNumeric},
		{"HELLO WORLD $%*+-./:", qr.ModeAlphanumeric},
		{"Hello", qr.ModeByte},
		{"https://example.com", qr.ModeByte},
		{"grüße", qr.ModeByte},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseMode([]byte(tt.payload)))
		})
	}
}

func TestCodewords_NumericExample(t *testing.T) {
	var bits qr.BitBuffer
	bits.AppendBits(uint32(qr.ModeNumeric), 4)
	bits.AppendBits(8, qr.ModeNumeric.CharacterCountBits(1))
	appendPayload(&bits, []byte("01234567"), qr.ModeNumeric)

	got := terminate(&bits, qr.MustVersion(1).DataCodewords(qr.LevelM))
	want := []byte{0x10, 0x20, 0x0C, 0x56, 0x61, 0x80, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11}
	assert.Equal(t, want, got)
}

func TestInterleave_GroupsLongBlocksLast(t *testing.T) {
	// Version 5-Q: two blocks of 15 and two of 16 data codewords.
	blocks := qr.MustVersion(5).ECBlocks(qr.LevelQ)
	data := make([]byte, blocks.DataCodewords())
	for i := range data {
		data[i] = byte(i)
	}
	out := interleave(data, blocks)

	require.Len(t, out, qr.MustVersion(5).TotalCodewords)
	assert.Equal(t, []byte{0, 15, 30, 46, 1, 16, 31, 47}, out[:8])
	// Only the long blocks contribute a sixteenth codeword.
	assert.Equal(t, []byte{45, 61}, out[60:62])
}

func TestEncode_VersionSelection(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		level       qr.ECLevel
		minVersion  int
		wantVersion int
	}{
		{"short numeric fits version 1", "01234567", qr.LevelH, 0, 1},
		{"version 1 byte boundary at L", string(bytes.Repeat([]byte("a"), 17)), qr.LevelL, 0, 1},
		{"one more byte grows", string(bytes.Repeat([]byte("a"), 18)), qr.LevelL, 0, 2},
		{"minimum version honored", "hi", qr.LevelM, 5, 5},
		{"minimum version grows when too small", string(bytes.Repeat([]byte("a"), 200)), qr.LevelM, 3, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, err := Encode([]byte(tt.payload), tt.level, Options{MinVersion: tt.minVersion})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, sym.Version.Number)
			assert.Equal(t, sym.Version.Dimension(), sym.Size())
		})
	}
}

func TestEncode_CapacityBoundary(t *testing.T) {
	maxPayload := bytes.Repeat([]byte("a"), 1273)

	sym, err := Encode(maxPayload, qr.LevelH, Options{})
	require.NoError(t, err)
	assert.Equal(t, 40, sym.Version.Number)
	assert.Equal(t, qr.ModeByte, sym.Mode)

	_, err = Encode(append(maxPayload, 'a'), qr.LevelH, Options{})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 1274, capErr.Bytes)
	assert.Equal(t, qr.LevelH, capErr.Level)
}

func TestEncode_RejectsInvalidOptions(t *testing.T) {
	_, err := Encode([]byte("x"), qr.ECLevel(9), Options{})
	require.Error(t, err)
	_, err = Encode([]byte("x"), qr.LevelM, Options{MinVersion: 41})
	require.Error(t, err)
}

func TestEncode_MaskDeterminism(t *testing.T) {
	payload := []byte("https://example.com/determinism?x=1")
	a, err := Encode(payload, qr.LevelQ, Options{})
	require.NoError(t, err)
	b, err := Encode(payload, qr.LevelQ, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Mask, b.Mask)
	assert.True(t, a.Modules.Equal(b.Modules))
}

func TestEncode_ChosenMaskHasLowestPenalty(t *testing.T) {
	sym, err := Encode([]byte("penalty check"), qr.LevelM, Options{})
	require.NoError(t, err)

	bits := qr.BitBuffer{}
	bits.AppendBits(uint32(qr.ModeByte), 4)
	bits.AppendBits(13, 8)
	appendPayload(&bits, []byte("penalty check"), qr.ModeByte)
	codewords := interleave(terminate(&bits, sym.Version.DataCodewords(qr.LevelM)), sym.Version.ECBlocks(qr.LevelM))

	chosen := Penalty(sym.Modules)
	for mask := 0; mask < 8; mask++ {
		m := functionModules(sym.Version)
		placeData(m, qr.DataModules(sym.Version), codewords, mask)
		writeFormatInfo(m, qr.LevelM, mask)
		p := Penalty(m)
		if mask < sym.Mask {
			assert.Greater(t, p, chosen, "mask %d", mask)
		} else {
			assert.GreaterOrEqual(t, p, chosen, "mask %d", mask)
		}
	}
}

func TestEncode_FunctionPatternsIntact(t *testing.T) {
	sym, err := Encode([]byte("function patterns"), qr.LevelL, Options{MinVersion: 7})
	require.NoError(t, err)
	dim := sym.Size()

	// Finder centres and the dark module are always dark, timing alternates.
	for _, c := range [][2]int{{3, 3}, {dim - 4, 3}, {3, dim - 4}, {8, dim - 8}} {
		assert.True(t, sym.Dark(c[0], c[1]))
	}
	for i := 8; i < dim-8; i++ {
		assert.Equal(t, i%2 == 0, sym.Dark(6, i))
		assert.Equal(t, i%2 == 0, sym.Dark(i, 6))
	}
	assert.Equal(t, qr.CellFunction, sym.Kind(0, 0))
	assert.Equal(t, qr.CellFunction, sym.Kind(dim-11, 0))
}

func TestPenalty_BlankMatrix(t *testing.T) {
	// 42 lines of 21 light modules, 400 2x2 blocks, no finder-like runs,
	// 0% dark modules.
	assert.Equal(t, 42*(3+16)+400*3+100, Penalty(qr.NewSquareBitMatrix(21)))
}

// TestEncode_ReferenceDecoder checks the symbols against an independent
// decoder implementation.
func TestEncode_ReferenceDecoder(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		level   qr.ECLevel
		opts    Options
	}{
		{"numeric", "3141592653589793238462643383279", qr.LevelM, Options{}},
		{"alphanumeric", "HELLO WORLD", qr.LevelQ, Options{}},
		{"url", "https://example.com/path?query=value", qr.LevelL, Options{}},
		{"high level", "error correction high", qr.LevelH, Options{}},
		{"version info", "versions seven and up carry version information", qr.LevelM, Options{MinVersion: 8}},
		{"forced byte", "12345", qr.LevelM, Options{ByteMode: true}},
		{"long", string(bytes.Repeat([]byte("0123456789abcdef"), 40)), qr.LevelQ, Options{}},
	}
	reader := zxqr.NewQRCodeReader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, err := Encode([]byte(tt.payload), tt.level, tt.opts)
			require.NoError(t, err)

			img := testutil.RasterizeMatrix(sym.Modules, 4, 4)
			bmp, err := gozxing.NewBinaryBitmapFromImage(img)
			require.NoError(t, err)
			res, err := reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
				gozxing.DecodeHintType_PURE_BARCODE: true,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.payload, res.GetText())
		})
	}
}
