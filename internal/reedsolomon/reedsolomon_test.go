package reedsolomon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeword(data []byte, ecCount int) []byte {
	return append(append([]byte(nil), data...), Encode(data, ecCount)...)
}

func TestFieldTables(t *testing.T) {
	assert.Equal(t, byte(1), Exp(0))
	assert.Equal(t, byte(2), Exp(1))
	assert.Equal(t, byte(0x1D), Exp(8))
	assert.Equal(t, byte(1), Exp(255))
	assert.Equal(t, Exp(254), Exp(-1))
	for a := 1; a < 256; a++ {
		assert.Equal(t, byte(a), Exp(Log(byte(a))))
		assert.Equal(t, byte(1), mul(byte(a), inv(byte(a))))
	}
}

func TestEncode_KnownVector(t *testing.T) {
	// "01234567" in numeric mode, version 1-M, from ISO/IEC 18004 Annex I.
	data := []byte{0x10, 0x20, 0x0C, 0x56, 0x61, 0x80, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11, 0xEC, 0x11}
	want := []byte{0xA5, 0x24, 0xD4, 0xC1, 0xED, 0x36, 0xC7, 0x87, 0x2C, 0x55}
	assert.Equal(t, want, Encode(data, 10))
}

func TestEncode_SyndromesVanish(t *testing.T) {
	data := []byte("reed solomon over gf256")
	block := codeword(data, 18)
	for i := 0; i < 18; i++ {
		assert.Zero(t, evalHigh(block, Exp(i)), "syndrome %d", i)
	}
}

func TestDecode(t *testing.T) {
	data := []byte{32, 91, 11, 120, 209, 114, 220, 77, 67, 64, 236, 17, 236, 17, 236, 17}
	const ecCount = 10

	tests := []struct {
		name      string
		positions []int
		wantErr   bool
	}{
		{name: "no errors"},
		{name: "single data error", positions: []int{0}},
		{name: "error in ec codewords", positions: []int{20, 25}},
		{name: "at capacity", positions: []int{1, 4, 9, 16, 22}},
		{name: "beyond capacity", positions: []int{0, 2, 4, 6, 8, 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := codeword(data, ecCount)
			received := append([]byte(nil), original...)
			for i, p := range tt.positions {
				received[p] ^= byte(0x5A + i)
			}

			n, err := Decode(received, ecCount)
			if tt.wantErr {
				// Six errors exceed t=5; the decoder may still land on another
				// codeword, but it must never report the original as repaired
				// with a wrong count.
				if err == nil {
					assert.NotEqual(t, original, received)
				} else {
					require.ErrorIs(t, err, ErrUncorrectable)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.positions), n)
			assert.Equal(t, original, received)
		})
	}
}

func TestDecode_OddECCountDetectsOneBeyondCapacity(t *testing.T) {
	// Seven ec codewords give distance 8: four errors are always detected.
	data := []byte("nineteen bytes here")
	require.Len(t, data, 19)
	received := codeword(data, 7)
	for _, p := range []int{0, 7, 13, 21} {
		received[p] ^= 0xFF
	}
	_, err := Decode(received, 7)
	require.ErrorIs(t, err, ErrUncorrectable)
}

func TestDecode_RejectsBadParameters(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, 3)
	require.ErrorIs(t, err, ErrUncorrectable)
	_, err = Decode([]byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrUncorrectable)
}
