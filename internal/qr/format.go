package qr

import (
	"fmt"
	"math/bits"
)

const (
	formatInfoPoly  = 0x537  // x^10+x^8+x^5+x^4+x^2+x+1
	versionInfoPoly = 0x1F25 // x^12+x^11+x^10+x^9+x^8+x^5+x^2+1
	formatInfoMask  = 0x5412
)

// bchRemainder returns (value * x^deg(poly)) mod poly over GF(2).
func bchRemainder(value, poly int) int {
	deg := bits.Len(uint(poly)) - 1
	value <<= uint(deg)
	for bits.Len(uint(value)) > deg {
		value ^= poly << uint(bits.Len(uint(value))-1-deg)
	}
	return value
}

// FormatInfo is the decoded content of the 15-bit format information word.
type FormatInfo struct {
	Level ECLevel
	Mask  int
}

// FormatInfoBits returns the masked 15-bit word for level and mask.
func FormatInfoBits(level ECLevel, mask int) int {
	data := level.FormatBits()<<3 | mask
	return (data<<10 | bchRemainder(data, formatInfoPoly)) ^ formatInfoMask
}

// formatWords holds all 32 valid masked words indexed by the 5 data bits.
var formatWords = func() [32]int {
	var w [32]int
	for data := range w {
		w[data] = (data<<10 | bchRemainder(data, formatInfoPoly)) ^ formatInfoMask
	}
	return w
}()

// DecodeFormatInfo picks the valid word closest to either raw reading,
// accepting up to three bit errors. A second pass without the XOR mask
// covers symbols written by encoders that forget to apply it.
func DecodeFormatInfo(raw1, raw2 int) (FormatInfo, error) {
	for _, xor := range []int{0, formatInfoMask} {
		best, bestDist := -1, 4
		for data, word := range formatWords {
			for _, raw := range []int{raw1 ^ xor, raw2 ^ xor} {
				if d := bits.OnesCount(uint(raw ^ word)); d < bestDist {
					best, bestDist = data, d
				}
			}
		}
		if best >= 0 {
			level, err := LevelForFormatBits(best >> 3)
			if err != nil {
				return FormatInfo{}, err
			}
			return FormatInfo{Level: level, Mask: best & 0x07}, nil
		}
	}
	return FormatInfo{}, fmt.Errorf("qr: format information %#x/%#x unreadable", raw1, raw2)
}

// MaskBit reports whether data mask pattern mask flips the module at
// column x, row y.
func MaskBit(mask, x, y int) bool {
	switch mask {
	case 0:
		return (x+y)%2 == 0
	case 1:
		return y%2 == 0
	case 2:
		return x%3 == 0
	case 3:
		return (x+y)%3 == 0
	case 4:
		return (y/2+x/3)%2 == 0
	case 5:
		return (x*y)%6 == 0
	case 6:
		return (x*y)%6 < 3
	case 7:
		return (x+y+(x*y)%3)%2 == 0
	}
	panic(fmt.Sprintf("qr: invalid mask %d", mask))
}
