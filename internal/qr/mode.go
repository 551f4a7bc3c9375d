package qr

import "fmt"

// Mode is the 4-bit segment mode indicator.
type Mode int

const (
	ModeTerminator       Mode = 0x0
	ModeNumeric          Mode = 0x1
	ModeAlphanumeric     Mode = 0x2
	ModeStructuredAppend Mode = 0x3
	ModeByte             Mode = 0x4
	ModeFNC1First        Mode = 0x5
	ModeECI              Mode = 0x7
	ModeKanji            Mode = 0x8
	ModeFNC1Second       Mode = 0x9
	ModeHanzi            Mode = 0xD
)

// AlphanumericChars is the 45 character alphanumeric table, in code order.
const AlphanumericChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

var alphanumericIndex [128]int8

func init() {
	for i := range alphanumericIndex {
		alphanumericIndex[i] = -1
	}
	for i := 0; i < len(AlphanumericChars); i++ {
		alphanumericIndex[AlphanumericChars[i]] = int8(i)
	}
}

// AlphanumericCode returns the table index of c, or -1.
func AlphanumericCode(c byte) int {
	if c >= 128 {
		return -1
	}
	return int(alphanumericIndex[c])
}

// ModeForBits parses a mode indicator.
func ModeForBits(bits int) (Mode, error) {
	switch m := Mode(bits); m {
	case ModeTerminator, ModeNumeric, ModeAlphanumeric, ModeStructuredAppend, ModeByte,
		ModeFNC1First, ModeECI, ModeKanji, ModeFNC1Second, ModeHanzi:
		return m, nil
	}
	return 0, fmt.Errorf("qr: invalid mode indicator %#x", bits)
}

// CharacterCountBits returns the width of the character count field for
// this mode at the given version number.
func (m Mode) CharacterCountBits(version int) int {
	col := 0
	switch {
	case version > 26:
		col = 2
	case version > 9:
		col = 1
	}
	switch m {
	case ModeNumeric:
		return [3]int{10, 12, 14}[col]
	case ModeAlphanumeric:
		return [3]int{9, 11, 13}[col]
	case ModeByte:
		return [3]int{8, 16, 16}[col]
	case ModeKanji, ModeHanzi:
		return [3]int{8, 10, 12}[col]
	}
	return 0
}

func (m Mode) String() string {
	switch m {
	case ModeTerminator:
		return "terminator"
	case ModeNumeric:
		return "numeric"
	case ModeAlphanumeric:
		return "alphanumeric"
	case ModeStructuredAppend:
		return "structured_append"
	case ModeByte:
		return "byte"
	case ModeFNC1First, ModeFNC1Second:
		return "fnc1"
	case ModeECI:
		return "eci"
	case ModeKanji:
		return "kanji"
	case ModeHanzi:
		return "hanzi"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
