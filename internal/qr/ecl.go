package qr

import (
	"fmt"
	"strings"
)

// ECLevel is the error correction level. The numeric value indexes the
// version table.
type ECLevel int

const (
	LevelL ECLevel = iota // ~7% recovery
	LevelM                // ~15% recovery
	LevelQ                // ~25% recovery
	LevelH                // ~30% recovery
)

// Levels lists every level from weakest to strongest.
var Levels = []ECLevel{LevelL, LevelM, LevelQ, LevelH}

var levelFormatBits = [4]int{LevelL: 0x01, LevelM: 0x00, LevelQ: 0x03, LevelH: 0x02}

// FormatBits returns the two-bit value stored in format information.
func (l ECLevel) FormatBits() int { return levelFormatBits[l] }

func (l ECLevel) String() string {
	switch l {
	case LevelL:
		return "L"
	case LevelM:
		return "M"
	case LevelQ:
		return "Q"
	case LevelH:
		return "H"
	}
	return fmt.Sprintf("ECLevel(%d)", int(l))
}

// Name returns the long form used in API catalogs.
func (l ECLevel) Name() string {
	switch l {
	case LevelL:
		return "LOW"
	case LevelM:
		return "MEDIUM"
	case LevelQ:
		return "QUARTILE"
	case LevelH:
		return "HIGH"
	}
	return l.String()
}

// RecoveryPercent is the approximate share of codewords the level restores.
func (l ECLevel) RecoveryPercent() int {
	return [4]int{7, 15, 25, 30}[l]
}

// Description is a short human-readable summary of the level.
func (l ECLevel) Description() string {
	return fmt.Sprintf("about %d%% of codewords can be restored", l.RecoveryPercent())
}

// Valid reports whether l is one of the four defined levels.
func (l ECLevel) Valid() bool { return l >= LevelL && l <= LevelH }

// ParseECLevel accepts the short (L, M, Q, H) or long (LOW, MEDIUM,
// QUARTILE, HIGH) names in any case.
func ParseECLevel(s string) (ECLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L", "LOW":
		return LevelL, nil
	case "M", "MEDIUM":
		return LevelM, nil
	case "Q", "QUARTILE":
		return LevelQ, nil
	case "H", "HIGH":
		return LevelH, nil
	}
	return 0, fmt.Errorf("qr: unknown error correction level %q", s)
}

// LevelForFormatBits maps format-information bits back to a level.
func LevelForFormatBits(bits int) (ECLevel, error) {
	for l, b := range levelFormatBits {
		if b == bits {
			return ECLevel(l), nil
		}
	}
	return 0, fmt.Errorf("qr: invalid level bits %#x", bits)
}

// MarshalText implements encoding.TextMarshaler.
func (l ECLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ECLevel) UnmarshalText(b []byte) error {
	v, err := ParseECLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
