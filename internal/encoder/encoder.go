// Package encoder turns payload bytes into a QR symbol: mode and version
// selection, codeword construction with Reed-Solomon error correction,
// module placement and mask selection.
package encoder

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/reedsolomon"
)

// ErrCapacityExceeded is returned when the payload does not fit version 40
// at the requested error correction level.
var ErrCapacityExceeded = errors.New("payload exceeds symbol capacity")

// CapacityError carries the details of a payload that does not fit.
type CapacityError struct {
	Bytes      int
	Level      qr.ECLevel
	Mode       qr.Mode
	MinVersion int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%d byte %s payload does not fit any version >= %d at level %s: %v",
		e.Bytes, e.Mode, e.MinVersion, e.Level, ErrCapacityExceeded)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// Options tunes encoding. The zero value selects everything automatically.
type Options struct {
	// MinVersion is the smallest version to use (1..40). Payloads that do not
	// fit grow the version; 0 means 1.
	MinVersion int
	// ByteMode disables numeric and alphanumeric compaction.
	ByteMode bool
}

// Encode builds the symbol for payload at level. The result is fully
// determined by its inputs.
func Encode(payload []byte, level qr.ECLevel, opts Options) (*qr.Symbol, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("invalid error correction level %d", int(level))
	}
	minVersion := opts.MinVersion
	if minVersion == 0 {
		minVersion = 1
	}
	if minVersion < 1 || minVersion > 40 {
		return nil, fmt.Errorf("minimum version %d out of range 1..40", opts.MinVersion)
	}

	mode := qr.ModeByte
	if !opts.ByteMode {
		mode = ChooseMode(payload)
	}

	var data qr.BitBuffer
	appendPayload(&data, payload, mode)

	version, err := chooseVersion(mode, len(payload), data.Len(), level, minVersion)
	if err != nil {
		return nil, err
	}

	var bits qr.BitBuffer
	bits.AppendBits(uint32(mode), 4)
	bits.AppendBits(uint32(len(payload)), mode.CharacterCountBits(version.Number))
	appendPayload(&bits, payload, mode)
	dataCodewords := terminate(&bits, version.DataCodewords(level))
	codewords := interleave(dataCodewords, version.ECBlocks(level))

	modules, mask := buildMatrix(version, level, codewords)
	return &qr.Symbol{
		Version: version,
		Level:   level,
		Mask:    mask,
		Mode:    mode,
		Modules: modules,
	}, nil
}

// ChooseMode returns the most compact single mode able to represent payload.
func ChooseMode(payload []byte) qr.Mode {
	numeric, alnum := true, true
	for _, c := range payload {
		if c < '0' || c > '9' {
			numeric = false
		}
		if qr.AlphanumericCode(c) < 0 {
			alnum = false
		}
	}
	switch {
	case numeric:
		return qr.ModeNumeric
	case alnum:
		return qr.ModeAlphanumeric
	}
	return qr.ModeByte
}

func appendPayload(b *qr.BitBuffer, payload []byte, mode qr.Mode) {
	switch mode {
	case qr.ModeNumeric:
		for i := 0; i < len(payload); i += 3 {
			end := min(i+3, len(payload))
			v := 0
			for _, c := range payload[i:end] {
				v = v*10 + int(c-'0')
			}
			b.AppendBits(uint32(v), [4]int{0, 4, 7, 10}[end-i])
		}
	case qr.ModeAlphanumeric:
		for i := 0; i < len(payload); i += 2 {
			if i+1 < len(payload) {
				v := qr.AlphanumericCode(payload[i])*45 + qr.AlphanumericCode(payload[i+1])
				b.AppendBits(uint32(v), 11)
			} else {
				b.AppendBits(uint32(qr.AlphanumericCode(payload[i])), 6)
			}
		}
	default:
		for _, c := range payload {
			b.AppendBits(uint32(c), 8)
		}
	}
}

func chooseVersion(mode qr.Mode, count, dataBits int, level qr.ECLevel, minVersion int) (*qr.Version, error) {
	for n := minVersion; n <= 40; n++ {
		v := qr.MustVersion(n)
		ccBits := mode.CharacterCountBits(n)
		if count >= 1<<uint(ccBits) {
			continue
		}
		if 4+ccBits+dataBits <= v.DataBits(level) {
			return v, nil
		}
	}
	return nil, &CapacityError{Bytes: count, Level: level, Mode: mode, MinVersion: minVersion}
}

// terminate appends the terminator, pads to a byte boundary and fills the
// remaining capacity with the alternating pad codewords.
func terminate(bits *qr.BitBuffer, capacityBytes int) []byte {
	capacity := capacityBytes * 8
	bits.AppendBits(0, min(4, capacity-bits.Len()))
	if r := bits.Len() % 8; r != 0 {
		bits.AppendBits(0, 8-r)
	}
	out := bits.Bytes()
	for pad := byte(0xEC); len(out) < capacityBytes; pad ^= 0xEC ^ 0x11 {
		out = append(out, pad)
	}
	return out
}

// interleave splits data into blocks, appends error correction to each and
// emits column-wise: all first data codewords, then all second, and so on,
// followed by the error correction codewords in the same fashion.
func interleave(data []byte, blocks qr.ECBlocks) []byte {
	ecCount := blocks.ECCodewordsPerBlock
	var dataBlocks, ecBlocks [][]byte
	offset := 0
	for _, g := range blocks.Groups {
		for i := 0; i < g.Count; i++ {
			d := data[offset : offset+g.DataCodewords]
			offset += g.DataCodewords
			dataBlocks = append(dataBlocks, d)
			ecBlocks = append(ecBlocks, reedsolomon.Encode(d, ecCount))
		}
	}

	out := make([]byte, 0, len(data)+ecCount*len(dataBlocks))
	longest := len(dataBlocks[len(dataBlocks)-1])
	for i := 0; i < longest; i++ {
		for _, d := range dataBlocks {
			if i < len(d) {
				out = append(out, d[i])
			}
		}
	}
	for i := 0; i < ecCount; i++ {
		for _, e := range ecBlocks {
			out = append(out, e[i])
		}
	}
	return out
}
