package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/MeKo-Tech/qrengine/internal/qr"
)

// ErrMalformedBitstream is returned when corrected data codewords do not
// form a valid segment sequence.
var ErrMalformedBitstream = errors.New("malformed bit stream")

const gb2312Subset = 1

// StructuredAppend places a symbol within a sequence of up to 16 symbols.
type StructuredAppend struct {
	Index  int  `json:"index"`
	Total  int  `json:"total"`
	Parity byte `json:"parity"`
}

type content struct {
	text       string
	raw        []byte
	eci        int
	structured *StructuredAppend
	fnc1       bool
}

type streamParser struct {
	r       *qr.BitReader
	version int
	sb      strings.Builder
	out     content
	charset encoding.Encoding
	haveECI bool
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedBitstream, fmt.Sprintf(format, args...))
}

// parseBitstream decodes the data codewords of a version into text.
func parseBitstream(data []byte, version int) (content, error) {
	p := &streamParser{r: qr.NewBitReader(data), version: version}
	p.out.eci = -1
	for p.r.Available() >= 4 {
		bits, _ := p.r.ReadBits(4)
		mode, err := qr.ModeForBits(bits)
		if err != nil {
			return content{}, fmt.Errorf("%w: %w", ErrMalformedBitstream, err)
		}
		if mode == qr.ModeTerminator {
			break
		}
		if err := p.segment(mode); err != nil {
			return content{}, err
		}
	}
	p.out.text = p.sb.String()
	return p.out, nil
}

func (p *streamParser) read(n int) (int, error) {
	v, err := p.r.ReadBits(n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedBitstream, err)
	}
	return v, nil
}

func (p *streamParser) segment(mode qr.Mode) error {
	switch mode {
	case qr.ModeFNC1First:
		p.out.fnc1 = true
		return nil
	case qr.ModeFNC1Second:
		p.out.fnc1 = true
		_, err := p.read(8) // application indicator
		return err
	case qr.ModeStructuredAppend:
		seq, err := p.read(8)
		if err != nil {
			return err
		}
		parity, err := p.read(8)
		if err != nil {
			return err
		}
		p.out.structured = &StructuredAppend{Index: seq >> 4, Total: seq&0x0F + 1, Parity: byte(parity)}
		return nil
	case qr.ModeECI:
		value, err := p.eciValue()
		if err != nil {
			return err
		}
		enc, ok := charsetForECI(value)
		if !ok {
			return malformed("unsupported ECI %d", value)
		}
		p.charset, p.haveECI = enc, true
		p.out.eci = value
		return nil
	case qr.ModeHanzi:
		subset, err := p.read(4)
		if err != nil {
			return err
		}
		count, err := p.read(mode.CharacterCountBits(p.version))
		if err != nil {
			return err
		}
		if subset != gb2312Subset {
			return malformed("hanzi subset %d", subset)
		}
		return p.doubleByte(count, 0x060, 0x00A00, 0x0A1A1, 0x0A6A1, simplifiedchinese.GBK)
	}

	count, err := p.read(mode.CharacterCountBits(p.version))
	if err != nil {
		return err
	}
	switch mode {
	case qr.ModeNumeric:
		return p.numeric(count)
	case qr.ModeAlphanumeric:
		return p.alphanumeric(count)
	case qr.ModeByte:
		return p.bytes(count)
	case qr.ModeKanji:
		return p.doubleByte(count, 0x0C0, 0x01F00, 0x08140, 0x0C140, japanese.ShiftJIS)
	}
	return malformed("unexpected mode %s", mode)
}

func (p *streamParser) eciValue() (int, error) {
	first, err := p.read(8)
	if err != nil {
		return 0, err
	}
	switch {
	case first&0x80 == 0:
		return first, nil
	case first&0xC0 == 0x80:
		next, err := p.read(8)
		if err != nil {
			return 0, err
		}
		return (first&0x3F)<<8 | next, nil
	case first&0xE0 == 0xC0:
		next, err := p.read(16)
		if err != nil {
			return 0, err
		}
		return (first&0x1F)<<16 | next, nil
	}
	return 0, malformed("bad ECI designator %#x", first)
}

func (p *streamParser) numeric(count int) error {
	for ; count >= 3; count -= 3 {
		v, err := p.read(10)
		if err != nil {
			return err
		}
		if v >= 1000 {
			return malformed("numeric group %d", v)
		}
		fmt.Fprintf(&p.sb, "%03d", v)
	}
	switch count {
	case 2:
		v, err := p.read(7)
		if err != nil {
			return err
		}
		if v >= 100 {
			return malformed("numeric pair %d", v)
		}
		fmt.Fprintf(&p.sb, "%02d", v)
	case 1:
		v, err := p.read(4)
		if err != nil {
			return err
		}
		if v >= 10 {
			return malformed("numeric digit %d", v)
		}
		p.sb.WriteString(strconv.Itoa(v))
	}
	return nil
}

func (p *streamParser) alphanumeric(count int) error {
	char := func(v int) (byte, error) {
		if v >= len(qr.AlphanumericChars) {
			return 0, malformed("alphanumeric code %d", v)
		}
		return qr.AlphanumericChars[v], nil
	}
	for ; count >= 2; count -= 2 {
		v, err := p.read(11)
		if err != nil {
			return err
		}
		a, err := char(v / 45)
		if err != nil {
			return err
		}
		b, err := char(v % 45)
		if err != nil {
			return err
		}
		p.sb.WriteByte(a)
		p.sb.WriteByte(b)
	}
	if count == 1 {
		v, err := p.read(6)
		if err != nil {
			return err
		}
		c, err := char(v)
		if err != nil {
			return err
		}
		p.sb.WriteByte(c)
	}
	return nil
}

func (p *streamParser) bytes(count int) error {
	if 8*count > p.r.Available() {
		return malformed("byte segment of %d bytes, %d bits left", count, p.r.Available())
	}
	b := make([]byte, count)
	for i := range b {
		v, _ := p.r.ReadBits(8)
		b[i] = byte(v)
	}
	p.out.raw = append(p.out.raw, b...)
	p.sb.WriteString(decodeText(b, p.charset, p.haveECI))
	return nil
}

// doubleByte reads 13-bit compacted characters (Kanji or GB2312) and
// expands them back into their two-byte encoding.
func (p *streamParser) doubleByte(count, divisor, split, lowBase, highBase int, enc encoding.Encoding) error {
	if 13*count > p.r.Available() {
		return malformed("double-byte segment of %d characters, %d bits left", count, p.r.Available())
	}
	b := make([]byte, 0, 2*count)
	for i := 0; i < count; i++ {
		v, _ := p.r.ReadBits(13)
		assembled := (v/divisor)<<8 | v%divisor
		if assembled < split {
			assembled += lowBase
		} else {
			assembled += highBase
		}
		b = append(b, byte(assembled>>8), byte(assembled))
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedBitstream, err)
	}
	p.sb.Write(out)
	return nil
}
