package decoder

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// eciCharsets maps ECI designators to character sets. A nil entry means
// the bytes are already UTF-8 (or plain ASCII).
var eciCharsets = map[int]encoding.Encoding{
	0:   charmap.CodePage437,
	1:   charmap.ISO8859_1,
	2:   charmap.CodePage437,
	3:   charmap.ISO8859_1,
	4:   charmap.ISO8859_2,
	5:   charmap.ISO8859_3,
	6:   charmap.ISO8859_4,
	7:   charmap.ISO8859_5,
	8:   charmap.ISO8859_6,
	9:   charmap.ISO8859_7,
	10:  charmap.ISO8859_8,
	11:  charmap.ISO8859_9,
	12:  charmap.ISO8859_10,
	13:  charmap.Windows874,
	15:  charmap.ISO8859_13,
	16:  charmap.ISO8859_14,
	17:  charmap.ISO8859_15,
	18:  charmap.ISO8859_16,
	20:  japanese.ShiftJIS,
	21:  charmap.Windows1250,
	22:  charmap.Windows1251,
	23:  charmap.Windows1252,
	24:  charmap.Windows1256,
	25:  unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	26:  nil,
	27:  nil,
	28:  traditionalchinese.Big5,
	29:  simplifiedchinese.GB18030,
	30:  korean.EUCKR,
	170: nil,
}

// charsetForECI returns the character set of an ECI designator.
func charsetForECI(value int) (encoding.Encoding, bool) {
	enc, ok := eciCharsets[value]
	return enc, ok
}

// decodeText converts segment bytes to UTF-8. Without an ECI the bytes are
// taken as UTF-8 when valid and as ISO-8859-1 otherwise.
func decodeText(b []byte, enc encoding.Encoding, haveECI bool) string {
	if !haveECI {
		if utf8.Valid(b) {
			return string(b)
		}
		enc = charmap.ISO8859_1
	}
	if enc == nil {
		return string(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
