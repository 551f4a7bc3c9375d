package qr

import "fmt"

// BitBuffer is an append-only bit sequence, most significant bit first.
type BitBuffer struct {
	bytes []byte
	n     int
}

// Len returns the number of bits written.
func (b *BitBuffer) Len() int { return b.n }

// AppendBit appends a single bit.
func (b *BitBuffer) AppendBit(bit bool) {
	if b.n%8 == 0 {
		b.bytes = append(b.bytes, 0)
	}
	if bit {
		b.bytes[b.n/8] |= 0x80 >> uint(b.n%8)
	}
	b.n++
}

// AppendBits appends the low numBits bits of value, most significant first.
func (b *BitBuffer) AppendBits(value uint32, numBits int) {
	for i := numBits - 1; i >= 0; i-- {
		b.AppendBit(value>>uint(i)&1 == 1)
	}
}

// At returns bit i.
func (b *BitBuffer) At(i int) bool {
	return b.bytes[i/8]&(0x80>>uint(i%8)) != 0
}

// Bytes returns the packed bits; a trailing partial byte is zero padded.
func (b *BitBuffer) Bytes() []byte {
	out := make([]byte, len(b.bytes))
	copy(out, b.bytes)
	return out
}

// BitReader reads big-endian bit fields from a byte slice.
type BitReader struct {
	data []byte
	pos  int
}

// NewBitReader returns a reader positioned at the first bit of data.
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// Available returns the number of unread bits.
func (r *BitReader) Available() int {
	return 8*len(r.data) - r.pos
}

// ReadBits reads n (1..32) bits.
func (r *BitReader) ReadBits(n int) (int, error) {
	if n < 1 || n > 32 || n > r.Available() {
		return 0, fmt.Errorf("qr: cannot read %d bits, %d available", n, r.Available())
	}
	v := 0
	for i := 0; i < n; i++ {
		bit := r.data[r.pos/8] >> uint(7-r.pos%8) & 1
		v = v<<1 | int(bit)
		r.pos++
	}
	return v, nil
}
