// Package reedsolomon implements the Reed-Solomon code used by QR symbols:
// GF(256) with primitive polynomial x^8+x^4+x^3+x^2+1 (0x11D), generator
// element 2 and generator base 0.
package reedsolomon

const (
	primitive = 0x11D
	fieldSize = 256
)

// Log and exponent tables are built once and never mutated afterwards.
var (
	expTable [2 * fieldSize]byte
	logTable [fieldSize]int
)

func init() {
	x := 1
	for i := 0; i < fieldSize-1; i++ {
		expTable[i] = byte(x)
		logTable[x] = i
		x <<= 1
		if x >= fieldSize {
			x ^= primitive
		}
	}
	// Doubling the table lets mul skip the modulo.
	for i := fieldSize - 1; i < len(expTable); i++ {
		expTable[i] = expTable[i-(fieldSize-1)]
	}
}

// Exp returns 2^n in GF(256).
func Exp(n int) byte {
	n %= fieldSize - 1
	if n < 0 {
		n += fieldSize - 1
	}
	return expTable[n]
}

// Log returns the discrete logarithm of a. It panics for zero.
func Log(a byte) int {
	if a == 0 {
		panic("reedsolomon: log of zero")
	}
	return logTable[a]
}

func mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[logTable[a]+logTable[b]]
}

func div(a, b byte) byte {
	if b == 0 {
		panic("reedsolomon: division by zero")
	}
	if a == 0 {
		return 0
	}
	return expTable[logTable[a]+(fieldSize-1)-logTable[b]]
}

func inv(a byte) byte { return div(1, a) }

// evalLow evaluates a polynomial stored lowest degree first.
func evalLow(p []byte, x byte) byte {
	var y byte
	for i := len(p) - 1; i >= 0; i-- {
		y = mul(y, x) ^ p[i]
	}
	return y
}

// evalHigh evaluates a polynomial stored highest degree first, which is the
// order codewords appear in a block.
func evalHigh(p []byte, x byte) byte {
	var y byte
	for _, c := range p {
		y = mul(y, x) ^ c
	}
	return y
}
