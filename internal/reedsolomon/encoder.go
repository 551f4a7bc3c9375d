package reedsolomon

import "sync"

var (
	generatorsMu sync.Mutex
	generators   = map[int][]byte{}
)

// generator returns prod_{i<n} (x - 2^i), highest degree first, leading 1 omitted.
func generator(n int) []byte {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	if g, ok := generators[n]; ok {
		return g
	}
	g := []byte{1}
	for i := 0; i < n; i++ {
		next := make([]byte, len(g)+1)
		root := Exp(i)
		for j, c := range g {
			next[j] ^= c
			next[j+1] ^= mul(c, root)
		}
		g = next
	}
	generators[n] = g[1:]
	return generators[n]
}

// Encode returns the ecCount error correction codewords for data. The data
// slice is not modified.
func Encode(data []byte, ecCount int) []byte {
	if ecCount <= 0 {
		return nil
	}
	gen := generator(ecCount)
	rem := make([]byte, ecCount)
	for _, d := range data {
		factor := d ^ rem[0]
		copy(rem, rem[1:])
		rem[ecCount-1] = 0
		if factor == 0 {
			continue
		}
		for i, g := range gen {
			rem[i] ^= mul(g, factor)
		}
	}
	return rem
}
