package reedsolomon

import (
	"errors"
	"fmt"
)

// ErrUncorrectable is returned when a block holds more errors than its error
// correction codewords can repair.
var ErrUncorrectable = errors.New("reedsolomon: uncorrectable block")

// Decode corrects block in place. The last ecCount bytes of block are the
// error correction codewords. It returns the number of corrected bytes.
func Decode(block []byte, ecCount int) (int, error) {
	if ecCount <= 0 || ecCount >= len(block) {
		return 0, fmt.Errorf("reedsolomon: %d ec codewords for block of %d: %w", ecCount, len(block), ErrUncorrectable)
	}

	syndromes := make([]byte, ecCount)
	clean := true
	for i := range syndromes {
		syndromes[i] = evalHigh(block, Exp(i))
		if syndromes[i] != 0 {
			clean = false
		}
	}
	if clean {
		return 0, nil
	}

	locator := berlekampMassey(syndromes)
	numErrors := len(locator) - 1
	if 2*numErrors > ecCount {
		return 0, ErrUncorrectable
	}

	// Chien search over every position the block can address.
	n := len(block)
	powers := make([]int, 0, numErrors)
	for p := 0; p < n; p++ {
		if evalLow(locator, Exp(-p)) == 0 {
			powers = append(powers, p)
		}
	}
	if len(powers) != numErrors {
		return 0, ErrUncorrectable
	}

	evaluator := mulTrunc(syndromes, locator, ecCount)
	for _, p := range powers {
		xInv := Exp(-p)
		den := evalDerivative(locator, xInv)
		if den == 0 {
			return 0, ErrUncorrectable
		}
		magnitude := mul(Exp(p), div(evalLow(evaluator, xInv), den))
		block[n-1-p] ^= magnitude
	}

	for i := 0; i < ecCount; i++ {
		if evalHigh(block, Exp(i)) != 0 {
			return 0, ErrUncorrectable
		}
	}
	return numErrors, nil
}

// berlekampMassey returns the error locator polynomial, lowest degree first,
// trimmed to its true degree.
func berlekampMassey(s []byte) []byte {
	c := make([]byte, len(s)+1)
	b := make([]byte, len(s)+1)
	c[0], b[0] = 1, 1
	l, m := 0, 1
	var lastDiscrepancy byte = 1

	for n := range s {
		d := s[n]
		for i := 1; i <= l; i++ {
			d ^= mul(c[i], s[n-i])
		}
		if d == 0 {
			m++
			continue
		}
		coef := div(d, lastDiscrepancy)
		if 2*l <= n {
			prev := append([]byte(nil), c...)
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= mul(coef, b[i])
			}
			l = n + 1 - l
			b = prev
			lastDiscrepancy = d
			m = 1
		} else {
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= mul(coef, b[i])
			}
			m++
		}
	}

	deg := len(c) - 1
	for deg > 0 && c[deg] == 0 {
		deg--
	}
	if deg != l {
		// Inconsistent locator: report it with an impossible degree so the
		// caller's root count check fails.
		return c[:l+1]
	}
	return c[:deg+1]
}

// mulTrunc multiplies two low-first polynomials modulo x^n.
func mulTrunc(a, b []byte, n int) []byte {
	out := make([]byte, n)
	for i, ac := range a {
		if ac == 0 || i >= n {
			continue
		}
		for j, bc := range b {
			if i+j >= n {
				break
			}
			out[i+j] ^= mul(ac, bc)
		}
	}
	return out
}

// evalDerivative evaluates the formal derivative of a low-first polynomial.
// In characteristic 2 only odd-degree terms survive.
func evalDerivative(p []byte, x byte) byte {
	var y byte
	x2 := mul(x, x)
	xp := byte(1)
	for i := 1; i < len(p); i += 2 {
		y ^= mul(p[i], xp)
		xp = mul(xp, x2)
	}
	return y
}
