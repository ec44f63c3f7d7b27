package index

import (
	"bytes"
	"fmt"
)

// Order keys give list records a persistent position without storing
// ordinals. A key is an integer part followed by an optional fraction, and
// byte-wise comparison equals list order.
//
// The integer part is a header byte h and a run of base-256 digits, most
// significant first. h >= 0x80 is a non-negative integer of h-0x7f digits;
// h < 0x80 is a negative one of 0x80-h digits. A longer non-negative integer
// has a larger header and a longer negative one a smaller header, so the
// header alone orders integers of different widths.
//
// Appends and prepends step the integer, which keeps their keys logarithmic
// in the length of the list. Inserts between two neighbours with adjacent
// integers extend the fraction instead. A fraction never ends in a zero byte,
// which keeps room below it for later inserts.

const zeroHeader = 0x80

// integerLen returns the length of the integer part of key, or -1 if key is
// too short to hold one.
func integerLen(key []byte) int {
	if len(key) == 0 {
		return -1
	}
	digits := headerDigits(int(key[0]))
	if len(key) < 1+digits {
		return -1
	}
	return 1 + digits
}

func headerDigits(h int) int {
	if h >= zeroHeader {
		return h - zeroHeader + 1
	}
	return zeroHeader - h
}

// nextInteger returns the integer part following the one in n.
func nextInteger(n []byte) []byte {
	out := bytes.Clone(n)
	for i := len(out) - 1; i > 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out
		}
		out[i] = 0
	}
	if out[0] == 0xff {
		panic("index: order key integer overflow")
	}
	h := int(out[0]) + 1
	out = make([]byte, 1+headerDigits(h))
	out[0] = byte(h)
	return out
}

// prevInteger returns the integer part preceding the one in n.
func prevInteger(n []byte) []byte {
	out := bytes.Clone(n)
	for i := len(out) - 1; i > 0; i-- {
		if out[i] > 0 {
			out[i]--
			return out
		}
		out[i] = 0xff
	}
	if out[0] == 0 {
		panic("index: order key integer underflow")
	}
	h := int(out[0]) - 1
	out = bytes.Repeat([]byte{0xff}, 1+headerDigits(h))
	out[0] = byte(h)
	return out
}

// fractionBetween returns a fraction strictly between lo and hi, read as
// base-256 fractions. A nil hi means 1.
func fractionBetween(lo, hi []byte) []byte {
	var out []byte
	unbounded := hi == nil

	for i := 0; ; i++ {
		l := 0
		if i < len(lo) {
			l = int(lo[i])
		}

		h := 256
		if !unbounded {
			if i >= len(hi) {
				panic(fmt.Sprintf("index: no fraction fits between %x and %x", lo, hi))
			}
			h = int(hi[i])
		}

		switch {
		case l == h:
			out = append(out, byte(l))
		case h-l > 1:
			return append(out, byte((l+h)/2))
		default:
			// h == l+1: keep l and look for room above the rest of lo
			out = append(out, byte(l))
			unbounded = true
		}
	}
}

func split(key []byte) (integer, fraction []byte) {
	n := integerLen(key)
	if n < 0 {
		panic(fmt.Sprintf("index: malformed order key %x", key))
	}
	return key[:n], key[n:]
}

// OrderKeyBetween returns a key strictly between lo and hi. A nil lo means
// the start of the list and a nil hi means the end.
func OrderKeyBetween(lo, hi []byte) []byte {
	if lo != nil && hi != nil && bytes.Compare(lo, hi) >= 0 {
		panic(fmt.Sprintf("index: order keys out of order: %x >= %x", lo, hi))
	}

	switch {
	case lo == nil && hi == nil:
		return []byte{zeroHeader, 0}
	case hi == nil:
		n, _ := split(lo)
		return nextInteger(n)
	case lo == nil:
		n, f := split(hi)
		if len(f) > 0 {
			return bytes.Clone(n)
		}
		return prevInteger(n)
	}

	loInt, loFrac := split(lo)
	hiInt, hiFrac := split(hi)
	if bytes.Equal(loInt, hiInt) {
		return append(bytes.Clone(loInt), fractionBetween(loFrac, hiFrac)...)
	}
	if next := nextInteger(loInt); bytes.Compare(next, hi) < 0 {
		return next
	}
	return append(bytes.Clone(loInt), fractionBetween(loFrac, nil)...)
}

// OrderKeys returns n ascending keys for consecutive integers from zero.
func OrderKeys(n int) [][]byte {
	keys := make([][]byte, n)
	key := []byte{zeroHeader, 0}
	for i := range keys {
		keys[i] = key
		key = nextInteger(key)
	}
	return keys
}

// ValidOrderKey reports whether key could have been produced by this package.
func ValidOrderKey(key []byte) bool {
	n := integerLen(key)
	if n < 0 {
		return false
	}
	return n == len(key) || key[len(key)-1] != 0
}
