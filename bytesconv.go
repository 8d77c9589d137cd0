package cadente

import (
	"fmt"
	"unsafe"
)

const (
	maxIntChars    = 18
	maxHexIntChars = 15
)

// appendUint appends n to dst and returns dst (which may be newly allocated).
func appendUint(dst []byte, n int64) []byte {
	if n < 0 {
		panic("BUG: int must be positive")
	}

	var b [20]byte
	buf := b[:]
	i := len(buf)
	var q int64
	for n >= 10 {
		i--
		q = n / 10
		buf[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	buf[i] = '0' + byte(n)

	return append(dst, buf[i:]...)
}

// parseUint parses the decimal integer occupying the whole of buf.
func parseUint(buf []byte) (int64, error) {
	n := len(buf)
	if n == 0 {
		return -1, fmt.Errorf("empty integer")
	}
	var v int64
	for i := 0; i < n; i++ {
		c := buf[i]
		k := c - '0'
		if k > 9 {
			return -1, fmt.Errorf("unexpected char %c in integer %q. Expected 0-9", c, buf)
		}
		if i >= maxIntChars {
			return -1, fmt.Errorf("too long int %q", buf)
		}
		v = 10*v + int64(k)
	}
	return v, nil
}

// appendHexUint appends the lowercase hex representation of n to dst.
func appendHexUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: int must be positive")
	}

	var b [16]byte
	buf := b[:]
	i := len(buf) - 1
	for {
		buf[i] = int2hexbyte(n & 0xf)
		n >>= 4
		if n == 0 {
			break
		}
		i--
	}
	return append(dst, buf[i:]...)
}

func int2hexbyte(n int) byte {
	if n < 10 {
		return '0' + byte(n)
	}
	return 'a' + byte(n) - 10
}

var hex2intTable = func() []byte {
	b := make([]byte, 256)
	for i := 0; i < 256; i++ {
		c := byte(16)
		if i >= '0' && i <= '9' {
			c = byte(i) - '0'
		} else if i >= 'a' && i <= 'f' {
			c = byte(i) - 'a' + 10
		} else if i >= 'A' && i <= 'F' {
			c = byte(i) - 'A' + 10
		}
		b[i] = c
	}
	return b
}()

// parseHexUint parses the hex integer occupying the whole of buf.
func parseHexUint(buf []byte) (int, error) {
	if len(buf) == 0 {
		return -1, fmt.Errorf("empty hex number")
	}
	n := 0
	for i, c := range buf {
		k := hex2intTable[c]
		if k == 16 {
			return -1, fmt.Errorf("unexpected char %c in hex number %q", c, buf)
		}
		if i >= maxHexIntChars {
			return -1, fmt.Errorf("too long hex number %q", buf)
		}
		n = (n << 4) | int(k)
	}
	return n, nil
}

const toLower = 'a' - 'A'

func lowercaseByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		c += toLower
	}
	return c
}

// caseInsensitiveCompare reports whether a and b are equal ignoring
// ASCII case. It allocates nothing.
func caseInsensitiveCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i, n := 0, len(a); i < n; i++ {
		if lowercaseByte(a[i]) != lowercaseByte(b[i]) {
			return false
		}
	}
	return true
}

// b2s converts byte slice to a string without memory allocation.
//
// The returned string shares memory with b; b must not be mutated while
// the string is in use.
func b2s(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// s2b converts string to a byte slice without memory allocation.
func s2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
