package cadente

import (
	"bytes"
	"fmt"
)

// Header is an immutable HTTP header field: a name/value pair over byte
// slices.
//
// Headers produced by the request parser alias the connection's pooled
// receive buffer and become invalid once the owning request completes.
// Headers built via NewHeader own their bytes.
type Header struct {
	name  []byte
	value []byte
}

// NewHeader validates name and value and returns a Header owning
// copies of both.
//
// The name must be non-empty and contain no control or delimiter
// characters. The value must contain no CR, LF or NUL; surrounding
// whitespace is trimmed.
func NewHeader(name, value string) (Header, error) {
	if !isValidHeaderName(s2b(name)) {
		return Header{}, fmt.Errorf("invalid header name %q", name)
	}
	v := trimBytes(s2b(value))
	if !isValidHeaderValue(v) {
		return Header{}, fmt.Errorf("invalid header value %q", value)
	}
	return Header{
		name:  append([]byte(nil), name...),
		value: append([]byte(nil), v...),
	}, nil
}

// headerView wraps already-parsed name/value slices without copying.
// The caller guarantees validity of the bytes.
func headerView(name, value []byte) Header {
	return Header{name: name, value: value}
}

// Name returns the header name.
//
// The returned string shares memory with the header bytes.
func (h Header) Name() string { return b2s(h.name) }

// Value returns the header value.
//
// The returned string shares memory with the header bytes.
func (h Header) Value() string { return b2s(h.value) }

// NameBytes returns the header name bytes. Read-only.
func (h Header) NameBytes() []byte { return h.name }

// ValueBytes returns the header value bytes. Read-only.
func (h Header) ValueBytes() []byte { return h.value }

// Equal reports whether h and other hold identical name and value
// byte sequences. Names are compared case-sensitively; use NameIs for
// case-insensitive name matching.
func (h Header) Equal(other Header) bool {
	return bytes.Equal(h.name, other.name) && bytes.Equal(h.value, other.value)
}

// NameIs reports whether the header name equals name ignoring ASCII case.
func (h Header) NameIs(name string) bool {
	return caseInsensitiveCompare(h.name, s2b(name))
}

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// Hash returns an FNV-1a sum over the header's name and value bytes.
func (h Header) Hash() uint64 {
	v := uint64(offset64)
	for _, c := range h.name {
		v = (v ^ uint64(c)) * prime64
	}
	v *= prime64 // NUL separator between name and value
	for _, c := range h.value {
		v = (v ^ uint64(c)) * prime64
	}
	return v
}

// copied reports a deep copy of h, detaching it from any shared buffer.
func (h Header) copied() Header {
	return Header{
		name:  append([]byte(nil), h.name...),
		value: append([]byte(nil), h.value...),
	}
}

// headerDelimiters are the characters forbidden in a header field name
// in addition to control characters.
var headerDelimiters = [256]bool{
	'(': true, ')': true, '<': true, '>': true, '@': true,
	',': true, ';': true, ':': true, '\\': true, '"': true,
	'/': true, '[': true, ']': true, '?': true, '=': true,
	'{': true, '}': true, ' ': true, '\t': true,
}

func validHeaderNameByte(c byte) bool {
	if c < 0x21 || c == 0x7f {
		return false
	}
	return !headerDelimiters[c]
}

func isValidHeaderName(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	for _, c := range name {
		if !validHeaderNameByte(c) {
			return false
		}
	}
	return true
}

func isValidHeaderValue(value []byte) bool {
	for _, c := range value {
		if c == '\r' || c == '\n' || c == 0 {
			return false
		}
	}
	return true
}

// trimBytes returns b with leading and trailing spaces and tabs removed.
func trimBytes(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	n := len(b)
	for n > i && (b[n-1] == ' ' || b[n-1] == '\t') {
		n--
	}
	return b[i:n]
}

// headerValue returns the value of the first header named name in hs,
// matched case-insensitively.
func headerValue(hs []Header, name []byte) ([]byte, bool) {
	for _, h := range hs {
		if caseInsensitiveCompare(h.name, name) {
			return h.value, true
		}
	}
	return nil, false
}

// setHeader replaces the first header named name or appends a new one.
// Duplicate occurrences beyond the first are left untouched.
func setHeader(hs []Header, h Header) []Header {
	for i := range hs {
		if caseInsensitiveCompare(hs[i].name, h.name) {
			hs[i] = h
			return hs
		}
	}
	return append(hs, h)
}

// delHeader removes every header named name, matched case-insensitively.
func delHeader(hs []Header, name []byte) []Header {
	dst := hs[:0]
	for _, h := range hs {
		if !caseInsensitiveCompare(h.name, name) {
			dst = append(dst, h)
		}
	}
	return dst
}
