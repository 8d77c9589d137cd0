package cadente

import (
	"fmt"
	"testing"
)

func TestAppendUint(t *testing.T) {
	t.Parallel()

	for _, v := range []int64{0, 1, 9, 10, 123, 7354, 91823, 4294967295, 987654321098765} {
		expected := fmt.Sprintf("%d", v)
		s := string(appendUint(nil, v))
		if s != expected {
			t.Fatalf("unexpected uint %q. Expecting %q", s, expected)
		}
	}
}

func TestParseUintSuccess(t *testing.T) {
	t.Parallel()

	testParseUintSuccess(t, "0", 0)
	testParseUintSuccess(t, "123", 123)
	testParseUintSuccess(t, "123456789012345678", 123456789012345678)
}

func TestParseUintError(t *testing.T) {
	t.Parallel()

	testParseUintError(t, "")
	testParseUintError(t, "cafe")
	testParseUintError(t, "123d")
	testParseUintError(t, "-123")
	testParseUintError(t, "1234567890123456789012")
}

func testParseUintSuccess(t *testing.T, s string, expected int64) {
	t.Helper()
	v, err := parseUint([]byte(s))
	if err != nil {
		t.Fatalf("unexpected error when parsing %q: %s", s, err)
	}
	if v != expected {
		t.Fatalf("unexpected value %d when parsing %q. Expecting %d", v, s, expected)
	}
}

func testParseUintError(t *testing.T, s string) {
	t.Helper()
	v, err := parseUint([]byte(s))
	if err == nil {
		t.Fatalf("expecting error when parsing %q. got %d", s, v)
	}
	if v >= 0 {
		t.Fatalf("unexpected non-negative value %d when parsing %q", v, s)
	}
}

func TestAppendHexUint(t *testing.T) {
	t.Parallel()

	for _, v := range []int{0, 1, 0xf, 0x10, 0xab, 0x1000, 0xfffe, 0x12345678} {
		expected := fmt.Sprintf("%x", v)
		s := string(appendHexUint(nil, v))
		if s != expected {
			t.Fatalf("unexpected hex %q. Expecting %q", s, expected)
		}
	}
}

func TestParseHexUint(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0", "a", "A", "10", "fF", "abcdef", "7ffe"} {
		var expected int
		fmt.Sscanf(s, "%x", &expected)
		v, err := parseHexUint([]byte(s))
		if err != nil {
			t.Fatalf("unexpected error when parsing %q: %s", s, err)
		}
		if v != expected {
			t.Fatalf("unexpected value %d when parsing %q. Expecting %d", v, s, expected)
		}
	}

	for _, s := range []string{"", "xyz", "1q", "fffffffffffffffff"} {
		if _, err := parseHexUint([]byte(s)); err == nil {
			t.Fatalf("expecting error when parsing %q", s)
		}
	}
}

func TestCaseInsensitiveCompare(t *testing.T) {
	t.Parallel()

	testCaseInsensitiveCompare(t, "content-length", "Content-Length", true)
	testCaseInsensitiveCompare(t, "KEEP-ALIVE", "keep-alive", true)
	testCaseInsensitiveCompare(t, "", "", true)
	testCaseInsensitiveCompare(t, "close", "closed", false)
	testCaseInsensitiveCompare(t, "chunked", "Chunken", false)
}

func testCaseInsensitiveCompare(t *testing.T, a, b string, expected bool) {
	t.Helper()
	if got := caseInsensitiveCompare([]byte(a), []byte(b)); got != expected {
		t.Fatalf("unexpected result %v comparing %q and %q. Expecting %v", got, a, b, expected)
	}
}

func TestB2SRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "a", "GET /foo HTTP/1.1"} {
		if got := b2s(s2b(s)); got != s {
			t.Fatalf("unexpected string %q. Expecting %q", got, s)
		}
	}
}
