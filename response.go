package cadente

import (
	"errors"
)

var errBufferTooSmall = errors.New("serialization buffer too small for response headers")

// Response accumulates the status, headers and body the handler wants to
// send. A response body is produced in exactly one of three ways: the
// buffered body set here, a fixed-length stream, or a chunked stream (see
// Ctx.ResponseStream). Mixing modes is forbidden.
type Response struct {
	headers []Header

	statusCode    int
	statusMessage []byte

	// contentLength < 0 means not set. The buffered path fills it in from
	// len(body) at write time; the fixed-length streaming path requires it
	// to be set explicitly before the stream is acquired.
	contentLength int64

	connClose bool
	body      []byte
}

func (resp *Response) reset() {
	resp.headers = resp.headers[:0]
	resp.statusCode = 0
	resp.statusMessage = resp.statusMessage[:0]
	resp.contentLength = -1
	resp.connClose = false
	resp.body = resp.body[:0]
}

// StatusCode returns the response status code. Defaults to 200 when unset.
func (resp *Response) StatusCode() int {
	if resp.statusCode == 0 {
		return StatusOK
	}
	return resp.statusCode
}

// SetStatusCode sets the response status code.
func (resp *Response) SetStatusCode(statusCode int) {
	resp.statusCode = statusCode
}

// SetStatusMessage sets the reason phrase used when the status code has no
// standard phrase.
func (resp *Response) SetStatusMessage(statusMessage string) {
	resp.statusMessage = append(resp.statusMessage[:0], statusMessage...)
}

// Header returns the value of the first response header with the given
// name, matched case-insensitively.
func (resp *Response) Header(name string) (string, bool) {
	v, ok := headerValue(resp.headers, s2b(name))
	return b2s(v), ok
}

// Headers returns the response header collection.
func (resp *Response) Headers() []Header { return resp.headers }

// SetHeader validates the pair and replaces the first header with the same
// name, or appends it. Framing headers are diverted into their dedicated
// fields instead of the collection; see setSpecial.
func (resp *Response) SetHeader(name, value string) error {
	h, err := NewHeader(name, value)
	if err != nil {
		return err
	}
	if resp.setSpecial(h) {
		return nil
	}
	resp.headers = setHeader(resp.headers, h)
	return nil
}

// AddHeader validates the pair and appends it, preserving any existing
// headers with the same name. Framing headers are diverted like SetHeader.
func (resp *Response) AddHeader(name, value string) error {
	h, err := NewHeader(name, value)
	if err != nil {
		return err
	}
	if resp.setSpecial(h) {
		return nil
	}
	resp.headers = append(resp.headers, h)
	return nil
}

// setSpecial diverts headers the serializer owns, so they cannot appear
// twice on the wire. Content-Length feeds the declared body length,
// Transfer-Encoding is derived from the body mode at write time and only
// the close token of Connection is honored.
func (resp *Response) setSpecial(h Header) bool {
	switch {
	case caseInsensitiveCompare(h.name, strContentLength):
		if n, err := parseUint(h.value); err == nil {
			resp.contentLength = n
		}
		return true
	case caseInsensitiveCompare(h.name, strTransferEncoding):
		return true
	case caseInsensitiveCompare(h.name, strConnection):
		if caseInsensitiveCompare(h.value, strClose) {
			resp.connClose = true
		}
		return true
	}
	return false
}

// DelHeader removes every header with the given name.
func (resp *Response) DelHeader(name string) {
	resp.headers = delHeader(resp.headers, s2b(name))
}

// ContentLength returns the declared response body length, or -1 if unset.
func (resp *Response) ContentLength() int64 { return resp.contentLength }

// SetContentLength declares the response body length. Required before
// acquiring a fixed-length response stream.
func (resp *Response) SetContentLength(n int64) { resp.contentLength = n }

// ConnectionClose reports whether the response forces the connection shut
// after it is written.
func (resp *Response) ConnectionClose() bool { return resp.connClose }

// SetConnectionClose makes the serializer emit Connection: close and the
// dispatcher close the connection after this response.
func (resp *Response) SetConnectionClose() { resp.connClose = true }

// Body returns the buffered response body.
func (resp *Response) Body() []byte { return resp.body }

// SetBody sets the buffered response body. Content-Length is derived from
// the body at write time unless set explicitly.
func (resp *Response) SetBody(body []byte) {
	resp.body = append(resp.body[:0], body...)
}

// SetBodyString sets the buffered response body.
func (resp *Response) SetBodyString(body string) {
	resp.body = append(resp.body[:0], body...)
}

// AppendBody appends p to the buffered response body.
func (resp *Response) AppendBody(p []byte) {
	resp.body = append(resp.body, p...)
}

// framing selects the body framing emitted by serializeHeaders.
type framing int

const (
	framingNone    framing = iota // no framing header (interim/error paths)
	framingFixed                  // Content-Length
	framingChunked                // Transfer-Encoding: chunked
)

// serializeHeaders writes the status line and header block of resp into
// dst and returns the number of bytes written. It performs no allocation:
// dst is a caller-supplied (pooled) buffer, and errBufferTooSmall is
// returned if it cannot hold the full header block.
func serializeHeaders(dst []byte, resp *Response, serverName []byte, fr framing) (int, error) {
	n, ok := putBytes(dst, 0, strHTTP11Space)
	if !ok {
		return 0, errBufferTooSmall
	}

	statusCode := resp.StatusCode()
	if n, ok = putUint(dst, n, int64(statusCode)); !ok {
		return 0, errBufferTooSmall
	}
	if n, ok = putByte(dst, n, ' '); !ok {
		return 0, errBufferTooSmall
	}
	reason := statusMessage(statusCode)
	if reason == nil {
		reason = resp.statusMessage
	}
	if n, ok = putBytes(dst, n, reason); !ok {
		return 0, errBufferTooSmall
	}
	if n, ok = putBytes(dst, n, strCRLF); !ok {
		return 0, errBufferTooSmall
	}

	if len(serverName) > 0 {
		if _, found := headerValue(resp.headers, strServer); !found {
			if n, ok = putHeaderLine(dst, n, strServer, serverName); !ok {
				return 0, errBufferTooSmall
			}
		}
	}

	for _, h := range resp.headers {
		if len(h.name) == 0 {
			continue
		}
		if n, ok = putHeaderLine(dst, n, h.name, h.value); !ok {
			return 0, errBufferTooSmall
		}
	}

	switch fr {
	case framingFixed:
		if n, ok = putBytes(dst, n, strContentLength); !ok {
			return 0, errBufferTooSmall
		}
		if n, ok = putBytes(dst, n, strColonSpace); !ok {
			return 0, errBufferTooSmall
		}
		if n, ok = putUint(dst, n, resp.contentLength); !ok {
			return 0, errBufferTooSmall
		}
		if n, ok = putBytes(dst, n, strCRLF); !ok {
			return 0, errBufferTooSmall
		}
	case framingChunked:
		if n, ok = putHeaderLine(dst, n, strTransferEncoding, strChunked); !ok {
			return 0, errBufferTooSmall
		}
	}

	if resp.connClose {
		if n, ok = putHeaderLine(dst, n, strConnection, strClose); !ok {
			return 0, errBufferTooSmall
		}
	}

	if n, ok = putBytes(dst, n, strCRLF); !ok {
		return 0, errBufferTooSmall
	}
	return n, nil
}

func putBytes(dst []byte, n int, p []byte) (int, bool) {
	if n+len(p) > len(dst) {
		return n, false
	}
	return n + copy(dst[n:], p), true
}

func putByte(dst []byte, n int, c byte) (int, bool) {
	if n >= len(dst) {
		return n, false
	}
	dst[n] = c
	return n + 1, true
}

func putUint(dst []byte, n int, v int64) (int, bool) {
	if v < 0 {
		panic("BUG: int must be positive")
	}
	var b [20]byte
	i := len(b)
	for {
		i--
		q := v / 10
		b[i] = '0' + byte(v-q*10)
		v = q
		if v == 0 {
			break
		}
	}
	return putBytes(dst, n, b[i:])
}

func putHeaderLine(dst []byte, n int, name, value []byte) (int, bool) {
	var ok bool
	if n, ok = putBytes(dst, n, name); !ok {
		return n, false
	}
	if n, ok = putBytes(dst, n, strColonSpace); !ok {
		return n, false
	}
	if n, ok = putBytes(dst, n, value); !ok {
		return n, false
	}
	return putBytes(dst, n, strCRLF)
}

var errorPageFooter = []byte("<hr><address>cadente</address>")

// appendErrorPage appends a minimal HTML error page to dst.
func appendErrorPage(dst []byte, statusCode int, msg string) []byte {
	reason := statusMessage(statusCode)

	dst = append(dst, "<html><head><title>"...)
	dst = appendUint(dst, int64(statusCode))
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, "</title></head><body><h1>"...)
	dst = appendUint(dst, int64(statusCode))
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, "</h1><p>"...)
	dst = append(dst, msg...)
	dst = append(dst, "</p>"...)
	dst = append(dst, errorPageFooter...)
	return append(dst, "</body></html>"...)
}
