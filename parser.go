package cadente

import (
	"bytes"
)

// parsedRequest holds the result of parsing one HTTP/1.1 message head out
// of a receive buffer. Every byte slice aliases that buffer: the struct is
// only valid while the buffer is held by the owning connection.
type parsedRequest struct {
	method   []byte
	path     []byte
	protocol []byte
	headers  []Header

	// contentLength is the declared body length. -1 means the body is
	// chunked; a request without Content-Length and without chunked
	// framing has length 0.
	contentLength int64

	keepAlive      bool
	chunked        bool
	expectContinue bool

	// buffered holds body bytes that arrived in the same read as the
	// message head. Always empty for expect-100 requests: the client is
	// still waiting for permission to send the body.
	buffered []byte
}

// parseRequest parses the HTTP/1.1 message head contained in buf.
//
// It returns nil both for a malformed head and for an incomplete one; the
// two are not distinguished at this layer. The caller performs a single
// bounded read and treats nil as fatal to the connection.
func parseRequest(buf []byte) *parsedRequest {
	var pr parsedRequest

	// Request line: method, path and protocol separated by single spaces.
	n := bytes.IndexByte(buf, ' ')
	if n <= 0 {
		return nil
	}
	pr.method = buf[:n]
	buf = buf[n+1:]

	n = bytes.IndexByte(buf, ' ')
	if n <= 0 {
		return nil
	}
	pr.path = buf[:n]
	buf = buf[n+1:]

	n = bytes.IndexByte(buf, '\n')
	if n < 0 {
		return nil
	}
	pr.protocol = trimCR(buf[:n])
	buf = buf[n+1:]

	// HTTP/1.1 defaults to keep-alive; only an exact HTTP/1.0 token
	// downgrades to one-shot connections.
	pr.keepAlive = !bytes.Equal(pr.protocol, strHTTP10)

	hasLength := false
	var length int64

	for {
		n = bytes.IndexByte(buf, '\n')
		if n < 0 {
			// The header block never terminates within buf.
			return nil
		}
		line := trimCR(buf[:n])
		buf = buf[n+1:]
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			// Malformed header lines are skipped, not fatal.
			continue
		}
		name := line[:colon]
		if !isValidHeaderName(name) {
			continue
		}
		value := trimBytes(line[colon+1:])

		switch {
		case caseInsensitiveCompare(name, strContentLength):
			if v, err := parseUint(value); err == nil {
				length = v
				hasLength = true
			}
		case caseInsensitiveCompare(name, strConnection):
			if caseInsensitiveCompare(value, strClose) {
				pr.keepAlive = false
			}
		case caseInsensitiveCompare(name, strExpect):
			if caseInsensitiveCompare(value, str100Continue) {
				pr.expectContinue = true
			}
		case caseInsensitiveCompare(name, strTransferEncoding):
			if caseInsensitiveCompare(value, strChunked) {
				pr.chunked = true
			}
		}

		// Duplicate header names are preserved as separate entries.
		pr.headers = append(pr.headers, headerView(name, value))
	}

	switch {
	case pr.chunked:
		pr.contentLength = -1
	case hasLength:
		pr.contentLength = length
	default:
		pr.contentLength = 0
	}

	if !pr.expectContinue {
		pr.buffered = buf
	}
	return &pr
}

// trimCR drops a single trailing CR from line.
func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
