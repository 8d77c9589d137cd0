package cadente

import (
	"io"
)

// Request is the application-facing view of a parsed HTTP request.
//
// Its strings and header bytes alias the connection's pooled receive
// buffer: the Request and everything obtained from it are valid only until
// the handler returns (or Finish is called in queue mode). Copy out
// anything that must outlive the request.
type Request struct {
	method   []byte
	path     []byte
	protocol []byte
	headers  []Header

	contentLength int64
	body          io.Reader
}

func (req *Request) init(pr *parsedRequest, body io.Reader) {
	req.method = pr.method
	req.path = pr.path
	req.protocol = pr.protocol
	req.headers = pr.headers
	req.contentLength = pr.contentLength
	req.body = body
}

func (req *Request) reset() {
	*req = Request{headers: req.headers[:0]}
}

// Method returns the request method.
func (req *Request) Method() string { return b2s(req.method) }

// Path returns the request path exactly as it appeared on the request line.
func (req *Request) Path() string { return b2s(req.path) }

// Protocol returns the protocol token, e.g. "HTTP/1.1".
func (req *Request) Protocol() string { return b2s(req.protocol) }

// ContentLength returns the declared body length. -1 means the body is
// chunked and the length is unknown in advance.
func (req *Request) ContentLength() int64 { return req.contentLength }

// Headers returns all request headers in wire order. Duplicate names are
// preserved as separate entries.
func (req *Request) Headers() []Header { return req.headers }

// Header returns the value of the first header with the given name,
// matched case-insensitively.
func (req *Request) Header(name string) (string, bool) {
	v, ok := headerValue(req.headers, s2b(name))
	return b2s(v), ok
}

// BodyStream returns the request body reader. The stream yields io.EOF
// once the declared length (or the terminal chunk) is reached; reading
// again after that returns io.EOF, not an error.
func (req *Request) BodyStream() io.Reader { return req.body }

// Body reads the whole request body into memory.
func (req *Request) Body() ([]byte, error) {
	return io.ReadAll(req.body)
}
