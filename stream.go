package cadente

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// bodyReader reads a fixed-length request body. Reads are first satisfied
// from the bytes prefetched into the receive buffer during header parsing,
// then fall through to the live connection. Once the declared length has
// been consumed every Read returns (0, io.EOF).
type bodyReader struct {
	prefetched []byte
	off        int
	r          io.Reader
	length     int64
	read       int64
}

func (br *bodyReader) Read(p []byte) (int, error) {
	if br.length <= 0 || br.read >= br.length {
		return 0, io.EOF
	}
	left := br.length - br.read
	if int64(len(p)) > left {
		p = p[:left]
	}

	if br.off < len(br.prefetched) {
		n := copy(p, br.prefetched[br.off:])
		br.off += n
		br.read += int64(n)
		if br.read == br.length {
			return n, io.EOF
		}
		return n, nil
	}

	n, err := br.r.Read(p)
	br.read += int64(n)
	if err == io.EOF && br.read < br.length {
		err = io.ErrUnexpectedEOF
	}
	if err == nil && br.read == br.length {
		err = io.EOF
	}
	return n, err
}

// newBodyStream builds the reader for a parsed request's body: a chunked
// decoder when the request uses chunked framing, the empty stream for
// bodyless requests, and a bounded reader otherwise.
func newBodyStream(pr *parsedRequest, c io.Reader) io.Reader {
	if pr.chunked {
		src := c
		if len(pr.buffered) > 0 {
			src = io.MultiReader(bytes.NewReader(pr.buffered), c)
		}
		return newChunkedReader(src)
	}
	return &bodyReader{
		prefetched: pr.buffered,
		r:          c,
		length:     pr.contentLength,
	}
}

var (
	errBodyTooLong    = errors.New("response body exceeds the declared Content-Length")
	errBodyIncomplete = errors.New("response body shorter than the declared Content-Length")
)

// fixedWriter enforces the Content-Length contract on a streamed response
// body: writing more than the declared length fails, and closing before
// exactly that many bytes were written fails.
type fixedWriter struct {
	w    io.Writer
	left int64
}

func (fw *fixedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > fw.left {
		return 0, errBodyTooLong
	}
	n, err := fw.w.Write(p)
	fw.left -= int64(n)
	return n, err
}

func (fw *fixedWriter) Close() error {
	if fw.left != 0 {
		return errBodyIncomplete
	}
	return nil
}

var copyBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 4096)
	},
}

// drain reads and discards the remaining bytes of r up to end-of-stream.
// It is used before reusing a keep-alive connection so stale body bytes do
// not corrupt the next request parse. A cancelled drain returns the context
// error; the caller must then close the connection instead of reusing it.
func drain(ctx context.Context, r io.Reader) error {
	vbuf := copyBufPool.Get()
	buf := vbuf.([]byte)
	defer copyBufPool.Put(vbuf)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
