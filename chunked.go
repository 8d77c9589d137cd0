package cadente

import (
	"errors"
	"fmt"
	"io"
)

// maxChunkLineLen bounds the length of a chunk-size line, extensions
// included. Longer lines are a fatal protocol violation.
const maxChunkLineLen = 8 * 1024

var (
	errChunkLineTooLong = errors.New("chunk size line exceeds 8KiB limit")
	errWriteAfterFinish = errors.New("write on finished chunked stream")
)

// chunkedWriter frames every Write in HTTP/1.1 chunked transfer-encoding:
// <hex-size>\r\n<payload>\r\n. A zero-length Write or Close emits the
// terminating 0\r\n\r\n chunk exactly once.
type chunkedWriter struct {
	w        io.Writer
	scratch  []byte
	finished bool
}

func newChunkedWriter(w io.Writer) *chunkedWriter {
	return &chunkedWriter{w: w}
}

func (cw *chunkedWriter) Write(p []byte) (int, error) {
	if cw.finished {
		return 0, errWriteAfterFinish
	}
	if len(p) == 0 {
		return 0, cw.finish()
	}

	cw.scratch = appendHexUint(cw.scratch[:0], len(p))
	cw.scratch = append(cw.scratch, strCRLF...)
	if _, err := cw.w.Write(cw.scratch); err != nil {
		return 0, err
	}
	if _, err := cw.w.Write(p); err != nil {
		return 0, err
	}
	if _, err := cw.w.Write(strCRLF); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close emits the terminating chunk if it has not been written yet.
// Closing an already finished writer is a no-op.
func (cw *chunkedWriter) Close() error {
	return cw.finish()
}

func (cw *chunkedWriter) finish() error {
	if cw.finished {
		return nil
	}
	cw.finished = true
	_, err := cw.w.Write(strChunkTerminator)
	return err
}

// chunkedReader decodes a chunk-framed byte stream. It never reads past
// the terminal chunk's trailing CRLF, leaving the underlying source
// positioned at the next message.
type chunkedReader struct {
	r         io.Reader
	chunkLeft int
	finished  bool
	line      []byte
}

func newChunkedReader(r io.Reader) *chunkedReader {
	return &chunkedReader{r: r}
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if cr.finished {
		return 0, io.EOF
	}
	if cr.chunkLeft == 0 {
		size, err := cr.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			if err = cr.readCRLF(); err != nil {
				return 0, err
			}
			cr.finished = true
			return 0, io.EOF
		}
		cr.chunkLeft = size
	}

	if len(p) > cr.chunkLeft {
		p = p[:cr.chunkLeft]
	}
	n, err := cr.r.Read(p)
	cr.chunkLeft -= n
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err == nil && cr.chunkLeft == 0 {
		err = cr.readCRLF()
	}
	return n, err
}

// readChunkSize consumes one <hex-size>[;extension]\r\n line.
func (cr *chunkedReader) readChunkSize() (int, error) {
	cr.line = cr.line[:0]
	for {
		c, err := cr.readByte()
		if err != nil {
			return -1, err
		}
		if c == '\n' {
			break
		}
		if len(cr.line) >= maxChunkLineLen {
			return -1, errChunkLineTooLong
		}
		cr.line = append(cr.line, c)
	}

	line := trimCR(cr.line)
	for i, c := range line {
		if c == ';' {
			line = line[:i]
			break
		}
	}
	n, err := parseHexUint(line)
	if err != nil {
		return -1, fmt.Errorf("invalid chunk size line %q: %w", cr.line, err)
	}
	return n, nil
}

func (cr *chunkedReader) readCRLF() error {
	c, err := cr.readByte()
	if err != nil {
		return err
	}
	if c == '\r' {
		if c, err = cr.readByte(); err != nil {
			return err
		}
	}
	if c != '\n' {
		return fmt.Errorf("unexpected char %q at the end of chunk. Expected %q", c, '\n')
	}
	return nil
}

// readByte reads exactly one byte from the source. Single-byte reads keep
// the reader from consuming bytes that belong to the next request on a
// keep-alive connection.
func (cr *chunkedReader) readByte() (byte, error) {
	var b [1]byte
	for {
		n, err := cr.r.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
	}
}
