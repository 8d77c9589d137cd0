package cadente

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestBodyReaderPrefetchedOnly(t *testing.T) {
	t.Parallel()

	br := &bodyReader{
		prefetched: []byte("hello"),
		r:          bytes.NewReader(nil),
		length:     5,
	}
	got, err := io.ReadAll(br)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected body %q", got)
	}
	if n, err := br.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		t.Fatalf("read after end returned (%d, %v). Expecting (0, io.EOF)", n, err)
	}
}

func TestBodyReaderPrefetchedThenLive(t *testing.T) {
	t.Parallel()

	br := &bodyReader{
		prefetched: []byte("hel"),
		r:          bytes.NewReader([]byte("lo, world")),
		length:     12,
	}
	got, err := io.ReadAll(br)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != "hello, world" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestBodyReaderBoundedByLength(t *testing.T) {
	t.Parallel()

	// Extra live bytes beyond Content-Length belong to the next request.
	src := bytes.NewReader([]byte("helloNEXT"))
	br := &bodyReader{r: src, length: 5}
	got, err := io.ReadAll(br)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected body %q", got)
	}
	if src.Len() != 4 {
		t.Fatalf("reader consumed %d extra bytes", 4-src.Len())
	}
}

func TestBodyReaderShortStream(t *testing.T) {
	t.Parallel()

	br := &bodyReader{r: bytes.NewReader([]byte("hel")), length: 5}
	_, err := io.ReadAll(br)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expecting io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestBodyReaderEmpty(t *testing.T) {
	t.Parallel()

	br := &bodyReader{r: bytes.NewReader([]byte("junk")), length: 0}
	if n, err := br.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Fatalf("empty body read returned (%d, %v). Expecting (0, io.EOF)", n, err)
	}
}

func TestNewBodyStreamChunkedWithBufferedBytes(t *testing.T) {
	t.Parallel()

	pr := parseRequest([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n"))
	if pr == nil {
		t.Fatalf("unexpected parse failure")
	}
	live := bytes.NewBufferString("2\r\nde\r\n0\r\n\r\n")
	got, err := io.ReadAll(newBodyStream(pr, live))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != "abcde" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestFixedWriterExactLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fw := &fixedWriter{w: &buf, left: 5}
	if _, err := fw.Write([]byte("hel")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := fw.Write([]byte("lo")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("unexpected bytes %q", buf.String())
	}
}

func TestFixedWriterOverrun(t *testing.T) {
	t.Parallel()

	fw := &fixedWriter{w: io.Discard, left: 3}
	if _, err := fw.Write([]byte("toolong")); err != errBodyTooLong {
		t.Fatalf("expecting errBodyTooLong, got %v", err)
	}
}

func TestFixedWriterUnderrun(t *testing.T) {
	t.Parallel()

	fw := &fixedWriter{w: io.Discard, left: 3}
	if _, err := fw.Write([]byte("ab")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := fw.Close(); err != errBodyIncomplete {
		t.Fatalf("expecting errBodyIncomplete, got %v", err)
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	br := &bodyReader{r: bytes.NewReader(bytes.Repeat([]byte("x"), 10000)), length: 10000}
	if err := drain(context.Background(), br); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestDrainCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := drain(ctx, neverEndingReader{})
	if err != context.Canceled {
		t.Fatalf("expecting context.Canceled, got %v", err)
	}
}

func TestDrainTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := drain(ctx, neverEndingReader{})
	if err != context.DeadlineExceeded {
		t.Fatalf("expecting context.DeadlineExceeded, got %v", err)
	}
}

type neverEndingReader struct{}

func (neverEndingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'z'
	}
	return len(p), nil
}
