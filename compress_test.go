package cadente

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestAcceptsEncoding(t *testing.T) {
	t.Parallel()

	testAcceptsEncoding(t, "gzip", "gzip", true)
	testAcceptsEncoding(t, "gzip, deflate", "deflate", true)
	testAcceptsEncoding(t, "gzip;q=1.0, br;q=0.5", "br", true)
	testAcceptsEncoding(t, "GZIP", "gzip", true)
	testAcceptsEncoding(t, " zstd , gzip ", "zstd", true)
	testAcceptsEncoding(t, "gzip", "zstd", false)
	testAcceptsEncoding(t, "gzipped", "gzip", false)
	testAcceptsEncoding(t, "", "gzip", false)
}

func testAcceptsEncoding(t *testing.T, ae, coding string, expected bool) {
	t.Helper()
	if got := acceptsEncoding([]byte(ae), []byte(coding)); got != expected {
		t.Fatalf("unexpected result %v for Accept-Encoding %q and coding %q. Expecting %v",
			got, ae, coding, expected)
	}
}

var compressiblePayload = []byte(strings.Repeat("cadente says hello. ", 500))

func fetchCompressed(t *testing.T, acceptEncoding string) *http.Response {
	t.Helper()

	s := &Server{
		Handler: CompressHandler(func(ctx *Ctx) {
			ctx.Success("text/plain", compressiblePayload)
		}),
	}
	ln, ch := startServe(s)
	defer stopServe(t, ln, ch)

	c, err := ln.Dial()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer c.Close()

	req := "GET /data HTTP/1.1\r\n"
	if acceptEncoding != "" {
		req += "Accept-Encoding: " + acceptEncoding + "\r\n"
	}
	req += "Connection: close\r\n\r\n"
	if _, err = c.Write([]byte(req)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var body bytes.Buffer
	if _, err = body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	resp.Body = io.NopCloser(&body)
	return resp
}

func TestCompressHandlerGzip(t *testing.T) {
	t.Parallel()

	resp := fetchCompressed(t, "gzip")
	if ce := resp.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("unexpected Content-Encoding %q. Expecting gzip", ce)
	}
	if v := resp.Header.Get("Vary"); v != "Accept-Encoding" {
		t.Fatalf("unexpected Vary header %q", v)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	checkDecompressed(t, zr)
}

func TestCompressHandlerDeflate(t *testing.T) {
	t.Parallel()

	resp := fetchCompressed(t, "deflate")
	if ce := resp.Header.Get("Content-Encoding"); ce != "deflate" {
		t.Fatalf("unexpected Content-Encoding %q. Expecting deflate", ce)
	}
	checkDecompressed(t, flate.NewReader(resp.Body))
}

func TestCompressHandlerBrotli(t *testing.T) {
	t.Parallel()

	resp := fetchCompressed(t, "br")
	if ce := resp.Header.Get("Content-Encoding"); ce != "br" {
		t.Fatalf("unexpected Content-Encoding %q. Expecting br", ce)
	}
	checkDecompressed(t, brotli.NewReader(resp.Body))
}

func TestCompressHandlerZstdPreferred(t *testing.T) {
	t.Parallel()

	resp := fetchCompressed(t, "gzip, zstd, br")
	if ce := resp.Header.Get("Content-Encoding"); ce != "zstd" {
		t.Fatalf("unexpected Content-Encoding %q. Expecting zstd", ce)
	}
	zr, err := zstd.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer zr.Close()
	checkDecompressed(t, zr.IOReadCloser())
}

func TestCompressHandlerIdentity(t *testing.T) {
	t.Parallel()

	for _, ae := range []string{"", "sdch", "gzipped"} {
		resp := fetchCompressed(t, ae)
		if ce := resp.Header.Get("Content-Encoding"); ce != "" {
			t.Fatalf("unexpected Content-Encoding %q for Accept-Encoding %q", ce, ae)
		}
		checkDecompressed(t, resp.Body)
	}
}

func checkDecompressed(t *testing.T, r io.Reader) {
	t.Helper()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !bytes.Equal(body, compressiblePayload) {
		t.Fatalf("decompressed body differs from original: %d bytes vs %d",
			len(body), len(compressiblePayload))
	}
}

func TestCompressHandlerSkipsExplicitEncoding(t *testing.T) {
	t.Parallel()

	s := &Server{
		Handler: CompressHandler(func(ctx *Ctx) {
			if err := ctx.Response.SetHeader("Content-Encoding", "identity"); err != nil {
				t.Errorf("unexpected error: %s", err)
			}
			ctx.Success("text/plain", []byte("as-is"))
		}),
	}
	ln, ch := startServe(s)
	defer stopServe(t, ln, ch)

	c, err := ln.Dial()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer c.Close()
	if _, err = c.Write([]byte("GET / HTTP/1.1\r\nAccept-Encoding: gzip\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ce := resp.Header.Get("Content-Encoding"); ce != "identity" {
		t.Fatalf("unexpected Content-Encoding %q", ce)
	}
	if string(body) != "as-is" {
		t.Fatalf("unexpected body %q", body)
	}
}
