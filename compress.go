package cadente

import (
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressHandler wraps h so that buffered response bodies are compressed
// according to the request's Accept-Encoding header. Preference order is
// zstd, br, gzip, deflate.
//
// Responses produced through ResponseStream are passed through untouched:
// their framing and headers are already on the wire when the handler
// returns.
func CompressHandler(h Handler) Handler {
	return func(ctx *Ctx) {
		h(ctx)

		resp := &ctx.Response
		if ctx.stream != nil || len(resp.body) == 0 {
			return
		}
		if _, ok := resp.Header("Content-Encoding"); ok {
			return
		}
		ae, ok := headerValue(ctx.Request.headers, strAcceptEncoding)
		if !ok {
			return
		}

		var encoding []byte
		switch {
		case acceptsEncoding(ae, strZstd):
			encoding = strZstd
		case acceptsEncoding(ae, strBr):
			encoding = strBr
		case acceptsEncoding(ae, strGzip):
			encoding = strGzip
		case acceptsEncoding(ae, strDeflate):
			encoding = strDeflate
		default:
			return
		}

		body, err := compressBody(encoding, resp.body)
		if err != nil {
			// Compression is an optimization; on failure the identity
			// body is served as-is.
			ctx.Logger().Printf("cannot compress response body with %q: %s", encoding, err)
			return
		}
		resp.body = body
		resp.contentLength = int64(len(body))
		resp.headers = setHeader(resp.headers, headerView(strContentEncoding, encoding))
		resp.headers = setHeader(resp.headers, headerView(strVary, strAcceptEncoding))
	}
}

// acceptsEncoding scans the comma-separated Accept-Encoding value for the
// given coding token, ignoring quality parameters.
func acceptsEncoding(ae, coding []byte) bool {
	for len(ae) > 0 {
		token := ae
		for i, c := range ae {
			if c == ',' {
				token = ae[:i]
				break
			}
		}
		ae = ae[len(token):]
		if len(ae) > 0 {
			ae = ae[1:] // skip the comma
		}
		for i, c := range token {
			if c == ';' {
				token = token[:i]
				break
			}
		}
		if caseInsensitiveCompare(trimBytes(token), coding) {
			return true
		}
	}
	return false
}

type compressWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

var (
	gzipWriterPool   sync.Pool
	flateWriterPool  sync.Pool
	brotliWriterPool sync.Pool
	zstdWriterPool   sync.Pool
)

func compressBody(encoding, body []byte) ([]byte, error) {
	dst := acquireBuffer(0)
	defer releaseBuffer(dst)

	var (
		zw  compressWriter
		err error
	)
	switch {
	case caseInsensitiveCompare(encoding, strGzip):
		zw = acquireCompressWriter(&gzipWriterPool, dst, func(w io.Writer) compressWriter {
			return gzip.NewWriter(w)
		})
	case caseInsensitiveCompare(encoding, strDeflate):
		zw = acquireCompressWriter(&flateWriterPool, dst, func(w io.Writer) compressWriter {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		})
	case caseInsensitiveCompare(encoding, strBr):
		zw = acquireCompressWriter(&brotliWriterPool, dst, func(w io.Writer) compressWriter {
			return brotli.NewWriter(w)
		})
	default:
		zw, err = acquireZstdWriter(dst)
		if err != nil {
			return nil, err
		}
	}

	if _, err = zw.Write(body); err == nil {
		err = zw.Close()
	}
	releaseCompressWriter(encoding, zw)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), dst.B...), nil
}

func acquireCompressWriter(pool *sync.Pool, w io.Writer, mk func(io.Writer) compressWriter) compressWriter {
	v := pool.Get()
	if v == nil {
		return mk(w)
	}
	zw := v.(compressWriter)
	zw.Reset(w)
	return zw
}

// zstd.Encoder resets with Reset(io.Writer) but is created with options,
// so it gets its own acquire path.
func acquireZstdWriter(w io.Writer) (compressWriter, error) {
	v := zstdWriterPool.Get()
	if v == nil {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	}
	zw := v.(*zstd.Encoder)
	zw.Reset(w)
	return zw, nil
}

func releaseCompressWriter(encoding []byte, zw compressWriter) {
	switch {
	case caseInsensitiveCompare(encoding, strGzip):
		gzipWriterPool.Put(zw)
	case caseInsensitiveCompare(encoding, strDeflate):
		flateWriterPool.Put(zw)
	case caseInsensitiveCompare(encoding, strBr):
		brotliWriterPool.Put(zw)
	default:
		zstdWriterPool.Put(zw)
	}
}
