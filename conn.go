package cadente

import (
	"context"
	"errors"
	"io"
	"net"
)

// Handler processes one request/response exchange.
//
// The Ctx and everything reachable from it are only valid until the
// handler returns: request bytes alias a pooled receive buffer that is
// reclaimed when the exchange completes.
type Handler func(ctx *Ctx)

var (
	errStreamAcquired        = errors.New("response stream already acquired")
	errMissingContentLength  = errors.New("fixed-length response stream requires an explicit Content-Length")
	errContentLengthMismatch = errors.New("buffered body does not match the declared Content-Length")
	errMalformedRequest      = errors.New("malformed or incomplete request head")
	errHandlerPanic          = errors.New("request handler panicked")
	errServerStopping        = errors.New("server is stopping")
)

// Ctx pairs an incoming request with the response under construction for
// one exchange on a connection.
//
// It is forbidden to copy Ctx instances or retain them past the exchange.
type Ctx struct {
	// Incoming request.
	Request Request

	// Outgoing response.
	Response Response

	s *Server
	c net.Conn

	// stream is the streaming body writer, nil until acquired via
	// ResponseStream. While it is set the buffered body path is disabled.
	stream        io.WriteCloser
	streamChunked bool

	// started flips once any response bytes hit the wire; after that no
	// synthesized error page may be sent.
	started  bool
	panicked bool

	done chan struct{}
}

// RemoteAddr returns the peer address of the underlying connection.
func (ctx *Ctx) RemoteAddr() net.Addr {
	if ctx.c == nil {
		return nil
	}
	return ctx.c.RemoteAddr()
}

// Logger returns the logger configured on the owning server.
func (ctx *Ctx) Logger() Logger {
	return ctx.s.logger()
}

// Error resets the response to a synthesized HTML error page carrying the
// given status code and message. The connection closes after the page is
// written.
func (ctx *Ctx) Error(msg string, statusCode int) {
	resp := &ctx.Response
	resp.reset()
	resp.SetStatusCode(statusCode)
	resp.headers = setHeader(resp.headers, headerView(strContentType, strTextHTML))
	resp.body = appendErrorPage(resp.body[:0], statusCode, msg)
	resp.SetConnectionClose()
}

// Success sets the response Content-Type and buffered body in one call.
func (ctx *Ctx) Success(contentType string, body []byte) {
	resp := &ctx.Response
	resp.headers = setHeader(resp.headers, headerView(strContentType, s2b(contentType)))
	resp.SetBody(body)
}

// ResponseStream switches the response to the streaming path and returns
// the body writer. The status line and headers are serialized immediately,
// so the status code, reason and header collection must be final.
//
// With chunked true the body is chunk-framed and the writer's Close emits
// the terminating chunk. With chunked false Response.SetContentLength must
// have been called, and exactly that many bytes must be written before the
// exchange ends.
//
// Exactly one of the buffered body and the response stream may be used per
// response; ResponseStream may be acquired once.
func (ctx *Ctx) ResponseStream(chunked bool) (io.WriteCloser, error) {
	if ctx.stream != nil {
		return nil, errStreamAcquired
	}
	fr := framingChunked
	if !chunked {
		if ctx.Response.contentLength < 0 {
			return nil, errMissingContentLength
		}
		fr = framingFixed
	}
	if err := ctx.writeHeaders(fr); err != nil {
		return nil, err
	}
	if chunked {
		ctx.stream = newChunkedWriter(ctx.c)
	} else {
		ctx.stream = &fixedWriter{w: ctx.c, left: ctx.Response.contentLength}
	}
	ctx.streamChunked = chunked
	return ctx.stream, nil
}

// Finish completes an exchange obtained from Server.Next, releasing the
// connection to write the response and resume its keep-alive loop.
// Calling Finish more than once is harmless.
func (ctx *Ctx) Finish() {
	select {
	case ctx.done <- struct{}{}:
	default:
	}
}

// writeHeaders serializes the response head into a pooled buffer and puts
// it on the wire.
func (ctx *Ctx) writeHeaders(fr framing) error {
	buf := acquireBuffer(ctx.s.writeBufferSize())
	defer releaseBuffer(buf)

	n, err := serializeHeaders(buf.B, &ctx.Response, ctx.s.serverName(), fr)
	if err != nil {
		return err
	}
	ctx.started = true
	_, err = ctx.c.Write(buf.B[:n])
	return err
}

func (ctx *Ctx) resetExchange() {
	ctx.Request.reset()
	ctx.Response.reset()
	ctx.stream = nil
	ctx.streamChunked = false
	ctx.started = false
	ctx.panicked = false
	select {
	case <-ctx.done:
	default:
	}
}

// serveConn drives the read-parse-dispatch-write cycle for one accepted
// connection, looping while keep-alive allows reuse. The caller closes c.
func (s *Server) serveConn(c net.Conn) error {
	ctx := s.acquireCtx(c)
	defer s.releaseCtx(ctx)

	for {
		keepAlive, err := s.serveExchange(ctx, c)
		if err != nil || !keepAlive {
			return err
		}
		ctx.resetExchange()
	}
}

// serveExchange handles a single request/response exchange. It reports
// whether the connection may be reused for the next request.
func (s *Server) serveExchange(ctx *Ctx, c net.Conn) (bool, error) {
	buf := acquireBuffer(s.readBufferSize())
	defer releaseBuffer(buf)

	n, err := c.Read(buf.B)
	if err != nil {
		if err == io.EOF {
			// Peer closed between requests.
			return false, nil
		}
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	pr := parseRequest(buf.B[:n])
	if pr == nil {
		// Nothing has been written yet, so a framed error page may still
		// be attempted before giving up on the connection.
		s.writeErrorPage(c, StatusBadRequest, "malformed request")
		return false, errMalformedRequest
	}

	if pr.expectContinue {
		// The client is holding the body back until permission arrives.
		if _, err = c.Write(strContinueLine); err != nil {
			return false, err
		}
	}

	ctx.Request.init(pr, newBodyStream(pr, c))
	ctx.Response.reset()

	if err = s.dispatch(ctx); err != nil {
		return false, err
	}

	return s.finishExchange(ctx, pr)
}

// dispatch runs the registered handler, or hands the context to the
// pending queue for an embedding engine when no handler is set. Enqueueing
// blocks once the queue is full, applying backpressure to the connection.
//
// An enqueued context stays valid until Finish: the connection parks on
// the done channel even across Stop, since the embedding engine may still
// hold the context. Stop itself finishes anything left in the queue.
func (s *Server) dispatch(ctx *Ctx) error {
	if h := s.Handler; h != nil {
		s.invokeHandler(h, ctx)
		return nil
	}

	if err := s.enqueue(ctx); err != nil {
		return err
	}
	<-ctx.done

	// No keep-alive on a stopping server.
	_, stop := s.queue()
	select {
	case <-stop:
		ctx.Response.SetConnectionClose()
	default:
	}
	return nil
}

// invokeHandler isolates handler panics at the dispatch boundary: one
// request's failure must never take down the connection loop, let alone
// the listener.
func (s *Server) invokeHandler(h Handler, ctx *Ctx) {
	defer func() {
		if r := recover(); r != nil {
			ctx.panicked = true
			s.logger().Printf("panic serving %q from %s: %v", ctx.Request.Path(), ctx.RemoteAddr(), r)
		}
	}()
	h(ctx)
}

// finishExchange puts any unwritten response on the wire, drains unread
// body bytes and decides whether the connection survives for keep-alive.
func (s *Server) finishExchange(ctx *Ctx, pr *parsedRequest) (bool, error) {
	resp := &ctx.Response

	if ctx.panicked {
		if !ctx.started {
			s.writeErrorPage(ctx.c, StatusInternalServerError, "internal server error")
		}
		return false, errHandlerPanic
	}

	if ctx.stream != nil {
		// Streaming path: headers and body already written. Close settles
		// the terminating chunk or the Content-Length contract.
		if err := ctx.stream.Close(); err != nil {
			return false, err
		}
	} else {
		if resp.contentLength < 0 {
			resp.contentLength = int64(len(resp.body))
		} else if resp.contentLength != int64(len(resp.body)) {
			return false, errContentLengthMismatch
		}
		if len(resp.body) > 0 {
			if _, ok := headerValue(resp.headers, strContentType); !ok {
				resp.headers = setHeader(resp.headers, headerView(strContentType, defaultContentType))
			}
		}
		if err := ctx.writeHeaders(framingFixed); err != nil {
			return false, err
		}
		if len(resp.body) > 0 {
			if _, err := ctx.c.Write(resp.body); err != nil {
				return false, err
			}
		}
	}

	if !pr.keepAlive || resp.connClose {
		return false, nil
	}

	// Leave the socket clean for the next parse. A drain that cannot
	// complete makes the connection unsuitable for reuse.
	dctx := context.Background()
	if d := s.IdleTimeout; d > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(dctx, d)
		defer cancel()
	}
	if err := drain(dctx, ctx.Request.body); err != nil {
		return false, nil
	}
	return true, nil
}

// writeErrorPage sends a synthesized HTML error page on c. Best effort:
// write failures only matter to the connection, which is closing anyway.
func (s *Server) writeErrorPage(c net.Conn, statusCode int, msg string) {
	var resp Response
	resp.reset()
	resp.SetStatusCode(statusCode)
	resp.headers = setHeader(resp.headers, headerView(strContentType, strTextHTML))
	resp.body = appendErrorPage(resp.body, statusCode, msg)
	resp.contentLength = int64(len(resp.body))
	resp.SetConnectionClose()

	buf := acquireBuffer(s.writeBufferSize())
	defer releaseBuffer(buf)

	n, err := serializeHeaders(buf.B, &resp, s.serverName(), framingFixed)
	if err != nil {
		return
	}
	if _, err = c.Write(buf.B[:n]); err != nil {
		return
	}
	_, _ = c.Write(resp.body)
}
