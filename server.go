package cadente

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/tcplisten"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/netutil"
)

// Logger is used for logging formatted messages.
type Logger interface {
	// Printf must have the same semantics as log.Printf.
	Printf(format string, args ...interface{})
}

var defaultLogger = Logger(log.New(os.Stderr, "", log.LstdFlags))

// Default concurrency used by Server.Start and Server.Serve.
const DefaultConcurrency = 256 * 1024

const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
)

var (
	// ErrAlreadyRunning is returned by Start when the server is not in the
	// stopped state.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNotRunning is returned by Stop when the server is not running.
	ErrNotRunning = errors.New("server is not running")

	// ErrServerStopped is returned by Next once the server stops.
	ErrServerStopped = errors.New("server stopped")
)

// ServerState is the lifecycle state of a Server.
type ServerState int32

const (
	StateStopped ServerState = iota
	StateStarting
	StateRunning
	StateStopping
)

// Server owns the listening endpoints and drives accepted connections
// through the wire-protocol engine.
//
// It is forbidden to copy Server instances. A Server may be restarted
// after Stop; restarting rebinds from scratch.
type Server struct {
	// Handler is invoked on the connection's goroutine for every parsed
	// request. When nil, parsed contexts are delivered through the bounded
	// pending queue instead; see Next.
	Handler Handler

	// Server name for the Server response header. Defaults to "cadente";
	// set to "-" to suppress the header.
	Name string

	// Per-connection receive buffer size. One bounded read must hold the
	// whole message head, so this also caps the header block size.
	ReadBufferSize int

	// Size of the pooled response head serialization buffer, and thereby
	// the maximum serialized header block size.
	WriteBufferSize int

	// IdleTimeout bounds every read and write on accepted connections.
	// Exceeding it aborts the connection.
	IdleTimeout time.Duration

	// Concurrency caps the number of connections served simultaneously.
	Concurrency int

	// MaxConns caps accepted connections at the listener itself.
	// Unlimited when 0.
	MaxConns int

	// PendingCapacity bounds the queue handing parsed contexts to an
	// embedding engine. Defaults to a small multiple of GOMAXPROCS;
	// producers block once it fills.
	PendingCapacity int

	// Reuseport binds listening sockets with SO_REUSEPORT and related
	// accept-path socket options. tcp4/tcp6 only.
	Reuseport bool

	// Logger used for connection-level failures. Defaults to the standard
	// log package writing to stderr.
	Logger Logger

	state int32

	mu       sync.Mutex
	lns      []net.Listener
	pending  chan *Ctx
	stopCh   chan struct{}
	stopping bool

	wp          *workerPool
	acceptWG    sync.WaitGroup
	pendingWG   sync.WaitGroup
	ctxPool     sync.Pool
	serverNameV atomic.Value
}

// State returns the server lifecycle state.
func (s *Server) State() ServerState { return ServerState(atomic.LoadInt32(&s.state)) }

func (s *Server) setState(st ServerState) { atomic.StoreInt32(&s.state, int32(st)) }

func (s *Server) casState(from, to ServerState) bool {
	return atomic.CompareAndSwapInt32(&s.state, int32(from), int32(to))
}

// Start binds the given addresses for plain TCP and begins accepting.
// It returns once all endpoints are bound; bind failures (such as a port
// already in use) release everything bound so far and are returned.
func (s *Server) Start(addrs ...string) error {
	return s.start(nil, addrs)
}

// StartTLS binds the given addresses wrapped in TLS with the supplied
// configuration.
func (s *Server) StartTLS(tlsCfg *tls.Config, addrs ...string) error {
	if tlsCfg == nil {
		return errors.New("nil tls.Config")
	}
	return s.start(tlsCfg, addrs)
}

// StartAutoTLS binds addr with certificates obtained automatically from
// Let's Encrypt for the given hosts. Certificates are cached in cacheDir
// when it is non-empty.
func (s *Server) StartAutoTLS(addr, cacheDir string, hosts ...string) error {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
	}
	if cacheDir != "" {
		m.Cache = autocert.DirCache(cacheDir)
	}
	cfg := &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"http/1.1", acme.ALPNProto},
	}
	return s.start(cfg, []string{addr})
}

func (s *Server) start(tlsCfg *tls.Config, addrs []string) error {
	if len(addrs) == 0 {
		return errors.New("no listen addresses given")
	}
	if !s.casState(StateStopped, StateStarting) {
		return ErrAlreadyRunning
	}

	s.mu.Lock()
	s.lns = s.lns[:0] // rebinding from scratch; previous hosts were cleared by Stop
	s.pending = make(chan *Ctx, s.pendingCapacity())
	s.stopCh = make(chan struct{})
	s.stopping = false
	s.mu.Unlock()

	wp := &workerPool{
		ServeFunc:       s.serveConn,
		MaxWorkersCount: s.concurrency(),
		Logger:          s.logger(),
	}
	wp.Start()
	s.wp = wp

	for _, addr := range addrs {
		ln, err := s.listen(addr, tlsCfg)
		if err != nil {
			s.closeListeners()
			wp.Stop()
			s.setState(StateStopped)
			return err
		}
		s.mu.Lock()
		s.lns = append(s.lns, ln)
		s.mu.Unlock()
	}

	s.setState(StateRunning)
	s.mu.Lock()
	for _, ln := range s.lns {
		s.acceptWG.Add(1)
		go func(ln net.Listener) {
			defer s.acceptWG.Done()
			s.acceptLoop(ln, s.wp)
		}(ln)
	}
	s.mu.Unlock()
	return nil
}

// Stop signals the accept loops to exit, closes the bound endpoints and
// stops the worker pool. Contexts still sitting in the pending queue are
// completed with a 503 page; contexts already pulled via Next stay valid
// and their connections remain parked until Finish is called.
func (s *Server) Stop() error {
	if !s.casState(StateRunning, StateStopping) {
		return ErrNotRunning
	}
	s.mu.Lock()
	s.stopping = true
	close(s.stopCh)
	s.mu.Unlock()
	s.closeListeners()
	s.acceptWG.Wait()
	s.wp.Stop()
	s.drainPending()
	s.setState(StateStopped)
	return nil
}

// drainPending completes every context still waiting in the queue so its
// connection goroutine can write a response and exit. It must only run
// after the stopping flag is set: pendingWG then guarantees no further
// producers are mid-enqueue.
func (s *Server) drainPending() {
	s.pendingWG.Wait()

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return
	}
	for {
		select {
		case ctx := <-pending:
			ctx.Error("server stopped", StatusServiceUnavailable)
			ctx.Finish()
		default:
			return
		}
	}
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	for _, ln := range s.lns {
		_ = ln.Close()
	}
	s.lns = s.lns[:0]
	s.mu.Unlock()
}

func (s *Server) listen(addr string, tlsCfg *tls.Config) (net.Listener, error) {
	var ln net.Listener
	var err error
	if s.Reuseport {
		cfg := tcplisten.Config{
			ReusePort:   true,
			DeferAccept: true,
			FastOpen:    true,
		}
		ln, err = cfg.NewListener("tcp4", addr)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if s.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.MaxConns)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	return ln, nil
}

// Serve serves connections accepted from a caller-supplied listener,
// blocking until the listener fails permanently. A clean listener
// shutdown (io.EOF or a closed-listener error) returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(chan *Ctx, s.pendingCapacity())
	}
	if s.stopCh == nil {
		s.stopCh = make(chan struct{})
	}
	s.mu.Unlock()

	wp := &workerPool{
		ServeFunc:       s.serveConn,
		MaxWorkersCount: s.concurrency(),
		Logger:          s.logger(),
	}
	wp.Start()
	defer wp.Stop()

	s.acceptLoop(ln, wp)
	return nil
}

// ServeConn serves requests from a single established connection and
// closes it before returning.
func (s *Server) ServeConn(c net.Conn) error {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(chan *Ctx, s.pendingCapacity())
	}
	if s.stopCh == nil {
		s.stopCh = make(chan struct{})
	}
	s.mu.Unlock()

	if d := s.IdleTimeout; d > 0 {
		c = &deadlineConn{Conn: c, timeout: d}
	}
	err := s.serveConn(c)
	if err1 := c.Close(); err == nil {
		err = err1
	}
	return err
}

// Next blocks until a parsed context is available on the pending queue.
// The embedding engine must call Finish on the returned context once the
// response is populated; the owning connection is parked until then.
func (s *Server) Next(ctx context.Context) (*Ctx, error) {
	pending, stop := s.queue()
	select {
	case c := <-pending:
		return c, nil
	case <-stop:
		return nil, ErrServerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) queue() (chan *Ctx, chan struct{}) {
	s.mu.Lock()
	pending, stop := s.queueLocked()
	s.mu.Unlock()
	return pending, stop
}

func (s *Server) queueLocked() (chan *Ctx, chan struct{}) {
	if s.pending == nil {
		s.pending = make(chan *Ctx, s.pendingCapacity())
	}
	if s.stopCh == nil {
		s.stopCh = make(chan struct{})
	}
	return s.pending, s.stopCh
}

// enqueue hands ctx to the pending queue, blocking while the queue is
// full. Enqueueing fails once the server starts stopping; a successful
// enqueue is covered by pendingWG so Stop can wait out in-flight sends
// before draining the queue.
func (s *Server) enqueue(ctx *Ctx) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return errServerStopping
	}
	pending, stop := s.queueLocked()
	s.pendingWG.Add(1)
	s.mu.Unlock()
	defer s.pendingWG.Done()

	select {
	case pending <- ctx:
		return nil
	case <-stop:
		return errServerStopping
	}
}

// acceptLoop accepts connections from ln and hands them to the worker
// pool, retrying briefly when the pool is saturated before shedding the
// connection.
func (s *Server) acceptLoop(ln net.Listener, wp *workerPool) {
	var lastOverflowErrorTime time.Time
	for {
		c, err := acceptConn(s, ln)
		if err != nil {
			return
		}
		if d := s.IdleTimeout; d > 0 {
			c = &deadlineConn{Conn: c, timeout: d}
		}
		served := false
		for attempts := 4; attempts > 0; attempts-- {
			if wp.Serve(c) {
				served = true
				break
			}
			runtime.Gosched()
		}
		if !served {
			_ = c.Close()
			if time.Since(lastOverflowErrorTime) > time.Minute {
				s.logger().Printf("connection dropped: all %d workers are busy", s.concurrency())
				lastOverflowErrorTime = time.Now()
			}
		}
	}
}

func acceptConn(s *Server, ln net.Listener) (net.Conn, error) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.logger().Printf("timeout error when accepting new connections: %s", netErr)
				time.Sleep(time.Second)
				continue
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger().Printf("permanent error when accepting new connections: %s", err)
			}
			return nil, err
		}
		return c, nil
	}
}

func (s *Server) acquireCtx(c net.Conn) *Ctx {
	v := s.ctxPool.Get()
	var ctx *Ctx
	if v == nil {
		ctx = &Ctx{
			s:    s,
			done: make(chan struct{}, 1),
		}
	} else {
		ctx = v.(*Ctx)
	}
	ctx.c = c
	return ctx
}

func (s *Server) releaseCtx(ctx *Ctx) {
	ctx.resetExchange()
	ctx.c = nil
	s.ctxPool.Put(ctx)
}

func (s *Server) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return defaultLogger
}

func (s *Server) readBufferSize() int {
	if s.ReadBufferSize > 0 {
		return s.ReadBufferSize
	}
	return defaultReadBufferSize
}

func (s *Server) writeBufferSize() int {
	if s.WriteBufferSize > 0 {
		return s.WriteBufferSize
	}
	return defaultWriteBufferSize
}

func (s *Server) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return DefaultConcurrency
}

func (s *Server) pendingCapacity() int {
	if s.PendingCapacity > 0 {
		return s.PendingCapacity
	}
	return runtime.GOMAXPROCS(0) * 4
}

func (s *Server) serverName() []byte {
	if s.Name == "-" {
		return nil
	}
	v := s.serverNameV.Load()
	if v == nil {
		name := []byte(s.Name)
		if len(name) == 0 {
			name = defaultServerName
		}
		s.serverNameV.Store(name)
		return name
	}
	return v.([]byte)
}
