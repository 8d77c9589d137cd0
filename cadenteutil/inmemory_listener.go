package cadenteutil

import (
	"fmt"
	"io"
	"net"
	"sync"
)

// InmemoryListener provides an in-memory net.Listener implementation.
//
// It may be used for fast in-process client<->server communication
// without network stack overhead, and for tests that exercise server
// connection handling without binding real ports.
type InmemoryListener struct {
	lock   sync.Mutex
	closed bool
	conns  chan net.Conn
}

// NewInmemoryListener returns a new in-memory listener.
func NewInmemoryListener() *InmemoryListener {
	return &InmemoryListener{
		conns: make(chan net.Conn, 1024),
	}
}

// Accept implements net.Listener.Accept.
//
// It returns io.EOF after the listener is closed, so servers treat
// shutdown as a clean end of the accept loop.
func (ln *InmemoryListener) Accept() (net.Conn, error) {
	c, ok := <-ln.conns
	if !ok {
		return nil, io.EOF
	}
	return c, nil
}

// Close implements net.Listener.Close.
func (ln *InmemoryListener) Close() error {
	var err error

	ln.lock.Lock()
	if !ln.closed {
		close(ln.conns)
		ln.closed = true
	} else {
		err = fmt.Errorf("listener is already closed")
	}
	ln.lock.Unlock()
	return err
}

// Addr implements net.Listener.Addr.
func (ln *InmemoryListener) Addr() net.Addr {
	return inmemoryAddr(0)
}

// Dial creates a new client<->server connection, enqueues the server end
// of the connection to the listener and returns the client end.
//
// It is safe to call Dial from concurrently running goroutines.
func (ln *InmemoryListener) Dial() (net.Conn, error) {
	pc := NewPipeConns()
	cConn := pc.Conn1()
	sConn := pc.Conn2()

	ln.lock.Lock()
	if !ln.closed {
		ln.conns <- sConn
	} else {
		sConn.Close()
		cConn.Close()
		cConn = nil
	}
	ln.lock.Unlock()

	if cConn == nil {
		return nil, fmt.Errorf("listener is already closed")
	}
	return cConn, nil
}

type inmemoryAddr int

func (inmemoryAddr) Network() string { return "inmemory" }
func (inmemoryAddr) String() string  { return "InmemoryListener" }
