// Package cadenteutil provides utility functionality for testing servers
// built on the cadente engine.
package cadenteutil

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// NewPipeConns returns a new bi-directional in-process connection pipe.
//
// Unlike net.Pipe, writes are buffered: a Write completes without a
// concurrent Read on the other end, which matches the behavior of real
// kernel socket buffers closely enough for protocol tests.
func NewPipeConns() *PipeConns {
	ch1 := make(chan []byte, 64)
	ch2 := make(chan []byte, 64)

	pc := &PipeConns{
		stopCh: make(chan struct{}),
	}
	pc.c1.rCh = ch1
	pc.c1.wCh = ch2
	pc.c2.rCh = ch2
	pc.c2.wCh = ch1
	pc.c1.pc = pc
	pc.c2.pc = pc
	return pc
}

// PipeConns is a bi-directional connection pipe using in-process memory
// as its transport.
type PipeConns struct {
	c1         pipeConn
	c2         pipeConn
	stopCh     chan struct{}
	stopChLock sync.Mutex
}

// Conn1 returns the first end of the pipe.
func (pc *PipeConns) Conn1() net.Conn { return &pc.c1 }

// Conn2 returns the second end of the pipe.
func (pc *PipeConns) Conn2() net.Conn { return &pc.c2 }

// Close closes both pipe ends.
func (pc *PipeConns) Close() error {
	pc.stopChLock.Lock()
	select {
	case <-pc.stopCh:
	default:
		close(pc.stopCh)
	}
	pc.stopChLock.Unlock()
	return nil
}

type pipeConn struct {
	pc  *PipeConns
	rCh chan []byte
	wCh chan []byte
	cur []byte

	readDeadline  time.Time
	writeDeadline time.Time
	deadlineLock  sync.Mutex
}

func (c *pipeConn) Write(p []byte) (int, error) {
	b := append([]byte(nil), p...)

	timeoutCh, err := c.deadlineChan(c.getWriteDeadline())
	if err != nil {
		return 0, err
	}

	select {
	case <-c.pc.stopCh:
		return 0, errConnectionClosed
	default:
	}

	select {
	case c.wCh <- b:
		return len(p), nil
	case <-c.pc.stopCh:
		return 0, errConnectionClosed
	case <-timeoutCh:
		return 0, &timeoutError{}
	}
}

func (c *pipeConn) Read(p []byte) (int, error) {
	for len(c.cur) == 0 {
		timeoutCh, err := c.deadlineChan(c.getReadDeadline())
		if err != nil {
			return 0, err
		}

		select {
		case b := <-c.rCh:
			c.cur = b
		default:
			select {
			case b := <-c.rCh:
				c.cur = b
			case <-c.pc.stopCh:
				return 0, io.EOF
			case <-timeoutCh:
				return 0, &timeoutError{}
			}
		}
	}

	n := copy(p, c.cur)
	c.cur = c.cur[n:]
	return n, nil
}

// deadlineChan returns a channel firing at the given deadline, nil for no
// deadline, or an immediate timeout error for an already-expired one.
func (c *pipeConn) deadlineChan(t time.Time) (<-chan time.Time, error) {
	if t.IsZero() {
		return nil, nil
	}
	d := time.Until(t)
	if d <= 0 {
		return nil, &timeoutError{}
	}
	return time.After(d), nil
}

func (c *pipeConn) Close() error {
	return c.pc.Close()
}

func (c *pipeConn) LocalAddr() net.Addr  { return pipeAddr(0) }
func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr(0) }

func (c *pipeConn) SetDeadline(t time.Time) error {
	c.deadlineLock.Lock()
	c.readDeadline = t
	c.writeDeadline = t
	c.deadlineLock.Unlock()
	return nil
}

func (c *pipeConn) SetReadDeadline(t time.Time) error {
	c.deadlineLock.Lock()
	c.readDeadline = t
	c.deadlineLock.Unlock()
	return nil
}

func (c *pipeConn) SetWriteDeadline(t time.Time) error {
	c.deadlineLock.Lock()
	c.writeDeadline = t
	c.deadlineLock.Unlock()
	return nil
}

func (c *pipeConn) getReadDeadline() time.Time {
	c.deadlineLock.Lock()
	t := c.readDeadline
	c.deadlineLock.Unlock()
	return t
}

func (c *pipeConn) getWriteDeadline() time.Time {
	c.deadlineLock.Lock()
	t := c.writeDeadline
	c.deadlineLock.Unlock()
	return t
}

var errConnectionClosed = errors.New("connection closed")

type timeoutError struct{}

func (e *timeoutError) Error() string { return "timeout" }

// Timeout implements net.Error.
func (e *timeoutError) Timeout() bool { return true }

// Temporary implements net.Error.
func (e *timeoutError) Temporary() bool { return true }

type pipeAddr int

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
