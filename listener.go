package cadente

import (
	"net"
	"time"
)

// deadlineConn applies an idle timeout to every read and write on the
// wrapped connection. A connection that neither produces nor accepts
// bytes within the timeout fails its next operation and is abandoned.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// TimeoutListener wraps a listener so that every accepted connection
// carries the given idle read/write timeout. It is useful when serving a
// caller-supplied listener through Serve while still bounding slow peers.
type TimeoutListener struct {
	net.Listener

	// Maximum wait time for each read and write on accepted connections.
	IdleTimeout time.Duration
}

func (ln *TimeoutListener) Accept() (net.Conn, error) {
	c, err := ln.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if ln.IdleTimeout <= 0 {
		return c, nil
	}
	return &deadlineConn{Conn: c, timeout: ln.IdleTimeout}, nil
}
