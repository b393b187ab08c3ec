// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/transport/v3/deadline"
	"github.com/pion/transport/v3/packetio"
)

// NetConn is a blocking net.Conn facade over an established connection, for
// callers that want ordinary Read/Write semantics instead of callbacks.
// Each Read returns one delivered application record.
//
// The facade may be used from any goroutine; it funnels every engine
// operation through the connection's executor.
type NetConn struct {
	conn Conn
	exec Executor

	buf           *packetio.Buffer
	writeDeadline *deadline.Deadline

	mu      sync.Mutex
	readErr error

	local, remote net.Addr
}

var _ net.Conn = (*NetConn)(nil)

// NewNetConn wraps conn, which must already be handshaken or about to be.
// exec is the executor driving the connection; local and remote are
// advertised through the net.Conn address accessors.
func NewNetConn(conn Conn, exec Executor, local, remote net.Addr) *NetConn {
	nc := &NetConn{
		conn:          conn,
		exec:          exec,
		buf:           packetio.NewBuffer(),
		writeDeadline: deadline.New(),
		local:         local,
		remote:        remote,
	}
	exec.Post(func() { conn.SetReadCallback(nc) })
	return nc
}

// OnDataAvailable implements ReadCallback.
func (nc *NetConn) OnDataAvailable(data []byte) {
	// Fails only when the buffer is already closed and the connection is
	// going away.
	_, _ = nc.buf.Write(data)
}

// OnReadError implements ReadCallback.
func (nc *NetConn) OnReadError(err error) {
	nc.mu.Lock()
	if nc.readErr == nil {
		nc.readErr = err
	}
	nc.mu.Unlock()
	_ = nc.buf.Close()
}

// Read blocks until one application record is available.
func (nc *NetConn) Read(p []byte) (int, error) {
	n, err := nc.buf.Read(p)
	if err == nil {
		return n, nil
	}
	nc.mu.Lock()
	readErr := nc.readErr
	nc.mu.Unlock()
	if readErr != nil {
		return n, readErr
	}
	return n, err
}

type chanWriteCallback struct {
	ch chan error
}

func (c chanWriteCallback) OnWriteSuccess() { c.ch <- nil }

func (c chanWriteCallback) OnWriteError(_ int, err error) { c.ch <- err }

// Write blocks until the engine has handed the protected bytes to the
// transport, or the write deadline expires.
func (nc *NetConn) Write(p []byte) (int, error) {
	data := append([]byte(nil), p...)
	cb := chanWriteCallback{ch: make(chan error, 1)}
	nc.exec.Post(func() { nc.conn.WriteAppData(cb, data, WriteFlagNone) })

	select {
	case err := <-cb.ch:
		if err != nil {
			return 0, err
		}
		return len(p), nil
	case <-nc.writeDeadline.Done():
		return 0, os.ErrDeadlineExceeded
	}
}

// Close requests a graceful shutdown and releases the read path.
func (nc *NetConn) Close() error {
	nc.exec.Post(func() { nc.conn.Close() })
	return nc.buf.Close()
}

func (nc *NetConn) LocalAddr() net.Addr  { return nc.local }
func (nc *NetConn) RemoteAddr() net.Addr { return nc.remote }

func (nc *NetConn) SetDeadline(t time.Time) error {
	nc.writeDeadline.Set(t)
	return nc.buf.SetReadDeadline(t)
}

func (nc *NetConn) SetReadDeadline(t time.Time) error {
	return nc.buf.SetReadDeadline(t)
}

func (nc *NetConn) SetWriteDeadline(t time.Time) error {
	nc.writeDeadline.Set(t)
	return nil
}
