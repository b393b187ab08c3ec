// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"net"
	"sync"

	"github.com/pion/logging"
)

const streamReadBufferSize = 8192

// StreamTransport adapts a net.Conn to the Transport contract. A read pump
// goroutine posts every event onto the connection's executor so that the
// engine keeps its single-scheduling-context model; Write must already be
// called from that executor.
type StreamTransport struct {
	conn net.Conn
	log  logging.LeveledLogger

	mu      sync.Mutex
	exec    Executor
	handler TransportReadHandler
	started bool
	closed  bool
	failed  bool
}

var _ Transport = (*StreamTransport)(nil)

// NewStreamTransport wraps conn. All events are delivered through exec.
func NewStreamTransport(conn net.Conn, exec Executor, lf logging.LoggerFactory) *StreamTransport {
	return &StreamTransport{
		conn: conn,
		exec: exec,
		log:  loggerFactoryOrDefault(lf).NewLogger("fizz"),
	}
}

// StartReads installs the handler and starts the read pump. Subsequent calls
// are no-ops.
func (t *StreamTransport) StartReads(h TransportReadHandler) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.handler = h
	t.mu.Unlock()

	go t.readLoop(h)
}

func (t *StreamTransport) readLoop(h TransportReadHandler) {
	buf := make([]byte, streamReadBufferSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			t.post(func() { h.HandleDataAvailable(data) })
		}
		if err != nil {
			t.mu.Lock()
			locallyClosed := t.closed
			if !locallyClosed {
				t.failed = true
			}
			t.mu.Unlock()
			if !locallyClosed {
				terr := netError(err)
				t.post(func() { h.HandleTransportError(terr) })
			}
			return
		}
	}
}

func (t *StreamTransport) post(fn func()) {
	t.mu.Lock()
	exec := t.exec
	t.mu.Unlock()
	if exec != nil {
		exec.Post(fn)
		return
	}
	fn()
}

// Write sends buf on the wrapped conn. Flags are hints only; a byte stream
// has no record boundaries to honor.
func (t *StreamTransport) Write(cb WriteCallback, buf []byte, _ WriteFlags) {
	n, err := t.conn.Write(buf)
	if err != nil {
		t.mu.Lock()
		t.failed = true
		t.mu.Unlock()
		if cb != nil {
			cb.OnWriteError(n, netError(err))
		}
		return
	}
	if cb != nil {
		cb.OnWriteSuccess()
	}
}

func (t *StreamTransport) Close() {
	t.markClosed()
	if err := t.conn.Close(); err != nil {
		t.log.Debugf("close: %v", err)
	}
}

// CloseWithReset aborts the stream; on TCP the peer sees a reset instead of
// an orderly shutdown.
func (t *StreamTransport) CloseWithReset() {
	t.markClosed()
	if tcp, ok := t.conn.(*net.TCPConn); ok {
		if err := tcp.SetLinger(0); err != nil {
			t.log.Debugf("set linger: %v", err)
		}
	}
	if err := t.conn.Close(); err != nil {
		t.log.Debugf("close with reset: %v", err)
	}
}

func (t *StreamTransport) CloseNow() {
	t.markClosed()
	if err := t.conn.Close(); err != nil {
		t.log.Debugf("close now: %v", err)
	}
}

func (t *StreamTransport) markClosed() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *StreamTransport) Good() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && !t.failed
}

func (t *StreamTransport) Readable() bool {
	return t.Good()
}

func (t *StreamTransport) Connecting() bool {
	return false
}

func (t *StreamTransport) Error() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

func (t *StreamTransport) IsDetachable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.started
}

func (t *StreamTransport) Executor() Executor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exec
}

func (t *StreamTransport) AttachExecutor(ex Executor) {
	t.mu.Lock()
	t.exec = ex
	t.mu.Unlock()
}

// LocalAddr exposes the wrapped conn's local address.
func (t *StreamTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// RemoteAddr exposes the wrapped conn's remote address.
func (t *StreamTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
