// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"crypto/x509"
	"sync/atomic"

	"github.com/pion/logging"
)

// Conn is the surface shared by ClientConn and ServerConn.
type Conn interface {
	WriteAppData(cb WriteCallback, data []byte, flags WriteFlags)
	SetReadCallback(cb ReadCallback)

	Close()
	CloseWithReset()
	CloseNow()
	Release()

	Good() bool
	Readable() bool
	Connecting() bool
	Error() bool
	IsDetachable() bool
	IsReplaySafe() bool

	GetPeerCert() *x509.Certificate
	GetSelfCert() *x509.Certificate
	ApplicationProtocol() string
	GetEkm(label string, context []byte, length int) ([]byte, error)
	GetEarlyEkm(label string, context []byte, length int) ([]byte, error)

	AttachExecutor(ex Executor)
}

// connHooks is the role-specific behavior the shared adapter calls back
// into.
type connHooks interface {
	// deliverHandshakeError fires the handshake-error callback if its slot
	// is still armed, then clears the slot.
	deliverHandshakeError(err error)
	// handshakePending reports whether a handshake callback is still
	// waiting for an outcome.
	handshakePending() bool
}

// asyncConn binds a protocol engine to a live asynchronous byte-stream
// transport. ClientConn and ServerConn embed it and supply the
// role-specific visitor methods and hooks.
//
// A connection may destroy itself while one of its own calls is unwinding:
// delivering an error can synchronously cause the owner to drop its last
// reference. Every path that can fire owner callbacks therefore holds a
// scoped reference for the duration of the call; teardown happens when the
// count reaches zero.
type asyncConn struct {
	transport Transport
	engine    *Engine
	log       logging.LeveledLogger
	self      connHooks

	refs     atomic.Int32
	tornDown bool

	readCB         ReadCallback
	pendingAppData [][]byte
	connErr        error
	readsStarted   bool
}

func (c *asyncConn) init(t Transport, log logging.LeveledLogger, self connHooks) {
	c.transport = t
	c.log = log
	c.self = self
	c.refs.Store(1)
}

// guard takes a scoped reference; release it on scope exit.
func (c *asyncConn) guard() func() {
	c.refs.Add(1)
	return c.unref
}

func (c *asyncConn) unref() {
	if c.refs.Add(-1) == 0 {
		c.teardown()
	}
}

// Release drops the owner's reference. If no call is unwinding the
// connection tears down immediately; otherwise teardown is deferred until
// the outermost guarded call returns.
func (c *asyncConn) Release() {
	c.unref()
}

func (c *asyncConn) teardown() {
	if c.tornDown {
		return
	}
	c.tornDown = true
	c.readCB = nil
	c.transport.CloseNow()
}

func (c *asyncConn) startTransportReads() {
	c.readsStarted = true
	c.transport.StartReads(c)
}

// HandleDataAvailable implements TransportReadHandler: freshly received
// bytes accumulate in the shared queue before the engine is signalled.
func (c *asyncConn) HandleDataAvailable(data []byte) {
	defer c.guard()()
	c.engine.InputQueue().Append(data)
	c.engine.NewTransportData()
}

// HandleTransportError implements TransportReadHandler.
func (c *asyncConn) HandleTransportError(err error) {
	defer c.guard()()
	c.deliverAllErrors(err, true)
}

// deliverAllErrors funnels every failure origin through one path: the
// handshake callback (at most once), the engine's error-state transition,
// and the data-consumer error, in that order.
func (c *asyncConn) deliverAllErrors(err error, closeTransport bool) {
	defer c.guard()()
	c.self.deliverHandshakeError(err)
	c.engine.MoveToErrorState(err)
	c.deliverError(err, closeTransport)
}

func (c *asyncConn) deliverError(err error, closeTransport bool) {
	if c.connErr == nil {
		c.connErr = err
	}
	if c.readCB != nil {
		cb := c.readCB
		c.readCB = nil
		cb.OnReadError(err)
	}
	if closeTransport {
		c.transport.CloseNow()
	}
}

func (c *asyncConn) deliverAppData(data []byte) {
	if c.readCB == nil {
		c.pendingAppData = append(c.pendingAppData, data)
		return
	}
	c.readCB.OnDataAvailable(data)
}

// SetReadCallback installs the application-data consumer. Data that arrived
// before a consumer existed is flushed first; a connection already in error
// reports it immediately after.
func (c *asyncConn) SetReadCallback(cb ReadCallback) {
	defer c.guard()()
	c.readCB = cb
	if cb == nil {
		return
	}
	pending := c.pendingAppData
	c.pendingAppData = nil
	for _, data := range pending {
		cb.OnDataAvailable(data)
	}
	if c.connErr != nil && c.readCB != nil {
		c.readCB = nil
		cb.OnReadError(c.connErr)
	}
}

// WriteAppData packages one application write for the engine. A connection
// in error fails the callback immediately and performs no further work.
func (c *asyncConn) WriteAppData(cb WriteCallback, data []byte, flags WriteFlags) {
	if c.Error() {
		if cb != nil {
			cb.OnWriteError(0, errAppWriteInErrorState)
		}
		return
	}
	c.engine.AppWrite(AppWrite{Data: data, Callback: cb, Flags: flags})
}

// Close requests a graceful shutdown: notify the peer through the engine if
// the transport is still healthy, otherwise tear down with error delivery.
func (c *asyncConn) Close() {
	if c.transport.Good() {
		c.engine.AppClose()
		c.transport.Close()
		return
	}
	defer c.guard()()
	c.deliverAllErrors(&TransportError{Err: errClosedLocally}, false)
	c.transport.Close()
}

// CloseWithReset skips handshake-level niceties where possible and resets
// the transport.
func (c *asyncConn) CloseWithReset() {
	defer c.guard()()
	if c.transport.Good() {
		c.engine.AppClose()
	}
	c.deliverAllErrors(&TransportError{Err: errClosedLocally}, false)
	c.transport.CloseWithReset()
}

// CloseNow tears the connection down immediately.
func (c *asyncConn) CloseNow() {
	defer c.guard()()
	if c.transport.Good() {
		c.engine.AppClose()
	}
	c.deliverAllErrors(&TransportError{Err: errClosedLocally}, false)
	c.transport.CloseNow()
}

func (c *asyncConn) Good() bool {
	return !c.Error() && c.transport.Good()
}

func (c *asyncConn) Readable() bool {
	return c.transport.Readable()
}

func (c *asyncConn) Connecting() bool {
	return c.self.handshakePending() || c.transport.Connecting()
}

func (c *asyncConn) Error() bool {
	return c.transport.Error() || c.engine.InErrorState()
}

// IsDetachable forbids detaching while an action batch is being dispatched:
// a dispatched action can synchronously re-enter the owner, and moving the
// scheduling context mid-dispatch would break the single-context model.
func (c *asyncConn) IsDetachable() bool {
	return !c.engine.ActionProcessing() && c.transport.IsDetachable()
}

// AttachExecutor rebinds the scheduling handle in the session state before
// delegating to the transport.
func (c *asyncConn) AttachExecutor(ex Executor) {
	c.engine.State().setExecutor(ex)
	c.transport.AttachExecutor(ex)
}

func (c *asyncConn) GetPeerCert() *x509.Certificate {
	return c.engine.State().PeerCert()
}

func (c *asyncConn) GetSelfCert() *x509.Certificate {
	return c.engine.State().SelfCert()
}

// ApplicationProtocol returns the negotiated ALPN, "" when unnegotiated.
func (c *asyncConn) ApplicationProtocol() string {
	return c.engine.State().ALPN()
}

func (c *asyncConn) GetEkm(label string, context []byte, length int) ([]byte, error) {
	return c.engine.GetEkm(label, context, length)
}

func (c *asyncConn) GetEarlyEkm(label string, context []byte, length int) ([]byte, error) {
	return c.engine.GetEarlyEkm(label, context, length)
}

// Shared visitor methods; success and fallback variants are role-specific.

func (c *asyncConn) OnMutateState(a MutateState) {
	a.Mutate(c.engine.State())
}

func (c *asyncConn) OnWriteToSocket(a WriteToSocket) {
	c.transport.Write(a.Callback, a.Data, a.Flags)
}

func (c *asyncConn) OnDeliverAppData(a DeliverAppData) {
	c.deliverAppData(a.Data)
}

func (c *asyncConn) OnReportError(a ReportError) {
	defer c.guard()()
	c.log.Debugf("handshake failure: %v", a.Err)
	c.deliverAllErrors(a.Err, true)
}

func (c *asyncConn) OnWaitForData(WaitForData) {
	c.engine.WaitForData()
	if c.self.handshakePending() {
		// Make sure the read path stays armed until the handshake
		// resolves.
		c.startTransportReads()
	}
}
