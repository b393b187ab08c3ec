// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// ClientHandshakeCallback receives the outcome of a client handshake. Each
// method is invoked at most once per connection, and the outcomes are
// mutually exclusive.
type ClientHandshakeCallback interface {
	OnHandshakeSuccess(conn *ClientConn)
	OnHandshakeError(conn *ClientConn, err error)
}

// ClientConn is the initiator-side transport adapter.
type ClientConn struct {
	asyncConn

	ctx  *ClientContext
	hsCB ClientHandshakeCallback

	// One callback slot serves both success reports: whichever of the
	// early and full success fires first consumes it. A full completion
	// after an early one surfaces through the replay-safety callback.
	earlyCompleted bool
	replaySafe     bool
	replaySafetyCB func()
}

var _ Conn = (*ClientConn)(nil)
var _ ActionVisitor = (*ClientConn)(nil)

// NewClientConn wraps transport. The context may be shared across
// connections.
func NewClientConn(transport Transport, ctx *ClientContext) *ClientConn {
	c := &ClientConn{ctx: ctx}
	log := loggerFactoryOrDefault(ctx.LoggerFactory).NewLogger("fizz")
	c.asyncConn.init(transport, log, c)
	c.engine = NewEngine(&ClientMachine{}, c, log, true)
	return c
}

// Connect stores the handshake callback, starts the handshake and begins
// consuming transport read events. sni and pskIdentity may be empty,
// meaning absent.
func (c *ClientConn) Connect(
	cb ClientHandshakeCallback,
	verifier CertificateVerifier,
	sni, pskIdentity string,
	exts ClientExtensions,
) {
	defer c.guard()()
	c.hsCB = cb
	c.engine.Connect(c.ctx, verifier, sni, pskIdentity, exts)
	c.startTransportReads()
}

// IsReplaySafe reports whether data written on this connection can no
// longer be replayed. 0-RTT data is replayable until the full handshake
// completes, so the initiator side is not constant-true; use
// SetReplaySafetyCallback to learn when it flips.
func (c *ClientConn) IsReplaySafe() bool {
	return c.replaySafe
}

// SetReplaySafetyCallback arranges cb to run once the connection becomes
// replay safe. It fires immediately when that already happened.
func (c *ClientConn) SetReplaySafetyCallback(cb func()) {
	if cb != nil && c.replaySafe {
		cb()
		return
	}
	c.replaySafetyCB = cb
}

func (c *ClientConn) deliverHandshakeError(err error) {
	if c.hsCB == nil {
		return
	}
	cb := c.hsCB
	c.hsCB = nil
	cb.OnHandshakeError(c, err)
}

func (c *ClientConn) handshakePending() bool {
	return c.hsCB != nil
}

func (c *ClientConn) OnReportEarlyHandshakeSuccess(ReportEarlyHandshakeSuccess) {
	defer c.guard()()
	c.earlyCompleted = true
	if c.hsCB == nil {
		return
	}
	cb := c.hsCB
	c.hsCB = nil
	cb.OnHandshakeSuccess(c)
}

func (c *ClientConn) OnReportHandshakeSuccess(ReportHandshakeSuccess) {
	defer c.guard()()
	c.replaySafe = true
	if c.hsCB != nil {
		cb := c.hsCB
		c.hsCB = nil
		cb.OnHandshakeSuccess(c)
		return
	}
	if c.replaySafetyCB != nil {
		cb := c.replaySafetyCB
		c.replaySafetyCB = nil
		cb()
	}
}

func (c *ClientConn) OnAttemptVersionFallback(AttemptVersionFallback) {
	// Fallback is a responder-side hand-off; an initiator machine never
	// emits it.
	c.log.Debugf("dropping version fallback on client connection")
}
