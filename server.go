// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// ServerHandshakeCallback receives the outcome of a server handshake. Each
// method is invoked at most once per connection.
type ServerHandshakeCallback interface {
	OnHandshakeSuccess(conn *ServerConn)
	OnHandshakeError(conn *ServerConn, err error)

	// OnAttemptFallback hands the connection off to a legacy protocol
	// stack. clientHello holds the raw bytes received so far, including
	// anything still buffered beyond the hello itself. After this call the
	// connection's engine is retired.
	OnAttemptFallback(clientHello []byte)
}

// ServerConn is the responder-side transport adapter.
type ServerConn struct {
	asyncConn

	ctx  *ServerContext
	exts ServerExtensions
	hsCB ServerHandshakeCallback
}

var _ Conn = (*ServerConn)(nil)
var _ ActionVisitor = (*ServerConn)(nil)

// NewServerConn wraps transport. The context may be shared across
// connections.
func NewServerConn(transport Transport, ctx *ServerContext, exts ServerExtensions) *ServerConn {
	s := &ServerConn{ctx: ctx, exts: exts}
	log := loggerFactoryOrDefault(ctx.LoggerFactory).NewLogger("fizz")
	s.asyncConn.init(transport, log, s)
	s.engine = NewEngine(&ServerMachine{}, s, log, false)
	return s
}

// Accept stores the handshake callback, arms the engine and begins
// consuming transport read events.
func (s *ServerConn) Accept(cb ServerHandshakeCallback) {
	defer s.guard()()
	s.hsCB = cb
	s.engine.Accept(s.transport.Executor(), s.ctx, s.exts)
	s.startTransportReads()
}

// WriteNewSessionTicket sends a post-handshake session ticket carrying an
// opaque application token.
func (s *ServerConn) WriteNewSessionTicket(appToken []byte) {
	s.engine.WriteNewSessionTicket(appToken)
}

// IsReplaySafe is constant: the responder's protocol position guarantees
// replay protection once data flows.
func (s *ServerConn) IsReplaySafe() bool {
	return true
}

func (s *ServerConn) deliverHandshakeError(err error) {
	if s.hsCB == nil {
		return
	}
	cb := s.hsCB
	s.hsCB = nil
	cb.OnHandshakeError(s, err)
}

func (s *ServerConn) handshakePending() bool {
	return s.hsCB != nil
}

func (s *ServerConn) OnReportEarlyHandshakeSuccess(ReportEarlyHandshakeSuccess) {
	defer s.guard()()
	if s.hsCB == nil {
		return
	}
	cb := s.hsCB
	s.hsCB = nil
	cb.OnHandshakeSuccess(s)
}

func (s *ServerConn) OnReportHandshakeSuccess(ReportHandshakeSuccess) {
	defer s.guard()()
	if s.hsCB == nil {
		return
	}
	cb := s.hsCB
	s.hsCB = nil
	cb.OnHandshakeSuccess(s)
}

func (s *ServerConn) OnAttemptVersionFallback(a AttemptVersionFallback) {
	defer s.guard()()
	if s.hsCB == nil {
		s.log.Debugf("version fallback without a handshake callback, dropping")
		return
	}
	cb := s.hsCB
	s.hsCB = nil
	s.engine.haltForFallback()

	hello := a.ClientHello
	if q := s.engine.InputQueue(); q.Len() > 0 {
		hello = append(hello, q.TakeAll()...)
	}
	cb.OnAttemptFallback(hello)
}
