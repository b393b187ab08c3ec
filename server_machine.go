// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import "errors"

// ServerMachine is the production responder state machine.
type ServerMachine struct{}

var _ ServerStateMachine = (*ServerMachine)(nil)

func (m *ServerMachine) ProcessAccept(s *State, ex Executor, ctx *ServerContext, exts ServerExtensions) Actions {
	if s.phase != PhaseUninitialized {
		panic("fizz: ProcessAccept on an advanced state")
	}
	if ctx == nil || ctx.NewCodec == nil {
		panic("fizz: server context without a codec")
	}

	codec := ctx.NewCodec()
	return Actions{
		MutateState{Mutate: func(st *State) {
			st.codec = codec
			st.serverCtx = ctx
			st.serverExts = exts
			st.selfCert = ctx.Certificate
			st.executor = ex
			st.setPhase(PhaseWaitFlight1)
		}},
	}
}

func (m *ServerMachine) ProcessSocketData(s *State, in *InputQueue) Actions {
	switch s.phase {
	case PhaseUninitialized:
		return errorActions(in, errDataBeforeConnect)
	case PhaseWaitFlight1:
		return m.processClientHello(s, in)
	case PhaseWaitFlight2:
		return m.processSecondFlight(s, in)
	case PhaseEstablished, PhaseClosing:
		return m.processPostHandshake(s, in)
	default:
		return Actions{WaitForData{}}
	}
}

func (m *ServerMachine) processClientHello(s *State, in *InputQueue) Actions {
	codec := s.codec.(ServerCodec)

	rec, n, err := codec.ReadRecord(in.Bytes())
	if err != nil {
		return errorActions(in, err)
	}
	if rec == nil {
		return Actions{WaitForData{}}
	}
	// The raw wire bytes survive the parse so that a version fallback can
	// hand them to a legacy stack verbatim.
	raw := append([]byte(nil), in.Bytes()[:n]...)
	in.Consume(n)

	if rec.Type != RecordTypeHandshake {
		return errorActions(in, errUnexpectedAppData)
	}

	hello, err := codec.ProcessClientHello(rec.Payload)
	if errors.Is(err, ErrVersionFallback) {
		// Legal only here: no MutateState has advanced past the first
		// flight yet, and the machine is never invoked again afterwards.
		return Actions{AttemptVersionFallback{ClientHello: raw}}
	}
	if err != nil {
		return errorActions(in, err)
	}

	ctx := s.serverCtx
	selected := ""
	if len(hello.ALPNOffered) > 0 && len(ctx.SupportedProtocols) > 0 {
		var ok bool
		selected, ok = findMatchingProtocol(ctx.SupportedProtocols, hello.ALPNOffered)
		if !ok {
			return errorActions(in, errNoCommonProtocol)
		}
	}
	accepted := hello.EarlyDataOffered && ctx.AllowEarlyData

	var extList []Extension
	if s.serverExts != nil {
		extList = s.serverExts.ServerFlightExtensions(hello.Extensions)
	}
	flight, err := codec.EncodeServerFlight(ServerFlightParams{
		ALPN:              selected,
		EarlyDataAccepted: accepted,
		Extensions:        extList,
	})
	if err != nil {
		return errorActions(in, err)
	}

	acts := Actions{
		MutateState{Mutate: func(st *State) {
			st.alpn = selected
			st.earlyDataAccepted = &accepted
			st.setPhase(PhaseWaitFlight2)
		}},
		WriteToSocket{Data: flight},
	}
	if accepted {
		acts = append(acts, ReportEarlyHandshakeSuccess{})
	}
	return acts
}

func (m *ServerMachine) processSecondFlight(s *State, in *InputQueue) Actions {
	codec := s.codec.(ServerCodec)

	rec, n, err := codec.ReadRecord(in.Bytes())
	if err != nil {
		return errorActions(in, err)
	}
	if rec == nil {
		return Actions{WaitForData{}}
	}
	in.Consume(n)

	switch rec.Type {
	case RecordTypeAppData:
		// 0-RTT data arriving ahead of the client's finished record.
		return Actions{DeliverAppData{Data: rec.Payload}}
	case RecordTypeHandshake:
		if err := codec.VerifyFinished(rec.Payload); err != nil {
			return errorActions(in, err)
		}
		return Actions{
			MutateState{Mutate: func(st *State) { st.setPhase(PhaseEstablished) }},
			ReportHandshakeSuccess{},
		}
	case RecordTypeAlert:
		return errorActions(in, errPeerClosed)
	default:
		return errorActions(in, &ProtocolError{Err: errors.New("unknown record type")}) //nolint:err113
	}
}

func (m *ServerMachine) processPostHandshake(s *State, in *InputQueue) Actions {
	rec, n, err := s.codec.ReadRecord(in.Bytes())
	if err != nil {
		return errorActions(in, err)
	}
	if rec == nil {
		return Actions{WaitForData{}}
	}
	in.Consume(n)

	switch rec.Type {
	case RecordTypeAppData:
		return Actions{DeliverAppData{Data: rec.Payload}}
	case RecordTypeAlert:
		return errorActions(in, errPeerClosed)
	default:
		return errorActions(in, errUnexpectedHandshakeRecord)
	}
}

func (m *ServerMachine) ProcessAppWrite(s *State, w AppWrite) Actions {
	if s.phase != PhaseEstablished && s.phase != PhaseClosing {
		return errorActions(nil, errAppWriteDuringHandshake)
	}
	ciphertext, err := s.codec.EncryptAppData(w.Data)
	if err != nil {
		return errorActions(nil, err)
	}
	return Actions{WriteToSocket{Data: ciphertext, Callback: w.Callback, Flags: w.Flags}}
}

func (m *ServerMachine) ProcessAppClose(s *State) Actions {
	if s.phase == PhaseUninitialized || s.phase == PhaseClosed {
		return Actions{MutateState{Mutate: func(st *State) { st.setPhase(PhaseClosed) }}}
	}

	closeNotify, err := s.codec.EncodeCloseNotify()
	if err != nil {
		return errorActions(nil, err)
	}
	return Actions{
		MutateState{Mutate: func(st *State) { st.setPhase(PhaseClosing) }},
		WriteToSocket{Data: closeNotify},
		MutateState{Mutate: func(st *State) { st.setPhase(PhaseClosed) }},
	}
}

func (m *ServerMachine) ProcessWriteNewSessionTicket(s *State, appToken []byte) Actions {
	if s.phase != PhaseEstablished {
		return errorActions(nil, errTicketBeforeEstablished)
	}
	ticket, err := s.codec.(ServerCodec).EncodeNewSessionTicket(appToken)
	if err != nil {
		return errorActions(nil, err)
	}
	return Actions{WriteToSocket{Data: ticket}}
}
