// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import "errors"

// ClientMachine is the production initiator state machine. It is stateless:
// every invocation reads the session state snapshot and returns the actions
// required, leaving all side effects to the dispatcher.
type ClientMachine struct{}

var _ ClientStateMachine = (*ClientMachine)(nil)

func (m *ClientMachine) ProcessConnect(
	s *State,
	ctx *ClientContext,
	verifier CertificateVerifier,
	sni, pskIdentity string,
	exts ClientExtensions,
) Actions {
	if s.phase != PhaseUninitialized {
		panic("fizz: ProcessConnect on an advanced state")
	}
	if ctx == nil || ctx.NewCodec == nil {
		panic("fizz: client context without a codec")
	}

	codec := ctx.NewCodec()
	earlyData := ctx.EnableEarlyData && pskIdentity != ""

	var extList []Extension
	if exts != nil {
		extList = exts.ClientHelloExtensions()
	}
	hello, err := codec.EncodeClientHello(ClientHelloParams{
		SNI:         sni,
		PSKIdentity: pskIdentity,
		ALPN:        ctx.SupportedProtocols,
		EarlyData:   earlyData,
		Extensions:  extList,
	})
	if err != nil {
		return errorActions(nil, err)
	}

	acts := Actions{
		MutateState{Mutate: func(st *State) {
			st.codec = codec
			st.verifier = verifier
			st.clientCtx = ctx
			st.clientExts = exts
			st.selfCert = ctx.Certificate
			st.earlyWritable = earlyData
			st.setPhase(PhaseWaitFlight1)
		}},
		WriteToSocket{Data: hello},
	}
	if earlyData {
		acts = append(acts, ReportEarlyHandshakeSuccess{})
	}
	return acts
}

func (m *ClientMachine) ProcessSocketData(s *State, in *InputQueue) Actions {
	switch s.phase {
	case PhaseUninitialized:
		return errorActions(in, errDataBeforeConnect)
	case PhaseWaitFlight1:
		return m.processServerFlight(s, in)
	case PhaseEstablished, PhaseClosing:
		return m.processPostHandshake(s, in)
	default:
		// Closed: nothing further is expected; park until teardown.
		return Actions{WaitForData{}}
	}
}

func (m *ClientMachine) processServerFlight(s *State, in *InputQueue) Actions {
	codec := s.codec.(ClientCodec)

	rec, n, err := codec.ReadRecord(in.Bytes())
	if err != nil {
		return errorActions(in, err)
	}
	if rec == nil {
		return Actions{WaitForData{}}
	}
	in.Consume(n)

	if rec.Type != RecordTypeHandshake {
		return errorActions(in, errUnexpectedAppData)
	}

	flight, err := codec.ProcessServerFlight(rec.Payload)
	if err != nil {
		return errorActions(in, err)
	}
	if s.verifier != nil && flight.PeerCert != nil {
		if err := s.verifier.Verify(flight.PeerCert); err != nil {
			return errorActions(in, &CryptoError{Err: err})
		}
	}

	finished, err := codec.EncodeFinished()
	if err != nil {
		return errorActions(in, err)
	}

	accepted := flight.EarlyDataAccepted
	return Actions{
		MutateState{Mutate: func(st *State) {
			st.alpn = flight.ALPN
			st.peerCert = flight.PeerCert
			st.earlyDataAccepted = &accepted
			st.earlyWritable = false
			st.setPhase(PhaseEstablished)
		}},
		WriteToSocket{Data: finished},
		ReportHandshakeSuccess{},
	}
}

func (m *ClientMachine) processPostHandshake(s *State, in *InputQueue) Actions {
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
	case RecordTypeHandshake:
		// Post-handshake tickets are consumed silently; session caching is
		// the codec owner's concern.
		return Actions{}
	case RecordTypeAlert:
		return errorActions(in, errPeerClosed)
	default:
		return errorActions(in, &ProtocolError{Err: errors.New("unknown record type")}) //nolint:err113
	}
}

func (m *ClientMachine) ProcessAppWrite(s *State, w AppWrite) Actions {
	switch {
	case s.phase == PhaseEstablished, s.phase == PhaseClosing:
	case s.phase == PhaseWaitFlight1 && s.earlyWritable:
		// 0-RTT window: the codec still holds early keys.
	default:
		return errorActions(nil, errAppWriteDuringHandshake)
	}

	ciphertext, err := s.codec.EncryptAppData(w.Data)
	if err != nil {
		return errorActions(nil, err)
	}
	return Actions{WriteToSocket{Data: ciphertext, Callback: w.Callback, Flags: w.Flags}}
}

func (m *ClientMachine) ProcessAppClose(s *State) Actions {
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
