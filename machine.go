// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// AppWrite is one queued application write request. The engine owns it until
// it is handed to the state machine; it is destroyed once the corresponding
// WriteToSocket action is dispatched or the error path discards it.
type AppWrite struct {
	Data     []byte
	Callback WriteCallback
	Flags    WriteFlags
}

// StateMachine is the pure transition function at the heart of a connection:
// (state snapshot, event) -> ordered Actions. Implementations never perform
// I/O, never invoke callbacks, never block, and never fail across the
// boundary; failures are expressed as a ReportError action. The only
// exception is a caller breaking the calling contract itself (for example
// connecting twice), which panics.
type StateMachine interface {
	// ProcessSocketData consumes buffered transport bytes. It parses at
	// most one record per call; the engine re-invokes it until a
	// WaitForData action ends the cycle. Bytes are consumed from in only
	// when a complete record is parsed.
	ProcessSocketData(s *State, in *InputQueue) Actions

	// ProcessAppWrite turns one application write into protected socket
	// bytes.
	ProcessAppWrite(s *State, w AppWrite) Actions

	// ProcessAppClose starts a best-effort graceful shutdown.
	ProcessAppClose(s *State) Actions
}

// ClientStateMachine adds the initiator entry point.
type ClientStateMachine interface {
	StateMachine

	// ProcessConnect starts the handshake. sni and pskIdentity may be
	// empty, meaning absent. Calling it on a machine whose state has
	// advanced past Uninitialized panics.
	ProcessConnect(
		s *State,
		ctx *ClientContext,
		verifier CertificateVerifier,
		sni, pskIdentity string,
		exts ClientExtensions,
	) Actions
}

// ServerStateMachine adds the responder entry points.
type ServerStateMachine interface {
	StateMachine

	// ProcessAccept arms the machine for an incoming handshake and binds
	// the scheduling handle. Calling it on a machine whose state has
	// advanced past Uninitialized panics.
	ProcessAccept(s *State, ex Executor, ctx *ServerContext, exts ServerExtensions) Actions

	// ProcessWriteNewSessionTicket emits a post-handshake ticket record.
	ProcessWriteNewSessionTicket(s *State, appToken []byte) Actions
}

// errorActions is the uniform failure shape returned by the production
// machines: buffered input is discarded (never reprocessed), the phase moves
// to the absorbing Error state, and the failure surfaces as a ReportError
// action. The MutateState comes first so that error handlers observe the
// Error phase.
func errorActions(in *InputQueue, err error) Actions {
	if in != nil {
		in.Clear()
	}
	return Actions{
		MutateState{Mutate: func(s *State) { s.setPhase(PhaseError) }},
		ReportError{Err: err},
	}
}

func srvCliStr(isClient bool) string {
	if isClient {
		return "client"
	}
	return "server"
}
