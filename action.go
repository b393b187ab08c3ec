// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// Action is one side effect requested by a state machine. The set of
// variants is sealed: dispatch happens through ActionVisitor, so adding a
// variant forces every dispatcher to handle it.
type Action interface {
	run(v ActionVisitor)
}

// Actions is one ordered batch produced by a single machine invocation. The
// dispatcher consumes it strictly in order, each action exactly once.
type Actions []Action

// ActionVisitor dispatches one action batch. Connection adapters implement
// it; the engine never interprets actions itself apart from its own
// bookkeeping.
type ActionVisitor interface {
	OnMutateState(a MutateState)
	OnWriteToSocket(a WriteToSocket)
	OnDeliverAppData(a DeliverAppData)
	OnReportEarlyHandshakeSuccess(a ReportEarlyHandshakeSuccess)
	OnReportHandshakeSuccess(a ReportHandshakeSuccess)
	OnReportError(a ReportError)
	OnWaitForData(a WaitForData)
	OnAttemptVersionFallback(a AttemptVersionFallback)
}

// MutateState applies a deferred mutation to the session state. Mutations
// become visible exactly when dispatched, in batch order, never earlier.
type MutateState struct {
	Mutate func(s *State)
}

func (a MutateState) run(v ActionVisitor) { v.OnMutateState(a) }

// WriteToSocket carries protected bytes to the transport. Callback, when
// non-nil, receives the transport write outcome.
type WriteToSocket struct {
	Data     []byte
	Callback WriteCallback
	Flags    WriteFlags
}

func (a WriteToSocket) run(v ActionVisitor) { v.OnWriteToSocket(a) }

// DeliverAppData hands decrypted application bytes to the connection owner.
type DeliverAppData struct {
	Data []byte
}

func (a DeliverAppData) run(v ActionVisitor) { v.OnDeliverAppData(a) }

// ReportEarlyHandshakeSuccess reports that 0-RTT data may be written before
// the handshake fully completes.
type ReportEarlyHandshakeSuccess struct{}

func (a ReportEarlyHandshakeSuccess) run(v ActionVisitor) { v.OnReportEarlyHandshakeSuccess(a) }

// ReportHandshakeSuccess reports full handshake completion.
type ReportHandshakeSuccess struct{}

func (a ReportHandshakeSuccess) run(v ActionVisitor) { v.OnReportHandshakeSuccess(a) }

// ReportError reports a terminal handshake or protocol failure. It is always
// preceded in its batch by the MutateState that enters the Error phase.
type ReportError struct {
	Err error
}

func (a ReportError) run(v ActionVisitor) { v.OnReportError(a) }

// WaitForData parks socket-data processing until the transport signals new
// bytes.
type WaitForData struct{}

func (a WaitForData) run(v ActionVisitor) { v.OnWaitForData(a) }

// AttemptVersionFallback hands the connection to a legacy protocol stack.
// ClientHello holds the raw wire bytes of the hello that triggered it.
type AttemptVersionFallback struct {
	ClientHello []byte
}

func (a AttemptVersionFallback) run(v ActionVisitor) { v.OnAttemptVersionFallback(a) }
