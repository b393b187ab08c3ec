// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"github.com/pion/logging"
)

type eventKind uint8

const (
	eventAppWrite eventKind = iota
	eventAppClose
	eventWriteNewSessionTicket
)

type pendingEvent struct {
	kind     eventKind
	write    AppWrite
	appToken []byte
}

// Engine drives one state machine: it owns the session state and the shared
// input queue, translates external calls into machine invocations and runs
// every returned action batch through the dispatcher, in order, exactly
// once.
//
// All methods must be invoked from the connection's single scheduling
// context. Entry points invoked reentrantly from a dispatched callback are
// queued and drained after the in-flight batch; dispatch never recurses.
type Engine struct {
	machine StateMachine
	visitor ActionVisitor
	log     logging.LeveledLogger

	state State
	inq   InputQueue

	pending []pendingEvent

	isClient     bool
	started      bool
	inProcessing bool
	waitForData  bool
	halted       bool // version fallback handed off; machine is retired

	// transport-originated error that arrived while a batch was being
	// dispatched; applied before the next batch
	externalErr error
}

// NewEngine builds an engine around machine, dispatching action batches to
// visitor. isClient only affects log tagging.
func NewEngine(machine StateMachine, visitor ActionVisitor, log logging.LeveledLogger, isClient bool) *Engine {
	return &Engine{
		machine:     machine,
		visitor:     visitor,
		log:         log,
		isClient:    isClient,
		waitForData: true,
	}
}

// State exposes the session state to the dispatcher and the adapter's
// read-through accessors. Mutation happens only through MutateState actions.
func (e *Engine) State() *State { return &e.state }

// InputQueue exposes the shared pending-input queue; the adapter appends to
// it before calling NewTransportData.
func (e *Engine) InputQueue() *InputQueue { return &e.inq }

// Connect starts a client handshake. Calling it (or Accept) twice on one
// engine is a contract violation and panics.
func (e *Engine) Connect(
	ctx *ClientContext,
	verifier CertificateVerifier,
	sni, pskIdentity string,
	exts ClientExtensions,
) {
	cm, ok := e.machine.(ClientStateMachine)
	if !ok {
		panic("fizz: Connect on a non-client state machine")
	}
	if e.started {
		panic("fizz: Connect called twice")
	}
	e.started = true
	e.log.Tracef("[%s] connect sni=%q", srvCliStr(e.isClient), sni)
	e.process(cm.ProcessConnect(&e.state, ctx, verifier, sni, pskIdentity, exts))
}

// Accept starts a server handshake and binds the scheduling handle.
func (e *Engine) Accept(ex Executor, ctx *ServerContext, exts ServerExtensions) {
	sm, ok := e.machine.(ServerStateMachine)
	if !ok {
		panic("fizz: Accept on a non-server state machine")
	}
	if e.started {
		panic("fizz: Accept called twice")
	}
	e.started = true
	e.log.Tracef("[%s] accept", srvCliStr(e.isClient))
	e.process(sm.ProcessAccept(&e.state, ex, ctx, exts))
}

// NewTransportData signals that the adapter appended bytes to the input
// queue.
func (e *Engine) NewTransportData() {
	e.waitForData = false
	e.kick()
}

// AppWrite enqueues one application write. Writes arriving after the engine
// entered the Error phase (or after fallback hand-off) fail immediately
// without reaching the state machine.
func (e *Engine) AppWrite(w AppWrite) {
	if e.InErrorState() || e.halted {
		if w.Callback != nil {
			w.Callback.OnWriteError(0, errAppWriteInErrorState)
		}
		return
	}
	e.pending = append(e.pending, pendingEvent{kind: eventAppWrite, write: w})
	e.kick()
}

// AppClose requests a best-effort graceful shutdown.
func (e *Engine) AppClose() {
	if e.InErrorState() || e.halted {
		return
	}
	e.pending = append(e.pending, pendingEvent{kind: eventAppClose})
	e.kick()
}

// WriteNewSessionTicket emits a post-handshake session ticket (server only).
func (e *Engine) WriteNewSessionTicket(appToken []byte) {
	if _, ok := e.machine.(ServerStateMachine); !ok {
		panic("fizz: WriteNewSessionTicket on a non-server state machine")
	}
	if e.InErrorState() || e.halted {
		return
	}
	e.pending = append(e.pending, pendingEvent{kind: eventWriteNewSessionTicket, appToken: appToken})
	e.kick()
}

// GetEkm derives exported keying material from the established exporter
// secret.
func (e *Engine) GetEkm(label string, context []byte, length int) ([]byte, error) {
	if e.state.codec == nil {
		return nil, errNoExporterSecret
	}
	secret := e.state.codec.ExporterSecret()
	if secret == nil {
		return nil, errNoExporterSecret
	}
	return deriveExportedMaterial(secret, label, context, length)
}

// GetEarlyEkm derives exported keying material from the early exporter
// secret.
func (e *Engine) GetEarlyEkm(label string, context []byte, length int) ([]byte, error) {
	if e.state.codec == nil {
		return nil, errNoEarlyExporterSecret
	}
	secret := e.state.codec.EarlyExporterSecret()
	if secret == nil {
		return nil, errNoEarlyExporterSecret
	}
	return deriveExportedMaterial(secret, label, context, length)
}

// WaitForData is the dispatcher's bookkeeping hook for a WaitForData action:
// it parks socket-data processing until NewTransportData.
func (e *Engine) WaitForData() {
	e.waitForData = true
}

// InErrorState reports whether the session reached the absorbing Error
// phase.
func (e *Engine) InErrorState() bool { return e.state.phase == PhaseError }

// ActionProcessing reports whether an action batch is being dispatched right
// now. Lifetime management must not detach or destroy the connection while
// this is true.
func (e *Engine) ActionProcessing() bool { return e.inProcessing }

// MoveToErrorState records a transport-originated failure. When invoked from
// inside a dispatched callback the transition is deferred until the
// in-flight batch finishes, preserving batch ordering.
func (e *Engine) MoveToErrorState(err error) {
	if e.InErrorState() {
		return
	}
	if e.inProcessing {
		if e.externalErr == nil {
			e.externalErr = err
		}
		return
	}
	e.externalErr = err
	e.kick()
}

// haltForFallback retires the state machine after an AttemptVersionFallback
// action; it must not be invoked again on this connection.
func (e *Engine) haltForFallback() {
	e.halted = true
}

// process dispatches the batch produced by an immediate entry point
// (Connect/Accept), then drains any work it triggered.
func (e *Engine) process(acts Actions) {
	if e.inProcessing {
		panic("fizz: reentrant action processing")
	}
	e.inProcessing = true
	defer func() { e.inProcessing = false }()
	e.dispatch(acts)
	e.drainLocked()
}

// kick enters the processing loop unless a batch is already being
// dispatched, in which case the in-flight loop picks the new work up.
func (e *Engine) kick() {
	if e.inProcessing {
		return
	}
	e.inProcessing = true
	defer func() { e.inProcessing = false }()
	e.drainLocked()
}

func (e *Engine) drainLocked() {
	for {
		if err := e.externalErr; err != nil && !e.InErrorState() {
			e.externalErr = nil
			e.log.Debugf("[%s] transport failure: %v", srvCliStr(e.isClient), err)
			e.dispatch(Actions{MutateState{Mutate: func(s *State) { s.setPhase(PhaseError) }}})
		}
		if e.InErrorState() || e.halted {
			break
		}
		if e.started && !e.waitForData {
			e.dispatch(e.machine.ProcessSocketData(&e.state, &e.inq))
			continue
		}
		if len(e.pending) > 0 {
			ev := e.pending[0]
			e.pending = e.pending[1:]
			e.dispatch(e.processEvent(ev))
			continue
		}
		return
	}
	e.failPending()
}

// dispatch applies one batch strictly in order; each action is consumed
// exactly once.
func (e *Engine) dispatch(acts Actions) {
	for _, a := range acts {
		a.run(e.visitor)
	}
}

func (e *Engine) processEvent(ev pendingEvent) Actions {
	switch ev.kind {
	case eventAppWrite:
		return e.machine.ProcessAppWrite(&e.state, ev.write)
	case eventAppClose:
		return e.machine.ProcessAppClose(&e.state)
	case eventWriteNewSessionTicket:
		return e.machine.(ServerStateMachine).ProcessWriteNewSessionTicket(&e.state, ev.appToken)
	default:
		panic("fizz: unknown pending event")
	}
}

// failPending delivers the terminal error to every queued, undispatched
// application write.
func (e *Engine) failPending() {
	pending := e.pending
	e.pending = nil
	for _, ev := range pending {
		if ev.kind == eventAppWrite && ev.write.Callback != nil {
			ev.write.Callback.OnWriteError(0, ErrConnClosed)
		}
	}
}
