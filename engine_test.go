// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"errors"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedMachine replays canned action batches and records every
// invocation. An exhausted script parks the engine with WaitForData.
type scriptedMachine struct {
	script []Actions

	connects    []connectCall
	socketDatas int
	appWrites   []AppWrite
	appCloses   int
}

type connectCall struct {
	sni         string
	pskIdentity string
}

func (m *scriptedMachine) next() Actions {
	if len(m.script) == 0 {
		return Actions{WaitForData{}}
	}
	acts := m.script[0]
	m.script = m.script[1:]
	return acts
}

func (m *scriptedMachine) ProcessConnect(
	_ *State, _ *ClientContext, _ CertificateVerifier, sni, pskIdentity string, _ ClientExtensions,
) Actions {
	m.connects = append(m.connects, connectCall{sni: sni, pskIdentity: pskIdentity})
	return m.next()
}

func (m *scriptedMachine) ProcessSocketData(_ *State, _ *InputQueue) Actions {
	m.socketDatas++
	return m.next()
}

func (m *scriptedMachine) ProcessAppWrite(_ *State, w AppWrite) Actions {
	m.appWrites = append(m.appWrites, w)
	return m.next()
}

func (m *scriptedMachine) ProcessAppClose(_ *State) Actions {
	m.appCloses++
	return m.next()
}

// recordingVisitor applies the engine bookkeeping a real dispatcher would
// and records the order actions arrive in. The hooks model a connection
// owner reacting synchronously from inside a dispatched callback.
type recordingVisitor struct {
	engine *Engine

	order  []string
	writes [][]byte
	errs   []error

	deliverHook func()
	successHook func()
	errorHook   func(err error)
}

func (v *recordingVisitor) OnMutateState(a MutateState) {
	v.order = append(v.order, "mutate")
	a.Mutate(v.engine.State())
}

func (v *recordingVisitor) OnWriteToSocket(a WriteToSocket) {
	v.order = append(v.order, "write")
	v.writes = append(v.writes, a.Data)
	if a.Callback != nil {
		a.Callback.OnWriteSuccess()
	}
}

func (v *recordingVisitor) OnDeliverAppData(DeliverAppData) {
	v.order = append(v.order, "deliver")
	if v.deliverHook != nil {
		v.deliverHook()
	}
}

func (v *recordingVisitor) OnReportEarlyHandshakeSuccess(ReportEarlyHandshakeSuccess) {
	v.order = append(v.order, "earlySuccess")
}

func (v *recordingVisitor) OnReportHandshakeSuccess(ReportHandshakeSuccess) {
	v.order = append(v.order, "success")
	if v.successHook != nil {
		v.successHook()
	}
}

func (v *recordingVisitor) OnReportError(a ReportError) {
	v.order = append(v.order, "error")
	v.errs = append(v.errs, a.Err)
	if v.errorHook != nil {
		v.errorHook(a.Err)
	}
}

func (v *recordingVisitor) OnWaitForData(WaitForData) {
	v.order = append(v.order, "waitForData")
	v.engine.WaitForData()
}

func (v *recordingVisitor) OnAttemptVersionFallback(AttemptVersionFallback) {
	v.order = append(v.order, "fallback")
}

func newTestEngine(machine StateMachine) (*Engine, *recordingVisitor) {
	v := &recordingVisitor{}
	log := logging.NewDefaultLoggerFactory().NewLogger("fizz-test")
	e := NewEngine(machine, v, log, true)
	v.engine = e
	return e, v
}

func TestEngineConnectInvokesMachineOnce(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{MutateState{Mutate: func(s *State) { s.setPhase(PhaseWaitFlight1) }}, WriteToSocket{Data: []byte("hello")}},
	}}
	e, v := newTestEngine(machine)

	e.Connect(&ClientContext{}, nil, "www.example.com", "", nil)

	require.Len(t, machine.connects, 1)
	assert.Equal(t, "www.example.com", machine.connects[0].sni)
	assert.Equal(t, "", machine.connects[0].pskIdentity)
	assert.Equal(t, []string{"mutate", "write"}, v.order)
	assert.Equal(t, PhaseWaitFlight1, e.State().Phase())
	assert.Equal(t, [][]byte{[]byte("hello")}, v.writes)
}

func TestEngineConnectCarriesPskIdentityVerbatim(t *testing.T) {
	machine := &scriptedMachine{}
	e, _ := newTestEngine(machine)

	e.Connect(&ClientContext{}, nil, "www.example.com", "meta", nil)

	require.Len(t, machine.connects, 1)
	assert.Equal(t, "meta", machine.connects[0].pskIdentity)
}

func TestEngineConnectTwicePanics(t *testing.T) {
	e, _ := newTestEngine(&scriptedMachine{})
	e.Connect(&ClientContext{}, nil, "", "", nil)

	assert.Panics(t, func() { e.Connect(&ClientContext{}, nil, "", "", nil) })
}

func TestEngineSocketDataLoopsUntilWaitForData(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{DeliverAppData{Data: []byte("a")}},
		{DeliverAppData{Data: []byte("b")}},
		{WaitForData{}},
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	e.InputQueue().Append([]byte("records"))
	e.NewTransportData()

	assert.Equal(t, 3, machine.socketDatas)
	assert.Equal(t, []string{"deliver", "deliver", "waitForData"}, v.order)
}

func TestEngineQueuesReentrantAppWrite(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{ReportHandshakeSuccess{}, WaitForData{}},
		{WriteToSocket{Data: []byte("queued")}},
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	// The success report triggers an application write from inside the
	// dispatched batch, as a handshake callback would.
	reentered := false
	v.successHook = func() {
		reentered = true
		e.AppWrite(AppWrite{Data: []byte("queued")})
	}

	e.InputQueue().Append([]byte("flight"))
	e.NewTransportData()

	require.True(t, reentered)
	require.Len(t, machine.appWrites, 1)
	assert.Equal(t, []byte("queued"), machine.appWrites[0].Data)
	// The write was dispatched after the in-flight batch, never recursively.
	assert.Equal(t, []string{"success", "waitForData", "write"}, v.order)
}

func TestEngineAppWriteAfterErrorFailsFast(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		errorActions(nil, errPeerClosed),
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	e.InputQueue().Append([]byte("bad"))
	e.NewTransportData()
	require.True(t, e.InErrorState())
	require.Equal(t, []error{error(errPeerClosed)}, v.errs)

	cb := &countingWriteCallback{}
	e.AppWrite(AppWrite{Data: []byte("late"), Callback: cb})

	assert.Empty(t, machine.appWrites, "machine must not see writes in error state")
	require.Len(t, cb.errors, 1)
	assert.ErrorIs(t, cb.errors[0], errAppWriteInErrorState)
}

func TestEngineFailsQueuedWritesOnError(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{DeliverAppData{Data: []byte("a")}},
		errorActions(nil, errPeerClosed),
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	// Queue a write while a batch is in flight; the machine errors before
	// the write is dispatched, so it must fail with the terminal error
	// instead of reaching the machine.
	cb := &countingWriteCallback{}
	v.deliverHook = func() {
		e.AppWrite(AppWrite{Data: []byte("doomed"), Callback: cb})
	}

	e.InputQueue().Append([]byte("bad"))
	e.NewTransportData()

	assert.Empty(t, machine.appWrites)
	require.Len(t, cb.errors, 1)
	assert.ErrorIs(t, cb.errors[0], ErrConnClosed)
}

func TestEngineWriteDispatchedBeforeErrorReport(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{
			WriteToSocket{Data: []byte("close notify")},
			MutateState{Mutate: func(s *State) { s.setPhase(PhaseError) }},
			ReportError{Err: errPeerClosed},
		},
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	// A terminal batch can still carry a final record; it must reach the
	// transport before the owner hears about the failure.
	var writesSeenAtError int
	v.errorHook = func(error) { writesSeenAtError = len(v.writes) }

	e.InputQueue().Append([]byte("alert"))
	e.NewTransportData()

	assert.Equal(t, []string{"write", "mutate", "error"}, v.order)
	assert.Equal(t, 1, writesSeenAtError, "write precedes the error callback")
	assert.Equal(t, [][]byte{[]byte("close notify")}, v.writes)
	assert.True(t, e.InErrorState())
}

func TestEngineMoveToErrorStateDeferredDuringDispatch(t *testing.T) {
	transportErr := errors.New("wire torn") //nolint:err113
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{DeliverAppData{Data: []byte("a")}, WaitForData{}},
	}}
	e, v := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	// A transport failure reported mid-batch must not interleave with the
	// in-flight actions.
	var stillCleanInsideBatch bool
	v.deliverHook = func() {
		e.MoveToErrorState(transportErr)
		stillCleanInsideBatch = !e.InErrorState()
	}

	e.InputQueue().Append([]byte("a"))
	e.NewTransportData()

	assert.True(t, stillCleanInsideBatch, "error transition must be deferred while dispatching")
	assert.True(t, e.InErrorState())
}

func TestEngineActionProcessingVisibleDuringDispatch(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{DeliverAppData{}},
	}}
	e, v := newTestEngine(machine)

	var during bool
	v.deliverHook = func() { during = e.ActionProcessing() }
	e.Connect(&ClientContext{}, nil, "", "", nil)

	assert.True(t, during)
	assert.False(t, e.ActionProcessing())
}

func TestEngineAppCloseReachesMachine(t *testing.T) {
	machine := &scriptedMachine{script: []Actions{
		{}, // connect
		{MutateState{Mutate: func(s *State) { s.setPhase(PhaseClosed) }}},
	}}
	e, _ := newTestEngine(machine)
	e.Connect(&ClientContext{}, nil, "", "", nil)

	e.AppClose()

	assert.Equal(t, 1, machine.appCloses)
	assert.Equal(t, PhaseClosed, e.State().Phase())
}

type countingWriteCallback struct {
	successes int
	errors    []error
}

func (c *countingWriteCallback) OnWriteSuccess() { c.successes++ }

func (c *countingWriteCallback) OnWriteError(_ int, err error) {
	c.errors = append(c.errors, err)
}
