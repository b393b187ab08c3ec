// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// WriteFlags qualify a transport write. They are carried through the engine
// untouched and interpreted by the transport.
type WriteFlags uint8

const (
	// WriteFlagNone is the default.
	WriteFlagNone WriteFlags = 0
	// WriteFlagCork hints that more data follows shortly and small writes
	// may be batched.
	WriteFlagCork WriteFlags = 1 << iota
	// WriteFlagEOR marks the end of an application record.
	WriteFlagEOR
)

// WriteCallback receives the completion of one transport or application
// write. Either method is invoked at most once per write.
type WriteCallback interface {
	OnWriteSuccess()
	OnWriteError(bytesWritten int, err error)
}

// ReadCallback is the connection owner's consumer of decrypted application
// data. Data delivered before a callback is installed is buffered by the
// connection and flushed on SetReadCallback.
type ReadCallback interface {
	OnDataAvailable(data []byte)
	// OnReadError terminates the stream; io.EOF-like conditions arrive
	// through the same path wrapped as a TransportError.
	OnReadError(err error)
}

// TransportReadHandler receives events from a Transport. It is implemented
// by the connection adapter; a Transport must invoke it from the single
// scheduling context driving the connection.
type TransportReadHandler interface {
	HandleDataAvailable(data []byte)
	HandleTransportError(err error)
}

// Transport is the asynchronous byte-stream collaborator a connection is
// built on. Implementations deliver read events through the handler passed
// to StartReads and confirm every write through its callback.
type Transport interface {
	// StartReads installs the read handler and begins delivering read
	// events. Calling it again with the same handler is a no-op.
	StartReads(h TransportReadHandler)

	// Write queues buf for transmission, preserving order across calls.
	// cb may be nil.
	Write(cb WriteCallback, buf []byte, flags WriteFlags)

	Close()
	CloseWithReset()
	CloseNow()

	Good() bool
	Readable() bool
	Connecting() bool
	Error() bool

	// IsDetachable reports whether the transport can be moved to another
	// scheduling context right now.
	IsDetachable() bool

	// Executor returns the scheduling handle currently driving this
	// transport, or nil when it has none.
	Executor() Executor

	// AttachExecutor rebinds the transport to another scheduling context.
	AttachExecutor(ex Executor)
}
