// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Typed errors.
var (
	// ErrConnClosed is delivered to queued application writes when the
	// connection is torn down before they are dispatched.
	ErrConnClosed = &TransportError{Err: errors.New("connection is closed")} //nolint:err113

	// ErrVersionFallback is returned by a ServerCodec when the peer's hello
	// requires handing the connection to a legacy protocol stack. It is a
	// negotiation signal, not a failure: the server state machine turns it
	// into an AttemptVersionFallback action.
	ErrVersionFallback = errors.New("peer requires a legacy protocol version")

	errClosedLocally = errors.New("socket closed locally") //nolint:err113

	errAppWriteInErrorState = &InvalidStateError{Err: errors.New("app write in error state")} //nolint:err113
	//nolint:err113
	errAppWriteDuringHandshake = &InvalidStateError{Err: errors.New("app write while handshake in progress")}
	//nolint:err113
	errTicketBeforeEstablished = &InvalidStateError{Err: errors.New("new session ticket before handshake completion")}
	//nolint:err113
	errNoExporterSecret = &InvalidStateError{Err: errors.New("no exporter secret is established")}
	//nolint:err113
	errNoEarlyExporterSecret = &InvalidStateError{Err: errors.New("no early exporter secret is established")}
	//nolint:err113
	errReservedExportKeyingMaterial = &InvalidStateError{
		Err: errors.New("exported keying material can not use a reserved label"),
	}

	errPeerClosed = &TransportError{Err: errors.New("peer closed the connection")} //nolint:err113
	//nolint:err113
	errUnexpectedAppData = &ProtocolError{Err: errors.New("application data before handshake completion")}
	//nolint:err113
	errUnexpectedHandshakeRecord = &ProtocolError{Err: errors.New("handshake record in established phase")}
	//nolint:err113
	errDataBeforeConnect = &ProtocolError{Err: errors.New("transport data before connect/accept")}
	//nolint:err113
	errNoCommonProtocol = &NegotiationError{Err: errors.New("no application protocol in common")}
)

// ProtocolError indicates a malformed or illegal message for the current
// handshake phase. Terminal for the connection.
type ProtocolError struct {
	Err error
}

// NegotiationError indicates incompatible handshake parameters; the
// connection either falls back or aborts.
type NegotiationError struct {
	Err error
}

// CryptoError wraps a failure reported by the cryptographic collaborator
// (record protection, finished verification, certificate verification).
type CryptoError struct {
	Err error
}

// InvalidStateError indicates that the caller violated a precondition; it
// fails only the offending call unless raised by the state machine itself.
type InvalidStateError struct {
	Err error
}

// TransportError indicates that the underlying byte stream failed or closed
// unexpectedly.
type TransportError struct {
	Err error
}

func (e *ProtocolError) Error() string     { return fmt.Sprintf("protocol violation: %v", e.Err) }
func (e *NegotiationError) Error() string  { return fmt.Sprintf("negotiation failure: %v", e.Err) }
func (e *CryptoError) Error() string       { return fmt.Sprintf("cryptographic failure: %v", e.Err) }
func (e *InvalidStateError) Error() string { return fmt.Sprintf("invalid state: %v", e.Err) }
func (e *TransportError) Error() string    { return fmt.Sprintf("transport failure: %v", e.Err) }

func (e *ProtocolError) Unwrap() error     { return e.Err }
func (e *NegotiationError) Unwrap() error  { return e.Err }
func (e *CryptoError) Unwrap() error       { return e.Err }
func (e *InvalidStateError) Unwrap() error { return e.Err }
func (e *TransportError) Unwrap() error    { return e.Err }

// netError translates an error from an underlying net.Conn into the
// connection error taxonomy.
func netError(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Return io.EOF and context errors as is.
		return err
	}

	var (
		opError *net.OpError
		se      *os.SyscallError
	)
	if errors.As(err, &opError) {
		if errors.As(opError, &se) && se.Timeout() {
			return err
		}
	}

	return &TransportError{Err: err}
}
