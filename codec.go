// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import "crypto/x509"

// RecordType classifies one decoded record.
type RecordType uint8

const (
	RecordTypeHandshake RecordType = 1 + iota
	RecordTypeAppData
	RecordTypeAlert
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeHandshake:
		return "Handshake"
	case RecordTypeAppData:
		return "AppData"
	case RecordTypeAlert:
		return "Alert"
	default:
		return "Unknown"
	}
}

// Record is one framed and, where applicable, decrypted protocol record.
type Record struct {
	Type    RecordType
	Payload []byte
}

// Extension is an opaque protocol extension payload, produced by extension
// hooks and carried through to the codec untouched.
type Extension struct {
	Type uint16
	Data []byte
}

// Codec is the record-protection collaborator: framing, encryption,
// decryption and the key schedule live behind it. The state machines only
// sequence its calls; they never see key material.
//
// A codec instance is stateful and bound to one connection.
type Codec interface {
	// ReadRecord parses one complete record from the head of buf, returning
	// the number of bytes consumed. A (nil, 0, nil) return means buf does
	// not yet hold a complete record.
	ReadRecord(buf []byte) (rec *Record, consumed int, err error)

	// EncryptAppData protects application bytes with the current send keys
	// (early-data keys until the handshake completes on a 0-RTT client).
	EncryptAppData(data []byte) ([]byte, error)

	// EncodeCloseNotify produces the record announcing a graceful close.
	EncodeCloseNotify() ([]byte, error)

	// ExporterSecret returns the established exporter secret, nil before
	// the handshake completes.
	ExporterSecret() []byte

	// EarlyExporterSecret returns the early exporter secret, nil when no
	// early-data phase exists.
	EarlyExporterSecret() []byte
}

// ClientHelloParams is what the client state machine asks the codec to put
// on the wire.
type ClientHelloParams struct {
	SNI         string
	PSKIdentity string
	ALPN        []string
	EarlyData   bool
	Extensions  []Extension
}

// ServerFlight is the codec's summary of the server's first flight.
type ServerFlight struct {
	ALPN              string
	PeerCert          *x509.Certificate
	EarlyDataAccepted bool
	Extensions        []Extension
}

// ClientFlight is the codec's summary of a received client hello.
type ClientFlight struct {
	SNI              string
	PSKIdentity      string
	ALPNOffered      []string
	EarlyDataOffered bool
	Extensions       []Extension
}

// ServerFlightParams is what the server state machine asks the codec to put
// on the wire after negotiation decisions are made.
type ServerFlightParams struct {
	ALPN              string
	EarlyDataAccepted bool
	Extensions        []Extension
}

// ClientCodec is the client-side codec contract.
type ClientCodec interface {
	Codec

	EncodeClientHello(p ClientHelloParams) ([]byte, error)

	// ProcessServerFlight consumes the server's first flight and installs
	// the negotiated keys.
	ProcessServerFlight(payload []byte) (*ServerFlight, error)

	// EncodeFinished produces the client's final handshake record.
	EncodeFinished() ([]byte, error)
}

// ServerCodec is the server-side codec contract.
type ServerCodec interface {
	Codec

	// ProcessClientHello consumes a client hello. It returns
	// ErrVersionFallback (possibly wrapped) when the hello belongs to a
	// legacy protocol version this stack does not speak.
	ProcessClientHello(payload []byte) (*ClientFlight, error)

	EncodeServerFlight(p ServerFlightParams) ([]byte, error)

	// VerifyFinished checks the client's final handshake record and
	// installs the remaining receive keys.
	VerifyFinished(payload []byte) error

	// EncodeNewSessionTicket produces a post-handshake ticket record
	// carrying an opaque application token.
	EncodeNewSessionTicket(appToken []byte) ([]byte, error)
}
