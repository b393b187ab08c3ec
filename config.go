// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"crypto/x509"

	"github.com/pion/logging"
)

// CertificateVerifier validates the peer's certificate. Trust policy is the
// caller's concern; the state machine only sequences the call.
type CertificateVerifier interface {
	Verify(cert *x509.Certificate) error
}

// ClientExtensions contributes opaque extensions to the client hello.
type ClientExtensions interface {
	ClientHelloExtensions() []Extension
}

// ServerExtensions contributes opaque extensions to the server flight, given
// the extensions the client offered.
type ServerExtensions interface {
	ServerFlightExtensions(clientExts []Extension) []Extension
}

// ClientContext bundles the negotiation policy and collaborators for client
// connections. One context may serve many connections; NewCodec is invoked
// once per connection.
type ClientContext struct {
	// NewCodec produces the record-protection collaborator for one
	// connection. Required.
	NewCodec func() ClientCodec

	// SupportedProtocols is the ALPN preference list offered to the server.
	SupportedProtocols []string

	// Certificate is the local certificate handle, if any.
	Certificate *x509.Certificate

	// EnableEarlyData permits 0-RTT writes when a PSK identity is offered.
	EnableEarlyData bool

	// LoggerFactory defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

// ServerContext bundles the negotiation policy and collaborators for server
// connections.
type ServerContext struct {
	// NewCodec produces the record-protection collaborator for one
	// connection. Required.
	NewCodec func() ServerCodec

	// SupportedProtocols is the ALPN list the server is willing to select
	// from, in preference order.
	SupportedProtocols []string

	// Certificate is the local certificate handle, if any.
	Certificate *x509.Certificate

	// AllowEarlyData accepts 0-RTT data from clients that offer it.
	AllowEarlyData bool

	// LoggerFactory defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

func loggerFactoryOrDefault(f logging.LoggerFactory) logging.LoggerFactory {
	if f != nil {
		return f
	}
	return logging.NewDefaultLoggerFactory()
}
