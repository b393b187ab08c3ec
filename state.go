// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import "crypto/x509"

// Phase is the handshake phase recorded in the session state.
type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseWaitFlight1
	PhaseWaitFlight2
	PhaseEstablished
	PhaseClosing
	PhaseClosed
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "Uninitialized"
	case PhaseWaitFlight1:
		return "WaitFlight1"
	case PhaseWaitFlight2:
		return "WaitFlight2"
	case PhaseEstablished:
		return "Established"
	case PhaseClosing:
		return "Closing"
	case PhaseClosed:
		return "Closed"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// State holds the negotiated session parameters. It is owned exclusively by
// the engine and mutated only through dispatched MutateState actions, never
// directly by adapter or dispatcher code.
type State struct {
	phase             Phase
	alpn              string
	peerCert          *x509.Certificate
	selfCert          *x509.Certificate
	earlyDataAccepted *bool

	executor Executor

	// collaborators bound at connect/accept; the codec owns all key
	// material, including the exporter secrets
	codec      Codec
	verifier   CertificateVerifier
	clientCtx  *ClientContext
	serverCtx  *ServerContext
	clientExts ClientExtensions
	serverExts ServerExtensions

	earlyWritable bool // client offered early data on this connection
}

// Phase returns the current handshake phase.
func (s *State) Phase() Phase { return s.phase }

// ALPN returns the negotiated application protocol, or "" before
// negotiation.
func (s *State) ALPN() string { return s.alpn }

// PeerCert returns the peer certificate, or nil when none was presented.
func (s *State) PeerCert() *x509.Certificate { return s.peerCert }

// SelfCert returns the local certificate, or nil when none is configured.
func (s *State) SelfCert() *x509.Certificate { return s.selfCert }

// EarlyDataAccepted reports whether the peer accepted early data. ok is
// false until that has been decided.
func (s *State) EarlyDataAccepted() (accepted, ok bool) {
	if s.earlyDataAccepted == nil {
		return false, false
	}
	return *s.earlyDataAccepted, true
}

// Executor returns the scheduling handle bound to this session.
func (s *State) Executor() Executor { return s.executor }

// Codec returns the bound codec collaborator, nil before connect/accept.
func (s *State) Codec() Codec { return s.codec }

// setPhase enforces that Error is absorbing: no mutation moves a session out
// of the Error phase.
func (s *State) setPhase(p Phase) {
	if s.phase == PhaseError {
		return
	}
	s.phase = p
}

// setExecutor rebinds the scheduling handle; used by AttachExecutor.
func (s *State) setExecutor(ex Executor) {
	s.executor = ex
}
