// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package pskcodec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"

	"github.com/zhshw/fizz"
)

// ServerCodec is the responder half of the pre-shared-key codec.
type ServerCodec struct {
	cfg        Config
	transcript hash.Hash

	psk          []byte
	clientRandom []byte

	earlyRecv     *halfConn
	earlyExporter []byte

	send *halfConn
	recv *halfConn
	keys *masterKeys

	exporter []byte
}

var _ fizz.ServerCodec = (*ServerCodec)(nil)

// NewServerCodec builds a codec for one connection. cfg.PSKLookup must be
// set.
func NewServerCodec(cfg Config) *ServerCodec {
	if cfg.MinVersion == 0 {
		cfg.MinVersion = CurrentVersion
	}
	return &ServerCodec{cfg: cfg, transcript: sha256.New()}
}

func (c *ServerCodec) ProcessClientHello(payload []byte) (*fizz.ClientFlight, error) {
	s := cryptobyte.String(payload)

	var version uint8
	if !s.ReadUint8(&version) {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: empty client hello")} //nolint:err113
	}
	if version < c.cfg.MinVersion {
		return nil, fmt.Errorf("pskcodec: hello version %d below minimum %d: %w",
			version, c.cfg.MinVersion, fizz.ErrVersionFallback)
	}

	var clientRandom []byte
	var identity, sni, alpnBlock cryptobyte.String
	var earlyData uint8
	if !s.ReadBytes(&clientRandom, randomSize) ||
		!s.ReadUint8LengthPrefixed(&identity) ||
		!s.ReadUint8LengthPrefixed(&sni) ||
		!s.ReadUint16LengthPrefixed(&alpnBlock) ||
		!s.ReadUint8(&earlyData) {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: malformed client hello")} //nolint:err113
	}
	var alpn []string
	for !alpnBlock.Empty() {
		var proto cryptobyte.String
		if !alpnBlock.ReadUint8LengthPrefixed(&proto) {
			return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: malformed alpn list")} //nolint:err113
		}
		alpn = append(alpn, string(proto))
	}
	exts, err := readExtensions(&s)
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: trailing bytes in client hello")} //nolint:err113
	}

	if c.cfg.PSKLookup == nil {
		return nil, errUnknownPSK
	}
	psk, err := c.cfg.PSKLookup(string(identity))
	if err != nil || len(psk) == 0 {
		return nil, &fizz.CryptoError{Err: errUnknownPSK}
	}
	c.psk = psk
	c.clientRandom = clientRandom
	c.transcript.Write(payload)

	if earlyData == 1 {
		earlySecret := hkdf.Extract(sha256.New, psk, clientRandom)
		helloHash := c.transcript.Sum(nil)
		c.earlyRecv, err = newHalfConn(hkdfExpandLabel(earlySecret, "e traffic", helloHash, keySize))
		if err != nil {
			return nil, err
		}
		c.earlyExporter = hkdfExpandLabel(earlySecret, "e exp master", helloHash, keySize)
	}

	return &fizz.ClientFlight{
		SNI:              string(sni),
		PSKIdentity:      string(identity),
		ALPNOffered:      alpn,
		EarlyDataOffered: earlyData == 1,
		Extensions:       exts,
	}, nil
}

func (c *ServerCodec) EncodeServerFlight(p fizz.ServerFlightParams) ([]byte, error) {
	serverRandom := make([]byte, randomSize)
	if _, err := rand.Read(serverRandom); err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddBytes(serverRandom)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(p.ALPN)) })
	if p.EarlyDataAccepted {
		b.AddUint8(1)
	} else {
		b.AddUint8(0)
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		if c.cfg.Certificate != nil {
			b.AddBytes(c.cfg.Certificate.Raw)
		}
	})
	addExtensions(&b, p.Extensions)

	payload, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	c.transcript.Write(payload)

	c.keys, err = deriveMasterKeys(c.psk, c.clientRandom, serverRandom, c.transcript.Sum(nil), false)
	if err != nil {
		return nil, err
	}
	c.send = c.keys.send

	if !p.EarlyDataAccepted {
		// Rejected early records must not decrypt into the application.
		c.earlyRecv = nil
	}

	return encodeRecord(fizz.RecordTypeHandshake, payload)
}

func (c *ServerCodec) VerifyFinished(payload []byte) error {
	if c.keys == nil {
		return errNoRecvKeys
	}
	if !hmac.Equal(payload, c.keys.finishedMAC) {
		return &fizz.CryptoError{Err: errBadFinished}
	}
	c.recv = c.keys.recv
	c.exporter = c.keys.exporter
	c.earlyRecv = nil
	return nil
}

func (c *ServerCodec) EncodeNewSessionTicket(appToken []byte) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(appToken) })
	payload, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return encodeRecord(fizz.RecordTypeHandshake, payload)
}

func (c *ServerCodec) ReadRecord(buf []byte) (*fizz.Record, int, error) {
	t, payload, consumed := parseRecord(buf)
	if consumed == 0 {
		return nil, 0, nil
	}
	switch t {
	case fizz.RecordTypeHandshake, fizz.RecordTypeAlert:
		return &fizz.Record{Type: t, Payload: payload}, consumed, nil
	case fizz.RecordTypeAppData:
		hc := c.recv
		if hc == nil {
			hc = c.earlyRecv
		}
		if hc == nil {
			return nil, 0, &fizz.ProtocolError{Err: errNoRecvKeys}
		}
		plaintext, err := hc.open(payload)
		if err != nil {
			return nil, 0, err
		}
		return &fizz.Record{Type: t, Payload: plaintext}, consumed, nil
	default:
		return nil, 0, &fizz.ProtocolError{Err: errors.New("pskcodec: unknown record type")} //nolint:err113
	}
}

func (c *ServerCodec) EncryptAppData(data []byte) ([]byte, error) {
	if c.send == nil {
		return nil, errNoSendKeys
	}
	return encodeRecord(fizz.RecordTypeAppData, c.send.seal(data))
}

func (c *ServerCodec) EncodeCloseNotify() ([]byte, error) {
	return encodeRecord(fizz.RecordTypeAlert, []byte{0})
}

func (c *ServerCodec) ExporterSecret() []byte { return c.exporter }

func (c *ServerCodec) EarlyExporterSecret() []byte { return c.earlyExporter }
