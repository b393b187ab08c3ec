// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package pskcodec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"hash"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"

	"github.com/zhshw/fizz"
)

// ClientCodec is the initiator half of the pre-shared-key codec.
type ClientCodec struct {
	cfg        Config
	transcript hash.Hash

	clientRandom  []byte
	earlyExporter []byte
	exporter      []byte
	finishedMAC   []byte

	send *halfConn
	recv *halfConn
}

var _ fizz.ClientCodec = (*ClientCodec)(nil)

// NewClientCodec builds a codec for one connection. cfg.PSK must be set.
func NewClientCodec(cfg Config) *ClientCodec {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	return &ClientCodec{cfg: cfg, transcript: sha256.New()}
}

func (c *ClientCodec) EncodeClientHello(p fizz.ClientHelloParams) ([]byte, error) {
	if len(c.cfg.PSK) == 0 {
		return nil, errNoPSK
	}

	c.clientRandom = make([]byte, randomSize)
	if _, err := rand.Read(c.clientRandom); err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddUint8(c.cfg.Version)
	b.AddBytes(c.clientRandom)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(p.PSKIdentity)) })
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(p.SNI)) })
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, proto := range p.ALPN {
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(proto)) })
		}
	})
	if p.EarlyData {
		b.AddUint8(1)
	} else {
		b.AddUint8(0)
	}
	addExtensions(&b, p.Extensions)

	payload, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	c.transcript.Write(payload)

	if p.EarlyData {
		earlySecret := hkdf.Extract(sha256.New, c.cfg.PSK, c.clientRandom)
		helloHash := c.transcript.Sum(nil)
		c.send, err = newHalfConn(hkdfExpandLabel(earlySecret, "e traffic", helloHash, keySize))
		if err != nil {
			return nil, err
		}
		c.earlyExporter = hkdfExpandLabel(earlySecret, "e exp master", helloHash, keySize)
	}

	return encodeRecord(fizz.RecordTypeHandshake, payload)
}

func (c *ClientCodec) ProcessServerFlight(payload []byte) (*fizz.ServerFlight, error) {
	s := cryptobyte.String(payload)

	var serverRandom []byte
	var alpn, certDER cryptobyte.String
	var accepted uint8
	if !s.ReadBytes(&serverRandom, randomSize) ||
		!s.ReadUint8LengthPrefixed(&alpn) ||
		!s.ReadUint8(&accepted) ||
		!s.ReadUint16LengthPrefixed(&certDER) {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: malformed server flight")} //nolint:err113
	}
	exts, err := readExtensions(&s)
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: trailing bytes in server flight")} //nolint:err113
	}

	flight := &fizz.ServerFlight{
		ALPN:              string(alpn),
		EarlyDataAccepted: accepted == 1,
		Extensions:        exts,
	}
	if len(certDER) > 0 {
		cert, err := x509.ParseCertificate(certDER)
		if err != nil {
			return nil, &fizz.ProtocolError{Err: err}
		}
		flight.PeerCert = cert
	}

	c.transcript.Write(payload)
	keys, err := deriveMasterKeys(c.cfg.PSK, c.clientRandom, serverRandom, c.transcript.Sum(nil), true)
	if err != nil {
		return nil, err
	}
	c.send, c.recv = keys.send, keys.recv
	c.exporter = keys.exporter
	c.finishedMAC = keys.finishedMAC
	return flight, nil
}

func (c *ClientCodec) EncodeFinished() ([]byte, error) {
	if c.finishedMAC == nil {
		return nil, errNoSendKeys
	}
	return encodeRecord(fizz.RecordTypeHandshake, c.finishedMAC)
}

func (c *ClientCodec) ReadRecord(buf []byte) (*fizz.Record, int, error) {
	t, payload, consumed := parseRecord(buf)
	if consumed == 0 {
		return nil, 0, nil
	}
	switch t {
	case fizz.RecordTypeHandshake, fizz.RecordTypeAlert:
		return &fizz.Record{Type: t, Payload: payload}, consumed, nil
	case fizz.RecordTypeAppData:
		if c.recv == nil {
			return nil, 0, &fizz.ProtocolError{Err: errNoRecvKeys}
		}
		plaintext, err := c.recv.open(payload)
		if err != nil {
			return nil, 0, err
		}
		return &fizz.Record{Type: t, Payload: plaintext}, consumed, nil
	default:
		return nil, 0, &fizz.ProtocolError{Err: errors.New("pskcodec: unknown record type")} //nolint:err113
	}
}

func (c *ClientCodec) EncryptAppData(data []byte) ([]byte, error) {
	if c.send == nil {
		return nil, errNoSendKeys
	}
	return encodeRecord(fizz.RecordTypeAppData, c.send.seal(data))
}

func (c *ClientCodec) EncodeCloseNotify() ([]byte, error) {
	return encodeRecord(fizz.RecordTypeAlert, []byte{0})
}

func (c *ClientCodec) ExporterSecret() []byte { return c.exporter }

func (c *ClientCodec) EarlyExporterSecret() []byte { return c.earlyExporter }
