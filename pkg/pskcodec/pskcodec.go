// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

// Package pskcodec is a reference record-protection codec built on a
// pre-shared key: an HKDF key schedule, ChaCha20-Poly1305 protected
// application records and an HMAC finished check. It implements the codec
// contracts the engine's state machines sequence, including 0-RTT early
// data and the version byte that drives legacy fallback.
//
// It exists for tests, examples and closed deployments where both sides
// share a key out of band; anything facing the open internet should supply
// its own codec.
package pskcodec

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"

	"github.com/zhshw/fizz"
)

// CurrentVersion is the hello version this codec speaks. Hellos below
// MinVersion trigger fizz.ErrVersionFallback on the server.
const CurrentVersion uint8 = 2

const (
	recordHeaderSize = 3
	randomSize       = 32
	keySize          = chacha20poly1305.KeySize
)

var (
	errNoPSK          = errors.New("pskcodec: no pre-shared key configured")          //nolint:err113
	errNoSendKeys     = errors.New("pskcodec: no send keys are established")          //nolint:err113
	errNoRecvKeys     = errors.New("pskcodec: no receive keys for this record")       //nolint:err113
	errRecordTooLarge = errors.New("pskcodec: record exceeds the 64 KiB frame limit") //nolint:err113
	errBadFinished    = errors.New("pskcodec: finished verification failed")          //nolint:err113
	errUnknownPSK     = errors.New("pskcodec: unknown psk identity")                  //nolint:err113
)

// Config configures one side of the codec.
type Config struct {
	// PSK is the client's pre-shared key. Required for NewClientCodec.
	PSK []byte

	// PSKLookup resolves a client-offered identity to its key. Required
	// for NewServerCodec.
	PSKLookup func(identity string) ([]byte, error)

	// Certificate, if set, is sent to the client in the server flight.
	Certificate *x509.Certificate

	// Version overrides the hello version the client emits. Zero means
	// CurrentVersion.
	Version uint8

	// MinVersion is the lowest hello version the server accepts before
	// signalling fallback. Zero means CurrentVersion.
	MinVersion uint8
}

// halfConn protects one direction of traffic.
type halfConn struct {
	aead cipher.AEAD
	seq  uint64
}

func newHalfConn(key []byte) (*halfConn, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &halfConn{aead: aead}, nil
}

func (h *halfConn) nonce() []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(n[4:], h.seq)
	h.seq++
	return n
}

func (h *halfConn) seal(plaintext []byte) []byte {
	return h.aead.Seal(nil, h.nonce(), plaintext, nil)
}

func (h *halfConn) open(ciphertext []byte) ([]byte, error) {
	plaintext, err := h.aead.Open(nil, h.nonce(), ciphertext, nil)
	if err != nil {
		return nil, &fizz.CryptoError{Err: err}
	}
	return plaintext, nil
}

func hkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(label)) })
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(context) })
	info, err := b.Bytes()
	if err != nil {
		panic(err) // label/context length bugs only
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, secret, info), out); err != nil {
		panic(err)
	}
	return out
}

// masterKeys is the post-handshake schedule, derived by both roles from the
// transcript hash through the server flight.
type masterKeys struct {
	send, recv  *halfConn
	exporter    []byte
	finishedMAC []byte
}

func deriveMasterKeys(psk, clientRandom, serverRandom, flightHash []byte, isClient bool) (*masterKeys, error) {
	salt := append(append([]byte(nil), clientRandom...), serverRandom...)
	master := hkdf.Extract(sha256.New, psk, salt)

	clientKey := hkdfExpandLabel(master, "c ap traffic", flightHash, keySize)
	serverKey := hkdfExpandLabel(master, "s ap traffic", flightHash, keySize)
	sendKey, recvKey := clientKey, serverKey
	if !isClient {
		sendKey, recvKey = serverKey, clientKey
	}

	keys := &masterKeys{exporter: hkdfExpandLabel(master, "exp master", flightHash, keySize)}
	var err error
	if keys.send, err = newHalfConn(sendKey); err != nil {
		return nil, err
	}
	if keys.recv, err = newHalfConn(recvKey); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, hkdfExpandLabel(master, "finished", flightHash, keySize))
	mac.Write(flightHash)
	keys.finishedMAC = mac.Sum(nil)
	return keys, nil
}

func addExtensions(b *cryptobyte.Builder, exts []fizz.Extension) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ext := range exts {
			b.AddUint16(ext.Type)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(ext.Data) })
		}
	})
}

func readExtensions(s *cryptobyte.String) ([]fizz.Extension, error) {
	var block cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&block) {
		return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: malformed extension block")} //nolint:err113
	}
	var exts []fizz.Extension
	for !block.Empty() {
		var ext fizz.Extension
		var data cryptobyte.String
		if !block.ReadUint16(&ext.Type) || !block.ReadUint16LengthPrefixed(&data) {
			return nil, &fizz.ProtocolError{Err: errors.New("pskcodec: malformed extension")} //nolint:err113
		}
		ext.Data = append([]byte(nil), data...)
		exts = append(exts, ext)
	}
	return exts, nil
}

func encodeRecord(t fizz.RecordType, payload []byte) ([]byte, error) {
	if len(payload) > 0xffff {
		return nil, errRecordTooLarge
	}
	out := make([]byte, recordHeaderSize+len(payload))
	out[0] = byte(t)
	binary.BigEndian.PutUint16(out[1:3], uint16(len(payload)))
	copy(out[recordHeaderSize:], payload)
	return out, nil
}

// parseRecord returns (0, nil, 0) when buf holds no complete record yet.
func parseRecord(buf []byte) (t fizz.RecordType, payload []byte, consumed int) {
	if len(buf) < recordHeaderSize {
		return 0, nil, 0
	}
	n := int(binary.BigEndian.Uint16(buf[1:3]))
	total := recordHeaderSize + n
	if len(buf) < total {
		return 0, nil, 0
	}
	payload = append([]byte(nil), buf[recordHeaderSize:total]...)
	return fizz.RecordType(buf[0]), payload, total
}
