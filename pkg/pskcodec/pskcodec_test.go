// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package pskcodec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhshw/fizz"
	"github.com/zhshw/fizz/internal/selfsign"
)

var testPSK = []byte("an example very very secret key.")

func lookup(string) ([]byte, error) { return testPSK, nil }

// runHandshake drives both codec halves through a full exchange and returns
// them keyed for application data.
func runHandshake(t *testing.T, clientCfg, serverCfg Config, hello fizz.ClientHelloParams, flight fizz.ServerFlightParams) (*ClientCodec, *ServerCodec) {
	t.Helper()
	client := NewClientCodec(clientCfg)
	server := NewServerCodec(serverCfg)

	wire, err := client.EncodeClientHello(hello)
	require.NoError(t, err)

	rec, n, err := server.ReadRecord(wire)
	require.NoError(t, err)
	require.Equal(t, len(wire), n)
	require.Equal(t, fizz.RecordTypeHandshake, rec.Type)

	_, err = server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)

	flightWire, err := server.EncodeServerFlight(flight)
	require.NoError(t, err)

	rec, _, err = client.ReadRecord(flightWire)
	require.NoError(t, err)
	_, err = client.ProcessServerFlight(rec.Payload)
	require.NoError(t, err)

	finWire, err := client.EncodeFinished()
	require.NoError(t, err)
	rec, _, err = server.ReadRecord(finWire)
	require.NoError(t, err)
	require.NoError(t, server.VerifyFinished(rec.Payload))

	return client, server
}

func TestHandshakeRoundTrip(t *testing.T) {
	client, server := runHandshake(t,
		Config{PSK: testPSK},
		Config{PSKLookup: lookup},
		fizz.ClientHelloParams{SNI: "fizz.test", ALPN: []string{"h2"}},
		fizz.ServerFlightParams{ALPN: "h2"},
	)

	// Client to server.
	wire, err := client.EncryptAppData([]byte("ping"))
	require.NoError(t, err)
	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)
	assert.Equal(t, fizz.RecordTypeAppData, rec.Type)
	assert.Equal(t, []byte("ping"), rec.Payload)

	// Server to client.
	wire, err = server.EncryptAppData([]byte("pong"))
	require.NoError(t, err)
	rec, _, err = client.ReadRecord(wire)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), rec.Payload)

	assert.Equal(t, client.ExporterSecret(), server.ExporterSecret())
	assert.NotEmpty(t, client.ExporterSecret())
}

func TestHelloRoundTripFields(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{PSKLookup: lookup})

	wire, err := client.EncodeClientHello(fizz.ClientHelloParams{
		SNI:         "www.example.com",
		PSKIdentity: "meta",
		ALPN:        []string{"h2", "http/1.1"},
		EarlyData:   true,
		Extensions:  []fizz.Extension{{Type: 7, Data: []byte{0xde, 0xad}}},
	})
	require.NoError(t, err)

	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)
	hello, err := server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)

	assert.Equal(t, "www.example.com", hello.SNI)
	assert.Equal(t, "meta", hello.PSKIdentity)
	assert.Equal(t, []string{"h2", "http/1.1"}, hello.ALPNOffered)
	assert.True(t, hello.EarlyDataOffered)
	require.Len(t, hello.Extensions, 1)
	assert.Equal(t, uint16(7), hello.Extensions[0].Type)
	assert.Equal(t, []byte{0xde, 0xad}, hello.Extensions[0].Data)
}

func TestServerFlightCarriesCertificate(t *testing.T) {
	cert, _, err := selfsign.GenerateCertificate("pskcodec.test")
	require.NoError(t, err)

	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{PSKLookup: lookup, Certificate: cert})

	wire, err := client.EncodeClientHello(fizz.ClientHelloParams{})
	require.NoError(t, err)
	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)
	_, err = server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)

	flightWire, err := server.EncodeServerFlight(fizz.ServerFlightParams{ALPN: "h2"})
	require.NoError(t, err)
	rec, _, err = client.ReadRecord(flightWire)
	require.NoError(t, err)
	flight, err := client.ProcessServerFlight(rec.Payload)
	require.NoError(t, err)

	require.NotNil(t, flight.PeerCert)
	assert.Equal(t, cert.Raw, flight.PeerCert.Raw)
	assert.Equal(t, "h2", flight.ALPN)
}

func TestEarlyDataKeys(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{PSKLookup: lookup})

	helloWire, err := client.EncodeClientHello(fizz.ClientHelloParams{EarlyData: true})
	require.NoError(t, err)

	// The client can protect data on early keys before any server byte.
	earlyWire, err := client.EncryptAppData([]byte("early"))
	require.NoError(t, err)

	rec, _, err := server.ReadRecord(helloWire)
	require.NoError(t, err)
	_, err = server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)

	rec, _, err = server.ReadRecord(earlyWire)
	require.NoError(t, err)
	assert.Equal(t, []byte("early"), rec.Payload)

	assert.Equal(t, client.EarlyExporterSecret(), server.EarlyExporterSecret())
	assert.NotEmpty(t, client.EarlyExporterSecret())
}

func TestRejectedEarlyDataDoesNotDecrypt(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{PSKLookup: lookup})

	helloWire, err := client.EncodeClientHello(fizz.ClientHelloParams{EarlyData: true})
	require.NoError(t, err)
	earlyWire, err := client.EncryptAppData([]byte("early"))
	require.NoError(t, err)

	rec, _, err := server.ReadRecord(helloWire)
	require.NoError(t, err)
	_, err = server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)
	_, err = server.EncodeServerFlight(fizz.ServerFlightParams{EarlyDataAccepted: false})
	require.NoError(t, err)

	_, _, err = server.ReadRecord(earlyWire)
	assert.Error(t, err)
}

func TestNoEarlyKeysWithoutOffer(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	_, err := client.EncodeClientHello(fizz.ClientHelloParams{})
	require.NoError(t, err)

	_, err = client.EncryptAppData([]byte("too soon"))
	assert.ErrorIs(t, err, errNoSendKeys)
	assert.Nil(t, client.EarlyExporterSecret())
}

func TestVersionFallback(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK, Version: 1})
	server := NewServerCodec(Config{PSKLookup: lookup, MinVersion: 2})

	wire, err := client.EncodeClientHello(fizz.ClientHelloParams{})
	require.NoError(t, err)
	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)

	_, err = server.ProcessClientHello(rec.Payload)
	assert.ErrorIs(t, err, fizz.ErrVersionFallback)
}

func TestBadFinishedRejected(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{PSKLookup: lookup})

	wire, err := client.EncodeClientHello(fizz.ClientHelloParams{})
	require.NoError(t, err)
	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)
	_, err = server.ProcessClientHello(rec.Payload)
	require.NoError(t, err)
	_, err = server.EncodeServerFlight(fizz.ServerFlightParams{})
	require.NoError(t, err)

	err = server.VerifyFinished([]byte("forged"))
	var cryptoErr *fizz.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestUnknownIdentityRejected(t *testing.T) {
	client := NewClientCodec(Config{PSK: testPSK})
	server := NewServerCodec(Config{
		PSKLookup: func(string) ([]byte, error) {
			return nil, errors.New("who") //nolint:err113
		},
	})

	wire, err := client.EncodeClientHello(fizz.ClientHelloParams{PSKIdentity: "stranger"})
	require.NoError(t, err)
	rec, _, err := server.ReadRecord(wire)
	require.NoError(t, err)

	_, err = server.ProcessClientHello(rec.Payload)
	var cryptoErr *fizz.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestTamperedRecordFailsToOpen(t *testing.T) {
	client, server := runHandshake(t,
		Config{PSK: testPSK},
		Config{PSKLookup: lookup},
		fizz.ClientHelloParams{},
		fizz.ServerFlightParams{},
	)

	wire, err := client.EncryptAppData([]byte("ping"))
	require.NoError(t, err)
	wire[len(wire)-1] ^= 0x01

	_, _, err = server.ReadRecord(wire)
	var cryptoErr *fizz.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestPartialRecordIncomplete(t *testing.T) {
	server := NewServerCodec(Config{PSKLookup: lookup})

	rec, n, err := server.ReadRecord([]byte{byte(fizz.RecordTypeHandshake), 0x00})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, n)
}

func TestSessionTicketEncoding(t *testing.T) {
	server := NewServerCodec(Config{PSKLookup: lookup})
	client := NewClientCodec(Config{PSK: testPSK})

	wire, err := server.EncodeNewSessionTicket([]byte("app token"))
	require.NoError(t, err)

	rec, n, err := client.ReadRecord(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, fizz.RecordTypeHandshake, rec.Type)
}

func TestMissingClientPSK(t *testing.T) {
	client := NewClientCodec(Config{})
	_, err := client.EncodeClientHello(fizz.ClientHelloParams{})
	assert.ErrorIs(t, err, errNoPSK)
}
