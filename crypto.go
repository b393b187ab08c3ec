// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"
)

// Labels the key schedule uses internally; exporting under them would let
// callers re-derive traffic material.
var invalidKeyingLabels = map[string]bool{
	"client finished": true,
	"server finished": true,
	"master secret":   true,
	"key expansion":   true,
}

var (
	errEkmLabelTooBig   = errors.New("exporter label longer than 255 bytes")   //nolint:err113
	errEkmContextTooBig = errors.New("exporter context longer than 255 bytes") //nolint:err113
	errEkmLengthInvalid = errors.New("exporter length outside 0..65535")       //nolint:err113
)

// hkdfExpandLabel implements the HKDF-Expand-Label construction: the length,
// label and context are bound into the info input of HKDF-Expand.
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) ([]byte, error) {
	if len(label) > 255 {
		return nil, errEkmLabelTooBig
	}
	if len(context) > 255 {
		return nil, errEkmContextTooBig
	}
	if length < 0 || length > 0xffff {
		return nil, errEkmLengthInvalid
	}

	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	info, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, secret, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// deriveExportedMaterial derives keying material for external protocols from
// an exporter secret: first a per-label secret, then an expansion bound to
// the hashed caller context.
func deriveExportedMaterial(secret []byte, label string, context []byte, length int) ([]byte, error) {
	if invalidKeyingLabels[label] {
		return nil, errReservedExportKeyingMaterial
	}

	labelSecret, err := hkdfExpandLabel(secret, label, nil, sha256.Size)
	if err != nil {
		return nil, err
	}
	ctxHash := sha256.Sum256(context)
	return hkdfExpandLabel(labelSecret, "exporter", ctxHash[:], length)
}
