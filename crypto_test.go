// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveExportedMaterial(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	out, err := deriveExportedMaterial(secret, "test label", []byte("ctx"), 32)
	require.NoError(t, err)
	assert.Len(t, out, 32)

	again, err := deriveExportedMaterial(secret, "test label", []byte("ctx"), 32)
	require.NoError(t, err)
	assert.Equal(t, out, again, "derivation is deterministic")

	otherLabel, err := deriveExportedMaterial(secret, "other label", []byte("ctx"), 32)
	require.NoError(t, err)
	assert.NotEqual(t, out, otherLabel)

	otherCtx, err := deriveExportedMaterial(secret, "test label", []byte("ctx2"), 32)
	require.NoError(t, err)
	assert.NotEqual(t, out, otherCtx)
}

func TestDeriveExportedMaterialReservedLabels(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	for _, label := range []string{"client finished", "server finished", "master secret", "key expansion"} {
		_, err := deriveExportedMaterial(secret, label, nil, 32)
		assert.ErrorIs(t, err, errReservedExportKeyingMaterial, label)
	}
}

func TestHkdfExpandLabelLimits(t *testing.T) {
	secret := []byte("secret")

	long := make([]byte, 256)
	_, err := hkdfExpandLabel(secret, string(long), nil, 16)
	assert.ErrorIs(t, err, errEkmLabelTooBig)

	_, err = hkdfExpandLabel(secret, "ok", long, 16)
	assert.ErrorIs(t, err, errEkmContextTooBig)

	_, err = hkdfExpandLabel(secret, "ok", nil, -1)
	assert.ErrorIs(t, err, errEkmLengthInvalid)

	_, err = hkdfExpandLabel(secret, "ok", nil, 0x10000)
	assert.ErrorIs(t, err, errEkmLengthInvalid)

	out, err := hkdfExpandLabel(secret, "ok", nil, 0xffff)
	require.NoError(t, err)
	assert.Len(t, out, 0xffff)
}
