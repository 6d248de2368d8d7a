/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptJWE(t *testing.T) {
	t.Run("ECDH-ES round-trip", func(t *testing.T) {
		privateKey, err := GenerateEphemeralEncryptionKey()
		require.NoError(t, err)
		publicKey, err := privateKey.PublicKey()
		require.NoError(t, err)

		message, err := EncryptJWE([]byte("the payload"), jwa.ECDH_ES, jwa.A128CBC_HS256, publicKey)
		require.NoError(t, err)

		payload, err := DecryptJWE(message, privateKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("the payload"), payload)
	})
	t.Run("RSA-OAEP-256 round-trip", func(t *testing.T) {
		rawKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		privateKey, err := jwk.FromRaw(rawKey)
		require.NoError(t, err)
		publicKey, err := privateKey.PublicKey()
		require.NoError(t, err)

		message, err := EncryptJWE([]byte("the payload"), jwa.RSA_OAEP_256, jwa.A256GCM, publicKey)
		require.NoError(t, err)

		payload, err := DecryptJWE(message, privateKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("the payload"), payload)
	})
	t.Run("decrypt with wrong key", func(t *testing.T) {
		privateKey, err := GenerateEphemeralEncryptionKey()
		require.NoError(t, err)
		publicKey, err := privateKey.PublicKey()
		require.NoError(t, err)
		otherKey, err := GenerateEphemeralEncryptionKey()
		require.NoError(t, err)

		message, err := EncryptJWE([]byte("the payload"), jwa.ECDH_ES, jwa.A128CBC_HS256, publicKey)
		require.NoError(t, err)

		_, err = DecryptJWE(message, otherKey)
		assert.Error(t, err)
	})
	t.Run("decrypt garbage", func(t *testing.T) {
		privateKey, err := GenerateEphemeralEncryptionKey()
		require.NoError(t, err)

		_, err = DecryptJWE("not a JWE", privateKey)

		assert.Error(t, err)
	})
}

func TestGenerateEphemeralEncryptionKey(t *testing.T) {
	key, err := GenerateEphemeralEncryptionKey()

	require.NoError(t, err)
	assert.NotEmpty(t, key.KeyID())
	assert.Equal(t, jwa.ECDH_ES, key.Algorithm())
	assert.Equal(t, string(jwk.ForEncryption), key.KeyUsage())

	other, err := GenerateEphemeralEncryptionKey()
	require.NoError(t, err)
	assert.NotEqual(t, key.KeyID(), other.KeyID())
}
