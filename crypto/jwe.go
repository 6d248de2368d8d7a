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
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// EncryptJWE encrypts the payload as a compact JWE, wrapping the content encryption key with the given
// key-management algorithm and the recipient's public key.
func EncryptJWE(payload []byte, alg jwa.KeyEncryptionAlgorithm, enc jwa.ContentEncryptionAlgorithm, recipientKey jwk.Key) (string, error) {
	encrypted, err := jwe.Encrypt(payload,
		jwe.WithKey(alg, recipientKey),
		jwe.WithContentEncryption(enc),
	)
	if err != nil {
		return "", err
	}
	return string(encrypted), nil
}

// DecryptJWE decrypts a compact JWE with the given private key.
// The key-management algorithm is taken from the JWE protected header.
func DecryptJWE(message string, privateKey jwk.Key) ([]byte, error) {
	parsed, err := jwe.Parse([]byte(message))
	if err != nil {
		return nil, err
	}
	alg := parsed.ProtectedHeaders().Algorithm()
	return jwe.Decrypt([]byte(message), jwe.WithKey(alg, privateKey))
}
