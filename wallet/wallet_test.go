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

package wallet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/cert"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
)

func testConfig(t *testing.T) Configuration {
	t.Helper()
	config := Configuration{
		Config:   DefaultConfig(),
		HolderID: "https://wallet.example.com",
		JARSigningAlgorithms: []jwa.SignatureAlgorithm{
			jwa.ES256, jwa.PS256,
		},
		EncryptionAlgorithms: []jwa.KeyEncryptionAlgorithm{
			jwa.ECDH_ES, jwa.RSA_OAEP_256,
		},
		EncryptionMethods: []jwa.ContentEncryptionAlgorithm{
			jwa.A128CBC_HS256, jwa.A256GCM,
		},
		VPFormats: oauth.VPFormats{
			"jwt_vp": {"alg_values_supported": {"ES256"}},
			"ldp_vp": {"proof_type_values_supported": {"JsonWebSignature2020"}},
		},
		PreRegisteredClients: map[string]string{
			"hospital": "Extra Careful Hospital",
		},
		TransactionDataTypes: testTransactionDataTypes(t),
	}
	config.SigningKey = testSigningKey(t)
	// tests run against httptest servers
	config.StrictMode = false
	return config
}

func testTransactionDataTypes(t *testing.T) []SupportedTransactionDataType {
	t.Helper()
	qes, err := NewSupportedTransactionDataType("qes_authorization", []string{"sha-256"})
	require.NoError(t, err)
	return []SupportedTransactionDataType{qes}
}

func testSigningKey(t *testing.T) jwk.Key {
	t.Helper()
	rawKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(rawKey)
	require.NoError(t, err)
	require.NoError(t, jwk.AssignKeyID(key))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.ES256))
	return key
}

func signTestJWT(t *testing.T, key jwk.Key, claims map[string]interface{}, headers map[string]interface{}) string {
	t.Helper()
	token, err := crypto.SignJWT(key, claims, headers)
	require.NoError(t, err)
	return token
}

// testCertificate creates a self-signed certificate for the given DNS name.
// It returns the certificate, its signing key, and the base64 DER encoding for use in an x5c header.
func testCertificate(t *testing.T, dnsName string) (*x509.Certificate, jwk.Key, string) {
	t.Helper()
	rawKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &rawKey.PublicKey, rawKey)
	require.NoError(t, err)
	certificate, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	key, err := jwk.FromRaw(rawKey)
	require.NoError(t, err)
	require.NoError(t, jwk.AssignKeyID(key))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.ES256))
	return certificate, key, base64.StdEncoding.EncodeToString(der)
}

// certChainHeader builds the x5c protected header value.
func certChainHeader(t *testing.T, base64DER ...string) *cert.Chain {
	t.Helper()
	chain := &cert.Chain{}
	for _, encoded := range base64DER {
		require.NoError(t, chain.AddString(encoded))
	}
	return chain
}
