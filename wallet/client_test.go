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
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
	"github.com/nuts-foundation/openid4vp/pki"
	"github.com/nuts-foundation/openid4vp/resolver"
)

func TestClientAuthenticator_Authenticate(t *testing.T) {
	ctx := context.Background()

	newAuthenticator := func(t *testing.T, config Configuration) (*ClientAuthenticator, *resolver.MockKeyResolver, *pki.MockValidator) {
		ctrl := gomock.NewController(t)
		keyResolver := resolver.NewMockKeyResolver(ctrl)
		pkiValidator := pki.NewMockValidator(ctrl)
		return NewClientAuthenticator(config, keyResolver, pkiValidator), keyResolver, pkiValidator
	}

	t.Run("pre-registered", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			client, err := authenticator.Authenticate(ctx, "hospital", "")

			require.NoError(t, err)
			assert.Equal(t, PreRegisteredClient{ClientID: "hospital", LegalName: "Extra Careful Hospital"}, client)
		})
		t.Run("unknown client", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			_, err := authenticator.Authenticate(ctx, "pharmacy", "")

			assert.EqualError(t, err, "invalid_client - unknown pre-registered client: pharmacy")
		})
	})
	t.Run("redirect_uri", func(t *testing.T) {
		config := testConfig(t)
		config.ClientIDSchemes = append(config.ClientIDSchemes, string(SchemeRedirectURI))
		authenticator, _, _ := newAuthenticator(t, config)

		client, err := authenticator.Authenticate(ctx, "redirect_uri:https://verifier.example.com/cb", "")

		require.NoError(t, err)
		assert.Equal(t, RedirectURIClient{ClientID: "https://verifier.example.com/cb"}, client)
	})
	t.Run("unsupported scheme", func(t *testing.T) {
		// redirect_uri is not in the default scheme list
		authenticator, _, _ := newAuthenticator(t, testConfig(t))

		_, err := authenticator.Authenticate(ctx, "redirect_uri:https://verifier.example.com/cb", "")

		assert.EqualError(t, err, "invalid_client - client_id scheme redirect_uri is not supported")
	})
	t.Run("x509_hash", func(t *testing.T) {
		certificate, key, base64DER := testCertificate(t, "verifier.example.com")
		thumbprint := crypto.CertificateThumbprint(certificate)
		requestJWT := signTestJWT(t, key, map[string]interface{}{"client_id": "x509_hash:" + thumbprint},
			map[string]interface{}{"x5c": certChainHeader(t, base64DER)})

		t.Run("ok", func(t *testing.T) {
			authenticator, _, pkiValidator := newAuthenticator(t, testConfig(t))
			pkiValidator.EXPECT().Validate(gomock.Any()).Return(nil)

			client, err := authenticator.Authenticate(ctx, "x509_hash:"+thumbprint, requestJWT)

			require.NoError(t, err)
			require.IsType(t, X509HashClient{}, client)
			assert.Equal(t, "x509_hash:"+thumbprint, client.ID())
			assert.Equal(t, certificate.Raw, client.(X509HashClient).Certificate.Raw)
		})
		t.Run("thumbprint mismatch", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))
			// flip a character of the base64url thumbprint
			altered := []byte(thumbprint)
			if altered[0] == 'A' {
				altered[0] = 'B'
			} else {
				altered[0] = 'A'
			}

			_, err := authenticator.Authenticate(ctx, "x509_hash:"+string(altered), requestJWT)

			assert.EqualError(t, err, "invalid_client - client_id does not match the request signing certificate thumbprint")
		})
		t.Run("untrusted chain", func(t *testing.T) {
			authenticator, _, pkiValidator := newAuthenticator(t, testConfig(t))
			pkiValidator.EXPECT().Validate(gomock.Any()).Return(pki.ErrCertUntrusted)

			_, err := authenticator.Authenticate(ctx, "x509_hash:"+thumbprint, requestJWT)

			assert.ErrorContains(t, err, "untrusted certificate chain")
			assert.ErrorIs(t, err, pki.ErrCertUntrusted)
		})
		t.Run("no JWT", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			_, err := authenticator.Authenticate(ctx, "x509_hash:"+thumbprint, "")

			assert.EqualError(t, err, "invalid_client - client_id scheme requires a signed request object")
		})
		t.Run("missing x5c header", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))
			bareJWT := signTestJWT(t, key, map[string]interface{}{}, nil)

			_, err := authenticator.Authenticate(ctx, "x509_hash:"+thumbprint, bareJWT)

			assert.EqualError(t, err, "invalid_client - request object misses x5c header")
		})
	})
	t.Run("x509_san_dns", func(t *testing.T) {
		certificate, key, base64DER := testCertificate(t, "verifier.example.com")
		requestJWT := signTestJWT(t, key, map[string]interface{}{"client_id": "x509_san_dns:verifier.example.com"},
			map[string]interface{}{"x5c": certChainHeader(t, base64DER)})

		t.Run("ok", func(t *testing.T) {
			authenticator, _, pkiValidator := newAuthenticator(t, testConfig(t))
			pkiValidator.EXPECT().Validate(gomock.Any()).Return(nil)

			client, err := authenticator.Authenticate(ctx, "x509_san_dns:verifier.example.com", requestJWT)

			require.NoError(t, err)
			require.IsType(t, X509SanDnsClient{}, client)
			assert.Equal(t, certificate.Raw, client.(X509SanDnsClient).Certificate.Raw)
		})
		t.Run("DNS name mismatch", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))
			otherJWT := signTestJWT(t, key, map[string]interface{}{"client_id": "x509_san_dns:other.example.com"},
				map[string]interface{}{"x5c": certChainHeader(t, base64DER)})

			_, err := authenticator.Authenticate(ctx, "x509_san_dns:other.example.com", otherJWT)

			assert.ErrorContains(t, err, "request signing certificate is not valid for other.example.com")
		})
	})
	t.Run("did", func(t *testing.T) {
		const clientID = "did:web:verifier.example.com"
		key := testSigningKey(t)
		require.NoError(t, key.Set(jwk.KeyIDKey, clientID+"#key-1"))
		requestJWT := signTestJWT(t, key, map[string]interface{}{"client_id": clientID},
			map[string]interface{}{"kid": clientID + "#key-1"})
		publicKey := rawPublicKey(t, key)

		t.Run("ok", func(t *testing.T) {
			authenticator, keyResolver, _ := newAuthenticator(t, testConfig(t))
			keyResolver.EXPECT().ResolveKey(gomock.Any(), gomock.Any()).Return(publicKey, nil)

			client, err := authenticator.Authenticate(ctx, clientID, requestJWT)

			require.NoError(t, err)
			require.IsType(t, DIDClient{}, client)
			assert.Equal(t, clientID, client.ID())
		})
		t.Run("key not found", func(t *testing.T) {
			authenticator, keyResolver, _ := newAuthenticator(t, testConfig(t))
			keyResolver.EXPECT().ResolveKey(gomock.Any(), gomock.Any()).Return(nil, resolver.ErrKeyNotFound)

			_, err := authenticator.Authenticate(ctx, clientID, requestJWT)

			assert.ErrorContains(t, err, "unable to resolve signing key")
			assert.ErrorIs(t, err, resolver.ErrKeyNotFound)
		})
		t.Run("kid outside client DID", func(t *testing.T) {
			foreignKey := testSigningKey(t)
			require.NoError(t, foreignKey.Set(jwk.KeyIDKey, "did:web:attacker.example.com#key-1"))
			foreignJWT := signTestJWT(t, foreignKey, map[string]interface{}{"client_id": clientID},
				map[string]interface{}{"kid": "did:web:attacker.example.com#key-1"})
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, foreignJWT)

			assert.ErrorContains(t, err, "does not belong to client")
		})
		t.Run("signature mismatch", func(t *testing.T) {
			authenticator, keyResolver, _ := newAuthenticator(t, testConfig(t))
			keyResolver.EXPECT().ResolveKey(gomock.Any(), gomock.Any()).Return(rawPublicKey(t, testSigningKey(t)), nil)

			_, err := authenticator.Authenticate(ctx, clientID, requestJWT)

			assert.ErrorContains(t, err, "request object signature verification failed")
		})
		t.Run("malformed request object", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, "not.a.jwt")

			assert.ErrorContains(t, err, "request object signature verification failed")
		})
	})
	t.Run("verifier_attestation", func(t *testing.T) {
		const clientID = "verifier_attestation:verifier.example.com"
		trustAnchor := testSigningKey(t)
		confirmation := testSigningKey(t)
		confirmationJSON, err := json.Marshal(mustPublicKey(t, confirmation))
		require.NoError(t, err)

		attestation := func(t *testing.T, expires time.Time) string {
			var cnf map[string]interface{}
			require.NoError(t, json.Unmarshal(confirmationJSON, &cnf))
			return signTestJWT(t, trustAnchor, map[string]interface{}{
				"iss": "attestation.issuer.example.com",
				"sub": "verifier.example.com",
				"iat": time.Now().Unix(),
				"exp": expires.Unix(),
				"cnf": map[string]interface{}{"jwk": cnf},
			}, map[string]interface{}{"typ": VerifierAttestationJWTType})
		}
		request := func(t *testing.T, attestationJWT string) string {
			return signTestJWT(t, confirmation, map[string]interface{}{"client_id": clientID},
				map[string]interface{}{"jwt": attestationJWT})
		}
		trustingConfig := func(t *testing.T) Configuration {
			config := testConfig(t)
			anchor, err := trustAnchor.PublicKey()
			require.NoError(t, err)
			config.AttestationTrustAnchor = anchor
			return config
		}

		t.Run("ok", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, trustingConfig(t))

			client, err := authenticator.Authenticate(ctx, clientID, request(t, attestation(t, time.Now().Add(time.Hour))))

			require.NoError(t, err)
			require.IsType(t, AttestedClient{}, client)
			attested := client.(AttestedClient)
			assert.Equal(t, "verifier.example.com", attested.ClientID)
			assert.Equal(t, "attestation.issuer.example.com", attested.Attestation.Issuer)
			assert.NotNil(t, attested.Attestation.ConfirmationKey)
		})
		t.Run("expired, zero clock skew", func(t *testing.T) {
			config := trustingConfig(t)
			config.ClockSkew = 0
			authenticator, _, _ := newAuthenticator(t, config)

			_, err := authenticator.Authenticate(ctx, clientID, request(t, attestation(t, time.Now().Add(-time.Second))))

			require.ErrorContains(t, err, "verifier attestation verification failed")
			var oauthErr oauth.OAuth2Error
			require.ErrorAs(t, err, &oauthErr)
			assert.ErrorContains(t, oauthErr.InternalError, `"exp" not satisfied`)
		})
		t.Run("wrong typ header", func(t *testing.T) {
			var cnf map[string]interface{}
			require.NoError(t, json.Unmarshal(confirmationJSON, &cnf))
			wrongType := signTestJWT(t, trustAnchor, map[string]interface{}{
				"sub": "verifier.example.com",
				"exp": time.Now().Add(time.Hour).Unix(),
				"cnf": map[string]interface{}{"jwk": cnf},
			}, nil)
			authenticator, _, _ := newAuthenticator(t, trustingConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, request(t, wrongType))

			assert.ErrorContains(t, err, "verifier attestation must have typ verifier-attestation+jwt")
		})
		t.Run("subject mismatch", func(t *testing.T) {
			var cnf map[string]interface{}
			require.NoError(t, json.Unmarshal(confirmationJSON, &cnf))
			wrongSubject := signTestJWT(t, trustAnchor, map[string]interface{}{
				"sub": "other.example.com",
				"exp": time.Now().Add(time.Hour).Unix(),
				"cnf": map[string]interface{}{"jwk": cnf},
			}, map[string]interface{}{"typ": VerifierAttestationJWTType})
			authenticator, _, _ := newAuthenticator(t, trustingConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, request(t, wrongSubject))

			assert.ErrorContains(t, err, "does not match client_id")
		})
		t.Run("no attestation embedded", func(t *testing.T) {
			bare := signTestJWT(t, confirmation, map[string]interface{}{"client_id": clientID}, nil)
			authenticator, _, _ := newAuthenticator(t, trustingConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, bare)

			assert.EqualError(t, err, "invalid_client - request object misses verifier attestation (jwt header)")
		})
		t.Run("no trust anchor configured", func(t *testing.T) {
			authenticator, _, _ := newAuthenticator(t, testConfig(t))

			_, err := authenticator.Authenticate(ctx, clientID, request(t, attestation(t, time.Now().Add(time.Hour))))

			assert.EqualError(t, err, "invalid_client - no verifier attestation trust anchor configured")
		})
	})
}

func mustPublicKey(t *testing.T, key jwk.Key) jwk.Key {
	t.Helper()
	publicKey, err := key.PublicKey()
	require.NoError(t, err)
	return publicKey
}

// rawPublicKey returns the stdlib public key of a jwk.Key, as a KeyResolver would.
func rawPublicKey(t *testing.T, key jwk.Key) interface{} {
	t.Helper()
	var raw interface{}
	require.NoError(t, mustPublicKey(t, key).Raw(&raw))
	return raw
}
