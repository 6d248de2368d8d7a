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
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
)

// defaultJarmEncryptionMethod is the JARM default when the verifier declares an alg without an enc.
const defaultJarmEncryptionMethod = jwa.A128CBC_HS256

// deriveJarmRequirement crosses the wallet's JARM capability with the verifier's client metadata.
// It is a pure function: the same inputs always derive the same requirement.
// A verifier that declares an algorithm the wallet cannot serve is a hard error, never a downgrade.
func deriveJarmRequirement(config Configuration, metadata *oauth.ClientMetadata, responseMode oauth.ResponseMode) (JarmRequirement, error) {
	var signed *JarmSigned
	var encrypted *JarmEncrypted

	if metadata != nil && metadata.AuthorizationSignedResponseAlg != "" {
		alg := jwa.SignatureAlgorithm(metadata.AuthorizationSignedResponseAlg)
		if config.SigningKey == nil || config.SigningKey.Algorithm() != alg {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidRequest,
				Description: fmt.Sprintf("cannot sign the authorization response with %s", alg),
			}
		}
		signed = &JarmSigned{Algorithm: alg}
	}
	if metadata != nil && metadata.AuthorizationEncryptedResponseAlg != "" {
		alg := jwa.KeyEncryptionAlgorithm(metadata.AuthorizationEncryptedResponseAlg)
		if !slices.Contains(config.EncryptionAlgorithms, alg) {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidRequest,
				Description: fmt.Sprintf("cannot encrypt the authorization response with %s", alg),
			}
		}
		enc := defaultJarmEncryptionMethod
		if metadata.AuthorizationEncryptedResponseEnc != "" {
			enc = jwa.ContentEncryptionAlgorithm(metadata.AuthorizationEncryptedResponseEnc)
			if !slices.Contains(config.EncryptionMethods, enc) {
				return nil, oauth.OAuth2Error{
					Code:        oauth.InvalidRequest,
					Description: fmt.Sprintf("cannot encrypt the authorization response with %s", enc),
				}
			}
		}
		keys, err := metadata.JSONWebKeySet()
		if err != nil {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid client metadata jwks", InternalError: err}
		}
		if keys.Len() == 0 {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "response encryption requested but client metadata contains no keys"}
		}
		encrypted = &JarmEncrypted{Algorithm: alg, Method: enc, RecipientKeys: keys}
	}

	switch {
	case signed != nil && encrypted != nil:
		return JarmSignedAndEncrypted{Signed: *signed, Encrypted: *encrypted}, nil
	case signed != nil:
		return *signed, nil
	case encrypted != nil:
		return *encrypted, nil
	case responseMode.UsesJARM():
		// a .jwt response mode needs a JWT even without declared verifier preferences
		if config.SigningKey == nil {
			return nil, oauth.OAuth2Error{
				Code:        oauth.UnsupportedResponseMode,
				Description: fmt.Sprintf("response_mode %s requires a wallet signing key", responseMode),
			}
		}
		alg, ok := config.SigningKey.Algorithm().(jwa.SignatureAlgorithm)
		if !ok || alg == "" {
			return nil, crypto.ErrUnsupportedSigningKey
		}
		return JarmSigned{Algorithm: alg}, nil
	default:
		return nil, nil
	}
}

// ResponseSignerEncryptor packages an authorization response according to a JarmRequirement.
type ResponseSignerEncryptor struct {
	config Configuration
}

// NewResponseSignerEncryptor returns a ResponseSignerEncryptor for the given configuration.
func NewResponseSignerEncryptor(config Configuration) *ResponseSignerEncryptor {
	return &ResponseSignerEncryptor{config: config}
}

// Protect turns the unprotected response parameters into a compact JWS and/or JWE per the requirement.
// Signing attaches the wallet's identity (iss) and iat before signing.
// For signedAndEncrypted, the compact JWS is the JWE payload.
func (s *ResponseSignerEncryptor) Protect(requirement JarmRequirement, params map[string]string) (string, error) {
	switch typed := requirement.(type) {
	case JarmSigned:
		return s.sign(typed, params)
	case JarmEncrypted:
		payload, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		return s.encrypt(typed, payload)
	case JarmSignedAndEncrypted:
		signedResponse, err := s.sign(typed.Signed, params)
		if err != nil {
			return "", err
		}
		return s.encrypt(typed.Encrypted, []byte(signedResponse))
	case nil:
		return "", fmt.Errorf("no protection requirement for the authorization response")
	default:
		return "", fmt.Errorf("unsupported JARM requirement %T", requirement)
	}
}

func (s *ResponseSignerEncryptor) sign(requirement JarmSigned, params map[string]string) (string, error) {
	if s.config.SigningKey == nil {
		return "", fmt.Errorf("no signing key configured for the authorization response")
	}
	if s.config.SigningKey.Algorithm() != requirement.Algorithm {
		return "", fmt.Errorf("signing key does not support %s", requirement.Algorithm)
	}
	claims := map[string]interface{}{
		jwt.IssuerKey:   s.config.HolderID,
		jwt.IssuedAtKey: time.Now().Unix(),
	}
	for name, value := range params {
		claims[name] = value
	}
	return crypto.SignJWT(s.config.SigningKey, claims, map[string]interface{}{"typ": "JWT"})
}

func (s *ResponseSignerEncryptor) encrypt(requirement JarmEncrypted, payload []byte) (string, error) {
	recipientKey, err := selectEncryptionKey(requirement.RecipientKeys, requirement.Algorithm)
	if err != nil {
		return "", err
	}
	return crypto.EncryptJWE(payload, requirement.Algorithm, requirement.Method, recipientKey)
}

// selectEncryptionKey picks the first key from the set that is compatible with the key-management algorithm:
// matching by the key's own alg claim when present, by key type otherwise.
func selectEncryptionKey(keys jwk.Set, alg jwa.KeyEncryptionAlgorithm) (jwk.Key, error) {
	for i := 0; i < keys.Len(); i++ {
		key, _ := keys.Key(i)
		if keyAlg := key.Algorithm(); keyAlg != nil && keyAlg.String() != "" {
			if keyAlg.String() == alg.String() {
				return key, nil
			}
			continue
		}
		if key.KeyUsage() != "" && key.KeyUsage() != string(jwk.ForEncryption) {
			continue
		}
		if key.KeyType() == keyTypeFor(alg) {
			return key, nil
		}
	}
	return nil, fmt.Errorf("no key compatible with %s in client metadata jwks", alg)
}

func keyTypeFor(alg jwa.KeyEncryptionAlgorithm) jwa.KeyType {
	switch {
	case strings.HasPrefix(alg.String(), "RSA"):
		return jwa.RSA
	case strings.HasPrefix(alg.String(), "ECDH-ES"):
		return jwa.EC
	default:
		return jwa.OctetSeq
	}
}
