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

// Package crypto provides a thin JOSE layer over lestrrat-go/jwx for the OpenID4VP wallet:
// JWT parsing/signing, JWE handling, ephemeral encryption keys and certificate chain extraction.
package crypto

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrUnsupportedSigningKey is returned when an unsupported private key is used to sign.
var ErrUnsupportedSigningKey = errors.New("signing key algorithm not supported")

// PublicKeyFunc defines a function that resolves a public key based on a kid
type PublicKeyFunc func(kid string) (crypto.PublicKey, error)

// JWSHeaders holds the protected headers of a compact JWS relevant for client authentication.
type JWSHeaders struct {
	KeyID     string
	Algorithm jwa.SignatureAlgorithm
	Type      string
	// CertificateChain contains the base64 (not base64url) encoded DER certificates from the x5c header, leaf first.
	CertificateChain []string
	// EmbeddedJWT holds the jwt header (RFC7515 appendix F style embedding), e.g. a verifier attestation.
	EmbeddedJWT string
}

// ParseJWSHeaders parses the protected headers of a compact JWS without verifying the signature.
func ParseJWSHeaders(tokenString string) (*JWSHeaders, error) {
	message, err := jws.ParseString(tokenString)
	if err != nil {
		return nil, err
	}
	if len(message.Signatures()) != 1 {
		return nil, errors.New("incorrect number of signatures in JWT")
	}
	headers := message.Signatures()[0].ProtectedHeaders()
	result := &JWSHeaders{
		KeyID:     headers.KeyID(),
		Algorithm: headers.Algorithm(),
		Type:      headers.Type(),
	}
	if chain := headers.X509CertChain(); chain != nil {
		for i := 0; i < chain.Len(); i++ {
			encoded, _ := chain.Get(i)
			result.CertificateChain = append(result.CertificateChain, string(encoded))
		}
	}
	if embedded, ok := headers.Get("jwt"); ok {
		result.EmbeddedJWT, _ = embedded.(string)
	}
	return result, nil
}

// ParseJWT parses a token, validates and verifies it with the public key resolved through f.
// The acceptable clock skew applies to exp/nbf/iat validation.
func ParseJWT(tokenString string, f PublicKeyFunc, clockSkew time.Duration) (jwt.Token, error) {
	headers, err := ParseJWSHeaders(tokenString)
	if err != nil {
		return nil, err
	}
	key, err := f(headers.KeyID)
	if err != nil {
		return nil, err
	}
	return jwt.ParseString(tokenString,
		jwt.WithKey(headers.Algorithm, key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
	)
}

// VerifyJWT verifies and validates a token against the given public key, with the given acceptable clock skew.
func VerifyJWT(tokenString string, alg jwa.SignatureAlgorithm, key crypto.PublicKey, clockSkew time.Duration) (jwt.Token, error) {
	return jwt.ParseString(tokenString,
		jwt.WithKey(alg, key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
	)
}

// SignJWT signs claims with the key and returns the compacted token.
// The headers param can be used to add additional protected headers, e.g. typ.
func SignJWT(key jwk.Key, claims map[string]interface{}, headers map[string]interface{}) (string, error) {
	token := jwt.New()
	for name, value := range claims {
		if err := token.Set(name, value); err != nil {
			return "", fmt.Errorf("invalid claim %s: %w", name, err)
		}
	}
	alg, ok := key.Algorithm().(jwa.SignatureAlgorithm)
	if !ok || alg == "" {
		return "", ErrUnsupportedSigningKey
	}
	hdr := jws.NewHeaders()
	for name, value := range headers {
		if err := hdr.Set(name, value); err != nil {
			return "", fmt.Errorf("invalid header %s: %w", name, err)
		}
	}
	signed, err := jwt.Sign(token, jwt.WithKey(alg, key, jws.WithProtectedHeaders(hdr)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// DecodeJWTPayload decodes the payload segment of a compact JWT without verifying the signature.
// It is tolerant of both the base64 and base64url alphabets and missing padding.
func DecodeJWTPayload(tokenString string) (map[string]interface{}, error) {
	segments := strings.Split(tokenString, ".")
	if len(segments) != 3 {
		return nil, errors.New("invalid JWT: expected 3 segments")
	}
	decoded, err := decodeBase64(segments[1])
	if err != nil {
		return nil, fmt.Errorf("invalid JWT payload: %w", err)
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("invalid JWT payload: %w", err)
	}
	return claims, nil
}

func decodeBase64(segment string) ([]byte, error) {
	normalized := strings.TrimRight(segment, "=")
	normalized = strings.ReplaceAll(normalized, "+", "-")
	normalized = strings.ReplaceAll(normalized, "/", "_")
	return base64.RawURLEncoding.DecodeString(normalized)
}
