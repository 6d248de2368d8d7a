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

package oauth

import (
	"encoding/json"
	"errors"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ClientMetadata defines the OAuth Client (verifier) metadata as used by OpenID4VP and JARM.
// Specified by https://www.rfc-editor.org/rfc/rfc7591.html and the OpenID4VP/JARM specifications.
type ClientMetadata struct {
	// ClientName is a human-readable name of the verifier, for display purposes.
	ClientName string `json:"client_name,omitempty"`

	// RedirectURIs lists all URIs that the client may use in any redirect-based flow.
	RedirectURIs []string `json:"redirect_uris,omitempty"`

	// JwksURI is a URL referencing the client's JSON Web Key Set [RFC7517] document, containing the client's public keys.
	// Mutually exclusive with Jwks.
	JwksURI string `json:"jwks_uri,omitempty"`

	// Jwks includes the JWK Set of the client. Mutually exclusive with JwksURI.
	Jwks json.RawMessage `json:"jwks,omitempty"`

	// VPFormats lists the vp_formats supported by the client.
	// https://openid.net/specs/openid-4-verifiable-presentations-1_0.html#name-verifier-metadata-client-me
	VPFormats VPFormats `json:"vp_formats,omitempty"`

	// AuthorizationSignedResponseAlg is the JWS alg the verifier wants the wallet to sign authorization responses with. (JARM)
	AuthorizationSignedResponseAlg string `json:"authorization_signed_response_alg,omitempty"`

	// AuthorizationEncryptedResponseAlg is the JWE key-management alg the verifier wants authorization responses encrypted with. (JARM)
	AuthorizationEncryptedResponseAlg string `json:"authorization_encrypted_response_alg,omitempty"`

	// AuthorizationEncryptedResponseEnc is the JWE content-encryption enc the verifier wants authorization responses encrypted with. (JARM)
	AuthorizationEncryptedResponseEnc string `json:"authorization_encrypted_response_enc,omitempty"`
}

// Validate checks the internal consistency of the metadata.
func (m ClientMetadata) Validate() error {
	if len(m.Jwks) > 0 && m.JwksURI != "" {
		return errors.New("client metadata may not contain both jwks and jwks_uri")
	}
	return nil
}

// JSONWebKeySet parses the inline jwks claim into a jwk.Set.
// It returns an empty set when the metadata carries no inline keys.
func (m ClientMetadata) JSONWebKeySet() (jwk.Set, error) {
	if len(m.Jwks) == 0 {
		return jwk.NewSet(), nil
	}
	return jwk.Parse(m.Jwks)
}

// WalletMetadata is the metadata the wallet discloses to the verifier when retrieving
// a Request Object with request_uri_method=post.
// The shape follows RFC8414 authorization server metadata, restricted to the claims relevant for OpenID4VP.
type WalletMetadata struct {
	// VPFormatsSupported lists the presentation formats this wallet can produce.
	VPFormatsSupported VPFormats `json:"vp_formats_supported,omitempty"`

	// RequestObjectSigningAlgValuesSupported lists the JWS algorithms accepted for Request Objects (RFC9101).
	RequestObjectSigningAlgValuesSupported []string `json:"request_object_signing_alg_values_supported,omitempty"`

	// AuthorizationEncryptionAlgValuesSupported lists the JWE key-management algorithms the wallet accepts
	// for encrypted Request Objects returned on a POST to the request_uri.
	AuthorizationEncryptionAlgValuesSupported []string `json:"authorization_encryption_alg_values_supported,omitempty"`

	// AuthorizationEncryptionEncValuesSupported lists the JWE content-encryption algorithms the wallet accepts.
	AuthorizationEncryptionEncValuesSupported []string `json:"authorization_encryption_enc_values_supported,omitempty"`

	// ClientIdSchemesSupported defines the client_id schemes currently supported by the wallet.
	ClientIdSchemesSupported []string `json:"client_id_schemes_supported,omitempty"`

	// ResponseModesSupported defines what response modes the wallet supports.
	ResponseModesSupported []string `json:"response_modes_supported,omitempty"`

	// Jwks holds the wallet's ephemeral public keys, e.g. the encryption key for the Request Object response.
	Jwks json.RawMessage `json:"jwks,omitempty"`
}
