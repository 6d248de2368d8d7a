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
	crypt "crypto"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/go-did/did"

	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
	"github.com/nuts-foundation/openid4vp/pki"
	"github.com/nuts-foundation/openid4vp/resolver"
)

// VerifierAttestationJWTType is the required typ header of a verifier attestation JWT.
const VerifierAttestationJWTType = "verifier-attestation+jwt"

// ClientAuthenticator establishes a verified Client identity from a client_id and,
// when the request is JWT-secured, the request object JWT.
type ClientAuthenticator struct {
	config       Configuration
	keyResolver  resolver.KeyResolver
	pkiValidator pki.Validator
}

// NewClientAuthenticator returns a ClientAuthenticator using the given trust collaborators.
func NewClientAuthenticator(config Configuration, keyResolver resolver.KeyResolver, pkiValidator pki.Validator) *ClientAuthenticator {
	return &ClientAuthenticator{config: config, keyResolver: keyResolver, pkiValidator: pkiValidator}
}

// Authenticate derives the trust scheme from the client_id and runs the corresponding check.
// requestJWT is empty for requests that were not JWT-secured; schemes that require one fail in that case.
// Given the same configuration, the only I/O is the DID key resolution.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, clientID string, requestJWT string) (Client, error) {
	verifierID, err := ParseVerifierID(clientID)
	if err != nil {
		return nil, err
	}
	if !a.config.SupportsScheme(verifierID.Scheme) {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: fmt.Sprintf("client_id scheme %s is not supported", verifierID.Scheme),
		}
	}
	switch verifierID.Scheme {
	case SchemePreRegistered:
		return a.authenticatePreRegistered(verifierID)
	case SchemeRedirectURI:
		return RedirectURIClient{ClientID: verifierID.OriginalID}, nil
	case SchemeX509Hash:
		return a.authenticateX509Hash(verifierID, requestJWT)
	case SchemeX509SanDns:
		return a.authenticateX509SanDns(verifierID, requestJWT)
	case SchemeDID:
		return a.authenticateDID(ctx, verifierID, requestJWT)
	case SchemeVerifierAttestation:
		return a.authenticateAttested(verifierID, requestJWT)
	default:
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: fmt.Sprintf("client_id scheme %s is not supported", verifierID.Scheme),
		}
	}
}

func (a *ClientAuthenticator) authenticatePreRegistered(verifierID VerifierID) (Client, error) {
	legalName, ok := a.config.PreRegisteredClients[verifierID.OriginalID]
	if !ok {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: fmt.Sprintf("unknown pre-registered client: %s", verifierID.OriginalID),
		}
	}
	return PreRegisteredClient{ClientID: verifierID.OriginalID, LegalName: legalName}, nil
}

func (a *ClientAuthenticator) authenticateX509Hash(verifierID VerifierID, requestJWT string) (Client, error) {
	chain, err := a.certificateChain(requestJWT)
	if err != nil {
		return nil, err
	}
	leaf := chain[0]
	if crypto.CertificateThumbprint(leaf) != verifierID.OriginalID {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: "client_id does not match the request signing certificate thumbprint",
		}
	}
	if err := a.pkiValidator.Validate(chain); err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "untrusted certificate chain", InternalError: err}
	}
	return X509HashClient{ClientID: verifierID.FullID, Certificate: leaf}, nil
}

func (a *ClientAuthenticator) authenticateX509SanDns(verifierID VerifierID, requestJWT string) (Client, error) {
	chain, err := a.certificateChain(requestJWT)
	if err != nil {
		return nil, err
	}
	leaf := chain[0]
	if err := pki.ValidateDNSName(chain, verifierID.OriginalID); err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidClient,
			Description:   fmt.Sprintf("request signing certificate is not valid for %s", verifierID.OriginalID),
			InternalError: err,
		}
	}
	if err := a.pkiValidator.Validate(chain); err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "untrusted certificate chain", InternalError: err}
	}
	return X509SanDnsClient{ClientID: verifierID.FullID, Certificate: leaf}, nil
}

// certificateChain extracts and parses the x5c certificate chain from the request object JWT, leaf first.
func (a *ClientAuthenticator) certificateChain(requestJWT string) ([]*x509.Certificate, error) {
	if requestJWT == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "client_id scheme requires a signed request object"}
	}
	headers, err := crypto.ParseJWSHeaders(requestJWT)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object JWT", InternalError: err}
	}
	if len(headers.CertificateChain) == 0 {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "request object misses x5c header"}
	}
	chain, err := crypto.ParseCertificateChain(headers.CertificateChain)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "invalid x5c certificate chain", InternalError: err}
	}
	return chain, nil
}

func (a *ClientAuthenticator) authenticateDID(ctx context.Context, verifierID VerifierID, requestJWT string) (Client, error) {
	if requestJWT == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "client_id scheme requires a signed request object"}
	}
	clientDID, err := did.ParseDID(verifierID.OriginalID)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "client_id is not a valid DID", InternalError: err}
	}
	resolveClientKey := crypto.PublicKeyFunc(func(kid string) (crypt.PublicKey, error) {
		keyID, err := did.ParseDIDURL(kid)
		if err != nil {
			return nil, oauth.OAuth2Error{
				Code:          oauth.InvalidClient,
				Description:   "request object kid is not a DID URL",
				InternalError: err,
			}
		}
		if !strings.HasPrefix(kid, verifierID.OriginalID) {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidClient,
				Description: fmt.Sprintf("request object kid %s does not belong to client %s", kid, verifierID.OriginalID),
			}
		}
		publicKey, err := a.keyResolver.ResolveKey(ctx, *keyID)
		if err != nil {
			return nil, oauth.OAuth2Error{
				Code:          oauth.InvalidClient,
				Description:   fmt.Sprintf("unable to resolve signing key of %s", clientDID),
				InternalError: err,
			}
		}
		return publicKey, nil
	})
	if _, err := crypto.ParseJWT(requestJWT, resolveClientKey, a.clockSkew()); err != nil {
		var oauthErr oauth.OAuth2Error
		if errors.As(err, &oauthErr) {
			return nil, oauthErr
		}
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "request object signature verification failed", InternalError: err}
	}
	return DIDClient{DID: *clientDID}, nil
}

// authenticateAttested verifies the verifier attestation embedded in the request object's jwt header
// against the configured trust anchor and extracts its attestation claims.
// The attestation's own exp/iat are validated with the configured clock skew.
func (a *ClientAuthenticator) authenticateAttested(verifierID VerifierID, requestJWT string) (Client, error) {
	if requestJWT == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "client_id scheme requires a signed request object"}
	}
	if a.config.AttestationTrustAnchor == nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "no verifier attestation trust anchor configured"}
	}
	requestHeaders, err := crypto.ParseJWSHeaders(requestJWT)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object JWT", InternalError: err}
	}
	attestationJWT := requestHeaders.EmbeddedJWT
	if attestationJWT == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "request object misses verifier attestation (jwt header)"}
	}
	headers, err := crypto.ParseJWSHeaders(attestationJWT)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "invalid verifier attestation JWT", InternalError: err}
	}
	if headers.Type != VerifierAttestationJWTType {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: fmt.Sprintf("verifier attestation must have typ %s", VerifierAttestationJWTType),
		}
	}
	token, err := crypto.VerifyJWT(attestationJWT, headers.Algorithm, a.config.AttestationTrustAnchor, a.clockSkew())
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "verifier attestation verification failed", InternalError: err}
	}
	if token.Subject() != verifierID.OriginalID {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidClient,
			Description: fmt.Sprintf("verifier attestation subject %s does not match client_id", token.Subject()),
		}
	}
	claims := AttestationClaims{
		Issuer:  token.Issuer(),
		Subject: token.Subject(),
	}
	if !token.IssuedAt().IsZero() {
		claims.IssuedAt = token.IssuedAt().Unix()
	}
	if token.Expiration().IsZero() {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "verifier attestation misses exp claim"}
	}
	claims.Expires = token.Expiration().Unix()
	claims.ConfirmationKey, err = confirmationKey(token.PrivateClaims())
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidClient, Description: "invalid verifier attestation cnf claim", InternalError: err}
	}
	return AttestedClient{ClientID: verifierID.OriginalID, Attestation: claims}, nil
}

// confirmationKey extracts the cnf.jwk confirmation key (RFC7800) from the attestation claims.
func confirmationKey(claims map[string]interface{}) (jwk.Key, error) {
	cnf, ok := claims["cnf"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing cnf claim")
	}
	rawKey, ok := cnf["jwk"]
	if !ok {
		return nil, fmt.Errorf("missing cnf.jwk claim")
	}
	encoded, err := json.Marshal(rawKey)
	if err != nil {
		return nil, err
	}
	return jwk.ParseKey(encoded)
}

func (a *ClientAuthenticator) clockSkew() time.Duration {
	return time.Duration(a.config.ClockSkew) * time.Millisecond
}
