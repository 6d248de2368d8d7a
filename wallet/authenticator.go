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
	"fmt"
	"time"

	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
)

// RequestAuthenticator authenticates the verifier, verifies the request object signature,
// and validates the request into ValidatedRequestData.
type RequestAuthenticator struct {
	config  Configuration
	clients *ClientAuthenticator
}

// NewRequestAuthenticator returns a RequestAuthenticator delegating client authentication to clients.
func NewRequestAuthenticator(config Configuration, clients *ClientAuthenticator) *RequestAuthenticator {
	return &RequestAuthenticator{config: config, clients: clients}
}

// Authenticate consumes a FetchedRequest exactly once and produces ValidatedRequestData.
// For JWT-secured requests the request object signature is verified with the key established
// by the client's trust scheme; a verification failure is fatal.
// On error, the returned data still carries the client and response endpoint established before
// the failure, so the error can be reported back to an authenticated verifier.
func (a *RequestAuthenticator) Authenticate(ctx context.Context, fetched FetchedRequest) (ValidatedRequestData, error) {
	switch typed := fetched.(type) {
	case PlainFetchedRequest:
		client, err := a.clients.Authenticate(ctx, typed.Object.ClientID, "")
		if err != nil {
			return ValidatedRequestData{}, err
		}
		return a.validate(typed.Object, client)
	case JWTSecuredRequest:
		client, err := a.clients.Authenticate(ctx, typed.ClientID, typed.RequestJWT)
		if err != nil {
			return ValidatedRequestData{}, err
		}
		if err := a.verifyRequestSignature(client, typed.RequestJWT); err != nil {
			return ValidatedRequestData{Client: client}, err
		}
		claims, err := crypto.DecodeJWTPayload(typed.RequestJWT)
		if err != nil {
			return ValidatedRequestData{Client: client}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object payload", InternalError: err}
		}
		object, err := requestObjectFromClaims(claims)
		if err != nil {
			return ValidatedRequestData{Client: client}, err
		}
		if object.ClientID != typed.ClientID {
			return ValidatedRequestData{Client: client}, oauth.OAuth2Error{
				Code:        oauth.InvalidRequestObject,
				Description: fmt.Sprintf("client_id claim %s does not match the authorization request client_id", object.ClientID),
			}
		}
		return a.validate(object, client)
	default:
		return ValidatedRequestData{}, fmt.Errorf("unsupported request type %T", fetched)
	}
}

// verifyRequestSignature verifies the JWS over the request object itself.
// The verification key follows from the trust scheme: the x509 schemes sign with the x5c leaf certificate key,
// the verifier_attestation scheme with the attestation's confirmation key.
// The did scheme already verified the signature during client authentication.
// The pre-registered and redirect_uri schemes establish no signing key; only the algorithm is checked.
func (a *RequestAuthenticator) verifyRequestSignature(client Client, requestJWT string) error {
	headers, err := crypto.ParseJWSHeaders(requestJWT)
	if err != nil {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object JWT", InternalError: err}
	}
	if !a.config.SupportsJARAlgorithm(headers.Algorithm) {
		return oauth.OAuth2Error{
			Code:        oauth.InvalidRequestObject,
			Description: fmt.Sprintf("request object is signed with unsupported algorithm: %s", headers.Algorithm),
		}
	}
	clockSkew := time.Duration(a.config.ClockSkew) * time.Millisecond
	switch typed := client.(type) {
	case X509HashClient:
		_, err = crypto.VerifyJWT(requestJWT, headers.Algorithm, typed.Certificate.PublicKey, clockSkew)
	case X509SanDnsClient:
		_, err = crypto.VerifyJWT(requestJWT, headers.Algorithm, typed.Certificate.PublicKey, clockSkew)
	case AttestedClient:
		_, err = crypto.VerifyJWT(requestJWT, headers.Algorithm, typed.Attestation.ConfirmationKey, clockSkew)
	default:
		return nil
	}
	if err != nil {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "request object signature verification failed", InternalError: err}
	}
	return nil
}

// validate checks the structural requirements of the request object and binds it to the authenticated client.
func (a *RequestAuthenticator) validate(object RequestObject, client Client) (ValidatedRequestData, error) {
	result := ValidatedRequestData{
		Client:      client,
		ResponseURI: object.ResponseURI,
		RedirectURI: object.RedirectURI,
		State:       object.State,
	}
	if object.ResponseType != oauth.VPTokenResponseType {
		return result, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: fmt.Sprintf("unsupported response_type: %s", object.ResponseType),
		}
	}
	responseMode := oauth.ResponseMode(object.ResponseMode)
	if !responseMode.Valid() {
		return result, oauth.OAuth2Error{
			Code:        oauth.UnsupportedResponseMode,
			Description: fmt.Sprintf("unsupported response_mode: %s", object.ResponseMode),
		}
	}
	result.ResponseMode = responseMode
	if responseMode.IsDirectPost() {
		if object.ResponseURI == "" {
			return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing response_uri"}
		}
	} else if object.RedirectURI == "" {
		return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing redirect_uri"}
	}
	if object.Nonce == "" {
		return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing nonce"}
	}
	result.Nonce = object.Nonce

	// exactly one query source
	switch {
	case len(object.DCQLQuery) > 0 && len(object.PresentationDefinition) > 0:
		return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "dcql_query and presentation_definition are mutually exclusive"}
	case len(object.PresentationDefinition) > 0:
		return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "presentation_definition is not supported, use dcql_query"}
	case len(object.DCQLQuery) == 0:
		if object.Scope != "" {
			return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "scope-based presentation requests are not supported"}
		}
		return result, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing dcql_query"}
	}
	result.Query = object.DCQLQuery

	formats, err := a.negotiateFormats(object.ClientMetadata)
	if err != nil {
		return result, err
	}
	result.VPFormats = formats
	jarm, err := deriveJarmRequirement(a.config, object.ClientMetadata, responseMode)
	if err != nil {
		return result, err
	}
	result.Jarm = jarm
	result.TransactionData = object.TransactionData
	result.VerifierInfo = object.VerifierInfo
	return result, nil
}

// negotiateFormats intersects the wallet's formats with the formats the verifier declared.
// A request without declared formats gets the wallet's full set.
func (a *RequestAuthenticator) negotiateFormats(metadata *oauth.ClientMetadata) (oauth.VPFormats, error) {
	if metadata == nil || len(metadata.VPFormats) == 0 {
		return a.config.VPFormats, nil
	}
	negotiated := a.config.VPFormats.Intersect(metadata.VPFormats)
	if len(negotiated) == 0 {
		return nil, oauth.OAuth2Error{Code: oauth.VpFormatsNotSupported, Description: "no overlap in supported vp_formats"}
	}
	return negotiated, nil
}
