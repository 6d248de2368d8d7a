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
	"net/url"
	"strings"

	"github.com/nuts-foundation/openid4vp/oauth"
)

// ParseAuthorizationRequest turns an authorization request URL into one of the three unvalidated request shapes.
// No network or cryptographic operation occurs here; this stage is pure and synchronous.
func ParseAuthorizationRequest(authorizationRequest string) (UnvalidatedRequest, error) {
	requestURL, err := url.Parse(authorizationRequest)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid authorization request URL", InternalError: err}
	}
	params := requestURL.Query()

	requestJWT := params.Get(oauth.RequestParam)
	requestURI := params.Get(oauth.RequestURIParam)
	clientID := params.Get(oauth.ClientIDParam)

	switch {
	case requestJWT != "" && requestURI != "":
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "claims 'request' and 'request_uri' are mutually exclusive"}
	case requestJWT != "":
		if params.Get(oauth.RequestURIMethodParam) != "" {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "request_uri_method is not allowed for a request passed by value"}
		}
		if clientID == "" {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing client_id"}
		}
		return ByValueRequest{ClientID: clientID, RequestJWT: requestJWT}, nil
	case requestURI != "":
		if clientID == "" {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing client_id"}
		}
		reference, err := url.Parse(requestURI)
		if err != nil {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequestURI, Description: "invalid request_uri", InternalError: err}
		}
		method, err := parseRequestURIMethod(params.Get(oauth.RequestURIMethodParam))
		if err != nil {
			return nil, err
		}
		return ByReferenceRequest{ClientID: clientID, RequestURI: reference, Method: method}, nil
	default:
		object, err := requestObjectFromValues(params)
		if err != nil {
			return nil, err
		}
		return PlainRequest{Object: object}, nil
	}
}

// parseRequestURIMethod parses the request_uri_method parameter, case-insensitively. It defaults to get.
func parseRequestURIMethod(method string) (RequestURIMethod, error) {
	switch strings.ToLower(method) {
	case "":
		return MethodGet, nil
	case string(MethodGet):
		return MethodGet, nil
	case string(MethodPost):
		return MethodPost, nil
	default:
		return "", oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid request_uri_method: " + method}
	}
}

// requestObjectFromValues builds a RequestObject from individual query parameters.
func requestObjectFromValues(params url.Values) (RequestObject, error) {
	object := RequestObject{
		ResponseType: params.Get(oauth.ResponseTypeParam),
		ClientID:     params.Get(oauth.ClientIDParam),
		ResponseURI:  params.Get(oauth.ResponseURIParam),
		RedirectURI:  params.Get(oauth.RedirectURIParam),
		Nonce:        params.Get(oauth.NonceParam),
		State:        params.Get(oauth.StateParam),
		Scope:        params.Get(oauth.ScopeParam),
		ResponseMode: params.Get(oauth.ResponseModeParam),
	}
	if query := params.Get(oauth.DCQLQueryParam); query != "" {
		object.DCQLQuery = json.RawMessage(query)
	}
	if definition := params.Get(oauth.PresentationDefParam); definition != "" {
		object.PresentationDefinition = json.RawMessage(definition)
	}
	if metadata := params.Get(oauth.ClientMetadataParam); metadata != "" {
		parsed := &oauth.ClientMetadata{}
		if err := json.Unmarshal([]byte(metadata), parsed); err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid client_metadata", InternalError: err}
		}
		if err := parsed.Validate(); err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid client_metadata", InternalError: err}
		}
		object.ClientMetadata = parsed
	}
	if transactionData := params.Get(oauth.TransactionDataParam); transactionData != "" {
		if err := json.Unmarshal([]byte(transactionData), &object.TransactionData); err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid transaction_data", InternalError: err}
		}
	}
	if verifierInfo := params.Get(oauth.VerifierInfoParam); verifierInfo != "" {
		if err := json.Unmarshal([]byte(verifierInfo), &object.VerifierInfo); err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid verifier_info", InternalError: err}
		}
	}
	return object, nil
}

// requestObjectFromClaims builds a RequestObject from the decoded payload of a request object JWT.
func requestObjectFromClaims(claims map[string]interface{}) (RequestObject, error) {
	object := RequestObject{
		ResponseType: stringClaim(claims, oauth.ResponseTypeParam),
		ClientID:     stringClaim(claims, oauth.ClientIDParam),
		ResponseURI:  stringClaim(claims, oauth.ResponseURIParam),
		RedirectURI:  stringClaim(claims, oauth.RedirectURIParam),
		Nonce:        stringClaim(claims, oauth.NonceParam),
		State:        stringClaim(claims, oauth.StateParam),
		Scope:        stringClaim(claims, oauth.ScopeParam),
		ResponseMode: stringClaim(claims, oauth.ResponseModeParam),
		WalletNonce:  stringClaim(claims, oauth.WalletNonceParam),
	}
	if query, ok := claims[oauth.DCQLQueryParam]; ok {
		raw, err := json.Marshal(query)
		if err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid dcql_query claim", InternalError: err}
		}
		object.DCQLQuery = raw
	}
	if definition, ok := claims[oauth.PresentationDefParam]; ok {
		raw, err := json.Marshal(definition)
		if err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid presentation_definition claim", InternalError: err}
		}
		object.PresentationDefinition = raw
	}
	if metadata, ok := claims[oauth.ClientMetadataParam]; ok {
		raw, err := json.Marshal(metadata)
		if err == nil {
			parsed := &oauth.ClientMetadata{}
			err = json.Unmarshal(raw, parsed)
			if err == nil {
				err = parsed.Validate()
			}
			object.ClientMetadata = parsed
		}
		if err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid client_metadata claim", InternalError: err}
		}
	}
	if transactionData, ok := claims[oauth.TransactionDataParam]; ok {
		raw, err := json.Marshal(transactionData)
		if err == nil {
			err = json.Unmarshal(raw, &object.TransactionData)
		}
		if err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid transaction_data claim", InternalError: err}
		}
	}
	if verifierInfo, ok := claims[oauth.VerifierInfoParam]; ok {
		raw, err := json.Marshal(verifierInfo)
		if err == nil {
			err = json.Unmarshal(raw, &object.VerifierInfo)
		}
		if err != nil {
			return RequestObject{}, oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid verifier_info claim", InternalError: err}
		}
	}
	return object, nil
}

func stringClaim(claims map[string]interface{}, name string) string {
	if value, ok := claims[name].(string); ok {
		return value
	}
	return ""
}
