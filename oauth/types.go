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

// Package oauth contains generic OAuth2/OpenID4VP related functionality, variables and constants
package oauth

// oauth parameter keys
const (
	// ClientIDParam is the parameter name for the client_id parameter. (RFC6749)
	ClientIDParam = "client_id"
	// ClientMetadataParam is the parameter name for the client_metadata parameter. (OpenID4VP)
	ClientMetadataParam = "client_metadata"
	// DCQLQueryParam is the parameter name for the dcql_query parameter. (OpenID4VP)
	DCQLQueryParam = "dcql_query"
	// NonceParam is the parameter name for the nonce parameter
	NonceParam = "nonce"
	// PresentationDefParam is the parameter name for the OpenID4VP presentation_definition parameter. (OpenID4VP)
	PresentationDefParam = "presentation_definition"
	// RedirectURIParam is the parameter name for the redirect_uri parameter. (RFC6749)
	RedirectURIParam = "redirect_uri"
	// RequestParam is the parameter name for the request parameter. (RFC9101)
	RequestParam = "request"
	// RequestURIParam is the parameter name for the request_uri parameter. (RFC9101)
	RequestURIParam = "request_uri"
	// RequestURIMethodParam states what http method (get/post) should be used for RequestURIParam. (OpenID4VP)
	RequestURIMethodParam = "request_uri_method"
	// ResponseParam is the parameter name for the JARM response parameter. (JARM)
	ResponseParam = "response"
	// ResponseModeParam is the parameter name for the OAuth2 response_mode parameter.
	ResponseModeParam = "response_mode"
	// ResponseTypeParam is the parameter name for the response_type parameter. (RFC6749)
	ResponseTypeParam = "response_type"
	// ResponseURIParam is the parameter name for the OpenID4VP response_uri parameter.
	ResponseURIParam = "response_uri"
	// ScopeParam is the parameter name for the scope parameter. (RFC6749)
	ScopeParam = "scope"
	// StateParam is the parameter name for the state parameter. (RFC6749)
	StateParam = "state"
	// TransactionDataParam is the parameter name for the transaction_data parameter. (OpenID4VP)
	TransactionDataParam = "transaction_data"
	// VerifierInfoParam is the parameter name for the verifier_info parameter, carrying verifier attestations. (OpenID4VP)
	VerifierInfoParam = "verifier_info"
	// VpTokenParam is the parameter name for the vp_token parameter. (OpenID4VP)
	VpTokenParam = "vp_token"
	// WalletMetadataParam is used by the wallet to provide its metadata in an authorization request when RequestURIMethodParam is 'post'
	WalletMetadataParam = "wallet_metadata"
	// WalletNonceParam is a wallet generated nonce to prevent authorization request replay when RequestURIMethodParam is 'post'
	WalletNonceParam = "wallet_nonce"
)

const (
	// ErrorParam is the parameter name for the error parameter
	ErrorParam = "error"
	// ErrorDescriptionParam is the parameter name for the error_description parameter
	ErrorDescriptionParam = "error_description"
)

// response types
const (
	// VPTokenResponseType is the parameter name for the vp_token response type. (OpenID4VP)
	VPTokenResponseType = "vp_token"
)

// ResponseMode determines how the authorization response is returned to the verifier.
type ResponseMode string

// response modes
const (
	// ResponseModeDirectPost is the direct_post response mode: the response parameters are posted form-encoded to the response_uri. (OpenID4VP)
	ResponseModeDirectPost ResponseMode = "direct_post"
	// ResponseModeDirectPostJWT is the direct_post.jwt response mode: like direct_post, but the parameters are wrapped in a JARM JWT. (JARM)
	ResponseModeDirectPostJWT ResponseMode = "direct_post.jwt"
	// ResponseModeQuery is the query response mode: the response parameters are encoded in the redirect_uri query. (RFC6749)
	ResponseModeQuery ResponseMode = "query"
	// ResponseModeQueryJWT is the query.jwt response mode. (JARM)
	ResponseModeQueryJWT ResponseMode = "query.jwt"
	// ResponseModeFragment is the fragment response mode: the response parameters are encoded in the redirect_uri fragment.
	ResponseModeFragment ResponseMode = "fragment"
	// ResponseModeFragmentJWT is the fragment.jwt response mode. (JARM)
	ResponseModeFragmentJWT ResponseMode = "fragment.jwt"
)

// Valid returns true for the response modes supported by this implementation.
func (m ResponseMode) Valid() bool {
	switch m {
	case ResponseModeDirectPost, ResponseModeDirectPostJWT,
		ResponseModeQuery, ResponseModeQueryJWT,
		ResponseModeFragment, ResponseModeFragmentJWT:
		return true
	}
	return false
}

// UsesJARM returns true if the response mode requires the response to be packaged as a JARM JWT.
func (m ResponseMode) UsesJARM() bool {
	switch m {
	case ResponseModeDirectPostJWT, ResponseModeQueryJWT, ResponseModeFragmentJWT:
		return true
	}
	return false
}

// IsDirectPost returns true for the direct_post family of response modes.
func (m ResponseMode) IsDirectPost() bool {
	return m == ResponseModeDirectPost || m == ResponseModeDirectPostJWT
}

// VPFormats is an object containing a list of key value pairs, where the key is a string identifying a Credential
// format and the value is a map of format-specific parameters (e.g. alg_values_supported).
type VPFormats map[string]map[string][]string

// Intersect returns the formats present in both sets. Format-specific parameters are taken from the receiver.
func (f VPFormats) Intersect(other VPFormats) VPFormats {
	result := VPFormats{}
	for format, params := range f {
		if _, ok := other[format]; ok {
			result[format] = params
		}
	}
	return result
}

// Redirect is the response from the verifier on the direct_post authorization response.
type Redirect struct {
	// RedirectURI is the URI to redirect the user-agent to.
	RedirectURI string `json:"redirect_uri"`
}
