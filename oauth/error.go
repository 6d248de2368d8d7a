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
	"net/url"
)

// ErrorCode specifies error codes as defined by the OAuth2 specifications.
// Codes and descriptions are taken from https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2.1,
// RFC9101 (JWT-Secured Authorization Request) and OpenID4VP.
type ErrorCode string

const (
	// AccessDenied is returned when the resource owner or authorization server denied the request
	AccessDenied ErrorCode = "access_denied"
	// InvalidClient is returned when client authentication failed (e.g., unknown client, no client authentication included, or unsupported authentication method)
	InvalidClient ErrorCode = "invalid_client"
	// InvalidRequest is returned when the request is missing a required parameter, includes an invalid parameter value,
	// includes a parameter more than once, or is otherwise malformed.
	InvalidRequest ErrorCode = "invalid_request"
	// InvalidRequestURI is returned when the request_uri in the authorization request returns an error or contains invalid data.
	InvalidRequestURI ErrorCode = "invalid_request_uri"
	// InvalidRequestObject is returned when the request parameter contains an invalid Request Object
	InvalidRequestObject ErrorCode = "invalid_request_object"
	// ServerError is returned when the server encountered an unexpected condition that prevented it from fulfilling the request
	ServerError ErrorCode = "server_error"
	// UnsupportedResponseMode is returned when the wallet does not support the requested response_mode
	UnsupportedResponseMode ErrorCode = "unsupported_response_mode"
	// VpFormatsNotSupported is returned when the wallet does not support any of the formats requested by the verifier
	VpFormatsNotSupported ErrorCode = "vp_formats_not_supported"
	// InvalidTransactionData is returned when any of the transaction_data entries is invalid (OpenID4VP)
	InvalidTransactionData ErrorCode = "invalid_transaction_data"
)

// OAuth2Error is the OAuth2 error response as defined by RFC6749, with an internal error for auditing/debugging.
// The InternalError is never returned to the verifier.
type OAuth2Error struct {
	// Code is the error code as defined by the OAuth2 specification.
	Code ErrorCode `json:"error"`
	// Description is a human-readable ASCII [USASCII] text providing additional information,
	// used to assist the client developer in understanding the error that occurred.
	Description string `json:"error_description,omitempty"`
	// InternalError is the underlying error, may be omitted. It is not intended to be returned to the client.
	InternalError error `json:"-"`
	// RedirectURI is the redirect URI of the client in case the user-agent should be redirected with the error response.
	RedirectURI *url.URL `json:"-"`
}

// StatusCode returns the HTTP status code to be returned to the verifier when the error cannot be redirected.
func (e OAuth2Error) StatusCode() int {
	switch e.Code {
	case ServerError:
		return 500
	default:
		return 400
	}
}

// Error returns the error detail, if any. If there's no detail, it returns the error code.
func (e OAuth2Error) Error() string {
	parts := []string{string(e.Code)}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	result := parts[0]
	for _, part := range parts[1:] {
		result += " - " + part
	}
	return result
}

// Unwrap returns the internal error, for errors.Is/As matching.
func (e OAuth2Error) Unwrap() error {
	return e.InternalError
}
