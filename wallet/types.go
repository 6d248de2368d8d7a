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

// Package wallet implements the holder side of the OpenID4VP authorization protocol:
// parsing and fetching authorization requests, authenticating the verifier,
// resolving the request into a presentable form, and protecting and dispatching the response.
package wallet

import (
	"crypto/x509"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/go-did/did"

	"github.com/nuts-foundation/openid4vp/dcql"
	"github.com/nuts-foundation/openid4vp/oauth"
)

// ClientIDScheme identifies the trust scheme encoded in a verifier's client_id.
type ClientIDScheme string

const (
	// SchemePreRegistered authenticates the verifier against a pre-registered client table. Default when the client_id has no prefix.
	SchemePreRegistered ClientIDScheme = "pre-registered"
	// SchemeRedirectURI performs no cryptographic verification; the client_id is the verifier's redirect URI.
	SchemeRedirectURI ClientIDScheme = "redirect_uri"
	// SchemeX509SanDns binds the client_id to a DNS name in the leaf certificate's Subject Alternative Names.
	SchemeX509SanDns ClientIDScheme = "x509_san_dns"
	// SchemeX509Hash binds the client_id to the SHA-256 thumbprint of the leaf certificate.
	SchemeX509Hash ClientIDScheme = "x509_hash"
	// SchemeDID authenticates the verifier through its DID document's signing key.
	SchemeDID ClientIDScheme = "did"
	// SchemeVerifierAttestation authenticates the verifier through an attestation JWT issued by a trusted party.
	SchemeVerifierAttestation ClientIDScheme = "verifier_attestation"
)

// VerifierID is the normalized (scheme, identifier) pair extracted from a client_id.
type VerifierID struct {
	Scheme ClientIDScheme
	// OriginalID is the client_id without the scheme prefix. For the did scheme it is the full DID.
	OriginalID string
	// FullID is the client_id exactly as it appeared in the request.
	FullID string
}

func (v VerifierID) String() string {
	return v.FullID
}

// ParseVerifierID splits a client_id into its scheme and original identifier.
// A client_id without (recognized) scheme prefix is treated as pre-registered.
func ParseVerifierID(clientID string) (VerifierID, error) {
	if clientID == "" {
		return VerifierID{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing client_id"}
	}
	prefix, rest, found := strings.Cut(clientID, ":")
	if !found {
		return VerifierID{Scheme: SchemePreRegistered, OriginalID: clientID, FullID: clientID}, nil
	}
	switch prefix {
	case "did":
		// a DID is its own identifier, the prefix is not stripped
		return VerifierID{Scheme: SchemeDID, OriginalID: clientID, FullID: clientID}, nil
	case "decentralized_identifier":
		return VerifierID{Scheme: SchemeDID, OriginalID: rest, FullID: clientID}, nil
	case string(SchemeRedirectURI), string(SchemeX509SanDns), string(SchemeX509Hash), string(SchemeVerifierAttestation):
		if rest == "" {
			return VerifierID{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "client_id scheme prefix without identifier"}
		}
		return VerifierID{Scheme: ClientIDScheme(prefix), OriginalID: rest, FullID: clientID}, nil
	default:
		// unknown prefixes are part of a pre-registered identifier
		return VerifierID{Scheme: SchemePreRegistered, OriginalID: clientID, FullID: clientID}, nil
	}
}

// RequestURIMethod is the HTTP method to use when dereferencing a request_uri.
type RequestURIMethod string

const (
	// MethodGet dereferences the request_uri with a plain HTTP GET.
	MethodGet RequestURIMethod = "get"
	// MethodPost dereferences the request_uri with an HTTP POST, disclosing wallet metadata and a replay nonce.
	MethodPost RequestURIMethod = "post"
)

// UnvalidatedRequest is the authorization request as parsed from the authorization URL, before any
// network or cryptographic operation. It is one of PlainRequest, ByValueRequest or ByReferenceRequest.
type UnvalidatedRequest interface {
	unvalidatedRequest()
}

// PlainRequest is an authorization request passed as individual query parameters, without JAR.
type PlainRequest struct {
	Object RequestObject
}

// ByValueRequest is a JWT-secured authorization request passed by value in the request parameter.
type ByValueRequest struct {
	ClientID   string
	RequestJWT string
}

// ByReferenceRequest is a JWT-secured authorization request passed by reference in the request_uri parameter.
type ByReferenceRequest struct {
	ClientID   string
	RequestURI *url.URL
	Method     RequestURIMethod
}

func (PlainRequest) unvalidatedRequest()       {}
func (ByValueRequest) unvalidatedRequest()     {}
func (ByReferenceRequest) unvalidatedRequest() {}

// FetchedRequest is the authorization request after the request_uri (if any) has been dereferenced.
// It is one of PlainFetchedRequest or JWTSecuredRequest, and is consumed exactly once by the RequestAuthenticator.
type FetchedRequest interface {
	fetchedRequest()
}

// PlainFetchedRequest wraps a PlainRequest's object; nothing was fetched.
type PlainFetchedRequest struct {
	Object RequestObject
}

// JWTSecuredRequest holds the request object JWT, either passed by value or retrieved from the request_uri.
type JWTSecuredRequest struct {
	ClientID   string
	RequestJWT string
}

func (PlainFetchedRequest) fetchedRequest() {}
func (JWTSecuredRequest) fetchedRequest()   {}

// RequestObject holds the authorization request parameters, decoded but not yet validated.
type RequestObject struct {
	ResponseType           string
	ClientID               string
	ResponseURI            string
	RedirectURI            string
	Nonce                  string
	State                  string
	Scope                  string
	ResponseMode           string
	WalletNonce            string
	DCQLQuery              json.RawMessage
	PresentationDefinition json.RawMessage
	ClientMetadata         *oauth.ClientMetadata
	TransactionData        []string
	VerifierInfo           []VerifierInfo
}

// VerifierInfo is a single verifier_info entry: an attestation about the verifier,
// optionally restricted to a subset of the credential queries.
type VerifierInfo struct {
	Format        string          `json:"format"`
	Data          json.RawMessage `json:"data"`
	CredentialIDs []string        `json:"credential_ids,omitempty"`
}

// Client is the verifier identity after trust establishment. The variant records which of the
// mutually exclusive trust schemes succeeded and carries the evidence for later auditing.
type Client interface {
	// ID returns the client identifier as presented in the authorization request.
	ID() string
	client()
}

// PreRegisteredClient is a verifier found in the wallet's pre-registered client table.
type PreRegisteredClient struct {
	ClientID  string
	LegalName string
}

// X509HashClient is a verifier whose client_id equals the SHA-256 thumbprint of its leaf certificate.
type X509HashClient struct {
	ClientID    string
	Certificate *x509.Certificate
}

// X509SanDnsClient is a verifier whose client_id is a DNS name present in its leaf certificate's SANs.
type X509SanDnsClient struct {
	ClientID    string
	Certificate *x509.Certificate
}

// DIDClient is a verifier authenticated through its DID document.
type DIDClient struct {
	DID did.DID
}

// AttestedClient is a verifier authenticated through a verifier attestation issued by a trusted party.
type AttestedClient struct {
	ClientID    string
	Attestation AttestationClaims
}

// RedirectURIClient is a verifier accepted without cryptographic verification. Weakest trust tier.
type RedirectURIClient struct {
	ClientID string
}

func (c PreRegisteredClient) ID() string { return c.ClientID }
func (c X509HashClient) ID() string      { return c.ClientID }
func (c X509SanDnsClient) ID() string    { return c.ClientID }
func (c DIDClient) ID() string           { return c.DID.String() }
func (c AttestedClient) ID() string      { return c.ClientID }
func (c RedirectURIClient) ID() string   { return c.ClientID }

func (PreRegisteredClient) client() {}
func (X509HashClient) client()     {}
func (X509SanDnsClient) client()   {}
func (DIDClient) client()          {}
func (AttestedClient) client()     {}
func (RedirectURIClient) client()  {}

// AttestationClaims holds the claims extracted from a verifier attestation JWT.
type AttestationClaims struct {
	Issuer          string
	Subject         string
	IssuedAt        int64
	Expires         int64
	ConfirmationKey jwk.Key
}

// JarmRequirement expresses how the authorization response must be protected before dispatch.
// It is derived from wallet capability and verifier metadata, never constructed by callers.
// A nil JarmRequirement means the response is sent unprotected.
type JarmRequirement interface {
	jarmRequirement()
}

// JarmSigned requires the response to be signed as a JWS with the given algorithm.
type JarmSigned struct {
	Algorithm jwa.SignatureAlgorithm
}

// JarmEncrypted requires the response to be encrypted as a JWE to one of the verifier's keys.
type JarmEncrypted struct {
	Algorithm     jwa.KeyEncryptionAlgorithm
	Method        jwa.ContentEncryptionAlgorithm
	RecipientKeys jwk.Set
}

// JarmSignedAndEncrypted requires the response to be signed, then encrypted (the compact JWS is the JWE payload).
type JarmSignedAndEncrypted struct {
	Signed    JarmSigned
	Encrypted JarmEncrypted
}

func (JarmSigned) jarmRequirement()             {}
func (JarmEncrypted) jarmRequirement()          {}
func (JarmSignedAndEncrypted) jarmRequirement() {}

// ValidatedRequestData is the authorization request after verifier authentication and structural validation,
// before the query source has been resolved.
type ValidatedRequestData struct {
	Client          Client
	Query           json.RawMessage
	VPFormats       oauth.VPFormats
	Nonce           string
	ResponseMode    oauth.ResponseMode
	ResponseURI     string
	RedirectURI     string
	State           string
	TransactionData []string
	VerifierInfo    []VerifierInfo
	Jarm            JarmRequirement
}

// ResolvedRequestData is the terminal artifact of request-side processing: everything the application
// needs to ask for consent and to build, protect and dispatch the response.
type ResolvedRequestData struct {
	Client               Client
	Query                dcql.Query
	VPFormats            oauth.VPFormats
	Nonce                string
	ResponseMode         oauth.ResponseMode
	ResponseURI          string
	RedirectURI          string
	State                string
	TransactionData      []TransactionData
	VerifierAttestations []VerifierAttestation
	Jarm                 JarmRequirement
}
