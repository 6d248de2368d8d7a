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
	"errors"
	"fmt"
	"slices"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/nuts-foundation/openid4vp/oauth"
)

// EncryptionPolicy states whether request object encryption is used on a POST to the request_uri.
type EncryptionPolicy string

const (
	// EncryptionNotSupported means no ephemeral key is generated; the request object must be returned as plaintext JWT.
	EncryptionNotSupported EncryptionPolicy = "none"
	// EncryptionSupported means an ephemeral key is generated and disclosed; a plaintext response is still accepted.
	EncryptionSupported EncryptionPolicy = "supported"
	// EncryptionRequired means the response to the POST must be a JWE decryptable with the disclosed ephemeral key.
	EncryptionRequired EncryptionPolicy = "required"
)

// ErrorDispatchPolicy governs when protocol errors are reported back to the verifier's endpoint.
type ErrorDispatchPolicy string

const (
	// DispatchAlways reports errors whenever a response/redirect URI is known.
	DispatchAlways ErrorDispatchPolicy = "always"
	// DispatchAuthenticatedOnly reports errors only when a Client identity was established before the failure.
	DispatchAuthenticatedOnly ErrorDispatchPolicy = "authenticated"
	// DispatchNever disables error dispatch.
	DispatchNever ErrorDispatchPolicy = "never"
)

// Config holds the file/env/flag loadable configuration knobs.
type Config struct {
	// ClockSkew is the allowed JWT clock skew (deviance of iat, exp) in milliseconds.
	ClockSkew int `koanf:"clockskew"`
	// StrictMode requires https for all remote endpoints.
	StrictMode bool `koanf:"strictmode"`
	// HTTPTimeout is the timeout (in seconds) used by the wallet's HTTP client.
	HTTPTimeout int `koanf:"http.timeout"`
	// ClientIDSchemes lists the client_id schemes accepted from verifiers.
	ClientIDSchemes []string `koanf:"clientidschemes"`
	// RequestURIMethods lists the supported request_uri_method values (get, post).
	RequestURIMethods []string `koanf:"requesturimethods"`
	// WalletNonceBytes is the byte length of the wallet_nonce sent on POST; 0 disables the nonce.
	WalletNonceBytes int `koanf:"walletnoncebytes"`
	// PostEncryption is the request object encryption policy for POST (none, supported, required).
	PostEncryption string `koanf:"postencryption"`
	// DiscloseMetadata controls whether wallet_metadata is sent on POST.
	DiscloseMetadata bool `koanf:"disclosemetadata"`
	// ErrorDispatch is the error dispatch policy (always, authenticated, never).
	ErrorDispatch string `koanf:"errordispatch"`
}

// DefaultConfig returns an instance of Config with the default values.
func DefaultConfig() Config {
	return Config{
		ClockSkew:   5000,
		StrictMode:  true,
		HTTPTimeout: 30,
		ClientIDSchemes: []string{
			string(SchemePreRegistered),
			string(SchemeX509SanDns),
			string(SchemeX509Hash),
			string(SchemeDID),
			string(SchemeVerifierAttestation),
		},
		RequestURIMethods: []string{string(MethodGet), string(MethodPost)},
		WalletNonceBytes:  32,
		PostEncryption:    string(EncryptionSupported),
		DiscloseMetadata:  true,
		ErrorDispatch:     string(DispatchAuthenticatedOnly),
	}
}

// SupportedTransactionDataType describes a transaction_data type the wallet can process.
// Construction fails when sha-256 is missing from the hash algorithms, so misconfiguration
// surfaces before any request is processed.
type SupportedTransactionDataType struct {
	typ            string
	hashAlgorithms []string
}

// NewSupportedTransactionDataType returns a SupportedTransactionDataType,
// or an error if the hash algorithm set does not include sha-256.
func NewSupportedTransactionDataType(typ string, hashAlgorithms []string) (SupportedTransactionDataType, error) {
	if typ == "" {
		return SupportedTransactionDataType{}, errors.New("transaction data type must not be empty")
	}
	if !slices.Contains(hashAlgorithms, "sha-256") {
		return SupportedTransactionDataType{}, fmt.Errorf("transaction data type %s must support sha-256", typ)
	}
	return SupportedTransactionDataType{typ: typ, hashAlgorithms: hashAlgorithms}, nil
}

// Type returns the transaction_data type identifier.
func (t SupportedTransactionDataType) Type() string {
	return t.typ
}

// HashAlgorithms returns the supported hash algorithm identifiers.
func (t SupportedTransactionDataType) HashAlgorithms() []string {
	return slices.Clone(t.hashAlgorithms)
}

// Configuration is the long-lived wallet configuration. It is immutable and safely shared
// across concurrently running pipelines.
type Configuration struct {
	Config

	// HolderID identifies this wallet; it is set as iss on signed JARM responses.
	HolderID string
	// SigningKey is the wallet's private key used to sign JARM responses. Its alg header must be set.
	SigningKey jwk.Key
	// JARSigningAlgorithms lists the JWS algorithms accepted on request object JWTs.
	JARSigningAlgorithms []jwa.SignatureAlgorithm
	// EncryptionAlgorithms lists the JWE key-management algorithms the wallet supports for JARM encryption.
	EncryptionAlgorithms []jwa.KeyEncryptionAlgorithm
	// EncryptionMethods lists the JWE content-encryption algorithms the wallet supports for JARM encryption.
	EncryptionMethods []jwa.ContentEncryptionAlgorithm
	// VPFormats lists the presentation formats this wallet can produce, with their parameters.
	VPFormats oauth.VPFormats
	// PreRegisteredClients maps pre-registered client ids to their registered legal name.
	PreRegisteredClients map[string]string
	// AttestationTrustAnchor is the public key verifier attestations must be signed with.
	AttestationTrustAnchor jwk.Key
	// TransactionDataTypes lists the transaction_data types this wallet understands.
	TransactionDataTypes []SupportedTransactionDataType
}

// Validate checks the configuration for inconsistencies. It must be called before the configuration is used.
func (c Configuration) Validate() error {
	if len(c.ClientIDSchemes) == 0 {
		return errors.New("at least one client_id scheme must be configured")
	}
	for _, scheme := range c.ClientIDSchemes {
		switch ClientIDScheme(scheme) {
		case SchemePreRegistered, SchemeRedirectURI, SchemeX509SanDns, SchemeX509Hash, SchemeDID, SchemeVerifierAttestation:
		default:
			return fmt.Errorf("unknown client_id scheme configured: %s", scheme)
		}
	}
	for _, method := range c.RequestURIMethods {
		switch RequestURIMethod(method) {
		case MethodGet, MethodPost:
		default:
			return fmt.Errorf("unknown request_uri_method configured: %s", method)
		}
	}
	switch EncryptionPolicy(c.PostEncryption) {
	case EncryptionNotSupported, EncryptionSupported, EncryptionRequired:
	default:
		return fmt.Errorf("unknown post encryption policy: %s", c.PostEncryption)
	}
	switch ErrorDispatchPolicy(c.ErrorDispatch) {
	case DispatchAlways, DispatchAuthenticatedOnly, DispatchNever:
	default:
		return fmt.Errorf("unknown error dispatch policy: %s", c.ErrorDispatch)
	}
	if len(c.JARSigningAlgorithms) == 0 {
		return errors.New("at least one JAR signing algorithm must be configured")
	}
	if c.PostEncryption != string(EncryptionNotSupported) && len(c.EncryptionAlgorithms) == 0 {
		return errors.New("post encryption requires at least one encryption algorithm")
	}
	// the ephemeral key reaches the verifier through wallet_metadata, so without disclosure it can never be used
	if c.PostEncryption != string(EncryptionNotSupported) && !c.DiscloseMetadata {
		return errors.New("post encryption requires wallet metadata disclosure")
	}
	if len(c.VPFormats) == 0 {
		return errors.New("at least one vp_format must be configured")
	}
	return nil
}

// SupportsScheme returns true if the given client_id scheme is configured.
func (c Configuration) SupportsScheme(scheme ClientIDScheme) bool {
	return slices.Contains(c.ClientIDSchemes, string(scheme))
}

// SupportsRequestURIMethod returns true if the given request_uri_method is configured.
func (c Configuration) SupportsRequestURIMethod(method RequestURIMethod) bool {
	return slices.Contains(c.RequestURIMethods, string(method))
}

// SupportsJARAlgorithm returns true if the given JWS algorithm is accepted on request object JWTs.
func (c Configuration) SupportsJARAlgorithm(alg jwa.SignatureAlgorithm) bool {
	return slices.Contains(c.JARSigningAlgorithms, alg)
}

// TransactionDataType returns the configured transaction data type with the given identifier, if any.
func (c Configuration) TransactionDataType(typ string) (SupportedTransactionDataType, bool) {
	for _, supported := range c.TransactionDataTypes {
		if supported.typ == typ {
			return supported, true
		}
	}
	return SupportedTransactionDataType{}, false
}

// JARSigningAlgorithmsAsStrings returns the accepted JAR algorithms as strings, for metadata disclosure.
func (c Configuration) JARSigningAlgorithmsAsStrings() []string {
	result := make([]string, len(c.JARSigningAlgorithms))
	for i, alg := range c.JARSigningAlgorithms {
		result[i] = alg.String()
	}
	return result
}
