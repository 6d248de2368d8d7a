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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/nuts-foundation/openid4vp/core"
	"github.com/nuts-foundation/openid4vp/crypto"
	"github.com/nuts-foundation/openid4vp/oauth"
	"github.com/nuts-foundation/openid4vp/wallet/log"
)

// HTTPRequestDoer performs HTTP requests. *core.StrictHTTPClient satisfies it.
type HTTPRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFetcher dereferences a request_uri into a request object JWT.
type RequestFetcher struct {
	config     Configuration
	httpClient HTTPRequestDoer
}

// NewRequestFetcher returns a RequestFetcher using the given HTTP client.
func NewRequestFetcher(config Configuration, httpClient HTTPRequestDoer) *RequestFetcher {
	return &RequestFetcher{config: config, httpClient: httpClient}
}

// Fetch turns an UnvalidatedRequest into a FetchedRequest, dereferencing the request_uri when present.
// Plain and by-value requests pass through without network traffic.
func (f *RequestFetcher) Fetch(ctx context.Context, request UnvalidatedRequest) (FetchedRequest, error) {
	switch typed := request.(type) {
	case PlainRequest:
		return PlainFetchedRequest{Object: typed.Object}, nil
	case ByValueRequest:
		return JWTSecuredRequest{ClientID: typed.ClientID, RequestJWT: typed.RequestJWT}, nil
	case ByReferenceRequest:
		requestJWT, err := f.fetchByReference(ctx, typed)
		if err != nil {
			return nil, err
		}
		return JWTSecuredRequest{ClientID: typed.ClientID, RequestJWT: requestJWT}, nil
	default:
		return nil, fmt.Errorf("unsupported request type %T", request)
	}
}

func (f *RequestFetcher) fetchByReference(ctx context.Context, request ByReferenceRequest) (string, error) {
	if !f.config.SupportsRequestURIMethod(request.Method) {
		return "", oauth.OAuth2Error{
			Code:        oauth.InvalidRequestURI,
			Description: fmt.Sprintf("request_uri_method %s is not supported", request.Method),
		}
	}
	log.Logger().
		WithField(core.LogFieldClientID, request.ClientID).
		WithField(core.LogFieldRequestURI, request.RequestURI.String()).
		Debugf("Dereferencing request_uri (method=%s)", request.Method)

	var requestJWT string
	var walletNonce string
	var err error
	switch request.Method {
	case MethodPost:
		requestJWT, walletNonce, err = f.postRequestURI(ctx, request.RequestURI)
	default:
		requestJWT, err = f.getRequestURI(ctx, request.RequestURI)
	}
	if err != nil {
		return "", err
	}
	if err := f.verifyBinding(request.ClientID, requestJWT, walletNonce); err != nil {
		return "", err
	}
	return requestJWT, nil
}

func (f *RequestFetcher) getRequestURI(ctx context.Context, requestURI *url.URL) (string, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI.String(), nil)
	if err != nil {
		return "", err
	}
	httpRequest.Header.Set("Accept", "application/oauth-authz-req+jwt")
	body, err := f.doRequest(httpRequest)
	if err != nil {
		return "", err
	}
	return extractJWT(body), nil
}

// postRequestURI retrieves the request object with an HTTP POST, disclosing wallet metadata and a replay nonce.
// It returns the (decrypted) request object JWT and the wallet nonce that was sent, if any.
func (f *RequestFetcher) postRequestURI(ctx context.Context, requestURI *url.URL) (string, string, error) {
	form := url.Values{}
	var walletNonce string
	if f.config.WalletNonceBytes > 0 {
		walletNonce = crypto.GenerateNonceOfLength(f.config.WalletNonceBytes)
		form.Set(oauth.WalletNonceParam, walletNonce)
	}
	var ephemeralKey jwk.Key
	encryptionPolicy := EncryptionPolicy(f.config.PostEncryption)
	if encryptionPolicy != EncryptionNotSupported {
		var err error
		ephemeralKey, err = crypto.GenerateEphemeralEncryptionKey()
		if err != nil {
			return "", "", fmt.Errorf("unable to generate ephemeral encryption key: %w", err)
		}
	}
	if f.config.DiscloseMetadata {
		metadata, err := f.walletMetadata(ephemeralKey)
		if err != nil {
			return "", "", err
		}
		form.Set(oauth.WalletMetadataParam, string(metadata))
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURI.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", err
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpRequest.Header.Set("Accept", "application/oauth-authz-req+jwt")
	body, err := f.doRequest(httpRequest)
	if err != nil {
		return "", "", err
	}

	response := extractJWT(body)
	if ephemeralKey != nil {
		decrypted, err := crypto.DecryptJWE(response, ephemeralKey)
		switch {
		case err == nil:
			response = string(decrypted)
		case encryptionPolicy == EncryptionRequired:
			return "", "", oauth.OAuth2Error{
				Code:          oauth.InvalidRequestObject,
				Description:   "request object must be encrypted to the provided wallet key",
				InternalError: err,
			}
		default:
			// encryption was offered but not used, accept the plaintext JWT
			log.Logger().WithError(err).Debug("Request object is not encrypted to the ephemeral key, using response as plaintext JWT")
		}
	}
	return response, walletNonce, nil
}

func (f *RequestFetcher) doRequest(httpRequest *http.Request) (string, error) {
	httpResponse, err := f.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("failed to call endpoint: %w", err)
	}
	defer httpResponse.Body.Close()
	if err := core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger()); err != nil {
		return "", err
	}
	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("unable to read response: %w", err)
	}
	return string(body), nil
}

// walletMetadata builds the wallet_metadata form field disclosed on a POST to the request_uri.
// When an ephemeral encryption key is given its public part is included in the jwks claim.
func (f *RequestFetcher) walletMetadata(ephemeralKey jwk.Key) ([]byte, error) {
	encryptionAlgs := make([]string, len(f.config.EncryptionAlgorithms))
	for i, alg := range f.config.EncryptionAlgorithms {
		encryptionAlgs[i] = alg.String()
	}
	encryptionEncs := make([]string, len(f.config.EncryptionMethods))
	for i, enc := range f.config.EncryptionMethods {
		encryptionEncs[i] = enc.String()
	}
	metadata := oauth.WalletMetadata{
		VPFormatsSupported:                     f.config.VPFormats,
		RequestObjectSigningAlgValuesSupported: f.config.JARSigningAlgorithmsAsStrings(),
		AuthorizationEncryptionAlgValuesSupported: encryptionAlgs,
		AuthorizationEncryptionEncValuesSupported: encryptionEncs,
		ClientIdSchemesSupported:                  f.config.ClientIDSchemes,
		ResponseModesSupported: []string{
			string(oauth.ResponseModeDirectPost), string(oauth.ResponseModeDirectPostJWT),
			string(oauth.ResponseModeQuery), string(oauth.ResponseModeQueryJWT),
			string(oauth.ResponseModeFragment), string(oauth.ResponseModeFragmentJWT),
		},
	}
	if ephemeralKey != nil {
		publicKey, err := ephemeralKey.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("unable to derive public ephemeral key: %w", err)
		}
		keySet := jwk.NewSet()
		if err := keySet.AddKey(publicKey); err != nil {
			return nil, err
		}
		metadata.Jwks, err = json.Marshal(keySet)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(metadata)
}

// verifyBinding checks that the retrieved request object JWT actually belongs to this authorization request:
// the client_id claim must match the expected verifier, the wallet_nonce must be echoed back exactly,
// and the signing algorithm must be acceptable for request objects.
func (f *RequestFetcher) verifyBinding(expectedClientID string, requestJWT string, walletNonce string) error {
	headers, err := crypto.ParseJWSHeaders(requestJWT)
	if err != nil {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object JWT", InternalError: err}
	}
	if !f.config.SupportsJARAlgorithm(headers.Algorithm) {
		return oauth.OAuth2Error{
			Code:        oauth.InvalidRequestObject,
			Description: fmt.Sprintf("request object is signed with unsupported algorithm: %s", headers.Algorithm),
		}
	}
	claims, err := crypto.DecodeJWTPayload(requestJWT)
	if err != nil {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "invalid request object payload", InternalError: err}
	}

	expectedID, err := ParseVerifierID(expectedClientID)
	if err != nil {
		return err
	}
	actualID, err := ParseVerifierID(stringClaim(claims, oauth.ClientIDParam))
	if err != nil {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "request object misses client_id claim", InternalError: err}
	}
	if expectedID != actualID {
		return oauth.OAuth2Error{
			Code:        oauth.InvalidRequestObject,
			Description: fmt.Sprintf("client_id mismatch: expected %s, got %s", expectedID, actualID),
		}
	}
	if walletNonce != "" && stringClaim(claims, oauth.WalletNonceParam) != walletNonce {
		return oauth.OAuth2Error{Code: oauth.InvalidRequestObject, Description: "request object does not echo the wallet_nonce"}
	}
	return nil
}

// extractJWT accepts both a bare compact JWT and the JSON envelope {"jwt": "..."}.
func extractJWT(body string) string {
	var envelope struct {
		JWT string `json:"jwt"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.JWT != "" {
		return envelope.JWT
	}
	return strings.TrimSpace(body)
}
