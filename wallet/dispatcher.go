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

	"github.com/nuts-foundation/openid4vp/core"
	"github.com/nuts-foundation/openid4vp/oauth"
	"github.com/nuts-foundation/openid4vp/wallet/log"
)

// Dispatcher delivers the (possibly JARM-protected) authorization response to the verifier.
// The direct_post family posts the response; the query/fragment families only build the redirect URL.
type Dispatcher struct {
	config     Configuration
	httpClient HTTPRequestDoer
	signer     *ResponseSignerEncryptor
}

// NewDispatcher returns a Dispatcher using the given HTTP client for direct_post responses.
func NewDispatcher(config Configuration, httpClient HTTPRequestDoer) *Dispatcher {
	return &Dispatcher{
		config:     config,
		httpClient: httpClient,
		signer:     NewResponseSignerEncryptor(config),
	}
}

// Dispatch delivers the response parameters (e.g. vp_token) for a resolved request.
// The request's state is attached automatically. The returned Redirect tells the application
// where to send the user-agent; it is nil when the verifier did not ask for a redirect.
func (d *Dispatcher) Dispatch(ctx context.Context, request ResolvedRequestData, params map[string]string) (*oauth.Redirect, error) {
	sendParams, err := d.responseParams(request.ResponseMode, request.Jarm, request.State, params)
	if err != nil {
		return nil, err
	}
	return d.send(ctx, request.ResponseMode, request.ResponseURI, request.RedirectURI, sendParams)
}

// DispatchError reports a protocol error back to the verifier, subject to the configured ErrorDispatchPolicy.
// client is the authenticated verifier, nil when authentication did not complete before the failure.
// It returns (nil, nil) when policy suppresses dispatch or no endpoint is known.
func (d *Dispatcher) DispatchError(ctx context.Context, client Client, request ValidatedRequestData, oauthErr oauth.OAuth2Error) (*oauth.Redirect, error) {
	switch ErrorDispatchPolicy(d.config.ErrorDispatch) {
	case DispatchNever:
		return nil, nil
	case DispatchAuthenticatedOnly:
		if client == nil {
			log.Logger().WithError(oauthErr).Debug("Not dispatching error for unauthenticated verifier")
			return nil, nil
		}
	}
	responseMode := request.ResponseMode
	if !responseMode.Valid() {
		responseMode = oauth.ResponseModeDirectPost
	}
	if request.ResponseURI == "" && request.RedirectURI == "" {
		return nil, nil
	}
	params := map[string]string{
		oauth.ErrorParam: string(oauthErr.Code),
	}
	if oauthErr.Description != "" {
		params[oauth.ErrorDescriptionParam] = oauthErr.Description
	}
	sendParams, err := d.responseParams(responseMode, request.Jarm, request.State, params)
	if err != nil {
		// a JARM failure must not mask the original error
		log.Logger().WithError(err).Warn("Unable to protect error response, sending unprotected")
		sendParams = params
		if request.State != "" {
			sendParams[oauth.StateParam] = request.State
		}
	}
	return d.send(ctx, responseMode, request.ResponseURI, request.RedirectURI, sendParams)
}

// responseParams applies JARM when the response mode calls for it, returning the wire-level parameters.
func (d *Dispatcher) responseParams(responseMode oauth.ResponseMode, jarm JarmRequirement, state string, params map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(params)+1)
	for name, value := range params {
		merged[name] = value
	}
	if state != "" {
		merged[oauth.StateParam] = state
	}
	if !responseMode.UsesJARM() {
		if jarm != nil {
			// the verifier asked for protection through metadata, honor it even on a plain mode
			protected, err := d.signer.Protect(jarm, merged)
			if err != nil {
				return nil, err
			}
			return map[string]string{oauth.ResponseParam: protected}, nil
		}
		return merged, nil
	}
	protected, err := d.signer.Protect(jarm, merged)
	if err != nil {
		return nil, err
	}
	return map[string]string{oauth.ResponseParam: protected}, nil
}

func (d *Dispatcher) send(ctx context.Context, responseMode oauth.ResponseMode, responseURI string, redirectURI string, params map[string]string) (*oauth.Redirect, error) {
	switch responseMode {
	case oauth.ResponseModeDirectPost, oauth.ResponseModeDirectPostJWT:
		return d.post(ctx, responseURI, params)
	case oauth.ResponseModeQuery, oauth.ResponseModeQueryJWT:
		return buildRedirect(redirectURI, params, core.AddQueryParams)
	case oauth.ResponseModeFragment, oauth.ResponseModeFragmentJWT:
		return buildRedirect(redirectURI, params, core.AddFragmentParams)
	default:
		return nil, oauth.OAuth2Error{
			Code:        oauth.UnsupportedResponseMode,
			Description: fmt.Sprintf("unsupported response_mode: %s", responseMode),
		}
	}
}

// post form-posts the response parameters to the verifier's response_uri.
// The verifier may answer with a redirect_uri for the user-agent.
func (d *Dispatcher) post(ctx context.Context, responseURI string, params map[string]string) (*oauth.Redirect, error) {
	if responseURI == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing response_uri"}
	}
	form := url.Values{}
	for name, value := range params {
		form.Set(name, value)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpResponse, err := d.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to post authorization response: %w", err)
	}
	defer httpResponse.Body.Close()
	if err := core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger()); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	var redirect oauth.Redirect
	if len(body) > 0 {
		// an empty or non-JSON body simply means no redirect
		if err := json.Unmarshal(body, &redirect); err != nil || redirect.RedirectURI == "" {
			return nil, nil
		}
	}
	if redirect.RedirectURI == "" {
		return nil, nil
	}
	if _, err := core.ParsePublicURL(redirect.RedirectURI, d.config.StrictMode); err != nil {
		return nil, fmt.Errorf("verifier returned an invalid redirect_uri: %w", err)
	}
	return &redirect, nil
}

// buildRedirect encodes the response parameters into the redirect URL without network traffic.
func buildRedirect(redirectURI string, params map[string]string, encode func(url.URL, map[string]string) url.URL) (*oauth.Redirect, error) {
	if redirectURI == "" {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "missing redirect_uri"}
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid redirect_uri", InternalError: err}
	}
	target := encode(*parsed, params)
	return &oauth.Redirect{RedirectURI: target.String()}, nil
}
