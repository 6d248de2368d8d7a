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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nuts-foundation/openid4vp/core"
	"github.com/nuts-foundation/openid4vp/oauth"
	"github.com/nuts-foundation/openid4vp/pki"
	"github.com/nuts-foundation/openid4vp/resolver"
	"github.com/nuts-foundation/openid4vp/wallet/log"
)

// Pipeline wires the request-side components into the full resolution flow:
// parse, fetch, authenticate, resolve. After the application obtained consent
// it uses Dispatch to deliver the response.
type Pipeline struct {
	config        Configuration
	fetcher       *RequestFetcher
	authenticator *RequestAuthenticator
	resolver      *RequestResolver
	dispatcher    *Dispatcher
	metrics       *metrics
}

// Option overrides a Pipeline collaborator, e.g. the HTTP client in tests.
type Option func(*options)

type options struct {
	httpClient HTTPRequestDoer
}

// WithHTTPClient replaces the default strict HTTP client.
func WithHTTPClient(client HTTPRequestDoer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New constructs a Pipeline. The configuration is validated; key resolution and
// X.509 chain validation are delegated to the given collaborators.
func New(config Configuration, keyResolver resolver.KeyResolver, pkiValidator pki.Validator, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = core.NewStrictHTTPClient(config.StrictMode, time.Duration(config.HTTPTimeout)*time.Second, nil)
	}
	clients := NewClientAuthenticator(config, keyResolver, pkiValidator)
	return &Pipeline{
		config:        config,
		fetcher:       NewRequestFetcher(config, o.httpClient),
		authenticator: NewRequestAuthenticator(config, clients),
		resolver:      NewRequestResolver(config),
		dispatcher:    NewDispatcher(config, o.httpClient),
		metrics:       newMetrics(),
	}, nil
}

// Collectors returns the pipeline's prometheus collectors, for registration by the host application.
func (p *Pipeline) Collectors() []prometheus.Collector {
	return p.metrics.Collectors()
}

// Resolve runs an authorization request URL through the full request-side flow.
// Failures after verifier authentication are reported back to the verifier according to the
// configured ErrorDispatchPolicy before the error is returned.
func (p *Pipeline) Resolve(ctx context.Context, authorizationRequest string) (ResolvedRequestData, error) {
	logger := log.Logger().WithField(core.LogFieldResolutionID, uuid.NewString())
	unvalidated, err := ParseAuthorizationRequest(authorizationRequest)
	if err != nil {
		p.countFailure(err)
		return ResolvedRequestData{}, err
	}
	fetched, err := p.fetcher.Fetch(ctx, unvalidated)
	if err != nil {
		p.countFailure(err)
		return ResolvedRequestData{}, err
	}
	validated, err := p.authenticator.Authenticate(ctx, fetched)
	if err != nil {
		p.reportFailure(ctx, validated, err)
		return ResolvedRequestData{}, err
	}
	resolved, err := p.resolver.Resolve(ctx, validated)
	if err != nil {
		p.reportFailure(ctx, validated, err)
		return ResolvedRequestData{}, err
	}
	p.metrics.resolvedRequests.WithLabelValues(schemeLabel(resolved.Client)).Inc()
	logger.
		WithField(core.LogFieldClientID, resolved.Client.ID()).
		WithField(core.LogFieldResponseMode, string(resolved.ResponseMode)).
		Debug("Resolved authorization request")
	return resolved, nil
}

// Dispatch delivers the response parameters for a resolved request and returns the
// user-agent redirect, if the verifier provided one.
func (p *Pipeline) Dispatch(ctx context.Context, request ResolvedRequestData, params map[string]string) (*oauth.Redirect, error) {
	redirect, err := p.dispatcher.Dispatch(ctx, request, params)
	if err != nil {
		p.countFailure(err)
		return nil, err
	}
	p.metrics.dispatchedResponses.WithLabelValues(string(request.ResponseMode)).Inc()
	return redirect, nil
}

// DispatchError reports an error produced outside the pipeline (e.g. the user denied consent)
// back to the verifier, subject to the configured ErrorDispatchPolicy.
func (p *Pipeline) DispatchError(ctx context.Context, request ValidatedRequestData, oauthErr oauth.OAuth2Error) (*oauth.Redirect, error) {
	return p.dispatcher.DispatchError(ctx, request.Client, request, oauthErr)
}

// reportFailure counts the failure and, when an endpoint and (policy permitting) a client are known,
// dispatches the error to the verifier. Dispatch failures are logged, never returned.
func (p *Pipeline) reportFailure(ctx context.Context, validated ValidatedRequestData, err error) {
	p.countFailure(err)
	oauthErr := asOAuth2Error(err)
	if _, dispatchErr := p.dispatcher.DispatchError(ctx, validated.Client, validated, oauthErr); dispatchErr != nil {
		log.Logger().WithError(dispatchErr).Warn("Unable to dispatch error response to verifier")
	}
}

func (p *Pipeline) countFailure(err error) {
	p.metrics.failedRequests.WithLabelValues(string(asOAuth2Error(err).Code)).Inc()
}

// asOAuth2Error maps any error to an OAuth2Error, defaulting to server_error.
func asOAuth2Error(err error) oauth.OAuth2Error {
	var oauthErr oauth.OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return oauth.OAuth2Error{Code: oauth.ServerError, InternalError: err}
}
