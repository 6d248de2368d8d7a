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

	"github.com/nuts-foundation/openid4vp/dcql"
	"github.com/nuts-foundation/openid4vp/oauth"
)

// RequestResolver resolves the query source of a validated request and validates the
// auxiliary transaction data and verifier attestations against it.
type RequestResolver struct {
	config Configuration
}

// NewRequestResolver returns a RequestResolver for the given configuration.
func NewRequestResolver(config Configuration) *RequestResolver {
	return &RequestResolver{config: config}
}

// Resolve produces the terminal ResolvedRequestData. DCQL queries resolve in-process;
// the context is accepted for future query sources that require I/O.
func (r *RequestResolver) Resolve(_ context.Context, data ValidatedRequestData) (ResolvedRequestData, error) {
	query, err := dcql.Parse(data.Query)
	if err != nil {
		return ResolvedRequestData{}, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "invalid dcql_query", InternalError: err}
	}
	transactionData, err := parseTransactionData(data.TransactionData, r.config.TransactionDataTypes, *query)
	if err != nil {
		return ResolvedRequestData{}, err
	}
	attestations, err := validateVerifierAttestations(data.VerifierInfo, *query)
	if err != nil {
		return ResolvedRequestData{}, err
	}
	return ResolvedRequestData{
		Client:               data.Client,
		Query:                *query,
		VPFormats:            data.VPFormats,
		Nonce:                data.Nonce,
		ResponseMode:         data.ResponseMode,
		ResponseURI:          data.ResponseURI,
		RedirectURI:          data.RedirectURI,
		State:                data.State,
		TransactionData:      transactionData,
		VerifierAttestations: attestations,
		Jarm:                 data.Jarm,
	}, nil
}
