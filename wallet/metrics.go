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
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	resolvedRequests    *prometheus.CounterVec
	failedRequests      *prometheus.CounterVec
	dispatchedResponses *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		resolvedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vp",
			Subsystem: "wallet",
			Name:      "resolved_requests_total",
			Help:      "Number of successfully resolved authorization requests, by client_id scheme.",
		}, []string{"scheme"}),
		failedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vp",
			Subsystem: "wallet",
			Name:      "failed_requests_total",
			Help:      "Number of authorization requests that failed resolution, by OAuth2 error code.",
		}, []string{"error"}),
		dispatchedResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vp",
			Subsystem: "wallet",
			Name:      "dispatched_responses_total",
			Help:      "Number of dispatched authorization responses, by response mode.",
		}, []string{"response_mode"}),
	}
}

// Collectors returns the prometheus collectors of this instance, for registration by the host application.
func (m *metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.resolvedRequests, m.failedRequests, m.dispatchedResponses}
}

// schemeLabel extracts the client_id scheme of an authenticated client for metric labeling.
func schemeLabel(client Client) string {
	switch client.(type) {
	case PreRegisteredClient:
		return string(SchemePreRegistered)
	case RedirectURIClient:
		return string(SchemeRedirectURI)
	case X509HashClient:
		return string(SchemeX509Hash)
	case X509SanDnsClient:
		return string(SchemeX509SanDns)
	case DIDClient:
		return string(SchemeDID)
	case AttestedClient:
		return string(SchemeVerifierAttestation)
	default:
		return "unknown"
	}
}
