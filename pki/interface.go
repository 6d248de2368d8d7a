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

// Package pki defines the X.509 trust collaborator consumed by the wallet when authenticating
// verifiers that use the x509_hash / x509_san_dns client_id schemes.
package pki

import (
	"crypto/x509"
	"errors"
)

// ErrCertUntrusted is returned when the certificate chain does not lead up to a configured trust anchor.
var ErrCertUntrusted = errors.New("certificate is not trusted")

// ErrCertRevoked is returned when a certificate in the chain has been revoked.
var ErrCertRevoked = errors.New("certificate is revoked")

// ErrRecoverable marks validation failures that the caller may choose to accept, e.g. an unreachable CRL endpoint.
// Callers decide based on policy (strict mode) whether a recoverable failure is fatal; it is never accepted implicitly.
var ErrRecoverable = errors.New("recoverable validation failure")

// Validator validates X.509 certificate chains presented by verifiers.
type Validator interface {
	// Validate validates the certificate chain, leaf first, against the configured trust anchors,
	// including a revocation check on the leaf.
	// It returns ErrCertUntrusted or ErrCertRevoked (possibly wrapped) when validation fails,
	// or an error wrapping ErrRecoverable when the revocation status could not be established.
	Validate(chain []*x509.Certificate) error
}

// ValidateDNSName checks that the leaf certificate of the chain is valid for the given DNS name
// using its Subject Alternative Names.
func ValidateDNSName(chain []*x509.Certificate, dnsName string) error {
	if len(chain) == 0 {
		return errors.New("empty certificate chain")
	}
	return chain[0].VerifyHostname(dnsName)
}
