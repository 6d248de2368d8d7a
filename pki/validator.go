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

package pki

import (
	"crypto/x509"
	"errors"
	"fmt"
)

var _ Validator = (*validator)(nil)

// RevocationChecker reports whether the given certificate has been revoked.
// An error wrapping ErrRecoverable should be returned when the revocation status cannot be established.
type RevocationChecker func(certificate *x509.Certificate) (bool, error)

type validator struct {
	truststore      *x509.CertPool
	checkNotRevoked RevocationChecker
}

// NewValidator returns a Validator that validates chains against the given trust anchors.
// The optional revocation checker is invoked for the leaf certificate; pass nil to skip revocation checking.
func NewValidator(truststore []*x509.Certificate, checkNotRevoked RevocationChecker) Validator {
	pool := x509.NewCertPool()
	for _, anchor := range truststore {
		pool.AddCert(anchor)
	}
	return &validator{
		truststore:      pool,
		checkNotRevoked: checkNotRevoked,
	}
}

func (v *validator) Validate(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return errors.New("empty certificate chain")
	}
	leaf := chain[0]
	intermediates := x509.NewCertPool()
	for _, certificate := range chain[1:] {
		intermediates.AddCert(certificate)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.truststore,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCertUntrusted, err)
	}
	if v.checkNotRevoked != nil {
		revoked, err := v.checkNotRevoked(leaf)
		if err != nil {
			return fmt.Errorf("revocation check failed: %w", err)
		}
		if revoked {
			return ErrCertRevoked
		}
	}
	return nil
}
