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

package crypto

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNoCertificateChain is returned when a JWT header does not carry an x5c certificate chain.
var ErrNoCertificateChain = errors.New("JWT header does not contain an x5c certificate chain")

// ParseCertificateChain parses the base64 encoded DER certificates of an x5c JOSE header, leaf first.
func ParseCertificateChain(encodedCertificates []string) ([]*x509.Certificate, error) {
	if len(encodedCertificates) == 0 {
		return nil, ErrNoCertificateChain
	}
	chain := make([]*x509.Certificate, len(encodedCertificates))
	for i, encoded := range encodedCertificates {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid x5c entry %d: %w", i, err)
		}
		certificate, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("invalid x5c entry %d: %w", i, err)
		}
		chain[i] = certificate
	}
	return chain, nil
}

// CertificateThumbprint computes the base64url encoded SHA-256 hash over the certificate's DER encoding.
func CertificateThumbprint(certificate *x509.Certificate) string {
	digest := sha256.Sum256(certificate.Raw)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
