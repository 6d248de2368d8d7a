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
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// maxCRLSize caps the size of a downloaded CRL.
const maxCRLSize = 10 * 1024 * 1024

// crlChecker checks leaf certificates against the CRLs published on their distribution points.
// Downloaded CRLs are cached per endpoint until their NextUpdate.
type crlChecker struct {
	httpClient *http.Client
	nowFunc    func() time.Time

	mux  sync.RWMutex
	crls map[string]*cachedCRL
}

type cachedCRL struct {
	// revoked indexes the revoked serial numbers of the list.
	revoked map[string]bool
	// nextUpdate is when the CRL must be refreshed. Zero means refresh on every check.
	nextUpdate time.Time
}

// NewCRLRevocationChecker returns a RevocationChecker that downloads the CRLs listed in the
// certificate's CRL distribution points. Failures to obtain a current CRL are reported as
// ErrRecoverable, leaving the accept/reject decision to the caller.
func NewCRLRevocationChecker(httpClient *http.Client) RevocationChecker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	checker := &crlChecker{
		httpClient: httpClient,
		nowFunc:    time.Now,
		crls:       map[string]*cachedCRL{},
	}
	return checker.isRevoked
}

func (c *crlChecker) isRevoked(certificate *x509.Certificate) (bool, error) {
	for _, endpoint := range certificate.CRLDistributionPoints {
		crl, err := c.crl(endpoint)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrRecoverable, err)
		}
		if crl.revoked[certificate.SerialNumber.String()] {
			return true, nil
		}
	}
	return false, nil
}

func (c *crlChecker) crl(endpoint string) (*cachedCRL, error) {
	c.mux.RLock()
	crl, ok := c.crls[endpoint]
	c.mux.RUnlock()
	if ok && c.nowFunc().Before(crl.nextUpdate) {
		return crl, nil
	}
	crl, err := c.download(endpoint)
	if err != nil {
		return nil, err
	}
	c.mux.Lock()
	c.crls[endpoint] = crl
	c.mux.Unlock()
	return crl, nil
}

func (c *crlChecker) download(endpoint string) (*cachedCRL, error) {
	response, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to download CRL %s: %w", endpoint, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to download CRL %s: server returned HTTP %d", endpoint, response.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, maxCRLSize))
	if err != nil {
		return nil, fmt.Errorf("unable to read CRL %s: %w", endpoint, err)
	}
	list, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse CRL %s: %w", endpoint, err)
	}
	if !list.NextUpdate.IsZero() && c.nowFunc().After(list.NextUpdate) {
		return nil, fmt.Errorf("CRL %s is outdated (next update: %s)", endpoint, list.NextUpdate)
	}
	crl := &cachedCRL{
		revoked:    make(map[string]bool, len(list.RevokedCertificateEntries)),
		nextUpdate: list.NextUpdate,
	}
	for _, entry := range list.RevokedCertificateEntries {
		crl.revoked[entry.SerialNumber.String()] = true
	}
	return crl, nil
}
