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

// Package dcql implements the Digital Credentials Query Language (DCQL) model as specified by OpenID4VP.
// Matching credentials against a query is performed by a separate engine; this package only models and validates queries.
package dcql

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// credentialQueryIDPattern restricts query identifiers to non-empty alphanumeric strings with underscores and hyphens.
var credentialQueryIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Query is a DCQL query: a set of credential queries, optionally grouped in credential sets.
type Query struct {
	Credentials    []CredentialQuery    `json:"credentials"`
	CredentialSets []CredentialSetQuery `json:"credential_sets,omitempty"`
}

// CredentialQuery requests presentation of one credential of a specific format.
type CredentialQuery struct {
	ID        string          `json:"id"`
	Format    string          `json:"format"`
	Multiple  bool            `json:"multiple,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Claims    []ClaimsQuery   `json:"claims,omitempty"`
	ClaimSets [][]string      `json:"claim_sets,omitempty"`
}

// ClaimsQuery requests disclosure of a single claim within a credential.
type ClaimsQuery struct {
	ID     string        `json:"id,omitempty"`
	Path   []interface{} `json:"path"`
	Values []interface{} `json:"values,omitempty"`
}

// CredentialSetQuery expresses alternatives over credential query ids.
type CredentialSetQuery struct {
	Options  [][]string `json:"options"`
	Required *bool      `json:"required,omitempty"`
}

// Parse unmarshals and validates a DCQL query.
func Parse(raw []byte) (*Query, error) {
	var query Query
	if err := json.Unmarshal(raw, &query); err != nil {
		return nil, fmt.Errorf("invalid DCQL query: %w", err)
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return &query, nil
}

// Validate checks the structural invariants of the query.
func (q Query) Validate() error {
	if len(q.Credentials) == 0 {
		return fmt.Errorf("DCQL query must contain at least one credential query")
	}
	seen := make(map[string]bool, len(q.Credentials))
	for _, credential := range q.Credentials {
		if !credentialQueryIDPattern.MatchString(credential.ID) {
			return fmt.Errorf("invalid credential query id: %q", credential.ID)
		}
		if seen[credential.ID] {
			return fmt.Errorf("duplicate credential query id: %q", credential.ID)
		}
		seen[credential.ID] = true
		if credential.Format == "" {
			return fmt.Errorf("credential query %q is missing a format", credential.ID)
		}
		for _, claim := range credential.Claims {
			if len(claim.Path) == 0 {
				return fmt.Errorf("credential query %q contains a claims query without path", credential.ID)
			}
		}
	}
	for _, set := range q.CredentialSets {
		if len(set.Options) == 0 {
			return fmt.Errorf("credential set query must contain at least one option")
		}
		for _, option := range set.Options {
			for _, id := range option {
				if !seen[id] {
					return fmt.Errorf("credential set query references unknown credential query id: %q", id)
				}
			}
		}
	}
	return nil
}

// CredentialQueryIDs returns the ids of all credential queries, in query order.
func (q Query) CredentialQueryIDs() []string {
	ids := make([]string, len(q.Credentials))
	for i, credential := range q.Credentials {
		ids[i] = credential.ID
	}
	return ids
}

// HasCredentialQuery returns true if the query contains a credential query with the given id.
func (q Query) HasCredentialQuery(id string) bool {
	for _, credential := range q.Credentials {
		if credential.ID == id {
			return true
		}
	}
	return false
}
