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
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nuts-foundation/openid4vp/dcql"
	"github.com/nuts-foundation/openid4vp/oauth"
)

// TransactionData is a single decoded transaction_data entry, binding the requested presentation
// to an out-of-band transaction. Encoded is the base64url string as it appeared in the request,
// which is what ends up being hashed into the presentation.
type TransactionData struct {
	// Encoded is the original base64url-encoded entry.
	Encoded string
	// Type identifies the transaction data type, e.g. "qes_authorization".
	Type string `json:"type"`
	// CredentialIDs lists the ids of credential queries the transaction applies to.
	CredentialIDs []string `json:"credential_ids"`
	// HashAlgorithms lists the hash algorithms the verifier accepts for the transaction data hash.
	// Absent means sha-256 only.
	HashAlgorithms []string `json:"transaction_data_hashes_alg,omitempty"`
}

// VerifierAttestation is a validated verifier_info entry.
type VerifierAttestation struct {
	// Format identifies the attestation format, e.g. "jwt".
	Format string `json:"format"`
	// Data carries the attestation itself, format-specific.
	Data json.RawMessage `json:"data"`
	// CredentialIDs optionally restricts the attestation to specific credential queries.
	CredentialIDs []string `json:"credential_ids,omitempty"`
}

// parseTransactionData decodes and validates the transaction_data entries of a request.
// Each entry must be of a type the wallet supports, name at least one credential query of the
// resolved query, and accept sha-256 as hash algorithm.
func parseTransactionData(entries []string, supportedTypes []SupportedTransactionDataType, query dcql.Query) ([]TransactionData, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	result := make([]TransactionData, 0, len(entries))
	for i, encoded := range entries {
		decoded, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, oauth.OAuth2Error{
				Code:          oauth.InvalidTransactionData,
				Description:   fmt.Sprintf("transaction_data[%d] is not valid base64url", i),
				InternalError: err,
			}
		}
		var entry TransactionData
		if err := json.Unmarshal(decoded, &entry); err != nil {
			return nil, oauth.OAuth2Error{
				Code:          oauth.InvalidTransactionData,
				Description:   fmt.Sprintf("transaction_data[%d] is not valid JSON", i),
				InternalError: err,
			}
		}
		entry.Encoded = encoded
		if entry.Type == "" {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidTransactionData, Description: fmt.Sprintf("transaction_data[%d] misses type", i)}
		}
		supported := supportedTransactionDataType(supportedTypes, entry.Type)
		if supported == nil {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidTransactionData, Description: fmt.Sprintf("unsupported transaction data type: %s", entry.Type)}
		}
		if len(entry.CredentialIDs) == 0 {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidTransactionData, Description: fmt.Sprintf("transaction_data[%d] misses credential_ids", i)}
		}
		for _, id := range entry.CredentialIDs {
			if !query.HasCredentialQuery(id) {
				return nil, oauth.OAuth2Error{
					Code:        oauth.InvalidTransactionData,
					Description: fmt.Sprintf("transaction_data[%d] references unknown credential query: %s", i, id),
				}
			}
		}
		if len(entry.HashAlgorithms) > 0 && !intersects(entry.HashAlgorithms, supported.HashAlgorithms()) {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidTransactionData,
				Description: fmt.Sprintf("transaction_data[%d] accepts none of the supported hash algorithms", i),
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// validateVerifierAttestations checks each verifier_info entry against the resolved query.
// Credential ids, when present, must reference credential queries that actually exist.
func validateVerifierAttestations(entries []VerifierInfo, query dcql.Query) ([]VerifierAttestation, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	result := make([]VerifierAttestation, 0, len(entries))
	for i, entry := range entries {
		if entry.Format == "" {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: fmt.Sprintf("verifier_info[%d] misses format", i)}
		}
		if len(entry.Data) == 0 {
			return nil, oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: fmt.Sprintf("verifier_info[%d] misses data", i)}
		}
		for _, id := range entry.CredentialIDs {
			if !query.HasCredentialQuery(id) {
				return nil, oauth.OAuth2Error{
					Code:        oauth.InvalidRequest,
					Description: fmt.Sprintf("verifier_info[%d] references unknown credential query: %s", i, id),
				}
			}
		}
		result = append(result, VerifierAttestation{
			Format:        entry.Format,
			Data:          entry.Data,
			CredentialIDs: entry.CredentialIDs,
		})
	}
	return result, nil
}

func supportedTransactionDataType(types []SupportedTransactionDataType, typ string) *SupportedTransactionDataType {
	for i := range types {
		if types[i].Type() == typ {
			return &types[i]
		}
	}
	return nil
}

func intersects(a, b []string) bool {
	for _, left := range a {
		for _, right := range b {
			if left == right {
				return true
			}
		}
	}
	return false
}
