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

// Package resolver defines the DID key resolution collaborator consumed by the wallet.
package resolver

import (
	"context"
	"crypto"
	"errors"

	"github.com/nuts-foundation/go-did/did"
)

// ErrKeyNotFound is returned when no signing key could be resolved for a DID.
var ErrKeyNotFound = errors.New("key not found in DID document")

// KeyResolver resolves the public signing key of a DID.
// Resolution may require network I/O depending on the DID method, hence the context.
type KeyResolver interface {
	// ResolveKey resolves the key referenced by the given DID URL (e.g. did:example:123#key-1).
	// It returns ErrKeyNotFound when the DID document does not contain the referenced verification method.
	ResolveKey(ctx context.Context, keyID did.DIDURL) (crypto.PublicKey, error)
}
