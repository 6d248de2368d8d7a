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

package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseMode(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, mode := range []ResponseMode{
			ResponseModeDirectPost, ResponseModeDirectPostJWT,
			ResponseModeQuery, ResponseModeQueryJWT,
			ResponseModeFragment, ResponseModeFragmentJWT,
		} {
			assert.True(t, mode.Valid(), string(mode))
		}
		assert.False(t, ResponseMode("").Valid())
		assert.False(t, ResponseMode("form_post").Valid())
	})
	t.Run("UsesJARM", func(t *testing.T) {
		assert.True(t, ResponseModeDirectPostJWT.UsesJARM())
		assert.True(t, ResponseModeQueryJWT.UsesJARM())
		assert.True(t, ResponseModeFragmentJWT.UsesJARM())
		assert.False(t, ResponseModeDirectPost.UsesJARM())
		assert.False(t, ResponseModeQuery.UsesJARM())
	})
	t.Run("IsDirectPost", func(t *testing.T) {
		assert.True(t, ResponseModeDirectPost.IsDirectPost())
		assert.True(t, ResponseModeDirectPostJWT.IsDirectPost())
		assert.False(t, ResponseModeFragment.IsDirectPost())
	})
}

func TestVPFormats_Intersect(t *testing.T) {
	wallet := VPFormats{
		"jwt_vp": {"alg_values_supported": {"ES256"}},
		"ldp_vp": {"proof_type_values_supported": {"JsonWebSignature2020"}},
	}

	t.Run("common format keeps receiver parameters", func(t *testing.T) {
		result := wallet.Intersect(VPFormats{
			"jwt_vp": {"alg_values_supported": {"ES384"}},
		})

		assert.Equal(t, VPFormats{"jwt_vp": {"alg_values_supported": {"ES256"}}}, result)
	})
	t.Run("no overlap yields empty set", func(t *testing.T) {
		result := wallet.Intersect(VPFormats{"mso_mdoc": {}})

		assert.Empty(t, result)
	})
	t.Run("intersect with empty set", func(t *testing.T) {
		assert.Empty(t, wallet.Intersect(VPFormats{}))
	})
}
