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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vp/oauth"
)

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	params := map[string]string{"vp_token": "the-presentation"}

	resolvedRequest := func(mode oauth.ResponseMode) ResolvedRequestData {
		return ResolvedRequestData{
			Client:       PreRegisteredClient{ClientID: "hospital"},
			ResponseMode: mode,
			RedirectURI:  "https://verifier.example.com/cb",
			State:        "af0ifjsldkj",
		}
	}

	t.Run("direct_post", func(t *testing.T) {
		t.Run("ok with redirect", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				require.NoError(t, request.ParseForm())
				assert.Equal(t, "the-presentation", request.PostForm.Get("vp_token"))
				assert.Equal(t, "af0ifjsldkj", request.PostForm.Get("state"))
				_ = json.NewEncoder(writer).Encode(oauth.Redirect{RedirectURI: "https://verifier.example.com/done"})
			}))
			defer server.Close()
			dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)
			request := resolvedRequest(oauth.ResponseModeDirectPost)
			request.ResponseURI = server.URL

			redirect, err := dispatcher.Dispatch(ctx, request, params)

			require.NoError(t, err)
			require.NotNil(t, redirect)
			assert.Equal(t, "https://verifier.example.com/done", redirect.RedirectURI)
		})
		t.Run("ok without redirect", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(http.StatusOK)
			}))
			defer server.Close()
			dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)
			request := resolvedRequest(oauth.ResponseModeDirectPost)
			request.ResponseURI = server.URL

			redirect, err := dispatcher.Dispatch(ctx, request, params)

			require.NoError(t, err)
			assert.Nil(t, redirect)
		})
		t.Run("verifier error response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(http.StatusBadRequest)
			}))
			defer server.Close()
			dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)
			request := resolvedRequest(oauth.ResponseModeDirectPost)
			request.ResponseURI = server.URL

			_, err := dispatcher.Dispatch(ctx, request, params)

			assert.ErrorContains(t, err, "server returned HTTP 400")
		})
	})
	t.Run("direct_post.jwt", func(t *testing.T) {
		config := testConfig(t)
		var received string
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			require.NoError(t, request.ParseForm())
			received = request.PostForm.Get("response")
		}))
		defer server.Close()
		dispatcher := NewDispatcher(config, http.DefaultClient)
		request := resolvedRequest(oauth.ResponseModeDirectPostJWT)
		request.ResponseURI = server.URL
		request.Jarm = JarmSigned{Algorithm: jwa.ES256}

		_, err := dispatcher.Dispatch(ctx, request, params)

		require.NoError(t, err)
		token, err := jwt.ParseString(received, jwt.WithKey(jwa.ES256, mustPublicKey(t, config.SigningKey)))
		require.NoError(t, err)
		vpToken, _ := token.Get("vp_token")
		assert.Equal(t, "the-presentation", vpToken)
		state, _ := token.Get("state")
		assert.Equal(t, "af0ifjsldkj", state)
	})
	t.Run("query", func(t *testing.T) {
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)

		redirect, err := dispatcher.Dispatch(ctx, resolvedRequest(oauth.ResponseModeQuery), params)

		require.NoError(t, err)
		target, err := url.Parse(redirect.RedirectURI)
		require.NoError(t, err)
		assert.Equal(t, "the-presentation", target.Query().Get("vp_token"))
		assert.Equal(t, "af0ifjsldkj", target.Query().Get("state"))
	})
	t.Run("fragment", func(t *testing.T) {
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)

		redirect, err := dispatcher.Dispatch(ctx, resolvedRequest(oauth.ResponseModeFragment), params)

		require.NoError(t, err)
		target, err := url.Parse(redirect.RedirectURI)
		require.NoError(t, err)
		fragment, err := url.ParseQuery(target.Fragment)
		require.NoError(t, err)
		assert.Equal(t, "the-presentation", fragment.Get("vp_token"))
		assert.Empty(t, target.Query().Get("vp_token"))
	})
	t.Run("fragment.jwt", func(t *testing.T) {
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)
		request := resolvedRequest(oauth.ResponseModeFragmentJWT)
		request.Jarm = JarmSigned{Algorithm: jwa.ES256}

		redirect, err := dispatcher.Dispatch(ctx, request, params)

		require.NoError(t, err)
		target, err := url.Parse(redirect.RedirectURI)
		require.NoError(t, err)
		fragment, err := url.ParseQuery(target.Fragment)
		require.NoError(t, err)
		assert.NotEmpty(t, fragment.Get("response"))
	})
	t.Run("missing redirect_uri", func(t *testing.T) {
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)
		request := resolvedRequest(oauth.ResponseModeQuery)
		request.RedirectURI = ""

		_, err := dispatcher.Dispatch(ctx, request, params)

		assert.EqualError(t, err, "invalid_request - missing redirect_uri")
	})
}

func TestDispatcher_DispatchError(t *testing.T) {
	ctx := context.Background()
	oauthErr := oauth.OAuth2Error{Code: oauth.InvalidRequest, Description: "something is off"}

	t.Run("policy never", func(t *testing.T) {
		config := testConfig(t)
		config.ErrorDispatch = string(DispatchNever)
		dispatcher := NewDispatcher(config, http.DefaultClient)

		redirect, err := dispatcher.DispatchError(ctx, PreRegisteredClient{ClientID: "hospital"}, ValidatedRequestData{
			ResponseMode: oauth.ResponseModeDirectPost,
			ResponseURI:  "https://verifier.example.com/response",
		}, oauthErr)

		require.NoError(t, err)
		assert.Nil(t, redirect)
	})
	t.Run("policy authenticated - unauthenticated verifier", func(t *testing.T) {
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)

		redirect, err := dispatcher.DispatchError(ctx, nil, ValidatedRequestData{
			ResponseMode: oauth.ResponseModeDirectPost,
			ResponseURI:  "https://verifier.example.com/response",
		}, oauthErr)

		require.NoError(t, err)
		assert.Nil(t, redirect)
	})
	t.Run("policy authenticated - authenticated verifier", func(t *testing.T) {
		var form url.Values
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			require.NoError(t, request.ParseForm())
			form = request.PostForm
		}))
		defer server.Close()
		dispatcher := NewDispatcher(testConfig(t), http.DefaultClient)

		_, err := dispatcher.DispatchError(ctx, PreRegisteredClient{ClientID: "hospital"}, ValidatedRequestData{
			Client:       PreRegisteredClient{ClientID: "hospital"},
			ResponseMode: oauth.ResponseModeDirectPost,
			ResponseURI:  server.URL,
			State:        "af0ifjsldkj",
		}, oauthErr)

		require.NoError(t, err)
		assert.Equal(t, "invalid_request", form.Get("error"))
		assert.Equal(t, "something is off", form.Get("error_description"))
		assert.Equal(t, "af0ifjsldkj", form.Get("state"))
	})
	t.Run("no known endpoint", func(t *testing.T) {
		config := testConfig(t)
		config.ErrorDispatch = string(DispatchAlways)
		dispatcher := NewDispatcher(config, http.DefaultClient)

		redirect, err := dispatcher.DispatchError(ctx, nil, ValidatedRequestData{}, oauthErr)

		require.NoError(t, err)
		assert.Nil(t, redirect)
	})
	t.Run("unknown response mode falls back to direct_post", func(t *testing.T) {
		var called bool
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			called = true
		}))
		defer server.Close()
		config := testConfig(t)
		config.ErrorDispatch = string(DispatchAlways)
		dispatcher := NewDispatcher(config, http.DefaultClient)

		_, err := dispatcher.DispatchError(ctx, nil, ValidatedRequestData{ResponseURI: server.URL}, oauthErr)

		require.NoError(t, err)
		assert.True(t, called)
	})
}
