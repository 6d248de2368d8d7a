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

package core

import (
	"errors"
	"net/url"
	"strings"
)

// ParsePublicURL parses the given input string as URL and asserts that it has a scheme.
// When strictmode is enabled, only https URLs are accepted.
func ParsePublicURL(input string, strictmode bool) (*url.URL, error) {
	if !strings.Contains(input, "://") {
		return nil, errors.New("URL missing scheme")
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return nil, err
	}
	if parsed.Hostname() == "" {
		return nil, errors.New("URL missing host")
	}
	if strictmode && parsed.Scheme != "https" {
		return nil, errors.New("URL scheme must be https in strictmode")
	}
	return parsed, nil
}

// AddQueryParams returns a copy of the given URL with the given query parameters added.
func AddQueryParams(u url.URL, params map[string]string) url.URL {
	values := u.Query()
	for key, value := range params {
		values.Add(key, value)
	}
	u.RawQuery = values.Encode()
	return u
}

// AddFragmentParams returns a copy of the given URL with the given parameters encoded in the fragment.
func AddFragmentParams(u url.URL, params map[string]string) url.URL {
	values := url.Values{}
	for key, value := range params {
		values.Add(key, value)
	}
	// URL.String() only emits the fragment from Fragment; RawFragment is just its escaping hint
	u.Fragment = values.Encode()
	u.RawFragment = ""
	return u
}
