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

const (
	// LogFieldModule is the log field for the module name.
	LogFieldModule = "module"
	// LogFieldClientID is the log field for the verifier's client_id under scrutiny.
	LogFieldClientID = "client_id"
	// LogFieldRequestURI is the log field for the request_uri being fetched.
	LogFieldRequestURI = "request_uri"
	// LogFieldResponseMode is the log field for the response_mode of a dispatched response.
	LogFieldResponseMode = "response_mode"
	// LogFieldResolutionID is the log field correlating all log lines of one request resolution.
	LogFieldResolutionID = "resolution_id"
)
