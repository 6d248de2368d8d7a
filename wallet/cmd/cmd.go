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

// Package cmd exposes the wallet configuration as command line flags and loads it
// from file and environment.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/nuts-foundation/openid4vp/wallet"
)

const (
	defaultPrefix = "wallet."
	envPrefix     = "OPENID4VP_"
)

// FlagSet contains the flags relevant for the wallet, with defaults from wallet.DefaultConfig.
func FlagSet() *pflag.FlagSet {
	defs := wallet.DefaultConfig()
	flagSet := pflag.NewFlagSet("wallet", pflag.ContinueOnError)
	flagSet.Int(defaultPrefix+"clockskew", defs.ClockSkew, "Maximum accepted JWT clock skew in milliseconds.")
	flagSet.Bool(defaultPrefix+"strictmode", defs.StrictMode, "When enabled, all verifier endpoints must use HTTPS.")
	flagSet.Int(defaultPrefix+"http.timeout", defs.HTTPTimeout, "HTTP timeout in seconds for calls to the verifier.")
	flagSet.StringSlice(defaultPrefix+"clientidschemes", defs.ClientIDSchemes, "client_id schemes accepted from verifiers.")
	flagSet.StringSlice(defaultPrefix+"requesturimethods", defs.RequestURIMethods, "Supported request_uri_method values (get, post).")
	flagSet.Int(defaultPrefix+"walletnoncebytes", defs.WalletNonceBytes, "Byte length of the wallet_nonce sent when POSTing to the request_uri, 0 disables the nonce.")
	flagSet.String(defaultPrefix+"postencryption", defs.PostEncryption, "Request object encryption policy for POST retrieval (none, supported, required).")
	flagSet.Bool(defaultPrefix+"disclosemetadata", defs.DiscloseMetadata, "Disclose wallet_metadata when POSTing to the request_uri.")
	flagSet.String(defaultPrefix+"errordispatch", defs.ErrorDispatch, "When to report errors back to the verifier (always, authenticated, never).")
	return flagSet
}

// LoadConfig builds the wallet configuration from defaults, then the given YAML file (optional),
// then OPENID4VP_* environment variables. Later sources override earlier ones.
func LoadConfig(configFile string) (wallet.Config, error) {
	config := wallet.DefaultConfig()
	k := koanf.New(".")
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
				return config, fmt.Errorf("unable to load config file %s: %w", configFile, err)
			}
		} else if !os.IsNotExist(err) {
			return config, fmt.Errorf("unable to stat config file %s: %w", configFile, err)
		}
	}
	// OPENID4VP_WALLET_HTTP_TIMEOUT maps to wallet.http.timeout
	err := k.Load(env.Provider(envPrefix, ".", func(rawKey string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(rawKey, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return config, fmt.Errorf("unable to load config from environment: %w", err)
	}
	if err := k.Unmarshal("wallet", &config); err != nil {
		return config, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return config, nil
}
