// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// aleopantest.
//
// Supports TOML, JSON and YAML files, a .env file, environment variable
// overrides and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ALEO_*), including those set by ./.env
//   - the --config file, or the first of ./aleopantest.{toml,json,yaml}
//     and ~/.aleopantest/config.{toml,json,yaml}
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.LoadFrom(flagPath)
//	if err != nil {
//	    return err
//	}
//	quota := cfg.Quota()
//
// The web frontend hot-reloads its file with Watch.
package config
