// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads console configuration.
//
// Configuration comes from a single file named by the CONSOLE_CONFIG
// environment variable ([Load]) or a --config flag ([LoadFile]). There
// is no search path and no per-field environment override, so what the
// file says is what runs.
//
// Files ending in .json or .jsonc are stripped of comments and trailing
// commas with tidwall/jsonc and then decoded by the YAML decoder (JSON
// is a subset of YAML); anything else is read as YAML.
//
// An environment section (development or production) overrides base
// values when [Config].Environment matches. ${HOME}, ${CONSOLE_ROOT}
// and ${VAR:-default} are expanded in path fields after loading.
package config
