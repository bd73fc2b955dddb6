// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for console binaries:
// reporting the error returned by run() before the structured logger
// exists, and mapping it to an exit code. Command line mistakes are
// [UsageError] values and exit with code 2.
package process
