// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sidechannel is the HTTP client for the profile host's
// request/response API: token issue, profile management, per-profile
// configuration, and thread history.
//
// These operations live outside the session connection. The bridge
// uses three of them through interfaces: [Client.FetchToken] as the
// transport's token source, [Client.StartProfile] for restart-once
// retries, and [Client.ResumeThread] for transcript resume.
//
// Every non-2xx response becomes an [*APIError] carrying the status code
// and the server's message. Response bodies are read through
// lib/netutil with a size bound.
package sidechannel
