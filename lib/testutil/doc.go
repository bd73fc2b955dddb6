// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for console packages.
//
// [RequireReceive], [RequireNoReceive] and [RequireClosed] wrap the select
// with a wall-clock fallback so tests hang for a bounded time at most.
// They are the only place test code waits on real time; deadlines under
// test use lib/clock's fake.
//
// [WebSocketHost] is an httptest server that upgrades connections with
// gorilla/websocket and hands each one to the test as a [HostConn], so
// transport and bridge tests can play the profile host side of the
// wire: read the frames the console writes and send envelopes back.
//
// All helpers fail the test with t.Fatalf instead of returning errors.
package testutil
