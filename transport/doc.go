// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport owns the console's single duplex connection to its
// profile host.
//
// A [Session] is long-lived: it is created once, connected with
// [Session.Connect], and may be disconnected and reconnected any number
// of times. Each Connect dials a new gorilla/websocket connection; the
// Session object (its token cache, handler and state watchers) survives
// across reconnects.
//
// Before dialing, the Session needs a bearer token. A static token from
// configuration is used as-is. Otherwise the configured [TokenSource] is
// consulted once and the token is cached in a lib/secret buffer for the
// life of the Session. A failed fetch caches nothing, so the next
// Connect fetches again. A handshake rejected with 401 or 403 drops the
// cached token so the next Connect force-refreshes it.
//
// Inbound frames are passed to the [Handler] on the read-loop goroutine
// one at a time. A handler that blocks stops the read loop, which in
// turn stops the host from writing once the socket buffers fill. When
// the connection ends for any reason other than [Session.Disconnect],
// the handler's HandleDisconnect runs on the read loop as well.
//
// JSON frames travel as websocket text messages and CBOR frames as
// binary messages. The Session writes in its configured format and
// reports the format of each inbound frame by its message type.
package transport
