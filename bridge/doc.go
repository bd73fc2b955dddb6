// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge multiplexes profile conversations over one transport
// session.
//
// [Bridge] sits on top of a transport and does four things:
//
// Call correlation. [Bridge.Call] wraps a method call in a "call"
// envelope tagged with a fresh UUID correlation id and the target
// profile, writes it, and waits for the "response" envelope with the
// same id. Every call ends exactly once: with the result, with a
// [*RemoteError] carrying the host's message, or with [ErrCallTimeout]
// after [CallTimeout]. A response whose call has already ended is
// dropped. Calls made while the transport is down fail immediately
// with [ErrNotConnected]; calls in flight when the connection drops fail
// with [ErrConnectionLost].
//
// Inbound calls. "remoteCall" envelopes become [EventRemoteCall] events.
// The bridge never answers them itself; a subscriber answers each one
// exactly once with [Bridge.Respond].
//
// Event fan-out. Notifications, remote calls and profile lifecycle
// changes are published to every [Subscription] in registration order,
// in the order the transport received them. There is no replay for late
// subscribers. A subscriber whose channel is full holds up delivery
// until it reads or closes the subscription. Malformed frames are
// dropped, and top-level "error" envelopes are logged but not published.
//
// Restart-once retry. [Bridge.CallWithRestart] starts a profile that
// reports it is not running and re-issues the call one time.
//
// The deadline clock is injected (lib/clock) so tests drive timeouts
// without sleeping.
package bridge
