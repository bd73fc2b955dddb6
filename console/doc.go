// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console connects a bridge to the transcript and dispatch
// layers. [Console.Run] consumes one bridge subscription and keeps
// per-thread transcripts and statuses current. When a turn completes
// the next queued message for that thread is sent.
//
// Remote calls (approval requests) and profile lifecycle events are
// not handled here. They are forwarded on [Console.Interactions] for
// whatever front end answers them through [Console.Approve].
package console
