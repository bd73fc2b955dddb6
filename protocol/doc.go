// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the wire shapes exchanged between the console
// and its profile host: the envelope that frames every message, the
// method names, and the thread/turn/item records carried in params.
//
// Every frame is one [Envelope]. Its Type selects which fields are
// meaningful:
//
//   - "call": console → host, a correlated request to one profile.
//   - "response": host → console, the outcome of a call.
//   - "notification": host → console, an event from a profile.
//   - "remoteCall": host → console, a request the console must answer.
//   - "answer": console → host, the reply to a remote call.
//   - "profile": host → console, a profile lifecycle change.
//   - "error": host → console, a connection-level error.
//
// Envelopes encode as JSON or CBOR through lib/codec. The CBOR encoding
// reuses the JSON field names, so a frame decodes to the same Envelope
// regardless of format.
package protocol
