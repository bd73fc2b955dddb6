// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the two wire encodings a console session can
// speak: JSON in websocket text frames (what browsers send) and CBOR in
// binary frames (what native clients prefer).
//
// CBOR uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// value always encodes to the same bytes, which the store package
// relies on when persisting payloads. Struct types carry json tags
// only; fxamacker/cbor falls back to json tags when no cbor tag is
// present, so one set of types serves both formats.
//
// [Raw] defers decoding of a payload (call params, results,
// notification params) until the consumer knows the concrete type.
// A Raw remembers which format its bytes are in and transcodes when it
// is re-encoded into the other format.
package codec
