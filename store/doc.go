// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists console state in SQLite: the queued-turn
// queues of every thread and the last resumed transcript of each
// thread.
//
// Both tables hold one row per thread with a CBOR payload. Snapshot
// payloads are zstd-compressed as well, since a long transcript is
// mostly repetitive text. Each snapshot row also records the BLAKE3
// digest of its CBOR encoding; [Store.LoadSnapshot] returns
// [ErrSnapshotCorrupt] rather than a transcript that does not match it.
// [Store] implements dispatch.QueueStore and transcript.SnapshotStore.
//
// Connections come from lib/sqlitepool, which applies the pragmas and
// [Schema] to each new connection.
package store
