// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript turns profile output into per-thread message lists.
//
// Two sources feed a thread's transcript. Live notifications arrive as
// items start, stream text fragments, and complete; [Store.Ensure],
// [Store.ApplyDelta] and [Store.Finalize] fold them into one growing
// [Message] per item id. A resume fetch returns the thread's whole turn
// history; [BuildFromTurns] flattens it into the same Message shape and
// [Merge] reconciles it with what is already live.
//
// Merge starts from the fetched list, which has authoritative order and
// ids. Live messages whose id is already present overlay the fetched
// entry. Live user chat messages without a matching id claim a fetched
// user chat message with the same trimmed content and no timestamp, in
// first-seen, first-served order: this is how an optimistic message
// shown before the host assigned an id finds its persisted twin. The
// claimed slot keeps the fetched id and remembers the optimistic id in
// LocalID, so merging the same live list again matches by id and adds
// nothing. Anything else is appended.
//
// Content matching is a heuristic. Two identical user messages sent in
// quick succession can pair with each other's twins; since both carry
// the same text the visible result is the same.
//
// [Store] guards each thread's resume with an in-flight marker and a
// loaded marker, both checked and set under the store mutex, so two
// resumes of one thread never overlap and a loaded thread is not
// fetched again until [Store.Invalidate].
package transcript
