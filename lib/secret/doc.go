// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds bearer tokens outside the Go heap.
//
// [Buffer] copies the token into an anonymous mmap region that is
// locked against swap and excluded from core dumps. Close zeroes and
// unmaps it. The transport session keeps its cached bearer token in a
// Buffer for the session lifetime and releases it when the token is
// dropped for a force refresh.
//
// Depends on golang.org/x/sys/unix.
package secret
