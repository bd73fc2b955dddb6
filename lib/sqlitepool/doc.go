// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the console's local SQLite database.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and prepares every
// connection the same way: WAL journal, NORMAL synchronous, a busy
// timeout for write contention, and then the caller's schema script.
// Schema scripts must be idempotent (CREATE ... IF NOT EXISTS) because
// they run once per pooled connection.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/home/me/.cache/bureau-console/state.db",
//	    Schema: store.Schema,
//	    Logger: logger,
//	})
//	conn, err := pool.Take(ctx)
//	defer pool.Put(conn)
//
// Connections are not safe for concurrent use; each goroutine takes
// its own.
package sqlitepool
