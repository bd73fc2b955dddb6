// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/console/dispatch"
	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/lib/sqlitepool"
	"github.com/bureau-foundation/console/transcript"
)

var (
	_ dispatch.QueueStore      = (*Store)(nil)
	_ transcript.SnapshotStore = (*Store)(nil)
)

// ErrSnapshotCorrupt is returned by LoadSnapshot when a stored payload
// does not match the digest recorded with it.
var ErrSnapshotCorrupt = errors.New("store: snapshot digest mismatch")

// Schema creates the store tables.
const Schema = `
CREATE TABLE IF NOT EXISTS queued_turns (
	thread_id  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS thread_snapshots (
	thread_id  TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	payload    BLOB NOT NULL,
	digest     BLOB NOT NULL,
	saved_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS thread_snapshots_profile ON thread_snapshots (profile_id);
`

// zstd encoders and decoders are safe for concurrent EncodeAll and
// DecodeAll.
var (
	snapshotEncoder *zstd.Encoder
	snapshotDecoder *zstd.Decoder
)

func init() {
	var err error
	snapshotEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	snapshotDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// Config configures Open.
type Config struct {
	// Path is the database file. Its directory must exist.
	Path string

	Logger *slog.Logger
}

// Store is the console's SQLite state.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the database at config.Path.
func Open(config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   config.Path,
		Schema: Schema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// SaveQueue replaces the stored queue of threadID; an empty queue
// deletes the row.
func (s *Store) SaveQueue(ctx context.Context, threadID string, messages []dispatch.QueuedMessage) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: save queue: %w", err)
	}
	defer s.pool.Put(conn)

	if len(messages) == 0 {
		err := sqlitex.Execute(conn, "DELETE FROM queued_turns WHERE thread_id = ?", &sqlitex.ExecOptions{
			Args: []any{threadID},
		})
		if err != nil {
			return fmt.Errorf("store: delete queue of %s: %w", threadID, err)
		}
		return nil
	}

	payload, err := codec.Marshal(codec.FormatCBOR, messages)
	if err != nil {
		return fmt.Errorf("store: encode queue of %s: %w", threadID, err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO queued_turns (thread_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (thread_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{threadID, payload, time.Now().UnixMilli()}},
	)
	if err != nil {
		return fmt.Errorf("store: write queue of %s: %w", threadID, err)
	}
	return nil
}

// LoadQueues returns every stored queue.
func (s *Store) LoadQueues(ctx context.Context) (map[string][]dispatch.QueuedMessage, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load queues: %w", err)
	}
	defer s.pool.Put(conn)

	queues := make(map[string][]dispatch.QueuedMessage)
	err = sqlitex.Execute(conn, "SELECT thread_id, payload FROM queued_turns", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			threadID := stmt.ColumnText(0)
			var messages []dispatch.QueuedMessage
			if err := codec.Unmarshal(codec.FormatCBOR, columnBlob(stmt, 1), &messages); err != nil {
				return fmt.Errorf("decode queue of %s: %w", threadID, err)
			}
			queues[threadID] = messages
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: load queues: %w", err)
	}
	return queues, nil
}

// SaveSnapshot replaces the stored snapshot of snapshot.ThreadID. The
// row carries the BLAKE3 digest of the uncompressed encoding, checked
// by LoadSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot transcript.Snapshot) error {
	encoded, err := codec.Marshal(codec.FormatCBOR, snapshot)
	if err != nil {
		return fmt.Errorf("store: encode snapshot of %s: %w", snapshot.ThreadID, err)
	}
	payload := snapshotEncoder.EncodeAll(encoded, nil)
	digest := blake3.Sum256(encoded)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO thread_snapshots (thread_id, profile_id, payload, digest, saved_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (thread_id) DO UPDATE SET
		     profile_id = excluded.profile_id, payload = excluded.payload,
		     digest = excluded.digest, saved_at = excluded.saved_at`,
		&sqlitex.ExecOptions{Args: []any{snapshot.ThreadID, snapshot.ProfileID, payload, digest[:], snapshot.SavedAt.UnixMilli()}},
	)
	if err != nil {
		return fmt.Errorf("store: write snapshot of %s: %w", snapshot.ThreadID, err)
	}
	s.logger.Debug("snapshot saved",
		"thread_id", snapshot.ThreadID,
		"messages", len(snapshot.Messages),
		"encoded_bytes", len(encoded),
		"stored_bytes", len(payload),
	)
	return nil
}

// LoadSnapshot returns the stored snapshot of threadID.
func (s *Store) LoadSnapshot(ctx context.Context, threadID string) (transcript.Snapshot, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return transcript.Snapshot{}, false, fmt.Errorf("store: load snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	var payload, digest []byte
	err = sqlitex.Execute(conn, "SELECT payload, digest FROM thread_snapshots WHERE thread_id = ?", &sqlitex.ExecOptions{
		Args: []any{threadID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			payload = columnBlob(stmt, 0)
			digest = columnBlob(stmt, 1)
			return nil
		},
	})
	if err != nil {
		return transcript.Snapshot{}, false, fmt.Errorf("store: read snapshot of %s: %w", threadID, err)
	}
	if payload == nil {
		return transcript.Snapshot{}, false, nil
	}

	encoded, err := snapshotDecoder.DecodeAll(payload, nil)
	if err != nil {
		return transcript.Snapshot{}, false, fmt.Errorf("store: decompress snapshot of %s: %w", threadID, err)
	}
	if sum := blake3.Sum256(encoded); !bytes.Equal(sum[:], digest) {
		return transcript.Snapshot{}, false, fmt.Errorf("%w: thread %s", ErrSnapshotCorrupt, threadID)
	}
	var snapshot transcript.Snapshot
	if err := codec.Unmarshal(codec.FormatCBOR, encoded, &snapshot); err != nil {
		return transcript.Snapshot{}, false, fmt.Errorf("store: decode snapshot of %s: %w", threadID, err)
	}
	return snapshot, true, nil
}

// SnapshotThreads returns the ids of threads with a snapshot for
// profileID, most recently saved first.
func (s *Store) SnapshotThreads(ctx context.Context, profileID string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer s.pool.Put(conn)

	var threadIDs []string
	err = sqlitex.Execute(conn,
		"SELECT thread_id FROM thread_snapshots WHERE profile_id = ? ORDER BY saved_at DESC, thread_id",
		&sqlitex.ExecOptions{
			Args: []any{profileID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				threadIDs = append(threadIDs, stmt.ColumnText(0))
				return nil
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots of %s: %w", profileID, err)
	}
	return threadIDs, nil
}

// columnBlob copies a BLOB column. It never returns nil for a present
// row, so callers can use nil to mean "no row".
func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}
