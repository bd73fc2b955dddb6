// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/console/lib/clock"
	"github.com/bureau-foundation/console/protocol"
)

// ErrNoHistory is returned by Resume when the Resumer reports success
// without a thread.
var ErrNoHistory = errors.New("transcript: resume returned no thread")

// Resumer fetches a thread's full history. The side-channel client
// implements it.
type Resumer interface {
	ResumeThread(ctx context.Context, profileID, threadID string) (*protocol.Thread, error)
}

// Snapshot is a persisted copy of a thread transcript.
type Snapshot struct {
	ThreadID  string    `json:"threadId"`
	ProfileID string    `json:"profileId"`
	Status    Status    `json:"status"`
	Messages  []Message `json:"messages"`
	SavedAt   time.Time `json:"savedAt"`
}

// SnapshotStore persists transcripts between runs.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	// LoadSnapshot reports false when the thread has no snapshot.
	LoadSnapshot(ctx context.Context, threadID string) (Snapshot, bool, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Snapshots, if set, receives every successfully resumed transcript
	// and seeds Restore.
	Snapshots SnapshotStore

	// Clock stamps snapshots. Nil selects the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Store holds the transcript and state of every known thread.
type Store struct {
	snapshots SnapshotStore
	clock     clock.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	threads map[string]*threadEntry
}

type threadEntry struct {
	state    ThreadState
	messages []Message
	// positions maps message id to index in messages.
	positions map[string]int
	resuming  bool
}

func (e *threadEntry) setMessages(messages []Message) {
	e.messages = messages
	e.positions = make(map[string]int, len(messages))
	for index, message := range messages {
		e.positions[message.ID] = index
	}
	e.state.MessageCount = len(messages)
}

func (e *threadEntry) append(message Message) {
	e.positions[message.ID] = len(e.messages)
	e.messages = append(e.messages, message)
	e.state.MessageCount = len(e.messages)
}

// NewStore creates an empty Store.
func NewStore(config StoreConfig) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		snapshots: config.Snapshots,
		clock:     clk,
		logger:    logger,
		threads:   make(map[string]*threadEntry),
	}
}

// entryLocked returns the entry for threadID, creating an idle one.
func (s *Store) entryLocked(threadID string) *threadEntry {
	entry, exists := s.threads[threadID]
	if !exists {
		entry = &threadEntry{
			state:     ThreadState{ID: threadID, Status: StatusIdle},
			positions: make(map[string]int),
		}
		s.threads[threadID] = entry
	}
	return entry
}

// Track records that threadID belongs to profileID.
func (s *Store) Track(threadID, profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if profileID != "" {
		entry.state.ProfileID = profileID
	}
}

// Thread returns the state of threadID.
func (s *Store) Thread(threadID string) (ThreadState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.threads[threadID]
	if !exists {
		return ThreadState{}, false
	}
	return entry.state, true
}

// Threads returns the state of every known thread, sorted by id.
func (s *Store) Threads() []ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]ThreadState, 0, len(s.threads))
	for _, entry := range s.threads {
		states = append(states, entry.state)
	}
	slices.SortFunc(states, func(a, b ThreadState) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return states
}

// Status returns the status of threadID; unknown threads are idle.
func (s *Store) Status(threadID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.threads[threadID]; exists {
		return entry.state.Status
	}
	return StatusIdle
}

// SetStatus sets the status of threadID. Archived threads stay archived.
func (s *Store) SetStatus(threadID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if entry.state.Archived {
		return
	}
	entry.state.Status = status
}

// SetArchived marks threadID archived.
func (s *Store) SetArchived(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	entry.state.Archived = true
	entry.state.Status = StatusArchived
}

// Ensure reserves a placeholder for itemID so its position is fixed
// before any text streams in. It reports whether a placeholder was
// created; an existing message is left untouched.
func (s *Store) Ensure(threadID, itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if _, exists := entry.positions[itemID]; exists {
		return false
	}
	entry.append(Message{ID: itemID, Role: RoleAssistant, Kind: KindChat})
	return true
}

// ApplyDelta appends fragment to the message for itemID, creating it on
// the first fragment. A message that has no content yet takes its role
// and kind from method.
func (s *Store) ApplyDelta(threadID, itemID, method, fragment string) {
	role, kind := KindForMethod(method)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	index, exists := entry.positions[itemID]
	if !exists {
		entry.append(Message{ID: itemID, Role: role, Kind: kind, Content: fragment})
		return
	}
	message := &entry.messages[index]
	if message.Content == "" {
		message.Role = role
		message.Kind = kind
	}
	message.Content += fragment
}

// Finalize applies a completed item. Its non-empty fields replace those
// of the streamed message in place; an item never seen live is
// appended.
func (s *Store) Finalize(threadID string, message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if index, exists := entry.positions[message.ID]; exists {
		entry.messages[index].overlay(message)
		return
	}
	entry.append(message)
}

// AddLocal appends a message created locally, typically an optimistic
// user message that does not have its host-assigned id yet.
func (s *Store) AddLocal(threadID string, message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if _, exists := entry.positions[message.ID]; exists {
		return
	}
	entry.append(message)
}

// Messages returns a copy of the transcript of threadID.
func (s *Store) Messages(threadID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.threads[threadID]
	if !exists {
		return nil
	}
	return slices.Clone(entry.messages)
}

// Invalidate clears the loaded marker so the next Resume fetches again.
func (s *Store) Invalidate(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.threads[threadID]; exists {
		entry.state.Loaded = false
	}
}

// Resume fetches the history of threadID and merges it into the live
// transcript. It returns false without fetching when a resume of the
// thread is already running or has already completed. A failed fetch
// leaves the transcript untouched.
func (s *Store) Resume(ctx context.Context, threadID string, resumer Resumer) (bool, error) {
	s.mu.Lock()
	entry := s.entryLocked(threadID)
	if entry.resuming || entry.state.Loaded {
		s.mu.Unlock()
		return false, nil
	}
	entry.resuming = true
	profileID := entry.state.ProfileID
	s.mu.Unlock()

	thread, err := resumer.ResumeThread(ctx, profileID, threadID)
	if err == nil && thread == nil {
		err = ErrNoHistory
	}

	s.mu.Lock()
	entry.resuming = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("thread resume failed", "thread_id", threadID, "profile_id", profileID, "error", err)
		return false, fmt.Errorf("transcript: resuming thread %s: %w", threadID, err)
	}

	merged := Merge(BuildFromTurns(thread.Turns), entry.messages)
	entry.setMessages(merged)
	entry.state.Loaded = true
	entry.state.Archived = entry.state.Archived || thread.Archived
	entry.state.Status = ComputeStatus(entry.state.Archived, thread.Turns)
	snapshot := Snapshot{
		ThreadID:  threadID,
		ProfileID: entry.state.ProfileID,
		Status:    entry.state.Status,
		Messages:  slices.Clone(merged),
		SavedAt:   s.clock.Now().UTC(),
	}
	s.mu.Unlock()

	s.logger.Debug("thread resumed", "thread_id", threadID, "messages", len(merged), "status", snapshot.Status)
	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("saving transcript snapshot failed", "thread_id", threadID, "error", err)
		}
	}
	return true, nil
}

// Restore seeds threadID from its last snapshot when the store has no
// messages for it yet. The thread is not marked loaded: the snapshot
// shows something until a resume brings the authoritative history.
func (s *Store) Restore(ctx context.Context, threadID string) (bool, error) {
	if s.snapshots == nil {
		return false, nil
	}

	s.mu.Lock()
	if entry, exists := s.threads[threadID]; exists && len(entry.messages) > 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	snapshot, found, err := s.snapshots.LoadSnapshot(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("transcript: loading snapshot of %s: %w", threadID, err)
	}
	if !found {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(threadID)
	if len(entry.messages) > 0 {
		// Live events arrived while the snapshot loaded.
		return false, nil
	}
	entry.setMessages(slices.Clone(snapshot.Messages))
	if entry.state.ProfileID == "" {
		entry.state.ProfileID = snapshot.ProfileID
	}
	if snapshot.Status == StatusArchived {
		entry.state.Archived = true
		entry.state.Status = StatusArchived
	}
	return true, nil
}
