// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/console/lib/clock"
)

// TurnParams are the generation settings in effect when a message was
// queued.
type TurnParams struct {
	Model            string `json:"model,omitempty"`
	Effort           string `json:"effort,omitempty"`
	Summary          string `json:"summary,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	ApprovalPolicy   string `json:"approvalPolicy,omitempty"`
}

// QueuedMessage is a deferred user submission.
type QueuedMessage struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"threadId"`
	ProfileID  string     `json:"profileId"`
	Text       string     `json:"text"`
	Params     TurnParams `json:"params"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

// QueueStore persists queues.
type QueueStore interface {
	// SaveQueue replaces the stored queue of threadID. An empty
	// messages slice deletes it.
	SaveQueue(ctx context.Context, threadID string, messages []QueuedMessage) error
	// LoadQueues returns every stored queue keyed by thread id.
	LoadQueues(ctx context.Context) (map[string][]QueuedMessage, error)
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Store, if set, receives every queue after each mutation.
	Store QueueStore

	// Clock stamps EnqueuedAt. Nil selects the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Queue is a set of per-thread FIFOs.
type Queue struct {
	store  QueueStore
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string][]QueuedMessage
}

// NewQueue creates an empty Queue.
func NewQueue(config QueueConfig) *Queue {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Queue{
		store:  config.Store,
		clock:  clk,
		logger: logger,
		queues: make(map[string][]QueuedMessage),
	}
}

// Enqueue appends message to the queue of threadID and returns it with
// ID, ThreadID and EnqueuedAt filled in where they were empty.
func (q *Queue) Enqueue(ctx context.Context, threadID string, message QueuedMessage) QueuedMessage {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.EnqueuedAt.IsZero() {
		message.EnqueuedAt = q.clock.Now().UTC()
	}
	message.ThreadID = threadID

	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[threadID] = append(q.queues[threadID], message)
	q.persistLocked(ctx, threadID)
	q.logger.Debug("queued message", "thread_id", threadID, "message_id", message.ID, "depth", len(q.queues[threadID]))
	return message
}

// DequeueOne removes and returns the head of the queue of threadID.
func (q *Queue) DequeueOne(ctx context.Context, threadID string) (QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.queues[threadID]
	if len(queue) == 0 {
		return QueuedMessage{}, false
	}
	head := queue[0]
	if len(queue) == 1 {
		delete(q.queues, threadID)
	} else {
		q.queues[threadID] = queue[1:]
	}
	q.persistLocked(ctx, threadID)
	return head, true
}

// PushFront puts message back at the head of the queue of threadID.
func (q *Queue) PushFront(ctx context.Context, threadID string, message QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[threadID] = slices.Insert(q.queues[threadID], 0, message)
	q.persistLocked(ctx, threadID)
}

// Pending returns a copy of the queue of threadID, head first.
func (q *Queue) Pending(threadID string) []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.queues[threadID])
}

// Len returns the depth of the queue of threadID.
func (q *Queue) Len(threadID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[threadID])
}

// Restore loads every stored queue, replacing the in-memory ones.
func (q *Queue) Restore(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	loaded, err := q.store.LoadQueues(ctx)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues = make(map[string][]QueuedMessage, len(loaded))
	for threadID, messages := range loaded {
		if len(messages) > 0 {
			q.queues[threadID] = messages
		}
	}
	q.logger.Info("restored queued messages", "threads", len(q.queues))
	return nil
}

// persistLocked writes the queue of threadID through to the store.
// Writing under q.mu keeps stored queues in mutation order. A failed
// write is logged; the in-memory queue stays authoritative.
func (q *Queue) persistLocked(ctx context.Context, threadID string) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveQueue(ctx, threadID, slices.Clone(q.queues[threadID])); err != nil {
		q.logger.Warn("persisting queue failed", "thread_id", threadID, "error", err)
	}
}
