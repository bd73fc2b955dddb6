// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/console/protocol"
	"github.com/bureau-foundation/console/transcript"
)

// TurnStarter issues turn/start for a profile.
type TurnStarter interface {
	StartTurn(ctx context.Context, profileID string, params protocol.TurnStartParams) error
}

// StatusTracker reads and records thread status. transcript.Store
// implements it.
type StatusTracker interface {
	Status(threadID string) transcript.Status
	SetStatus(threadID string, status transcript.Status)
}

var _ StatusTracker = (*transcript.Store)(nil)

// Dispatcher decides, per thread, whether a user message starts a turn
// now or waits in the queue, and drains the queue on turn completion.
//
// Every decision that reads the thread status and then changes the
// queue or the status holds mu, so a send racing a turn completion can
// neither strand a message on an idle thread nor overtake the queue.
// Turn starts run outside mu.
type Dispatcher struct {
	Queue   *Queue
	Starter TurnStarter
	Status  StatusTracker

	// Logger receives structured log output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	mu sync.Mutex
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Submission is the outcome of Submit.
type Submission struct {
	// Queued is true when the submitted message went into the queue.
	// Message then carries its queue id.
	Queued  bool
	Message QueuedMessage

	// Start is the message the caller must now pass to Start, when
	// Starting is true. It is the submitted message itself unless
	// older messages were waiting, in which case it is the queue head.
	Starting bool
	Start    QueuedMessage
	// FromQueue reports that Start was taken from the queue and goes
	// back to its head if starting it fails.
	FromQueue bool
}

// Submit routes a new user message for threadID. While a turn is
// active the message is queued. Otherwise the thread becomes active
// and the caller starts a turn: with the message, or with the queue
// head when earlier messages are still waiting (the message then
// queues behind them).
func (d *Dispatcher) Submit(ctx context.Context, threadID string, message QueuedMessage) Submission {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Status.Status(threadID) == transcript.StatusActive {
		return Submission{Queued: true, Message: d.Queue.Enqueue(ctx, threadID, message)}
	}

	d.Status.SetStatus(threadID, transcript.StatusActive)
	if d.Queue.Len(threadID) == 0 {
		message.ThreadID = threadID
		return Submission{Message: message, Starting: true, Start: message}
	}
	queued := d.Queue.Enqueue(ctx, threadID, message)
	head, _ := d.Queue.DequeueOne(ctx, threadID)
	return Submission{Queued: true, Message: queued, Starting: true, Start: head, FromQueue: true}
}

// TurnEnded claims the next queued message of threadID. With one, the
// thread stays active and the caller must Start it; without, the
// thread becomes idle.
func (d *Dispatcher) TurnEnded(ctx context.Context, threadID string) (QueuedMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	message, ok := d.Queue.DequeueOne(ctx, threadID)
	if !ok {
		d.Status.SetStatus(threadID, transcript.StatusIdle)
		return QueuedMessage{}, false
	}
	d.Status.SetStatus(threadID, transcript.StatusActive)
	return message, true
}

// Start issues turn/start for message on threadID. On failure the
// thread reverts to idle and, when fromQueue is set, the message goes
// back to the head of the queue.
func (d *Dispatcher) Start(ctx context.Context, profileID, threadID string, message QueuedMessage, fromQueue bool) error {
	if message.ProfileID != "" {
		profileID = message.ProfileID
	}

	err := d.Starter.StartTurn(ctx, profileID, TurnStartParams(threadID, message.Text, message.Params))
	if err != nil {
		d.mu.Lock()
		if fromQueue {
			d.Queue.PushFront(ctx, threadID, message)
		}
		d.Status.SetStatus(threadID, transcript.StatusIdle)
		d.mu.Unlock()

		d.logger().Warn("starting turn failed",
			"thread_id", threadID,
			"profile_id", profileID,
			"message_id", message.ID,
			"requeued", fromQueue,
			"error", err,
		)
		return fmt.Errorf("dispatch: starting turn on %s: %w", threadID, err)
	}

	if fromQueue {
		d.logger().Info("sent queued message",
			"thread_id", threadID,
			"profile_id", profileID,
			"message_id", message.ID,
			"remaining", d.Queue.Len(threadID),
		)
	}
	return nil
}

// TurnCompleted sends the next queued message of threadID, if any. It
// reports whether a turn was started. On failure the message is back at
// the head of the queue, the thread is idle, and the start error is
// returned.
func (d *Dispatcher) TurnCompleted(ctx context.Context, profileID, threadID string) (bool, error) {
	message, ok := d.TurnEnded(ctx, threadID)
	if !ok {
		return false, nil
	}
	if err := d.Start(ctx, profileID, threadID, message, true); err != nil {
		return false, err
	}
	return true, nil
}

// TurnStartParams builds turn/start params for text with params.
func TurnStartParams(threadID, text string, params TurnParams) protocol.TurnStartParams {
	return protocol.TurnStartParams{
		ThreadID:       threadID,
		Input:          protocol.TextInput(text),
		Model:          params.Model,
		Effort:         params.Effort,
		Summary:        params.Summary,
		Cwd:            params.WorkingDirectory,
		ApprovalPolicy: params.ApprovalPolicy,
	}
}
