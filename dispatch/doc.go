// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch holds user messages submitted while their thread's
// turn is running and sends them when the turn completes.
//
// [Queue] is a per-thread FIFO. [Queue.DequeueOne] removes the head
// under the queue mutex, so two turn completions racing on one thread
// take different entries and drop none. When a [QueueStore] is
// configured, each thread's queue is written through after every
// mutation and [Queue.Restore] reloads them on startup.
//
// [Dispatcher.Submit] decides whether a new message starts a turn or
// waits, and [Dispatcher.TurnEnded] claims the next waiting message
// when a turn completes. Both read the thread status and change the
// queue under one lock, so sends never overtake queued messages.
// [Dispatcher.Start] sends the claimed message with the [TurnParams]
// captured when it was queued; if that fails the entry goes back to the
// head of the queue and the thread is set idle again.
package dispatch
