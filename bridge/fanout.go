// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"slices"
	"sync"
)

// Subscription receives published events on C until Close. C is never
// closed; select on Done alongside it to stop.
type Subscription struct {
	C <-chan Event

	channel   chan Event
	done      chan struct{}
	closeOnce sync.Once
	bridge    *Bridge
}

// Subscribe registers a subscriber with a channel of the given buffer
// size. Only events received after Subscribe returns are delivered.
func (b *Bridge) Subscribe(buffer int) *Subscription {
	channel := make(chan Event, buffer)
	subscription := &Subscription{
		C:       channel,
		channel: channel,
		done:    make(chan struct{}),
		bridge:  b,
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, subscription)
	b.mu.Unlock()
	return subscription
}

// Close unsubscribes. A delivery blocked on this subscription is
// released. Close is idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bridge.mu.Lock()
		s.bridge.subscribers = slices.DeleteFunc(s.bridge.subscribers, func(other *Subscription) bool {
			return other == s
		})
		s.bridge.mu.Unlock()
	})
}

// Done is closed by Close.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// publish delivers event to every current subscriber in registration
// order, waiting on each full channel.
func (b *Bridge) publish(event Event) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	subscribers := slices.Clone(b.subscribers)
	b.mu.Unlock()

	for _, subscription := range subscribers {
		select {
		case subscription.channel <- event:
		case <-subscription.done:
		}
	}
}
