// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "fmt"

// State is the connection state of a Session.
type State int

const (
	// StateIdle: never connected, or disconnected deliberately, or
	// closed cleanly by the host.
	StateIdle State = iota
	// StateConnecting: Connect is acquiring a token or dialing.
	StateConnecting
	// StateConnected: the websocket is open.
	StateConnected
	// StateError: the last Connect failed or the connection dropped.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateWatch delivers state transitions. Transitions are dropped for a
// watcher whose channel is full; State always reports the current value.
type StateWatch struct {
	C <-chan State

	channel chan State
	session *Session
}

// Close stops delivery. C is not closed.
func (w *StateWatch) Close() {
	w.session.mu.Lock()
	defer w.session.mu.Unlock()
	delete(w.session.watchers, w)
}
