// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"github.com/bureau-foundation/console/protocol"
)

// Role is who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind is what a message shows.
type Kind string

const (
	KindChat      Kind = "chat"
	KindReasoning Kind = "reasoning"
	KindCommand   Kind = "command"
	KindFile      Kind = "file"
	KindTool      Kind = "tool"
)

// Message is one entry in a thread transcript. Order within a thread is
// list order; Timestamp is display-only and often empty for history.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Kind      Kind   `json:"kind"`
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// LocalID is the provisional id of an optimistic message that was
	// reconciled into this entry by content.
	LocalID string `json:"localId,omitempty"`
}

func (m Message) isUserChat() bool {
	return m.Role == RoleUser && m.Kind == KindChat
}

// overlay copies the non-empty fields of source onto m, leaving m.ID
// alone.
func (m *Message) overlay(source Message) {
	if source.Role != "" {
		m.Role = source.Role
	}
	if source.Kind != "" {
		m.Kind = source.Kind
	}
	if source.Content != "" {
		m.Content = source.Content
	}
	if source.Title != "" {
		m.Title = source.Title
	}
	if source.Timestamp != "" {
		m.Timestamp = source.Timestamp
	}
	if source.LocalID != "" {
		m.LocalID = source.LocalID
	}
}

// KindForMethod infers the role and kind of a message from the delta
// notification that streams it.
func KindForMethod(method string) (Role, Kind) {
	switch method {
	case protocol.MethodReasoningTextDelta, protocol.MethodReasoningSummaryDelta:
		return RoleAssistant, KindReasoning
	case protocol.MethodCommandOutputDelta:
		return RoleAssistant, KindCommand
	case protocol.MethodFileChangeOutputDelta:
		return RoleAssistant, KindFile
	case protocol.MethodMCPToolCallProgress:
		return RoleAssistant, KindTool
	default:
		return RoleAssistant, KindChat
	}
}

// Status is a thread's lifecycle status.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ThreadState is the bookkeeping the store keeps per thread.
type ThreadState struct {
	ID           string `json:"id"`
	ProfileID    string `json:"profileId"`
	Status       Status `json:"status"`
	Archived     bool   `json:"archived,omitempty"`
	MessageCount int    `json:"messageCount"`

	// Loaded is set once a resume has merged the thread's history.
	Loaded bool `json:"loaded,omitempty"`
}

// ComputeStatus derives a thread's status from its archived flag and
// fetched turns.
func ComputeStatus(archived bool, turns []protocol.Turn) Status {
	if archived {
		return StatusArchived
	}
	for _, turn := range turns {
		if turn.InProgress() {
			return StatusActive
		}
	}
	return StatusIdle
}
