// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "github.com/bureau-foundation/console/lib/codec"

// Thread is a conversation as reported by a profile. Turns is populated
// only by resume.
type Thread struct {
	ID            string `json:"id"`
	Preview       string `json:"preview,omitempty"`
	ModelProvider string `json:"modelProvider,omitempty"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
	Cwd           string `json:"cwd,omitempty"`
	Archived      bool   `json:"archived,omitempty"`
	Turns         []Turn `json:"turns,omitempty"`
}

// Turn statuses.
const (
	TurnInProgress  = "inProgress"
	TurnCompleted   = "completed"
	TurnInterrupted = "interrupted"
	TurnFailed      = "failed"
)

// Turn is one request/response cycle.
type Turn struct {
	ID     string     `json:"id"`
	Status string     `json:"status,omitempty"`
	Items  []Item     `json:"items,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// InProgress reports whether the turn is still running. Both spellings
// of the status occur in stored history.
func (t Turn) InProgress() bool {
	return t.Status == TurnInProgress || t.Status == "in_progress"
}

// Item types.
const (
	ItemUserMessage       = "userMessage"
	ItemAgentMessage      = "agentMessage"
	ItemReasoning         = "reasoning"
	ItemCommandExecution  = "commandExecution"
	ItemFileChange        = "fileChange"
	ItemMCPToolCall       = "mcpToolCall"
	ItemWebSearch         = "webSearch"
	ItemImageView         = "imageView"
	ItemEnteredReviewMode = "enteredReviewMode"
	ItemExitedReviewMode  = "exitedReviewMode"
)

// Item is a typed unit inside a turn. Fields are a union over item
// types; only those relevant to Type are set.
type Item struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// userMessage
	Content []UserInput `json:"content,omitempty"`

	// agentMessage, reasoning
	Text    string   `json:"text,omitempty"`
	Summary []string `json:"summary,omitempty"`

	// commandExecution
	Command          string `json:"command,omitempty"`
	Cwd              string `json:"cwd,omitempty"`
	AggregatedOutput string `json:"aggregatedOutput,omitempty"`
	ExitCode         *int   `json:"exitCode,omitempty"`

	// fileChange
	Changes []FileChange `json:"changes,omitempty"`

	// mcpToolCall
	Server    string     `json:"server,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	Arguments *codec.Raw `json:"arguments,omitempty"`
	Result    *codec.Raw `json:"result,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`

	// webSearch
	Query string `json:"query,omitempty"`

	// imageView
	Path string `json:"path,omitempty"`

	// enteredReviewMode, exitedReviewMode
	Review string `json:"review,omitempty"`

	Status string `json:"status,omitempty"`
}

// FileChange is one path touched by a fileChange item.
type FileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind,omitempty"`
	Diff string `json:"diff,omitempty"`
}

// User input types.
const (
	InputText       = "text"
	InputImage      = "image"
	InputLocalImage = "localImage"
)

// UserInput is one element of a user message.
type UserInput struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// TextInput returns a single text input element.
func TextInput(text string) []UserInput {
	return []UserInput{{Type: InputText, Text: text}}
}
