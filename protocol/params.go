// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// ThreadStartParams are the params of thread/start.
type ThreadStartParams struct {
	Model          string `json:"model,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`
}

// ThreadStartResult is the result of thread/start.
type ThreadStartResult struct {
	Thread Thread `json:"thread"`
}

// TurnStartParams are the params of turn/start.
type TurnStartParams struct {
	ThreadID       string      `json:"threadId"`
	Input          []UserInput `json:"input"`
	Model          string      `json:"model,omitempty"`
	Effort         string      `json:"effort,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	Cwd            string      `json:"cwd,omitempty"`
	ApprovalPolicy string      `json:"approvalPolicy,omitempty"`
}

// TurnStartResult is the result of turn/start.
type TurnStartResult struct {
	Turn Turn `json:"turn"`
}

// TurnInterruptParams are the params of turn/interrupt.
type TurnInterruptParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
}

// ThreadArchiveParams are the params of thread/archive.
type ThreadArchiveParams struct {
	ThreadID string `json:"threadId"`
}

// ThreadStartedParams accompany thread/started.
type ThreadStartedParams struct {
	Thread Thread `json:"thread"`
}

// ThreadArchivedParams accompany thread/archived.
type ThreadArchivedParams struct {
	ThreadID string `json:"threadId"`
}

// TurnParams accompany turn/started and turn/completed.
type TurnParams struct {
	ThreadID string `json:"threadId"`
	Turn     Turn   `json:"turn"`
}

// ItemParams accompany item/started and item/completed.
type ItemParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId,omitempty"`
	Item     Item   `json:"item"`
}

// DeltaParams accompany every delta notification. MCP progress reports
// its fragment in Message instead of Delta.
type DeltaParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId,omitempty"`
	ItemID   string `json:"itemId"`
	Delta    string `json:"delta,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Fragment returns the text carried by the notification.
func (p DeltaParams) Fragment() string {
	if p.Delta != "" {
		return p.Delta
	}
	if p.Message != "" {
		return p.Message + "\n"
	}
	return ""
}

// ApprovalParams accompany the requestApproval remote calls.
type ApprovalParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId,omitempty"`
	ItemID   string `json:"itemId"`
	Reason   string `json:"reason,omitempty"`
	Command  string `json:"command,omitempty"`
	Cwd      string `json:"cwd,omitempty"`
}

// Approval decisions.
const (
	DecisionAccept  = "accept"
	DecisionDecline = "decline"
	DecisionCancel  = "cancel"
)

// ApprovalResult answers a requestApproval remote call.
type ApprovalResult struct {
	Decision string `json:"decision"`
}
