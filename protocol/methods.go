// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "strings"

// Calls the console issues.
const (
	MethodThreadStart   = "thread/start"
	MethodTurnStart     = "turn/start"
	MethodTurnInterrupt = "turn/interrupt"
	MethodThreadArchive = "thread/archive"
)

// Notifications a profile emits.
const (
	MethodThreadStarted  = "thread/started"
	MethodThreadArchived = "thread/archived"
	MethodTurnStarted    = "turn/started"
	MethodTurnCompleted  = "turn/completed"
	MethodItemStarted    = "item/started"
	MethodItemCompleted  = "item/completed"

	MethodAgentMessageDelta     = "item/agentMessage/delta"
	MethodReasoningTextDelta    = "item/reasoning/textDelta"
	MethodReasoningSummaryDelta = "item/reasoning/summaryTextDelta"
	MethodCommandOutputDelta    = "item/commandExecution/outputDelta"
	MethodFileChangeOutputDelta = "item/fileChange/outputDelta"
	MethodMCPToolCallProgress   = "item/mcpToolCall/progress"
)

// Remote calls a profile makes to the console.
const (
	MethodCommandApproval    = "item/commandExecution/requestApproval"
	MethodFileChangeApproval = "item/fileChange/requestApproval"
)

// IsDeltaMethod reports whether method carries an incremental text
// fragment for one item.
func IsDeltaMethod(method string) bool {
	switch method {
	case MethodAgentMessageDelta,
		MethodReasoningTextDelta,
		MethodReasoningSummaryDelta,
		MethodCommandOutputDelta,
		MethodFileChangeOutputDelta,
		MethodMCPToolCallProgress:
		return true
	}
	return false
}

// IsApprovalMethod reports whether method is a remote approval request.
func IsApprovalMethod(method string) bool {
	return strings.HasSuffix(method, "/requestApproval")
}
