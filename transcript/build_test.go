// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"testing"

	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/protocol"
)

func TestBuildFromTurns(t *testing.T) {
	exitCode := 2
	result, err := codec.NewRaw(codec.FormatJSON, map[string]any{"rows": 3})
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	turns := []protocol.Turn{
		{
			ID:     "turn-1",
			Status: protocol.TurnCompleted,
			Items: []protocol.Item{
				{ID: "u1", Type: protocol.ItemUserMessage, Content: []protocol.UserInput{
					{Type: protocol.InputText, Text: "look at this"},
					{Type: protocol.InputLocalImage, Path: "/tmp/shot.png"},
				}},
				{ID: "u-empty", Type: protocol.ItemUserMessage, Content: []protocol.UserInput{{Type: protocol.InputText, Text: "  "}}},
				{ID: "r1", Type: protocol.ItemReasoning, Summary: []string{"Plan"}, Text: "details"},
				{ID: "c1", Type: protocol.ItemCommandExecution, Command: "go test", AggregatedOutput: "FAIL", ExitCode: &exitCode},
				{ID: "f1", Type: protocol.ItemFileChange, Changes: []protocol.FileChange{{Path: "a.go", Kind: "update"}, {Path: "b.go", Kind: "add"}}},
				{ID: "m1", Type: protocol.ItemMCPToolCall, Server: "db", Tool: "query", Result: result},
				{ID: "w1", Type: protocol.ItemWebSearch, Query: "golang slog"},
				{ID: "v1", Type: protocol.ItemEnteredReviewMode, Review: "current changes"},
				{ID: "x1", Type: "somethingNew"},
				{ID: "a-empty", Type: protocol.ItemAgentMessage},
				{ID: "a1", Type: protocol.ItemAgentMessage, Text: "All set."},
			},
		},
	}

	messages := BuildFromTurns(turns)
	want := []Message{
		{ID: "u1", Role: RoleUser, Kind: KindChat, Content: "look at this\n[image: /tmp/shot.png]"},
		{ID: "r1", Role: RoleAssistant, Kind: KindReasoning, Title: "Reasoning", Content: "Plan\n\ndetails"},
		{ID: "c1", Role: RoleAssistant, Kind: KindCommand, Title: "$ go test", Content: "FAIL\nexit code 2"},
		{ID: "f1", Role: RoleAssistant, Kind: KindFile, Title: "Edited 2 files", Content: "update a.go\nadd b.go"},
		{ID: "m1", Role: RoleAssistant, Kind: KindTool, Title: "db.query", Content: `{"rows":3}`},
		{ID: "w1", Role: RoleAssistant, Kind: KindTool, Title: "Web search", Content: "golang slog"},
		{ID: "v1", Role: RoleAssistant, Kind: KindTool, Title: "Entered review mode", Content: "current changes"},
		{ID: "a1", Role: RoleAssistant, Kind: KindChat, Content: "All set."},
	}
	if len(messages) != len(want) {
		t.Fatalf("got %d messages, want %d: %+v", len(messages), len(want), messages)
	}
	for index := range want {
		if messages[index] != want[index] {
			t.Errorf("message %d = %+v, want %+v", index, messages[index], want[index])
		}
	}
}

func TestComputeStatus(t *testing.T) {
	running := []protocol.Turn{{Status: protocol.TurnCompleted}, {Status: "in_progress"}}
	finished := []protocol.Turn{{Status: protocol.TurnCompleted}, {Status: protocol.TurnInterrupted}}

	tests := []struct {
		name     string
		archived bool
		turns    []protocol.Turn
		want     Status
	}{
		{"in progress", false, running, StatusActive},
		{"finished", false, finished, StatusIdle},
		{"no turns", false, nil, StatusIdle},
		{"archived wins", true, running, StatusArchived},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ComputeStatus(test.archived, test.turns); got != test.want {
				t.Errorf("ComputeStatus = %v, want %v", got, test.want)
			}
		})
	}
}

func TestKindForMethod(t *testing.T) {
	tests := map[string]Kind{
		protocol.MethodAgentMessageDelta:     KindChat,
		protocol.MethodReasoningTextDelta:    KindReasoning,
		protocol.MethodReasoningSummaryDelta: KindReasoning,
		protocol.MethodCommandOutputDelta:    KindCommand,
		protocol.MethodFileChangeOutputDelta: KindFile,
		protocol.MethodMCPToolCallProgress:   KindTool,
	}
	for method, want := range tests {
		role, kind := KindForMethod(method)
		if role != RoleAssistant || kind != want {
			t.Errorf("KindForMethod(%s) = %s/%s, want assistant/%s", method, role, kind, want)
		}
	}
}
