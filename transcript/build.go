// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/console/protocol"
)

// BuildFromTurns flattens a turn history into messages. User inputs and
// assistant text become chat messages; other items go through the
// formatter for their type and unrecognized items are dropped.
func BuildFromTurns(turns []protocol.Turn) []Message {
	var messages []Message
	for turnIndex, turn := range turns {
		for itemIndex, item := range turn.Items {
			id := item.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d-%d", turn.ID, turnIndex, itemIndex)
			}
			message, ok := MessageFromItem(item)
			if !ok {
				continue
			}
			message.ID = id
			messages = append(messages, message)
		}
	}
	return messages
}

// MessageFromItem converts one item. It reports false for items that
// produce no message: empty user or assistant text, or an unknown type.
func MessageFromItem(item protocol.Item) (Message, bool) {
	switch item.Type {
	case protocol.ItemUserMessage:
		content := userContent(item.Content)
		if strings.TrimSpace(content) == "" {
			return Message{}, false
		}
		return Message{ID: item.ID, Role: RoleUser, Kind: KindChat, Content: content}, true
	case protocol.ItemAgentMessage:
		if item.Text == "" {
			return Message{}, false
		}
		return Message{ID: item.ID, Role: RoleAssistant, Kind: KindChat, Content: item.Text}, true
	}

	format, ok := formatters[item.Type]
	if !ok {
		return Message{}, false
	}
	kind, title, content := format(item)
	return Message{ID: item.ID, Role: RoleAssistant, Kind: kind, Title: title, Content: content}, true
}

// userContent joins the elements of a user message into one string.
// Images are shown as references.
func userContent(inputs []protocol.UserInput) string {
	var parts []string
	for _, input := range inputs {
		switch input.Type {
		case protocol.InputText:
			if input.Text != "" {
				parts = append(parts, input.Text)
			}
		case protocol.InputImage:
			if input.URL != "" {
				parts = append(parts, "[image: "+input.URL+"]")
			}
		case protocol.InputLocalImage:
			if input.Path != "" {
				parts = append(parts, "[image: "+input.Path+"]")
			}
		}
	}
	return strings.Join(parts, "\n")
}

type formatter func(item protocol.Item) (kind Kind, title, content string)

var formatters = map[string]formatter{
	protocol.ItemReasoning:         formatReasoning,
	protocol.ItemCommandExecution:  formatCommand,
	protocol.ItemFileChange:        formatFileChange,
	protocol.ItemMCPToolCall:       formatToolCall,
	protocol.ItemWebSearch:         formatWebSearch,
	protocol.ItemImageView:         formatImageView,
	protocol.ItemEnteredReviewMode: formatReview("Entered review mode"),
	protocol.ItemExitedReviewMode:  formatReview("Exited review mode"),
}

func formatReasoning(item protocol.Item) (Kind, string, string) {
	parts := append([]string(nil), item.Summary...)
	if item.Text != "" {
		parts = append(parts, item.Text)
	}
	return KindReasoning, "Reasoning", strings.Join(parts, "\n\n")
}

func formatCommand(item protocol.Item) (Kind, string, string) {
	content := item.AggregatedOutput
	if item.ExitCode != nil && *item.ExitCode != 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += fmt.Sprintf("exit code %d", *item.ExitCode)
	}
	return KindCommand, "$ " + item.Command, content
}

func formatFileChange(item protocol.Item) (Kind, string, string) {
	title := "Edited 1 file"
	if len(item.Changes) != 1 {
		title = fmt.Sprintf("Edited %d files", len(item.Changes))
	}
	var builder strings.Builder
	for index, change := range item.Changes {
		if index > 0 {
			builder.WriteString("\n")
		}
		if change.Kind != "" {
			fmt.Fprintf(&builder, "%s %s", change.Kind, change.Path)
		} else {
			builder.WriteString(change.Path)
		}
		if change.Diff != "" {
			builder.WriteString("\n")
			builder.WriteString(change.Diff)
		}
	}
	return KindFile, title, builder.String()
}

func formatToolCall(item protocol.Item) (Kind, string, string) {
	title := item.Tool
	if item.Server != "" {
		title = item.Server + "." + item.Tool
	}
	var content string
	switch {
	case item.Error != nil:
		content = "error: " + item.Error.Message
	case item.Result != nil:
		content = item.Result.String()
	case item.Arguments != nil:
		content = item.Arguments.String()
	}
	return KindTool, title, content
}

func formatWebSearch(item protocol.Item) (Kind, string, string) {
	return KindTool, "Web search", item.Query
}

func formatImageView(item protocol.Item) (Kind, string, string) {
	return KindTool, "Viewed image", item.Path
}

func formatReview(title string) formatter {
	return func(item protocol.Item) (Kind, string, string) {
		return KindTool, title, item.Review
	}
}
