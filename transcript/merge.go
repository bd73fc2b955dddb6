// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"slices"
	"strings"
)

// Merge reconciles a fetched history with the live messages of the same
// thread. The result never aliases either input.
func Merge(fetched, live []Message) []Message {
	if len(live) == 0 {
		return slices.Clone(fetched)
	}
	if len(fetched) == 0 {
		return slices.Clone(live)
	}

	merged := slices.Clone(fetched)
	claimed := make([]bool, len(merged))

	positions := make(map[string]int, len(merged))
	for index, message := range merged {
		positions[message.ID] = index
		if message.LocalID != "" {
			positions[message.LocalID] = index
		}
	}

	// Unsynced user messages by content, oldest first.
	queues := make(map[string][]int)
	for index, message := range merged {
		if message.isUserChat() && message.Timestamp == "" && strings.TrimSpace(message.Content) != "" {
			key := strings.TrimSpace(message.Content)
			queues[key] = append(queues[key], index)
		}
	}
	claim := func(content string) (int, bool) {
		key := strings.TrimSpace(content)
		queue := queues[key]
		for len(queue) > 0 {
			index := queue[0]
			queue = queue[1:]
			if !claimed[index] {
				queues[key] = queue
				return index, true
			}
		}
		queues[key] = queue
		return 0, false
	}

	for _, message := range live {
		if index, exists := positions[message.ID]; exists {
			merged[index].overlay(message)
			claimed[index] = true
			continue
		}
		if message.isUserChat() {
			if index, ok := claim(message.Content); ok {
				merged[index].overlay(message)
				merged[index].LocalID = message.ID
				claimed[index] = true
				positions[message.ID] = index
				continue
			}
		}
		positions[message.ID] = len(merged)
		merged = append(merged, message)
		claimed = append(claimed, true)
	}
	return merged
}
