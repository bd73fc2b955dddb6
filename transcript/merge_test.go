// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"slices"
	"testing"
)

func ids(messages []Message) []string {
	result := make([]string, len(messages))
	for index, message := range messages {
		result[index] = message.ID
	}
	return result
}

func userChat(id, content, timestamp string) Message {
	return Message{ID: id, Role: RoleUser, Kind: KindChat, Content: content, Timestamp: timestamp}
}

func assistantChat(id, content string) Message {
	return Message{ID: id, Role: RoleAssistant, Kind: KindChat, Content: content}
}

func TestMergeIdentityLaws(t *testing.T) {
	messages := []Message{userChat("u1", "hi", ""), assistantChat("a1", "hello")}

	if got := Merge(nil, messages); !slices.Equal(got, messages) {
		t.Errorf("Merge(nil, live) = %v, want live", got)
	}
	if got := Merge(messages, nil); !slices.Equal(got, messages) {
		t.Errorf("Merge(fetched, nil) = %v, want fetched", got)
	}
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %v", got)
	}
}

func TestMergeReconcilesOptimisticMessage(t *testing.T) {
	fetched := []Message{userChat("u1", "hi", "")}
	live := []Message{userChat("live-1", "hi", "10:02")}

	merged := Merge(fetched, live)
	if len(merged) != 1 {
		t.Fatalf("merged %d messages, want 1: %v", len(merged), merged)
	}
	got := merged[0]
	if got.ID != "u1" || got.Content != "hi" || got.Timestamp != "10:02" {
		t.Errorf("merged = %+v, want id u1, content hi, timestamp 10:02", got)
	}
	if got.LocalID != "live-1" {
		t.Errorf("LocalID = %q, want live-1", got.LocalID)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	fetched := []Message{
		userChat("u1", "hi", ""),
		assistantChat("a1", "hello"),
		userChat("u2", "again", ""),
	}
	live := []Message{
		userChat("live-1", "hi", "10:02"),
		assistantChat("a1", "hello there"),
		userChat("live-2", "new question", "10:05"),
		assistantChat("a9", "streaming"),
	}

	once := Merge(fetched, live)
	twice := Merge(once, live)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Errorf("ids changed on second merge: %v then %v", ids(once), ids(twice))
	}
	if want := []string{"u1", "a1", "u2", "live-2", "a9"}; !slices.Equal(ids(once), want) {
		t.Errorf("ids = %v, want %v", ids(once), want)
	}
}

func TestMergeOverlaysMatchingIDs(t *testing.T) {
	fetched := []Message{assistantChat("a1", "partial"), {ID: "c1", Role: RoleAssistant, Kind: KindCommand, Title: "$ ls"}}
	live := []Message{assistantChat("a1", "full answer"), {ID: "c1", Content: "file.go"}}

	merged := Merge(fetched, live)
	if len(merged) != 2 {
		t.Fatalf("merged = %v", merged)
	}
	if merged[0].Content != "full answer" {
		t.Errorf("live content did not win: %+v", merged[0])
	}
	if merged[1].Title != "$ ls" || merged[1].Content != "file.go" || merged[1].Kind != KindCommand {
		t.Errorf("empty live fields overwrote fetched ones: %+v", merged[1])
	}
}

func TestMergeDuplicateContentFirstSeenFirstServed(t *testing.T) {
	fetched := []Message{
		userChat("u1", "yes", ""),
		assistantChat("a1", "ok"),
		userChat("u2", "yes", ""),
	}
	live := []Message{
		userChat("live-1", " yes ", "10:00"),
		userChat("live-2", "yes", "10:01"),
		userChat("live-3", "yes", "10:02"),
	}

	merged := Merge(fetched, live)
	if want := []string{"u1", "a1", "u2", "live-3"}; !slices.Equal(ids(merged), want) {
		t.Fatalf("ids = %v, want %v", ids(merged), want)
	}
	if merged[0].Timestamp != "10:00" || merged[2].Timestamp != "10:01" {
		t.Errorf("timestamps = %q, %q; want 10:00 then 10:01", merged[0].Timestamp, merged[2].Timestamp)
	}
}

func TestMergeContentMatchOnlyForUserChat(t *testing.T) {
	fetched := []Message{assistantChat("a1", "done"), userChat("u1", "run it", "")}
	live := []Message{
		assistantChat("a-live", "done"),
		{ID: "r-live", Role: RoleUser, Kind: KindReasoning, Content: "run it"},
	}

	merged := Merge(fetched, live)
	if want := []string{"a1", "u1", "a-live", "r-live"}; !slices.Equal(ids(merged), want) {
		t.Errorf("ids = %v, want %v", ids(merged), want)
	}
}

func TestMergeSkipsTimestampedBaseSlots(t *testing.T) {
	fetched := []Message{userChat("u1", "hi", "09:00")}
	live := []Message{userChat("live-1", "hi", "10:02")}

	merged := Merge(fetched, live)
	if want := []string{"u1", "live-1"}; !slices.Equal(ids(merged), want) {
		t.Errorf("ids = %v, want %v", ids(merged), want)
	}
}

func TestMergeIDMatchedSlotCannotBeClaimedByContent(t *testing.T) {
	fetched := []Message{userChat("u1", "hi", "")}
	live := []Message{userChat("u1", "hi", "10:00"), userChat("live-2", "hi", "10:01")}

	merged := Merge(fetched, live)
	if want := []string{"u1", "live-2"}; !slices.Equal(ids(merged), want) {
		t.Errorf("ids = %v, want %v", ids(merged), want)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	fetched := []Message{userChat("u1", "hi", "")}
	live := []Message{userChat("live-1", "hi", "10:02")}

	Merge(fetched, live)
	if fetched[0].Timestamp != "" || fetched[0].LocalID != "" {
		t.Errorf("Merge modified its input: %+v", fetched[0])
	}
}
