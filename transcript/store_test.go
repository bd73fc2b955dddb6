// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/console/lib/clock"
	"github.com/bureau-foundation/console/lib/testutil"
	"github.com/bureau-foundation/console/protocol"
)

const testTimeout = 5 * time.Second

func TestApplyDeltaConcatenatesFragments(t *testing.T) {
	store := NewStore(StoreConfig{})
	for _, fragment := range []string{"Hel", "lo, ", "world"} {
		store.ApplyDelta("t1", "i1", protocol.MethodAgentMessageDelta, fragment)
	}

	messages := store.Messages("t1")
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(messages), messages)
	}
	if messages[0].Content != "Hello, world" || messages[0].Role != RoleAssistant || messages[0].Kind != KindChat {
		t.Errorf("message = %+v", messages[0])
	}
	if state, _ := store.Thread("t1"); state.MessageCount != 1 {
		t.Errorf("MessageCount = %d", state.MessageCount)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := NewStore(StoreConfig{})
	if !store.Ensure("t1", "i1") {
		t.Error("first Ensure reported no placeholder created")
	}
	if store.Ensure("t1", "i1") {
		t.Error("second Ensure created another placeholder")
	}
	messages := store.Messages("t1")
	if len(messages) != 1 || messages[0].ID != "i1" || messages[0].Content != "" {
		t.Errorf("messages = %+v, want one empty placeholder", messages)
	}
}

func TestEnsureReservesPositionAndAdoptsDeltaKind(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.Ensure("t1", "reasoning")
	store.Ensure("t1", "answer")
	store.ApplyDelta("t1", "answer", protocol.MethodAgentMessageDelta, "42")
	store.ApplyDelta("t1", "reasoning", protocol.MethodReasoningTextDelta, "thinking")

	messages := store.Messages("t1")
	if len(messages) != 2 || messages[0].ID != "reasoning" || messages[1].ID != "answer" {
		t.Fatalf("messages = %+v", messages)
	}
	if messages[0].Kind != KindReasoning || messages[0].Content != "thinking" {
		t.Errorf("placeholder did not take the delta kind: %+v", messages[0])
	}
}

func TestFinalizeOverlaysInPlace(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.ApplyDelta("t1", "c1", protocol.MethodCommandOutputDelta, "partial")
	store.ApplyDelta("t1", "a1", protocol.MethodAgentMessageDelta, "done")

	store.Finalize("t1", Message{ID: "c1", Role: RoleAssistant, Kind: KindCommand, Title: "$ make", Content: "complete output"})
	store.Finalize("t1", Message{ID: "late", Role: RoleAssistant, Kind: KindChat, Content: "new"})

	messages := store.Messages("t1")
	if len(messages) != 3 {
		t.Fatalf("messages = %+v", messages)
	}
	if messages[0].Title != "$ make" || messages[0].Content != "complete output" {
		t.Errorf("finalized = %+v", messages[0])
	}
	if messages[2].ID != "late" {
		t.Errorf("unseen item not appended: %+v", messages)
	}
}

func TestStatusRules(t *testing.T) {
	store := NewStore(StoreConfig{})
	if store.Status("unknown") != StatusIdle {
		t.Error("unknown thread is not idle")
	}
	store.SetStatus("t1", StatusActive)
	if store.Status("t1") != StatusActive {
		t.Errorf("Status = %v", store.Status("t1"))
	}
	store.SetArchived("t1")
	store.SetStatus("t1", StatusIdle)
	if store.Status("t1") != StatusArchived {
		t.Errorf("archived thread changed status to %v", store.Status("t1"))
	}
}

type stubResumer struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	thread  *protocol.Thread
	err     error
}

func (r *stubResumer) ResumeThread(ctx context.Context, profileID, threadID string) (*protocol.Thread, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.thread, nil
}

func historyThread(status string) *protocol.Thread {
	return &protocol.Thread{
		ID: "t1",
		Turns: []protocol.Turn{{
			ID:     "turn-1",
			Status: status,
			Items: []protocol.Item{
				{ID: "u1", Type: protocol.ItemUserMessage, Content: protocol.TextInput("hi")},
				{ID: "a1", Type: protocol.ItemAgentMessage, Text: "hello"},
			},
		}},
	}
}

func TestResumeMergesAndMarksLoaded(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.Track("t1", "p1")
	store.AddLocal("t1", Message{ID: "live-1", Role: RoleUser, Kind: KindChat, Content: "hi", Timestamp: "10:02"})

	resumer := &stubResumer{thread: historyThread("in_progress")}
	resumed, err := store.Resume(context.Background(), "t1", resumer)
	if err != nil || !resumed {
		t.Fatalf("Resume = %v, %v", resumed, err)
	}

	messages := store.Messages("t1")
	if len(messages) != 2 || messages[0].ID != "u1" || messages[0].Timestamp != "10:02" || messages[1].ID != "a1" {
		t.Errorf("messages = %+v", messages)
	}
	state, _ := store.Thread("t1")
	if !state.Loaded || state.Status != StatusActive || state.MessageCount != 2 || state.ProfileID != "p1" {
		t.Errorf("state = %+v", state)
	}

	resumed, err = store.Resume(context.Background(), "t1", resumer)
	if err != nil || resumed {
		t.Errorf("second Resume = %v, %v; want a no-op", resumed, err)
	}
	if resumer.calls.Load() != 1 {
		t.Errorf("fetched %d times, want 1", resumer.calls.Load())
	}

	store.Invalidate("t1")
	if resumed, _ := store.Resume(context.Background(), "t1", resumer); !resumed {
		t.Error("Resume after Invalidate did not fetch")
	}
	if got := len(store.Messages("t1")); got != 2 {
		t.Errorf("re-resume changed message count to %d", got)
	}
}

func TestResumeIdleThread(t *testing.T) {
	store := NewStore(StoreConfig{})
	if _, err := store.Resume(context.Background(), "t1", &stubResumer{thread: historyThread(protocol.TurnCompleted)}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if store.Status("t1") != StatusIdle {
		t.Errorf("Status = %v, want idle", store.Status("t1"))
	}
}

func TestConcurrentResumeFetchesOnce(t *testing.T) {
	store := NewStore(StoreConfig{})
	resumer := &stubResumer{
		thread:  historyThread(protocol.TurnCompleted),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	first := make(chan bool, 1)
	go func() {
		resumed, _ := store.Resume(context.Background(), "t1", resumer)
		first <- resumed
	}()
	testutil.RequireReceive(t, resumer.started, testTimeout, "first fetch")

	resumed, err := store.Resume(context.Background(), "t1", resumer)
	if err != nil || resumed {
		t.Errorf("overlapping Resume = %v, %v; want a no-op", resumed, err)
	}

	// Messages that arrive during the fetch survive the merge.
	store.ApplyDelta("t1", "a2", protocol.MethodAgentMessageDelta, "mid-resume")

	close(resumer.release)
	if !testutil.RequireReceive(t, first, testTimeout, "first resume") {
		t.Error("first Resume reported no fetch")
	}
	if resumer.calls.Load() != 1 {
		t.Errorf("fetched %d times", resumer.calls.Load())
	}
	if got := ids(store.Messages("t1")); len(got) != 3 || got[2] != "a2" {
		t.Errorf("ids = %v, want the fetched two then a2", got)
	}
}

func TestResumeFailureLeavesStateUntouched(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.ApplyDelta("t1", "a1", protocol.MethodAgentMessageDelta, "live text")
	failure := errors.New("side channel unavailable")

	resumed, err := store.Resume(context.Background(), "t1", &stubResumer{err: failure})
	if !errors.Is(err, failure) || resumed {
		t.Fatalf("Resume = %v, %v; want the fetch error", resumed, err)
	}
	messages := store.Messages("t1")
	if len(messages) != 1 || messages[0].Content != "live text" {
		t.Errorf("messages = %+v", messages)
	}
	if state, _ := store.Thread("t1"); state.Loaded {
		t.Error("failed resume marked the thread loaded")
	}

	if resumed, err := store.Resume(context.Background(), "t1", &stubResumer{thread: historyThread(protocol.TurnCompleted)}); err != nil || !resumed {
		t.Errorf("retry after failure = %v, %v", resumed, err)
	}
}

func TestResumeWithoutThreadIsAFailure(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.ApplyDelta("t1", "a1", protocol.MethodAgentMessageDelta, "live text")

	resumed, err := store.Resume(context.Background(), "t1", &stubResumer{})
	if !errors.Is(err, ErrNoHistory) || resumed {
		t.Fatalf("Resume = %v, %v; want ErrNoHistory", resumed, err)
	}
	if messages := store.Messages("t1"); len(messages) != 1 || messages[0].Content != "live text" {
		t.Errorf("messages = %+v", messages)
	}

	// The store lock was released and the resume marker cleared.
	if resumed, err := store.Resume(context.Background(), "t1", &stubResumer{thread: historyThread(protocol.TurnCompleted)}); err != nil || !resumed {
		t.Errorf("retry = %v, %v", resumed, err)
	}
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved map[string]Snapshot
}

func (m *memorySnapshots) SaveSnapshot(_ context.Context, snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[snapshot.ThreadID] = snapshot
	return nil
}

func (m *memorySnapshots) LoadSnapshot(_ context.Context, threadID string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, found := m.saved[threadID]
	return snapshot, found, nil
}

func TestSnapshotSavedAfterResumeAndRestored(t *testing.T) {
	snapshots := &memorySnapshots{saved: make(map[string]Snapshot)}
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewStore(StoreConfig{Snapshots: snapshots, Clock: fakeClock})
	store.Track("t1", "p1")

	if _, err := store.Resume(context.Background(), "t1", &stubResumer{thread: historyThread(protocol.TurnCompleted)}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	saved, found, _ := snapshots.LoadSnapshot(context.Background(), "t1")
	if !found || len(saved.Messages) != 2 || saved.ProfileID != "p1" || !saved.SavedAt.Equal(fakeClock.Now()) {
		t.Fatalf("snapshot = %+v", saved)
	}

	restarted := NewStore(StoreConfig{Snapshots: snapshots})
	restored, err := restarted.Restore(context.Background(), "t1")
	if err != nil || !restored {
		t.Fatalf("Restore = %v, %v", restored, err)
	}
	if got := ids(restarted.Messages("t1")); len(got) != 2 || got[0] != "u1" || got[1] != "a1" {
		t.Errorf("restored ids = %v", got)
	}
	state, _ := restarted.Thread("t1")
	if state.Loaded || state.ProfileID != "p1" {
		t.Errorf("restored state = %+v; want unloaded and owned by p1", state)
	}

	if restored, _ := restarted.Restore(context.Background(), "t1"); restored {
		t.Error("Restore overwrote a thread that already has messages")
	}
	if restored, _ := restarted.Restore(context.Background(), "missing"); restored {
		t.Error("Restore reported success for a thread with no snapshot")
	}
}
